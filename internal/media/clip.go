// Package media loads still images, animated GIFs and videos into clips and
// plays them back against a wall clock.
package media

import (
	"image"
	"strconv"
	"time"
)

// DefaultGIFDelay replaces zero frame delays in animated GIFs.
const DefaultGIFDelay = 100 * time.Millisecond

type Frame struct {
	Image image.Image
	Delay time.Duration
}

// Clip is decoded media. A still has a single frame with no delay.
type Clip struct {
	ID     string
	Source string
	Frames []Frame
	// Audio is interleaved stereo at audio.SampleRate, or nil.
	Audio []float32
	Loop  bool
}

func (c *Clip) Still() bool {
	return len(c.Frames) == 1 && c.Frames[0].Delay == 0
}

// Duration is the total display time; zero for a still.
func (c *Clip) Duration() time.Duration {
	var total time.Duration
	for _, f := range c.Frames {
		total += f.Delay
	}
	return total
}

func (c *Clip) Size() (int, int) {
	if len(c.Frames) == 0 {
		return 0, 0
	}
	b := c.Frames[0].Image.Bounds()
	return b.Dx(), b.Dy()
}

// Index returns the frame shown at pos.
func (c *Clip) Index(pos time.Duration) int {
	if len(c.Frames) == 0 {
		return -1
	}
	var t time.Duration
	for i, f := range c.Frames {
		t += f.Delay
		if pos < t {
			return i
		}
	}
	return len(c.Frames) - 1
}

// Key identifies frame i for result caching.
func (c *Clip) Key(i int) string {
	return c.ID + "#" + strconv.Itoa(i)
}
