package tui

import (
	"time"

	"github.com/guptarohit/asciigraph"
)

// DelayChart plots per-frame delays in milliseconds.
func DelayChart(delays []time.Duration, caption string) string {
	if len(delays) == 0 {
		return Subtle.Render("no frame delays recorded")
	}
	data := make([]float64, len(delays))
	for i, d := range delays {
		data[i] = float64(d) / float64(time.Millisecond)
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}

// SeriesChart plots an arbitrary series, such as point counts per frame.
func SeriesChart(data []float64, caption string) string {
	if len(data) == 0 {
		return Subtle.Render("no data")
	}
	return asciigraph.Plot(data,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Caption(caption),
	)
}
