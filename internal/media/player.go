package media

import (
	"image"
	"sync"
	"time"

	"github.com/san-kum/ribbon/internal/audio"
)

// Player tracks a playback position over a clip against a clock.
type Player struct {
	mu      sync.Mutex
	clip    *Clip
	now     func() time.Time
	playing bool
	offset  time.Duration
	since   time.Time
	pcm     *audio.PCM
}

type PlayerOption func(*Player)

func WithClock(now func() time.Time) PlayerOption {
	return func(p *Player) { p.now = now }
}

func NewPlayer(clip *Clip, opts ...PlayerOption) *Player {
	p := &Player{clip: clip, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if len(clip.Audio) > 0 {
		p.pcm = audio.NewPCM(clip.ID, clip.Audio)
	}
	return p
}

func (p *Player) Clip() *Clip { return p.clip }

func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing && !p.endedLocked() {
		return
	}
	if p.endedLocked() {
		p.offset = 0
		if p.pcm != nil {
			p.pcm.Seek(0)
		}
	}
	p.since = p.now()
	p.playing = true
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = p.positionLocked()
	p.playing = false
}

// Rewind moves to the start without changing the play state.
func (p *Player) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = 0
	p.since = p.now()
	if p.pcm != nil {
		p.pcm.Seek(0)
	}
}

// Playing reports false once a non-looping clip has ended.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.endedLocked()
}

func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endedLocked()
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) Duration() time.Duration { return p.clip.Duration() }

// Frame returns the image at the current position and its index.
func (p *Player) Frame() (image.Image, int) {
	i := p.clip.Index(p.Position())
	if i < 0 {
		return nil, -1
	}
	return p.clip.Frames[i].Image, i
}

func (p *Player) AudioSource() audio.Source {
	if p.pcm == nil {
		return nil
	}
	return p.pcm
}

func (p *Player) rawLocked() time.Duration {
	pos := p.offset
	if p.playing {
		pos += p.now().Sub(p.since)
	}
	return pos
}

func (p *Player) positionLocked() time.Duration {
	pos := p.rawLocked()
	dur := p.clip.Duration()
	switch {
	case dur <= 0:
		return 0
	case p.clip.Loop:
		return pos % dur
	default:
		return min(pos, dur)
	}
}

func (p *Player) endedLocked() bool {
	dur := p.clip.Duration()
	return dur > 0 && !p.clip.Loop && p.rawLocked() >= dur
}
