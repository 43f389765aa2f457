package audio

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/san-kum/ribbon/internal/lineart"
)

// Router owns the audio graph of one media element. Attach connects the
// source once; SetEffect swaps the whole edge list so the tap and the
// monitor are each reached by exactly one path in either mode.
type Router struct {
	mu       sync.Mutex
	source   Source
	mode     Mode
	edges    []Edge
	highpass *Biquad
	peaking  *Biquad
	tap      *Tap
	monitor  Sink
	logger   *slog.Logger
	scratch  []float32
}

type RouterOption func(*Router)

func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMode sets the mode applied on the first Attach.
func WithMode(m Mode) RouterOption {
	return func(r *Router) { r.mode = m }
}

func NewRouter(monitor Sink, opts ...RouterOption) *Router {
	if monitor == nil {
		monitor = Discard
	}
	r := &Router{
		highpass: NewHighpass(HighpassFreq, HighpassQ, SampleRate),
		peaking:  NewPeaking(PeakingFreq, PeakingQ, PeakingGain, SampleRate),
		tap:      &Tap{},
		monitor:  monitor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach connects src to the graph. Re-attaching the same source keeps the
// existing connection.
func (r *Router) Attach(src Source) error {
	if src == nil {
		return lineart.Wrap("audio attach", lineart.ErrRouting, errNilSource)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.source != nil && r.source.ID() == src.ID() {
		return nil
	}
	if r.source != nil {
		r.logger.Info("audio source replaced", "old", r.source.ID(), "new", src.ID())
	}
	r.source = src
	r.rebuildLocked()
	return nil
}

func (r *Router) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source != nil
}

// SetEffect switches between the bypass and the filtered path.
func (r *Router) SetEffect(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.source == nil {
		return lineart.Wrap("audio set effect", lineart.ErrRouting, errNoSource)
	}
	mode := Bypass
	if on {
		mode = Effected
	}
	r.mode = mode
	r.rebuildLocked()
	r.logger.Debug("audio route", "mode", mode, "edges", len(r.edges))
	return nil
}

func (r *Router) rebuildLocked() {
	r.edges = BuildGraph(r.mode)
	r.highpass.Reset()
	r.peaking.Reset()
}

func (r *Router) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *Router) Edges() []Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.edges)
}

func (r *Router) Tap() *Tap { return r.tap }

// Pump pulls up to n interleaved samples from the source and pushes them
// through the graph. It returns the number of samples read; io.EOF is
// returned once the source is exhausted.
func (r *Router) Pump(n int) (int, error) {
	if n%Channels != 0 {
		return 0, lineart.Wrap("audio pump", lineart.ErrRouting, errOddSamples)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.source == nil {
		return 0, lineart.Wrap("audio pump", lineart.ErrRouting, errNoSource)
	}
	if cap(r.scratch) < n {
		r.scratch = make([]float32, n)
	}
	in := r.scratch[:n]
	read, err := r.source.Read(in)
	if err != nil && !errors.Is(err, io.EOF) {
		return read, err
	}
	if read > 0 {
		if perr := r.processLocked(in[:read]); perr != nil {
			return read, perr
		}
	}
	return read, err
}

func (r *Router) processLocked(in []float32) error {
	signals := map[Node][]float32{NodeSource: in}
	for _, node := range evalOrder[1:] {
		var input []float32
		for _, e := range r.edges {
			if e.To != node {
				continue
			}
			if s, ok := signals[e.From]; ok {
				input = mix(input, s)
			}
		}
		if input == nil {
			continue
		}
		switch node {
		case NodeHighpass:
			r.highpass.Process(input)
			signals[node] = input
		case NodePeaking:
			r.peaking.Process(input)
			signals[node] = input
		case NodeTap:
			if err := r.tap.Write(input); err != nil {
				return err
			}
		case NodeMonitor:
			if err := r.monitor.Write(input); err != nil {
				r.logger.Warn("monitor write failed", "err", err)
			}
		}
	}
	return nil
}

func mix(dst, src []float32) []float32 {
	if dst == nil {
		return slices.Clone(src)
	}
	for i := range dst {
		dst[i] += src[i]
	}
	return dst
}

// Detach disconnects the source and disarms the tap.
func (r *Router) Detach() {
	r.mu.Lock()
	r.source = nil
	r.edges = nil
	r.mu.Unlock()
	r.tap.Disarm()
}
