// Package studio wires the pipeline together: a media player feeds frames to
// the extractor, extracted sets go to the renderer, and the capture engine
// samples the renderer's published frames. Audio from the clip is routed
// through the router to the monitor and, while recording, to the encoder.
package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ribbon/internal/audio"
	"github.com/san-kum/ribbon/internal/capture"
	"github.com/san-kum/ribbon/internal/config"
	"github.com/san-kum/ribbon/internal/extract"
	"github.com/san-kum/ribbon/internal/lineart"
	"github.com/san-kum/ribbon/internal/media"
	"github.com/san-kum/ribbon/internal/metrics"
	"github.com/san-kum/ribbon/internal/render"
)

const (
	// ExtractInterval is how often the video loop checks for a new frame.
	ExtractInterval = time.Second / 30
	monitorInterval = 20 * time.Millisecond
)

// Metric names registered by every studio.
const (
	MetricRedrawRate      = "redraw_rate"
	MetricFrameDelay      = "frame_delay_ms"
	MetricExtractTime     = "extract_ms"
	MetricPolylines       = "polylines_peak"
	MetricExtractFailures = "extract_failures"
)

var ErrNoClip = errors.New("studio: no clip loaded")

type Studio struct {
	cfg    config.Config
	logger *slog.Logger

	extractor *extract.Extractor
	cache     *extract.Cache
	renderer  *render.Renderer
	engine    *capture.Engine
	router    *audio.Router
	meter     *audio.Meter
	registry  *metrics.Registry

	extractTime *metrics.Mean
	polylines   *metrics.Peak
	failures    *metrics.Counter

	mu      sync.Mutex
	player  *media.Player
	params  lineart.ExtractionParams
	lastIdx int
	pumped  int
}

type settings struct {
	logger   *slog.Logger
	backend  extract.Backend
	monitor  audio.Sink
	clock    capture.Clock
	seed     uint64
	hasSeed  bool
	hostRate float64
}

type Option func(*settings)

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithBackend overrides the backend named in the config.
func WithBackend(b extract.Backend) Option {
	return func(s *settings) { s.backend = b }
}

// WithMonitor sets the live audio output. The default discards audio.
func WithMonitor(m audio.Sink) Option {
	return func(s *settings) { s.monitor = m }
}

func WithClock(c capture.Clock) Option {
	return func(s *settings) { s.clock = c }
}

func WithSeed(seed uint64) Option {
	return func(s *settings) { s.seed, s.hasSeed = seed, true }
}

func WithHostRate(hz float64) Option {
	return func(s *settings) { s.hostRate = hz }
}

// New validates cfg and starts extractor initialisation in the background.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Studio, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set := settings{logger: slog.Default(), monitor: audio.Discard}
	for _, opt := range opts {
		opt(&set)
	}
	if set.backend == nil {
		b, err := extract.Lookup(cfg.Backend)
		if err != nil {
			return nil, fmt.Errorf("studio: %w", err)
		}
		set.backend = b
	}

	s := &Studio{
		cfg:         *cfg,
		logger:      set.logger,
		params:      cfg.Extraction,
		lastIdx:     -1,
		meter:       audio.NewMeter(),
		extractTime: metrics.NewMean(MetricExtractTime),
		polylines:   metrics.NewPeak(MetricPolylines),
		failures:    metrics.NewCounter(MetricExtractFailures),
	}
	redrawRate := metrics.NewRate(MetricRedrawRate)
	frameDelay := metrics.NewMean(MetricFrameDelay)
	s.registry = metrics.NewRegistry(redrawRate, frameDelay, s.extractTime, s.polylines, s.failures)

	s.extractor = extract.Open(ctx, set.backend, extract.WithLogger(s.logger))
	cache, err := extract.NewCache(s.extractor, max(cfg.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("studio: %w", err)
	}
	s.cache = cache

	ropts := []render.Option{render.WithLogger(s.logger), render.WithMetric(redrawRate)}
	if set.hasSeed {
		ropts = append(ropts, render.WithSeed(set.seed))
	}
	if set.hostRate > 0 {
		ropts = append(ropts, render.WithHostRate(set.hostRate))
	}
	s.renderer, err = render.New(1, 1, cfg.Render, ropts...)
	if err != nil {
		return nil, err
	}

	eopts := []capture.Option{capture.WithLogger(s.logger), capture.WithDelayMetric(frameDelay)}
	if set.clock != nil {
		eopts = append(eopts, capture.WithClock(set.clock))
	}
	s.engine = capture.NewEngine(s.renderer, eopts...)

	mode := audio.Bypass
	if cfg.Audio.Effect {
		mode = audio.Effected
	}
	s.router = audio.NewRouter(audio.Tee(set.monitor, s.meter), audio.WithLogger(s.logger), audio.WithMode(mode))
	return s, nil
}

// Load makes clip the current source, resizing the surface to match.
// Any previous set and cached result is cleared.
func (s *Studio) Load(clip *media.Clip) error {
	w, h := clip.Size()
	if w <= 0 || h <= 0 {
		return lineart.Wrap("studio load", lineart.ErrExtraction, fmt.Errorf("clip %dx%d", w, h))
	}
	if err := s.renderer.Resize(w, h); err != nil {
		return err
	}
	s.renderer.SetPolylines(nil)
	s.cache.Purge()

	p := media.NewPlayer(clip)
	s.mu.Lock()
	s.player = p
	s.lastIdx = -1
	s.pumped = 0
	s.mu.Unlock()

	s.router.Detach()
	if src := p.AudioSource(); src != nil {
		if err := s.router.Attach(src); err != nil {
			return err
		}
	}
	s.logger.Info("clip loaded", "source", clip.Source, "size", fmt.Sprintf("%dx%d", w, h),
		"frames", len(clip.Frames), "duration", clip.Duration(), "audio", len(clip.Audio) > 0)
	return nil
}

func (s *Studio) Player() *media.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

// WaitReady blocks until the extractor backend is initialised.
func (s *Studio) WaitReady(ctx context.Context) error { return s.extractor.WaitReady(ctx) }

func (s *Studio) Ready() bool { return s.extractor.Ready() }

func (s *Studio) Backend() string { return s.extractor.Backend() }

// ProcessStill extracts the clip's current frame once and publishes the
// result. Unlike the video loop, failures are returned to the caller.
func (s *Studio) ProcessStill(ctx context.Context) error {
	if err := s.extractor.WaitReady(ctx); err != nil {
		return err
	}
	_, err := s.process(ctx, true)
	return err
}

// process extracts the current frame when it differs from the last one
// extracted, or always when force is set. It reports whether a new set was
// published.
func (s *Studio) process(ctx context.Context, force bool) (bool, error) {
	s.mu.Lock()
	p, params, last := s.player, s.params, s.lastIdx
	s.mu.Unlock()
	if p == nil {
		return false, ErrNoClip
	}

	frame, idx := p.Frame()
	if !force && idx == last {
		return false, nil
	}

	start := time.Now()
	set, err := s.cache.Extract(ctx, s.cacheKey(p.Clip(), idx), frame, params)
	if err != nil {
		return false, err
	}
	s.extractTime.Observe(float64(time.Since(start))/float64(time.Millisecond), start)
	s.polylines.Observe(float64(len(set)), start)

	s.mu.Lock()
	stale := s.player != p || s.params != params
	if !stale {
		s.lastIdx = idx
	}
	s.mu.Unlock()
	if stale {
		return false, nil
	}
	s.renderer.SetPolylines(set)
	return true, nil
}

func (s *Studio) cacheKey(clip *media.Clip, idx int) string {
	if s.cfg.CacheSize == 0 {
		return ""
	}
	return clip.Key(idx)
}

// step runs one pass of the video loop. Failures keep the last good set.
func (s *Studio) step(ctx context.Context) {
	if !s.extractor.Ready() {
		return
	}
	if _, err := s.process(ctx, false); err != nil {
		if errors.Is(err, ErrNoClip) || ctx.Err() != nil {
			return
		}
		s.failures.Observe(1, time.Now())
		s.logger.Warn("frame extraction failed, keeping last set", "err", err)
	}
}

// Run drives the renderer, the frame extraction loop and the audio monitor
// until ctx is cancelled.
func (s *Studio) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.renderer.Run(gctx) })

	g.Go(func() error {
		ticker := time.NewTicker(ExtractInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				s.step(gctx)
			}
		}
	})

	if s.cfg.Audio.Monitor {
		g.Go(func() error {
			ticker := time.NewTicker(monitorInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
					s.monitor()
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// monitor routes the soundtrack up to the playback position while no
// recording owns the router.
func (s *Studio) monitor() {
	if a := s.engine.Active(); a != nil && a.Kind == capture.KindRecording && !a.Finished() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil || !s.player.Playing() || !s.router.Attached() {
		return
	}
	due := int(math.Round(s.player.Position().Seconds()*audio.SampleRate)) * audio.Channels
	if due < s.pumped {
		s.pumped = 0
		if pcm, ok := s.player.AudioSource().(*audio.PCM); ok {
			pcm.Seek(0)
		}
	}
	if n := due - s.pumped; n > 0 {
		read, err := s.router.Pump(n)
		s.pumped += read
		if err != nil && !errors.Is(err, io.EOF) {
			s.logger.Warn("monitor pump failed", "err", err)
		}
	}
}

// Still captures the current rendered frame as a PNG.
func (s *Studio) Still() (*capture.Artifact, error) {
	return s.engine.Still()
}

// Animate starts an animated capture of the default length for the loaded
// clip, starting playback for moving sources.
func (s *Studio) Animate(ctx context.Context) (*capture.Session, error) {
	p := s.Player()
	if p == nil {
		return nil, ErrNoClip
	}
	d := s.cfg.Capture.StillDuration
	if !p.Clip().Still() {
		d = s.cfg.Capture.VideoDuration
		if !p.Playing() {
			p.Play()
		}
	}
	s.mu.Lock()
	opts := s.cfg.AnimationOptions(d)
	s.mu.Unlock()
	return s.engine.BeginAnimation(ctx, opts)
}

// Record streams the surface and soundtrack into enc for the clip's
// duration, or the fallback duration for stills.
func (s *Studio) Record(ctx context.Context, enc capture.StreamEncoder, onProgress func(float64)) (*capture.Session, error) {
	p := s.Player()
	if p == nil {
		return nil, ErrNoClip
	}
	s.mu.Lock()
	opts := capture.RecordOptions{
		Encoder:          enc,
		Playback:         p,
		Router:           s.router,
		Effect:           s.router.Mode() == audio.Effected,
		FPS:              s.cfg.Capture.StreamFPS,
		FallbackDuration: s.cfg.Capture.FallbackDuration,
		ProgressInterval: s.cfg.Capture.ProgressInterval,
		OnProgress:       onProgress,
	}
	s.pumped = 0
	s.mu.Unlock()
	return s.engine.BeginRecording(ctx, opts)
}

// SetExtraction replaces the extraction parameters. Stills are re-extracted
// immediately; moving clips pick the change up on the next loop pass.
func (s *Studio) SetExtraction(ctx context.Context, p lineart.ExtractionParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.params = p
	s.cfg.Extraction = p
	s.lastIdx = -1
	player := s.player
	s.mu.Unlock()

	if player != nil && player.Clip().Still() && s.extractor.Ready() {
		return s.ProcessStill(ctx)
	}
	return nil
}

func (s *Studio) Extraction() lineart.ExtractionParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Studio) SetRender(p lineart.RenderParams) error {
	if err := s.renderer.SetParams(p); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Render = p
	s.mu.Unlock()
	return nil
}

// SetEffect toggles the audio effect chain. It fails with ErrRouting when
// the loaded clip has no soundtrack.
func (s *Studio) SetEffect(on bool) error {
	return s.router.SetEffect(on)
}

func (s *Studio) Renderer() *render.Renderer { return s.renderer }

func (s *Studio) Engine() *capture.Engine { return s.engine }

func (s *Studio) Levels() audio.Levels { return s.meter.Levels() }

func (s *Studio) Metrics() *metrics.Registry { return s.registry }
