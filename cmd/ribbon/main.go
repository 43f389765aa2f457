package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/gogpu/gg"
	"github.com/spf13/cobra"

	"github.com/san-kum/ribbon/internal/audio"
	"github.com/san-kum/ribbon/internal/capture"
	"github.com/san-kum/ribbon/internal/config"
	"github.com/san-kum/ribbon/internal/export"
	"github.com/san-kum/ribbon/internal/extract"
	"github.com/san-kum/ribbon/internal/ffmpeg"
	"github.com/san-kum/ribbon/internal/media"
	"github.com/san-kum/ribbon/internal/storage"
	"github.com/san-kum/ribbon/internal/studio"
	"github.com/san-kum/ribbon/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	backend    string

	threshold1 float64
	threshold2 float64
	epsilon    float64
	jitter     float64
	speed      float64

	duration   time.Duration
	fps        float64
	effect     bool
	monitor    bool
	soundtrack string
	loop       bool
	maxFrames  int
	outPath    string
	svgPath    string
	plain      bool
	seed       uint64

	logger *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "ribbon",
		Short:        "jittered line-art from images and video",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ribbon", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "preset as group/name (see presets)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", config.DefaultBackend, "extraction backend: native, gocv or auto")

	stillCmd := &cobra.Command{
		Use:   "still [input]",
		Short: "render one jittered frame as a PNG",
		Args:  cobra.ExactArgs(1),
		RunE:  runStill,
	}
	stillCmd.Flags().StringVar(&svgPath, "svg", "", "also write the jittered outlines as SVG")

	gifCmd := &cobra.Command{
		Use:   "gif [input]",
		Short: "capture an animated GIF of the jittering outlines",
		Args:  cobra.ExactArgs(1),
		RunE:  runGIF,
	}
	gifCmd.Flags().DurationVar(&duration, "duration", 0, "capture length (default from config by source kind)")

	recordCmd := &cobra.Command{
		Use:   "record [input]",
		Short: "record the outlines and soundtrack into a WebM",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecord,
	}
	recordCmd.Flags().Float64Var(&fps, "fps", 0, "recording frame rate (default from config)")
	recordCmd.Flags().BoolVar(&effect, "effect", false, "apply the high-pitch audio effect")
	recordCmd.Flags().BoolVar(&monitor, "monitor", false, "play audio through the speakers")

	for _, c := range []*cobra.Command{stillCmd, gifCmd, recordCmd} {
		addPipelineFlags(c)
		c.Flags().StringVarP(&outPath, "out", "o", "", "also copy the artifact to this path")
	}
	gifCmd.Flags().BoolVar(&plain, "plain", false, "log progress instead of the interactive view")
	recordCmd.Flags().BoolVar(&plain, "plain", false, "log progress instead of the interactive view")

	probeCmd := &cobra.Command{
		Use:   "probe [input]",
		Short: "extract outlines frame by frame and chart their size",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}
	addPipelineFlags(probeCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list exports",
		RunE:  listExports,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [export_id]",
		Short: "plot the frame delays of an animation export",
		Args:  cobra.ExactArgs(1),
		RunE:  plotExport,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Run: func(cmd *cobra.Command, args []string) {
			listPresets()
		},
	}

	rootCmd.AddCommand(stillCmd, gifCmd, recordCmd, probeCmd, listCmd, plotCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&threshold1, "t1", 100, "lower hysteresis threshold [0, 255]")
	cmd.Flags().Float64Var(&threshold2, "t2", 200, "upper hysteresis threshold [0, 255]")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0.025, "simplification factor [0.001, 0.05]")
	cmd.Flags().Float64Var(&jitter, "jitter", 2, "jitter amount in pixels [0, 20]")
	cmd.Flags().Float64Var(&speed, "speed", 30, "redraws per second [1, 60]")
	cmd.Flags().StringVar(&soundtrack, "audio", "", "WAV soundtrack overriding the input's own")
	cmd.Flags().BoolVar(&loop, "loop", false, "loop moving sources")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "cap on decoded video frames")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "jitter seed (0 picks one)")
}

func setupLogging() error {
	level, err := config.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	gg.SetLogger(logger)
	return nil
}

// resolveConfig layers defaults, the preset, the config file and finally
// any flags set on the command line.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.LookupPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (see ribbon presets)", preset)
		}
		cfg.ApplyPreset(p)
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("t1") {
		cfg.Extraction.Threshold1 = threshold1
	}
	if flags.Changed("t2") {
		cfg.Extraction.Threshold2 = threshold2
	}
	if flags.Changed("epsilon") {
		cfg.Extraction.EpsilonFactor = epsilon
	}
	if flags.Changed("jitter") {
		cfg.Render.JitterAmount = jitter
	}
	if flags.Changed("speed") {
		cfg.Render.JitterSpeed = speed
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("fps") {
		cfg.Capture.StreamFPS = fps
	}
	if flags.Changed("duration") {
		cfg.Capture.StillDuration = duration
		cfg.Capture.VideoDuration = duration
	}
	if flags.Changed("effect") {
		cfg.Audio.Effect = effect
	}
	if flags.Changed("monitor") {
		cfg.Audio.Monitor = monitor
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session bundles what every capture command needs.
type session struct {
	cfg    *config.Config
	studio *studio.Studio
	clip   *media.Clip
	store  *storage.Store
}

func open(ctx context.Context, cfg *config.Config, input string, opts ...studio.Option) (*session, error) {
	clip, err := media.Load(ctx, input, media.LoadOptions{
		FFmpeg:    cfg.FFmpeg.Binary,
		FPS:       cfg.Capture.StreamFPS,
		MaxFrames: maxFrames,
		Audio:     soundtrack,
		Loop:      loop,
	})
	if err != nil {
		return nil, err
	}

	opts = append([]studio.Option{studio.WithLogger(logger)}, opts...)
	if seed != 0 {
		opts = append(opts, studio.WithSeed(seed))
	}
	st, err := studio.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := st.Load(clip); err != nil {
		return nil, err
	}
	if err := st.ProcessStill(ctx); err != nil {
		return nil, err
	}
	if err := st.Renderer().Redraw(); err != nil {
		return nil, err
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return nil, err
	}
	return &session{cfg: cfg, studio: st, clip: clip, store: store}, nil
}

func (s *session) save(a *capture.Artifact) error {
	id, err := s.store.Save(a, storage.Info{
		Source:     s.clip.Source,
		Backend:    s.studio.Backend(),
		Extraction: s.studio.Extraction(),
		Render:     s.studio.Renderer().Params(),
		Metrics:    s.studio.Metrics().Snapshot(),
	})
	if err != nil {
		return err
	}
	path, err := s.store.ArtifactPath(id)
	if err != nil {
		return err
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, a.Data, 0644); err != nil {
			return err
		}
		path = outPath
	}
	note := ""
	if a.Truncated {
		note = " (stopped early)"
	}
	fmt.Printf("%s: %d frame(s), %d bytes -> %s%s\n", id, a.Frames, len(a.Data), path, note)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runStill(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	s, err := open(ctx, cfg, args[0])
	if err != nil {
		return err
	}
	a, err := s.studio.Still()
	if err != nil {
		return err
	}
	if svgPath != "" {
		f, err := os.Create(svgPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.WriteSVG(f, s.studio.Renderer()); err != nil {
			return err
		}
	}
	return s.save(a)
}

// wait shows the progress view, or logs progress in plain mode, until the
// capture session finishes.
func wait(ctx context.Context, title string, sess *capture.Session, levels func() audio.Levels) (*capture.Artifact, error) {
	if !plain {
		return tui.Run(title, sess, levels)
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Done():
			return sess.Wait(context.Background())
		case <-ctx.Done():
			sess.Stop()
			return sess.Wait(context.Background())
		case <-ticker.C:
			logger.Info("capturing", "progress", fmt.Sprintf("%.0f%%", sess.Progress()*100), "frames", sess.Frames())
		}
	}
}

func runGIF(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	s, err := open(ctx, cfg, args[0])
	if err != nil {
		return err
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go s.studio.Run(runCtx)

	sess, err := s.studio.Animate(ctx)
	if err != nil {
		return err
	}
	a, err := wait(ctx, "gif "+filepath.Base(args[0]), sess, nil)
	if err != nil {
		return err
	}
	return s.save(a)
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := ffmpeg.Available(cfg.FFmpeg.Binary); err != nil {
		return fmt.Errorf("recording needs ffmpeg: %w", err)
	}

	var opts []studio.Option
	if cfg.Audio.Monitor {
		speakers, err := audio.OpenSpeakers()
		if err != nil {
			logger.Warn("speakers unavailable, monitoring disabled", "err", err)
		} else {
			defer speakers.Close()
			opts = append(opts, studio.WithMonitor(speakers))
		}
	}

	s, err := open(ctx, cfg, args[0], opts...)
	if err != nil {
		return err
	}
	if cfg.Audio.Effect && len(s.clip.Audio) == 0 {
		logger.Warn("effect requested but the input has no soundtrack")
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go s.studio.Run(runCtx)

	enc := ffmpeg.NewEncoder(cfg.FFmpeg, logger)
	sess, err := s.studio.Record(ctx, enc, nil)
	if err != nil {
		return err
	}
	a, err := wait(ctx, "record "+filepath.Base(args[0]), sess, s.studio.Levels)
	if err != nil {
		return err
	}
	return s.save(a)
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	clip, err := media.Load(ctx, args[0], media.LoadOptions{
		FFmpeg:    cfg.FFmpeg.Binary,
		FPS:       cfg.Capture.StreamFPS,
		MaxFrames: maxFrames,
	})
	if err != nil {
		return err
	}

	b, err := extract.Lookup(cfg.Backend)
	if err != nil {
		return err
	}
	ex := extract.Open(ctx, b, extract.WithLogger(logger))
	if err := ex.WaitReady(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FRAME\tDELAY\tPOLYLINES\tPOINTS\tTIME")

	points := make([]float64, 0, len(clip.Frames))
	for i, f := range clip.Frames {
		start := time.Now()
		set, err := ex.Extract(ctx, f.Image, cfg.Extraction)
		if err != nil {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t%s\n", i, f.Delay, err)
			continue
		}
		points = append(points, float64(set.PointCount()))
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", i, f.Delay, len(set), set.PointCount(), time.Since(start).Round(time.Microsecond))
	}
	w.Flush()

	width, height := clip.Size()
	fmt.Printf("\n%s (%dx%d, %d frame(s), backend %s)\n", clip.Source, width, height, len(clip.Frames), ex.Backend())
	if len(points) > 1 {
		fmt.Println(tui.SeriesChart(points, "points per frame"))
	}
	return nil
}

func listExports(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	exports, err := st.List()
	if err != nil {
		return err
	}
	if len(exports) == 0 {
		fmt.Printf("no exports found in %s\n", st.Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tSIZE\tFRAMES\tDURATION\tSOURCE")
	for _, e := range exports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d\t%.2fs\t%s\n",
			e.ID,
			e.Kind,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Width, e.Height,
			e.Frames,
			e.DurationMS/1000,
			filepath.Base(e.Source),
		)
	}
	return w.Flush()
}

func plotExport(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	delays, err := st.LoadDelays(args[0])
	if err != nil {
		return err
	}
	fmt.Println(tui.DelayChart(delays, fmt.Sprintf("%s frame delays (ms)", meta.ID)))
	if meta.Delays != nil {
		fmt.Printf("\nframes %d  total %.0fms  mean %.1fms  min %.0fms  max %.0fms  stddev %.1fms\n",
			meta.Delays.Count, meta.Delays.Total, meta.Delays.Mean, meta.Delays.Min, meta.Delays.Max, meta.Delays.StdDev)
	}
	if len(meta.Metrics) > 0 {
		names := make([]string, 0, len(meta.Metrics))
		for name := range meta.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METRIC\tVALUE")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%.3f\n", name, meta.Metrics[name])
		}
		w.Flush()
	}
	return nil
}

func listPresets() {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tT1\tT2\tEPSILON\tJITTER\tSPEED")
	for _, group := range config.ListGroups() {
		for _, name := range config.ListPresets(group) {
			p := config.GetPreset(group, name)
			fmt.Fprintf(w, "%s/%s\t%.0f\t%.0f\t%.3f\t%.1f\t%.0f\n", group, name,
				p.Extraction.Threshold1, p.Extraction.Threshold2, p.Extraction.EpsilonFactor,
				p.Render.JitterAmount, p.Render.JitterSpeed)
		}
	}
	w.Flush()
}
