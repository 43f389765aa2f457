package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ribbon/internal/capture"
	"github.com/san-kum/ribbon/internal/ffmpeg"
	"github.com/san-kum/ribbon/internal/lineart"
)

const (
	DefaultStillDuration = 2 * time.Second
	DefaultVideoDuration = 5 * time.Second
	DefaultCacheSize     = 64
	DefaultBackend       = "auto"
	DefaultLogLevel      = "info"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Extraction lineart.ExtractionParams `yaml:"extraction"`
	Render     lineart.RenderParams     `yaml:"render"`
	Capture    CaptureConfig            `yaml:"capture"`
	Audio      AudioConfig              `yaml:"audio"`
	Backend    string                   `yaml:"backend"`
	FFmpeg     ffmpeg.Options           `yaml:"ffmpeg"`
	CacheSize  int                      `yaml:"cache_size"`
	LogLevel   string                   `yaml:"log_level"`
}

type CaptureConfig struct {
	StillDuration time.Duration `yaml:"still_duration"`
	VideoDuration time.Duration `yaml:"video_duration"`
	// Interval between animation samples; zero follows the jitter speed.
	Interval         time.Duration `yaml:"interval"`
	ClosingDelay     time.Duration `yaml:"closing_delay"`
	StreamFPS        float64       `yaml:"stream_fps"`
	FallbackDuration time.Duration `yaml:"fallback_duration"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

type AudioConfig struct {
	Effect  bool `yaml:"effect"`
	Monitor bool `yaml:"monitor"`
}

func DefaultConfig() *Config {
	return &Config{
		Extraction: lineart.DefaultExtractionParams(),
		Render:     lineart.DefaultRenderParams(),
		Capture: CaptureConfig{
			StillDuration:    DefaultStillDuration,
			VideoDuration:    DefaultVideoDuration,
			ClosingDelay:     capture.DefaultClosingDelay,
			StreamFPS:        capture.DefaultStreamFPS,
			FallbackDuration: capture.DefaultFallbackDuration,
			ProgressInterval: capture.DefaultProgressInterval,
		},
		Backend:   DefaultBackend,
		FFmpeg:    ffmpeg.DefaultOptions(),
		CacheSize: DefaultCacheSize,
		LogLevel:  DefaultLogLevel,
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver overlays the file at path onto base, so keys absent from the
// file keep base's values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects out-of-range pipeline parameters and non-positive timings.
func (c *Config) Validate() error {
	if err := c.Extraction.Validate(); err != nil {
		return err
	}
	if err := c.Render.Validate(); err != nil {
		return err
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"capture.still_duration", c.Capture.StillDuration},
		{"capture.video_duration", c.Capture.VideoDuration},
		{"capture.fallback_duration", c.Capture.FallbackDuration},
		{"capture.progress_interval", c.Capture.ProgressInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, d.name, d.d)
		}
	}
	if c.Capture.Interval < 0 {
		return fmt.Errorf("%w: capture.interval must not be negative", ErrInvalidConfig)
	}
	if c.Capture.ClosingDelay < capture.MinDelay {
		return fmt.Errorf("%w: capture.closing_delay %s below %s", ErrInvalidConfig, c.Capture.ClosingDelay, capture.MinDelay)
	}
	if c.Capture.StreamFPS <= 0 || c.Capture.StreamFPS > 120 {
		return fmt.Errorf("%w: capture.stream_fps=%g not in (0, 120]", ErrInvalidConfig, c.Capture.StreamFPS)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache_size must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
}

// AnimationOptions resolves the sampling interval against the current
// jitter speed.
func (c *Config) AnimationOptions(d time.Duration) capture.AnimationOptions {
	interval := c.Capture.Interval
	if interval == 0 {
		interval = time.Duration(float64(time.Second) / c.Render.JitterSpeed)
	}
	return capture.AnimationOptions{
		Duration:     d,
		Interval:     interval,
		ClosingDelay: c.Capture.ClosingDelay,
	}
}
