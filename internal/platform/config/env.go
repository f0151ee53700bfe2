package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/codec"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Config is the configuration of the scanbridge executable.
type Config struct {
	CallbackTimeout time.Duration `env:"SCANBRIDGE_CALLBACK_TIMEOUT" envDefault:"10s"`

	HTTPEnabled bool   `env:"SCANBRIDGE_HTTP_ENABLED" envDefault:"true"`
	HTTPAddr    string `env:"SCANBRIDGE_HTTP_ADDR" envDefault:"127.0.0.1:8086"`

	// Empty disables the Lua host
	LuaScript string `env:"SCANBRIDGE_LUA_SCRIPT"`
	// Empty reads frames from stdin
	FramesPath string `env:"SCANBRIDGE_FRAMES_PATH"`

	Tracker             string  `env:"SCANBRIDGE_TRACKER" envDefault:"iou"`
	TrackerMaxNoMatch   int     `env:"SCANBRIDGE_TRACKER_MAX_NO_MATCH" envDefault:"5"`
	TrackerIoUThreshold float64 `env:"SCANBRIDGE_TRACKER_IOU_THRESHOLD" envDefault:"0.1"`
	// Pixels, centroid tracker only
	TrackerMinDistance float64 `env:"SCANBRIDGE_TRACKER_MIN_DISTANCE" envDefault:"30"`

	DefaultBrushFill   string  `env:"SCANBRIDGE_DEFAULT_BRUSH_FILL" envDefault:"#2EC1CE4D"`
	DefaultBrushStroke string  `env:"SCANBRIDGE_DEFAULT_BRUSH_STROKE" envDefault:"#2EC1CEFF"`
	DefaultBrushWidth  float64 `env:"SCANBRIDGE_DEFAULT_BRUSH_WIDTH" envDefault:"1"`

	// Milliseconds; negative reports a barcode once per session
	CodeDuplicateFilter int `env:"SCANBRIDGE_CODE_DUPLICATE_FILTER" envDefault:"0"`
	EventBuffer         int `env:"SCANBRIDGE_EVENT_BUFFER" envDefault:"64"`

	OTelEndpoint string `env:"SCANBRIDGE_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"SCANBRIDGE_OTEL_ENABLED" envDefault:"true"`
}

// Load parses the environment and validates the result
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.CallbackTimeout <= 0 {
		return errors.Errorf("SCANBRIDGE_CALLBACK_TIMEOUT must be positive, got %s", c.CallbackTimeout)
	}
	switch c.Tracker {
	case "iou", "bytetrack", "centroid":
	default:
		return errors.Errorf("SCANBRIDGE_TRACKER must be iou, bytetrack or centroid, got %q", c.Tracker)
	}
	if c.TrackerMaxNoMatch < 0 {
		return errors.Errorf("SCANBRIDGE_TRACKER_MAX_NO_MATCH must not be negative, got %d", c.TrackerMaxNoMatch)
	}
	if !c.Brush().Valid() {
		return errors.Errorf("invalid default brush %+v", c.Brush())
	}
	return nil
}

func (c Config) Brush() codec.Brush {
	return codec.Brush{
		FillColor:   codec.Color(c.DefaultBrushFill),
		StrokeColor: codec.Color(c.DefaultBrushStroke),
		StrokeWidth: c.DefaultBrushWidth,
	}
}

func (c Config) DuplicateFilter() time.Duration {
	return time.Duration(c.CodeDuplicateFilter) * time.Millisecond
}
