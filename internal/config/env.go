// Package config loads handtower settings from the environment and an
// optional YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Detector backends.
const (
	DetectorMediaPipe = "mediapipe"
	DetectorSimulated = "simulated"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds process settings. Every field comes from a TOWER_ variable.
type Config struct {
	CameraID     int  `env:"TOWER_CAMERA_ID"     envDefault:"0"`
	CameraWidth  int  `env:"TOWER_CAMERA_WIDTH"  envDefault:"640"`
	CameraHeight int  `env:"TOWER_CAMERA_HEIGHT" envDefault:"480"`
	Mirror       bool `env:"TOWER_MIRROR"        envDefault:"true"`

	Detector        string        `env:"TOWER_DETECTOR"         envDefault:"mediapipe"`
	ScriptPath      string        `env:"TOWER_SCRIPT"`
	FrameDelay      time.Duration `env:"TOWER_FRAME_DELAY"      envDefault:"20ms"`
	MotionThreshold float64       `env:"TOWER_MOTION_THRESHOLD" envDefault:"0"`

	Display bool `env:"TOWER_DISPLAY" envDefault:"true"`
	Tray    bool `env:"TOWER_TRAY"    envDefault:"false"`

	HTTPAddr    string        `env:"TOWER_HTTP_ADDR"`
	DBPath      string        `env:"TOWER_DB_PATH"`
	HookDir     string        `env:"TOWER_HOOK_DIR"`
	HookTimeout time.Duration `env:"TOWER_HOOK_TIMEOUT" envDefault:"5s"`

	SpritePath string `env:"TOWER_SPRITE" envDefault:"assets/godzilla.png"`
	TuningPath string `env:"TOWER_TUNING"`
	LogLevel   string `env:"TOWER_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and validates the result.
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

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values that the environment parser cannot.
func (c Config) Validate() error {
	switch c.Detector {
	case DetectorMediaPipe, DetectorSimulated:
	default:
		return fmt.Errorf("%w: unknown detector %q", ErrInvalidConfig, c.Detector)
	}
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		return fmt.Errorf("%w: camera size %dx%d", ErrInvalidConfig, c.CameraWidth, c.CameraHeight)
	}
	if c.FrameDelay < 0 {
		return fmt.Errorf("%w: negative frame delay", ErrInvalidConfig)
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("%w: negative motion threshold", ErrInvalidConfig)
	}
	if c.Tray && c.Display {
		return fmt.Errorf("%w: the tray is only available with TOWER_DISPLAY=false", ErrInvalidConfig)
	}
	if c.HookDir != "" && c.HookTimeout <= 0 {
		return fmt.Errorf("%w: hook timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
