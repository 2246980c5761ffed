package config

import (
	"fmt"
	"os"

	"github.com/ayusman/handtower/internal/mapper"
	"github.com/ayusman/handtower/internal/scene"
	"gopkg.in/yaml.v3"
)

// Tuning holds the constants that may be changed while running.
//
//	mapper:
//	  presence_threshold: 0.05
//	  grip_inertia: 0.7
//	scene:
//	  break_duration: 1.5s
//
// Keys left out keep their defaults.
type Tuning struct {
	Mapper mapper.Config `yaml:"mapper"`
	Scene  scene.Config  `yaml:"scene"`
}

// DefaultTuning returns the built-in constants.
func DefaultTuning() Tuning {
	return Tuning{
		Mapper: mapper.DefaultConfig(),
		Scene:  scene.DefaultConfig(),
	}
}

// LoadTuning reads a tuning file. An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning: %w", err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes YAML over the defaults and validates the result.
func ParseTuning(data []byte) (Tuning, error) {
	t := DefaultTuning()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// Validate rejects constants that would break the mapping or the animation.
func (t Tuning) Validate() error {
	m, s := t.Mapper, t.Scene
	switch {
	case m.PresenceThreshold < 0 || m.PresenceThreshold >= 1:
		return fmt.Errorf("%w: presence_threshold must be in [0,1)", ErrInvalidConfig)
	case m.GripInertia < 0 || m.GripInertia > 1:
		return fmt.Errorf("%w: grip_inertia must be in [0,1]", ErrInvalidConfig)
	case m.ClenchThreshold < 0 || m.ClenchThreshold > 1:
		return fmt.Errorf("%w: clench_threshold must be in [0,1]", ErrInvalidConfig)
	case m.OneHandWidth < 0 || m.OneHandWidth > 1:
		return fmt.Errorf("%w: one_hand_width must be in [0,1]", ErrInvalidConfig)
	case s.Smoothing <= 0 || s.Smoothing > 1:
		return fmt.Errorf("%w: smoothing must be in (0,1]", ErrInvalidConfig)
	case s.TrailLength < 0 || s.ParticleCount < 0:
		return fmt.Errorf("%w: trail_length and particle_count must not be negative", ErrInvalidConfig)
	case s.BreakDuration <= 0:
		return fmt.Errorf("%w: break_duration must be positive", ErrInvalidConfig)
	case s.CreatureFade <= 0 || s.CreatureFade > 1:
		return fmt.Errorf("%w: creature_fade must be in (0,1]", ErrInvalidConfig)
	}
	return nil
}
