// Package scene holds the renderer-side state of the tower overlay: smoothed
// tower geometry, the trail, the break animation and the creature fade.
//
// The scene works in normalized frame coordinates (0..1 on both axes, y
// growing downward). Conversion to pixels happens only when drawing.
package scene

import (
	"math/rand/v2"
	"time"

	"github.com/ayusman/handtower/internal/mapper"
)

// EventKind names a scene transition.
type EventKind string

const (
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
	EventBreak       EventKind = "break"
	EventCreatureOn  EventKind = "creature_on"
	EventCreatureOff EventKind = "creature_off"
)

// Event is a transition reported by Apply.
type Event struct {
	Kind   EventKind `json:"kind"`
	At     time.Time `json:"at"`
	Height float64   `json:"tower_height"`
	Width  float64   `json:"tower_width"`
	Offset float64   `json:"side_offset"`
}

// Config holds the animation constants.
type Config struct {
	// Smoothing is the per-frame weight given to the new target (0-1).
	Smoothing float64 `yaml:"smoothing"`
	// TrailLength is the maximum number of tower-top points kept.
	TrailLength int `yaml:"trail_length"`
	// BreakDuration is how long the tower stays shattered.
	BreakDuration time.Duration `yaml:"break_duration"`
	// ParticleCount is the number of fragments spawned per break.
	ParticleCount int `yaml:"particle_count"`
	// CreatureFade is the per-frame change of the creature alpha.
	CreatureFade float64 `yaml:"creature_fade"`
	// Gravity pulls particles down, in frame heights per second squared.
	Gravity float64 `yaml:"gravity"`
}

// DefaultConfig returns the standard animation constants.
func DefaultConfig() Config {
	return Config{
		Smoothing:     0.25,
		TrailLength:   24,
		BreakDuration: 1500 * time.Millisecond,
		ParticleCount: 120,
		CreatureFade:  0.15,
		Gravity:       1.6,
	}
}

// Point is a position in normalized frame coordinates.
type Point struct {
	X, Y float64
}

// Particle is one fragment of a broken tower.
type Particle struct {
	X, Y   float64
	VX, VY float64
	// Life runs from 1 at spawn down to 0.
	Life float64
}

// maxStep caps the integration step so a stalled loop does not fling particles.
const maxStep = 100 * time.Millisecond

// Scene is the persistent overlay state. It is not safe for concurrent use;
// the render loop owns it.
type Scene struct {
	config Config
	rng    *rand.Rand

	active bool
	mode   mapper.Mode
	grips  map[string]float64

	height, width, offset       float64
	targetH, targetW, targetOff float64

	trail     []Point
	particles []Particle

	breaking   bool
	breakStart time.Time
	// breakArmed is cleared by a break and set again by a state without
	// the trigger, so a held clench breaks the tower once.
	breakArmed bool

	creatureOn    bool
	creatureAlpha float64

	lastAdvance time.Time
}

// New creates an empty, inactive scene. seed drives particle scatter.
func New(config Config, seed uint64) *Scene {
	return &Scene{
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		grips:  map[string]float64{},

		breakArmed: true,
	}
}

// Config returns the current animation constants.
func (s *Scene) Config() Config {
	return s.config
}

// SetConfig replaces the animation constants. A running animation continues.
func (s *Scene) SetConfig(config Config) {
	s.config = config
	s.trimTrail()
}

// Apply records a new visual state and returns the transitions it caused.
// A nil state is ignored.
func (s *Scene) Apply(v *mapper.VisualState, now time.Time) []Event {
	if v == nil {
		return nil
	}

	var events []Event

	if v.Active && v.Tower != nil {
		s.mode = v.Mode
		s.targetH = v.TowerHeight
		s.targetW = v.TowerWidth
		s.targetOff = v.SideOffset
		if !s.active {
			s.active = true
			events = append(events, s.event(EventActivated, now))
		}
	} else if s.active {
		s.active = false
		s.targetH = 0
		events = append(events, s.event(EventDeactivated, now))
	}

	if v.GodzillaActive != s.creatureOn {
		s.creatureOn = v.GodzillaActive
		kind := EventCreatureOff
		if s.creatureOn {
			kind = EventCreatureOn
		}
		events = append(events, s.event(kind, now))
	}

	switch {
	case !v.BreakTrigger:
		s.breakArmed = true
	case s.active && s.breakArmed && !s.breaking:
		s.startBreak(now)
		events = append(events, s.event(EventBreak, now))
	}

	for side, g := range v.GripDebug {
		s.grips[side] = g
	}

	return events
}

func (s *Scene) event(kind EventKind, now time.Time) Event {
	return Event{
		Kind:   kind,
		At:     now,
		Height: s.targetH,
		Width:  s.targetW,
		Offset: s.targetOff,
	}
}

func (s *Scene) startBreak(now time.Time) {
	s.breaking = true
	s.breakArmed = false
	s.breakStart = now

	r := s.TowerRect()
	s.particles = s.particles[:0]
	for range s.config.ParticleCount {
		s.particles = append(s.particles, Particle{
			X:    r.Min.X + s.rng.Float64()*r.Dx(),
			Y:    r.Min.Y + s.rng.Float64()*r.Dy(),
			VX:   (s.rng.Float64()*2 - 1) * 0.6,
			VY:   -0.2 - s.rng.Float64()*1.0,
			Life: 1,
		})
	}
	s.trail = s.trail[:0]
}

// Advance moves the animation forward to now.
func (s *Scene) Advance(now time.Time) {
	var dt time.Duration
	if !s.lastAdvance.IsZero() {
		dt = min(max(now.Sub(s.lastAdvance), 0), maxStep)
	}
	s.lastAdvance = now

	if s.breaking && now.Sub(s.breakStart) >= s.config.BreakDuration {
		s.breaking = false
		s.height = 0
	}

	if !s.breaking {
		k := s.config.Smoothing
		s.height += (s.targetH - s.height) * k
		s.width += (s.targetW - s.width) * k
		s.offset += (s.targetOff - s.offset) * k
	}

	if s.TowerVisible() {
		r := s.TowerRect()
		s.trail = append(s.trail, Point{X: (r.Min.X + r.Max.X) / 2, Y: r.Min.Y})
		s.trimTrail()
	} else if len(s.trail) > 0 {
		s.trail = s.trail[1:]
	}

	s.advanceParticles(dt.Seconds())

	target := 0.0
	if s.creatureOn {
		target = 1.0
	}
	switch {
	case s.creatureAlpha < target:
		s.creatureAlpha = min(target, s.creatureAlpha+s.config.CreatureFade)
	case s.creatureAlpha > target:
		s.creatureAlpha = max(target, s.creatureAlpha-s.config.CreatureFade)
	}
}

func (s *Scene) advanceParticles(sec float64) {
	if len(s.particles) == 0 {
		return
	}
	decay := 1.0
	if d := s.config.BreakDuration.Seconds(); d > 0 {
		decay = sec / d
	}

	alive := s.particles[:0]
	for _, p := range s.particles {
		p.VY += s.config.Gravity * sec
		p.X += p.VX * sec
		p.Y += p.VY * sec
		p.Life -= decay
		if p.Life <= 0 || p.Y > 1.2 || p.X < -0.2 || p.X > 1.2 {
			continue
		}
		alive = append(alive, p)
	}
	s.particles = alive
}

func (s *Scene) trimTrail() {
	if n := s.config.TrailLength; n >= 0 && len(s.trail) > n {
		s.trail = s.trail[len(s.trail)-n:]
	}
}

// Active reports whether the last applied state had a tower.
func (s *Scene) Active() bool {
	return s.active
}

// Breaking reports whether the break animation is running.
func (s *Scene) Breaking() bool {
	return s.breaking
}

// TowerVisible reports whether the tower should be drawn.
func (s *Scene) TowerVisible() bool {
	return s.active && !s.breaking
}

// Mode returns the hand arrangement of the last active state.
func (s *Scene) Mode() mapper.Mode {
	return s.mode
}

// Geometry returns the smoothed tower height, width and offset.
func (s *Scene) Geometry() (height, width, offset float64) {
	return s.height, s.width, s.offset
}

// TowerRect returns the smoothed tower bounds.
func (s *Scene) TowerRect() Rect {
	return TowerRect(s.height, s.width, s.offset)
}

// Trail returns the tower-top points, oldest first.
func (s *Scene) Trail() []Point {
	return s.trail
}

// Particles returns the live break fragments.
func (s *Scene) Particles() []Particle {
	return s.particles
}

// CreatureAlpha returns the creature opacity in 0..1.
func (s *Scene) CreatureAlpha() float64 {
	return s.creatureAlpha
}

// Grip returns the last reported smoothed grip for side.
func (s *Scene) Grip(side string) (float64, bool) {
	g, ok := s.grips[side]
	return g, ok
}
