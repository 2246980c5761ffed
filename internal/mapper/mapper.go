// Package mapper converts body signals into the visual parameters of the tower overlay.
package mapper

import (
	"math"

	"github.com/ayusman/handtower/internal/body"
)

// Hand side names used in grip debug output.
const (
	SideRight = "right"
	SideLeft  = "left"
)

// Mode describes which hand arrangement drives the tower.
type Mode string

const (
	// ModeOneHand is used when exactly one hand is raised.
	ModeOneHand Mode = "one_hand"
	// ModeTwoHands is used when both hands are raised.
	ModeTwoHands Mode = "two_hands"
)

// Config holds the mapping constants.
type Config struct {
	// PresenceThreshold is the hand height above which a hand counts as raised.
	PresenceThreshold float64 `yaml:"presence_threshold"`
	// GripInertia is the weight of the previous smoothed grip (0-1).
	GripInertia float64 `yaml:"grip_inertia"`
	// ClenchThreshold is the smoothed grip below which a raised hand is clenched.
	ClenchThreshold float64 `yaml:"clench_threshold"`
	// OneHandWidth is the fixed normalized tower width in one-hand mode.
	OneHandWidth float64 `yaml:"one_hand_width"`
}

// DefaultConfig returns the standard mapping constants.
func DefaultConfig() Config {
	return Config{
		PresenceThreshold: 0.05,
		GripInertia:       0.7,
		ClenchThreshold:   0.55,
		OneHandWidth:      0.25,
	}
}

// Tower is the tower geometry, present only while the overlay is active.
// All values are normalized; conversion to pixels happens in the renderer.
type Tower struct {
	Mode        Mode    `json:"mode"`
	TowerHeight float64 `json:"tower_height"` // 0..1
	SideOffset  float64 `json:"side_offset"`  // -1..1
	TowerWidth  float64 `json:"tower_width"`  // 0..1
}

// VisualState is the result of mapping one frame of body signals.
type VisualState struct {
	Active bool `json:"active"`
	*Tower
	GodzillaActive bool               `json:"godzilla_active"`
	BreakTrigger   bool               `json:"break_trigger"`
	GripDebug      map[string]float64 `json:"grip_debug"`
}

// Mapper maps body signals to visual state. It owns the grip smoothers,
// so one Mapper must be used per input stream and from one goroutine.
type Mapper struct {
	config    Config
	rightGrip float64
	leftGrip  float64
}

// New creates a Mapper with both grips fully open.
func New(config Config) *Mapper {
	m := &Mapper{config: config}
	m.Reset()
	return m
}

// Config returns the current mapping constants.
func (m *Mapper) Config() Config {
	return m.config
}

// SetConfig replaces the mapping constants. Smoothed grips are kept.
func (m *Mapper) SetConfig(config Config) {
	m.config = config
}

// Reset returns both grip smoothers to fully open.
func (m *Mapper) Reset() {
	m.rightGrip = 1.0
	m.leftGrip = 1.0
}

// Grips returns the current smoothed right and left grip values.
func (m *Mapper) Grips() (right, left float64) {
	return m.rightGrip, m.leftGrip
}

// Map converts one frame of body signals. It returns nil for an empty state,
// which tells the caller to skip this frame. Every other call updates the
// grip smoothers.
func (m *Mapper) Map(st body.State) *VisualState {
	if st.Empty() {
		return nil
	}

	m.rightGrip = m.smooth(m.rightGrip, st.Get(body.RightGrip))
	m.leftGrip = m.smooth(m.leftGrip, st.Get(body.LeftGrip))

	hands := ClassifyHands(st, m.config.PresenceThreshold)

	v := &VisualState{
		GodzillaActive: hands.Count() >= 1,
		GripDebug: map[string]float64{
			SideRight: round2(m.rightGrip),
			SideLeft:  round2(m.leftGrip),
		},
	}

	sideOffset := clamp((st.Get(body.XCenter)-0.5)*2.0, -1, 1)

	switch h := hands.(type) {
	case NoHands:
		// tower stays hidden
	case OneHand:
		v.Active = true
		v.Tower = &Tower{
			Mode:        ModeOneHand,
			TowerHeight: clamp01(h.Y),
			SideOffset:  sideOffset,
			TowerWidth:  m.config.OneHandWidth,
		}
	case TwoHands:
		v.Active = true
		v.Tower = &Tower{
			Mode:        ModeTwoHands,
			TowerHeight: clamp01((h.RightY + h.LeftY) / 2.0),
			SideOffset:  sideOffset,
			TowerWidth:  clamp01(math.Abs(h.RightX - h.LeftX)),
		}
		v.BreakTrigger = m.rightGrip < m.config.ClenchThreshold &&
			m.leftGrip < m.config.ClenchThreshold
	}

	return v
}

func (m *Mapper) smooth(prev, raw float64) float64 {
	inertia := clamp01(m.config.GripInertia)
	return prev*inertia + clamp01(raw)*(1-inertia)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
