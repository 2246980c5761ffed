// Package body defines the per-frame body signals produced by the tracker.
package body

import "math"

// Signal names a scalar body measurement.
type Signal string

// Body signals. All values are normalized to 0.0-1.0.
const (
	RightHandY Signal = "right_hand_y"
	LeftHandY  Signal = "left_hand_y"
	RightHandX Signal = "right_hand_x"
	LeftHandX  Signal = "left_hand_x"
	XCenter    Signal = "x_center"
	RightGrip  Signal = "right_grip"
	LeftGrip   Signal = "left_grip"
)

// defaults holds the value reported for a signal the tracker did not provide.
var defaults = map[Signal]float64{
	RightHandY: 0.0,
	LeftHandY:  0.0,
	RightHandX: 0.5,
	LeftHandX:  0.5,
	XCenter:    0.5,
	RightGrip:  1.0,
	LeftGrip:   1.0,
}

// Signals lists every known signal in a stable order.
func Signals() []Signal {
	return []Signal{RightHandY, LeftHandY, RightHandX, LeftHandX, XCenter, RightGrip, LeftGrip}
}

// Default returns the fallback value for a signal. Unknown signals default to 0.
func Default(s Signal) float64 {
	return defaults[s]
}

// State is one frame of body signals. Any field may be absent.
// A nil or empty State means no body was detected.
type State map[Signal]float64

// Get returns the value of s, or its default when absent or not a finite number.
func (st State) Get(s Signal) float64 {
	v, ok := st[s]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return Default(s)
	}
	return v
}

// Has reports whether s was provided.
func (st State) Has(s Signal) bool {
	_, ok := st[s]
	return ok
}

// Set stores v for s.
func (st State) Set(s Signal, v float64) {
	st[s] = v
}

// Empty reports whether the state carries no signals.
func (st State) Empty() bool {
	return len(st) == 0
}

// Clone returns an independent copy.
func (st State) Clone() State {
	if st == nil {
		return nil
	}
	out := make(State, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}
