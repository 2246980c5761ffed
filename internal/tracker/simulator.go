package tracker

import (
	"math/rand/v2"

	"github.com/ayusman/handtower/internal/body"
	"gocv.io/x/gocv"
)

// Simulator produces wandering body states without a camera or detector.
// Each signal follows a bounded random walk so the overlay moves smoothly.
type Simulator struct {
	rng    *rand.Rand
	step   float64
	values map[body.Signal]float64
}

// NewSimulator creates a Simulator seeded with seed.
func NewSimulator(seed uint64) *Simulator {
	s := &Simulator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		step:   0.04,
		values: make(map[body.Signal]float64),
	}
	for _, sig := range body.Signals() {
		s.values[sig] = s.rng.Float64()
	}
	return s
}

// Track ignores frame and advances the random walk by one step.
func (s *Simulator) Track(frame *gocv.Mat) (body.State, error) {
	st := make(body.State, len(s.values))
	for _, sig := range body.Signals() {
		v := s.values[sig] + (s.rng.Float64()*2-1)*s.step
		v = clamp01(v)
		s.values[sig] = v
		st[sig] = v
	}
	return st, nil
}

// Close is a no-op.
func (s *Simulator) Close() error {
	return nil
}
