// Package tracker turns detector landmarks into per-frame body signals.
package tracker

import (
	"fmt"

	"github.com/ayusman/handtower/internal/body"
	"github.com/ayusman/handtower/internal/capture"
	"github.com/ayusman/handtower/internal/detector"
	"gocv.io/x/gocv"
)

// Tracker produces one body state per camera frame.
type Tracker interface {
	// Track returns the body signals for frame, or nil when no body is visible.
	Track(frame *gocv.Mat) (body.State, error)

	// Close releases any resources held by the tracker.
	Close() error
}

// Config holds the landmark-to-signal conversion constants.
type Config struct {
	// GripClosedRatio is the hand spread at or below which grip is 0.
	GripClosedRatio float64
	// GripOpenRatio is the hand spread at or above which grip is 1.
	GripOpenRatio float64
	// MinVisibility is the pose landmark visibility required to use it.
	MinVisibility float64
	// MotionThreshold enables the motion gate when > 0 (percent of changed pixels).
	MotionThreshold float64
}

// DefaultConfig returns the standard conversion constants with the motion gate off.
func DefaultConfig() Config {
	return Config{
		GripClosedRatio: 1.2,
		GripOpenRatio:   2.8,
		MinVisibility:   0.5,
	}
}

// LandmarkTracker derives body signals from a landmark detector.
type LandmarkTracker struct {
	detector detector.Detector
	motion   *capture.MotionDetector
	config   Config
	last     body.State
	haveLast bool
}

// NewLandmarkTracker creates a tracker over d. The tracker owns d and closes it.
func NewLandmarkTracker(d detector.Detector, config Config) *LandmarkTracker {
	t := &LandmarkTracker{
		detector: d,
		config:   config,
	}
	if config.MotionThreshold > 0 {
		t.motion = capture.NewMotionDetector(config.MotionThreshold)
	}
	return t
}

// Track runs detection on frame. With the motion gate enabled, a frame
// without motion repeats the previous result instead of calling the detector.
func (t *LandmarkTracker) Track(frame *gocv.Mat) (body.State, error) {
	if t.motion != nil {
		moved, _ := t.motion.Detect(frame)
		if !moved && t.haveLast {
			return t.last.Clone(), nil
		}
	}

	det, err := t.detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect landmarks: %w", err)
	}

	st := FromDetection(det, t.config)
	t.last = st
	t.haveLast = true
	return st.Clone(), nil
}

// Close releases the motion gate and the detector.
func (t *LandmarkTracker) Close() error {
	if t.motion != nil {
		t.motion.Close()
	}
	return t.detector.Close()
}

type handSide struct {
	label    string
	poseIdx  int
	height   body.Signal
	position body.Signal
	grip     body.Signal
}

var sides = []handSide{
	{detector.HandRight, detector.PoseRightWrist, body.RightHandY, body.RightHandX, body.RightGrip},
	{detector.HandLeft, detector.PoseLeftWrist, body.LeftHandY, body.LeftHandX, body.LeftGrip},
}

// FromDetection converts one detection into body signals. Hand heights are
// flipped so that a raised hand reads higher. It returns nil when nothing
// usable was detected.
func FromDetection(det *detector.Detection, config Config) body.State {
	if det.Empty() {
		return nil
	}

	st := body.State{}
	var xs []float64

	for _, side := range sides {
		if h := det.Hand(side.label); h != nil {
			wrist := h.Points[detector.Wrist]
			st.Set(side.height, clamp01(1-wrist.Y))
			st.Set(side.position, clamp01(wrist.X))
			st.Set(side.grip, GripOpenness(h, config))
			xs = append(xs, wrist.X)
			continue
		}
		if pt, ok := det.Pose.Visible(side.poseIdx, config.MinVisibility); ok {
			st.Set(side.height, clamp01(1-pt.Y))
			st.Set(side.position, clamp01(pt.X))
		}
	}

	if nose, ok := det.Pose.Visible(detector.PoseNose, config.MinVisibility); ok {
		st.Set(body.XCenter, clamp01(nose.X))
	} else if len(xs) > 0 {
		var sum float64
		for _, x := range xs {
			sum += x
		}
		st.Set(body.XCenter, clamp01(sum/float64(len(xs))))
	}

	if st.Empty() {
		return nil
	}
	return st
}

// GripOpenness maps the hand's fingertip spread onto 0 (fist) .. 1 (open palm).
func GripOpenness(h *detector.HandLandmarks, config Config) float64 {
	span := config.GripOpenRatio - config.GripClosedRatio
	if h == nil || span <= 0 {
		return 1.0
	}
	return clamp01((h.Spread() - config.GripClosedRatio) / span)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
