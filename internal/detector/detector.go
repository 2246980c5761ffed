package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected hands and pose.
	// Returns an empty Detection if nothing is detected.
	Detect(frame *gocv.Mat) (*Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Detection is everything the detector found in one frame.
type Detection struct {
	Hands []HandLandmarks `json:"hands"`
	Pose  *PoseLandmarks  `json:"pose,omitempty"`
}

// Empty reports whether neither hands nor a pose were found.
func (d *Detection) Empty() bool {
	return d == nil || (len(d.Hands) == 0 && d.Pose == nil)
}

// Hand returns the first hand with the given handedness ("Left" or "Right").
func (d *Detection) Hand(handedness string) *HandLandmarks {
	if d == nil {
		return nil
	}
	for i := range d.Hands {
		if d.Hands[i].Handedness == handedness {
			return &d.Hands[i]
		}
	}
	return nil
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides discovery of the MediaPipe service script.
	ScriptPath string

	// IdleTimeout stops the service process after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}
