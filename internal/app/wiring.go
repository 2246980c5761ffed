package app

import (
	"fmt"

	"github.com/ayusman/handtower/internal/capture"
	"github.com/ayusman/handtower/internal/config"
	"github.com/ayusman/handtower/internal/detector"
	"github.com/ayusman/handtower/internal/log"
	"github.com/ayusman/handtower/internal/tracker"
)

// NewCamera returns the camera for cfg. The simulated backend does not need
// a webcam and draws on blank frames.
func NewCamera(cfg config.Config) capture.Camera {
	if cfg.Detector == config.DetectorSimulated {
		return capture.NewBlankCamera(cfg.CameraWidth, cfg.CameraHeight)
	}
	return capture.NewCamera(capture.Config{
		DeviceID: cfg.CameraID,
		Width:    cfg.CameraWidth,
		Height:   cfg.CameraHeight,
		FPS:      capture.DefaultFPS,
		Mirror:   cfg.Mirror,
	})
}

// NewTracker returns the tracker for cfg. A missing MediaPipe service is
// reported as ErrDetectorUnavailable.
func NewTracker(cfg config.Config, seed uint64) (tracker.Tracker, error) {
	switch cfg.Detector {
	case config.DetectorSimulated:
		log.Info("using simulated tracker")
		return tracker.NewSimulator(seed), nil
	case config.DetectorMediaPipe:
		dcfg := detector.DefaultConfig()
		dcfg.ScriptPath = cfg.ScriptPath
		d, err := detector.NewMediaPipeDetector(dcfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDetectorUnavailable, err)
		}
		tcfg := tracker.DefaultConfig()
		tcfg.MotionThreshold = cfg.MotionThreshold
		log.Info("using MediaPipe tracker", "motion_threshold", cfg.MotionThreshold)
		return tracker.NewLandmarkTracker(d, tcfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown detector %q", ErrDetectorUnavailable, cfg.Detector)
	}
}
