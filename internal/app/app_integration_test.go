package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handtower/internal/body"
	"github.com/ayusman/handtower/internal/capture"
	"github.com/ayusman/handtower/internal/config"
	"github.com/ayusman/handtower/internal/detector"
	"github.com/ayusman/handtower/internal/hook"
	"github.com/ayusman/handtower/internal/scene"
	"github.com/ayusman/handtower/internal/server"
	"github.com/ayusman/handtower/internal/store"
	"github.com/ayusman/handtower/internal/tracker"
	"gocv.io/x/gocv"
)

// clenchedHands places both hands raised and closed, which breaks the tower
// once the grip smoothers drop below the clench threshold.
func clenchedHands() *detector.Detection {
	right := detector.Translate(detector.FistLandmarks(), "Right", 0.65, 0.3)
	left := detector.Translate(detector.FistLandmarks(), "Left", 0.35, 0.3)
	return &detector.Detection{Hands: []detector.HandLandmarks{right, left}}
}

func newTestApp(t *testing.T, det *detector.MockDetector, cfg Config) *App {
	t.Helper()
	if cfg.Camera == nil {
		cfg.Camera = capture.NewBlankCamera(320, 240)
	}
	if cfg.Tracker == nil {
		cfg.Tracker = tracker.NewLandmarkTracker(det, tracker.DefaultConfig())
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RequiresCameraAndTracker(t *testing.T) {
	if _, err := New(Config{Tracker: tracker.NewSimulator(1)}); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("missing camera: got %v, want ErrCameraUnavailable", err)
	}
	if _, err := New(Config{Camera: capture.NewBlankCamera(0, 0)}); !errors.Is(err, ErrDetectorUnavailable) {
		t.Errorf("missing tracker: got %v, want ErrDetectorUnavailable", err)
	}

	bad := config.DefaultTuning()
	bad.Scene.Smoothing = 0
	_, err := New(Config{Camera: capture.NewBlankCamera(0, 0), Tracker: tracker.NewSimulator(1), Tuning: bad})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("bad tuning: got %v, want ErrInvalidConfig", err)
	}
}

func TestApp_RunStopsAfterMaxFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewBlankCamera(320, 240)
	a := newTestApp(t, nil, Config{Camera: cam, Tracker: tracker.NewSimulator(7), MaxFrames: 5})

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.Frames() != 5 {
		t.Errorf("Frames() = %d, want 5", a.Frames())
	}
	if cam.IsOpen() {
		t.Error("camera should be released after Run")
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a := newTestApp(t, nil, Config{Tracker: tracker.NewSimulator(3), FrameDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if a.Frames() == 0 {
		t.Error("expected some frames before cancel")
	}
}

func TestApp_CameraUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a := newTestApp(t, detector.NewMockDetector(), Config{Camera: failingCamera{}})

	err := a.Run(context.Background())
	if !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("Run() error = %v, want ErrCameraUnavailable", err)
	}
}

func TestApp_SkipsUnreadableFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// no frames at all: every read fails and nothing is presented
	cam := capture.NewMockCamera(nil, false)
	det := detector.NewMockDetector()
	a := newTestApp(t, det, Config{Camera: cam})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.Frames() != 0 {
		t.Errorf("Frames() = %d, want 0", a.Frames())
	}
	if cam.Reads() == 0 {
		t.Error("camera was never read")
	}
	if det.Calls() != 0 {
		t.Errorf("detector called %d times for unreadable frames", det.Calls())
	}
}

func TestApp_TrackerFailuresEndRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	det := detector.NewMockDetector()
	det.SetError(errors.New("service crashed"))
	a := newTestApp(t, det, Config{})

	err := a.Run(context.Background())
	if !errors.Is(err, ErrDetectorUnavailable) {
		t.Fatalf("Run() error = %v, want ErrDetectorUnavailable", err)
	}
	if a.Frames() != MaxTrackFailures-1 {
		t.Errorf("Frames() = %d, want %d", a.Frames(), MaxTrackFailures-1)
	}
}

func TestApp_NoBodyKeepsTowerHidden(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	det := detector.NewMockDetector()
	a := newTestApp(t, det, Config{MaxFrames: 3})

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", a.Frames())
	}
	if a.Scene().Active() {
		t.Error("scene should stay inactive without a body")
	}
}

func TestApp_BreakIsRecordedAndDispatched(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	hookDir := t.TempDir()
	writeHook(t, hookDir, "on-break", `["break"]`)
	mgr := hook.NewManager(hookDir)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	runner := &recordingRunner{}
	hooks := hook.NewDispatcher(mgr, runner, 16)
	hooks.Start(context.Background())

	det := detector.NewMockDetector()
	det.SetDetection(clenchedHands())

	a := newTestApp(t, det, Config{
		Store:        s,
		Hooks:        hooks,
		DetectorName: "mock",
		MaxFrames:    10,
	})

	var mu sync.Mutex
	var kinds []scene.EventKind
	a.OnEvent(func(ev scene.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	hooks.Close()

	mu.Lock()
	defer mu.Unlock()
	if !containsKind(kinds, scene.EventActivated) || !containsKind(kinds, scene.EventBreak) {
		t.Fatalf("events = %v, want activated and break", kinds)
	}

	sess := a.Session()
	if sess == nil {
		t.Fatal("expected a recorded session")
	}
	got, err := s.Sessions().GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Detector != "mock" || got.EndedAt == nil {
		t.Errorf("session not finished correctly: %+v", got)
	}
	if got.Frames != 10 {
		t.Errorf("session frames = %d, want 10", got.Frames)
	}
	if got.Breaks != 1 {
		t.Errorf("session breaks = %d, want 1", got.Breaks)
	}

	events, err := s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != len(kinds) {
		t.Errorf("recorded %d events, scene reported %d", len(events), len(kinds))
	}

	// only the break event has a subscriber
	if runner.count() != 1 {
		t.Errorf("runner called %d times, want 1", runner.count())
	}
	if runner.last.Event != "break" || runner.last.Session != sess.ID || runner.last.Visual == nil {
		t.Errorf("unexpected hook request %+v", runner.last)
	}
}

func TestApp_DisabledOverlaySkipsTracking(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	det := detector.NewMockDetector()
	det.SetDetection(clenchedHands())
	a := newTestApp(t, det, Config{MaxFrames: 4})
	a.SetEnabled(false)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if det.Calls() != 0 {
		t.Errorf("detector called %d times while disabled", det.Calls())
	}
	if a.Frames() != 4 {
		t.Errorf("Frames() = %d, want 4", a.Frames())
	}
}

func TestApp_AppliesTuningReload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	reloads := make(chan config.Tuning, 1)
	tuning := config.DefaultTuning()
	tuning.Mapper.OneHandWidth = 0.6
	tuning.Scene.TrailLength = 3
	reloads <- tuning

	a := newTestApp(t, nil, Config{Tracker: tracker.NewSimulator(5), Reloads: reloads, MaxFrames: 2})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := a.Mapper().Config().OneHandWidth; got != 0.6 {
		t.Errorf("OneHandWidth = %f, want 0.6", got)
	}
	if got := a.Scene().Config().TrailLength; got != 3 {
		t.Errorf("TrailLength = %d, want 3", got)
	}
}

func TestApp_PublishesFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	frames := server.NewFrameHub()
	ch, cancel := frames.Subscribe()
	defer cancel()

	a := newTestApp(t, nil, Config{Tracker: tracker.NewSimulator(9), Frames: frames, MaxFrames: 1})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	select {
	case jpeg := <-ch:
		img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
		if err != nil {
			t.Fatalf("IMDecode() error = %v", err)
		}
		defer img.Close()
		if img.Cols() != 320 || img.Rows() != 240 {
			t.Errorf("published frame is %dx%d, want 320x240", img.Cols(), img.Rows())
		}
	default:
		t.Fatal("no frame published")
	}
}

func TestNewTracker(t *testing.T) {
	cfg := config.Config{Detector: config.DetectorSimulated}
	tr, err := NewTracker(cfg, 1)
	if err != nil {
		t.Fatalf("NewTracker(simulated) error = %v", err)
	}
	if _, ok := tr.(*tracker.Simulator); !ok {
		t.Errorf("NewTracker(simulated) = %T, want *tracker.Simulator", tr)
	}

	cfg = config.Config{Detector: config.DetectorMediaPipe, ScriptPath: filepath.Join(t.TempDir(), "missing.py")}
	if _, err := NewTracker(cfg, 1); !errors.Is(err, ErrDetectorUnavailable) {
		t.Errorf("missing script: got %v, want ErrDetectorUnavailable", err)
	}

	if _, ok := NewCamera(config.Config{Detector: config.DetectorSimulated}).(*capture.BlankCamera); !ok {
		t.Error("simulated detector should use a blank camera")
	}
}

func TestApp_TrackerReleasedOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	t.Run("close without run", func(t *testing.T) {
		tr := &countingTracker{}
		a, err := New(Config{Camera: capture.NewBlankCamera(0, 0), Tracker: tr})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if tr.closed() != 1 {
			t.Errorf("tracker closed %d times, want 1", tr.closed())
		}
	})

	t.Run("run then close", func(t *testing.T) {
		tr := &countingTracker{}
		a := newTestApp(t, nil, Config{Tracker: tr, MaxFrames: 2})
		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if tr.closed() != 1 {
			t.Errorf("tracker closed %d times, want 1", tr.closed())
		}
	})
}

type countingTracker struct {
	mu     sync.Mutex
	closes int
}

func (c *countingTracker) Track(frame *gocv.Mat) (body.State, error) { return nil, nil }

func (c *countingTracker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *countingTracker) closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type failingCamera struct{}

func (failingCamera) Open() error                   { return errors.New("device busy") }
func (failingCamera) Close() error                  { return nil }
func (failingCamera) ReadFrame() (*gocv.Mat, error) { return nil, capture.ErrCameraNotOpen }
func (failingCamera) SetFPS(int)                    {}
func (failingCamera) FPS() int                      { return 0 }
func (failingCamera) IsOpen() bool                  { return false }

func writeHook(t *testing.T, dir, name, events string) {
	t.Helper()
	hookDir := filepath.Join(dir, name)
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatalf("mkdir hook: %v", err)
	}
	manifest := `{"name": "` + name + `", "executable": "run", "events": ` + events + `}`
	if err := os.WriteFile(filepath.Join(hookDir, hook.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

type recordingRunner struct {
	mu    sync.Mutex
	calls int
	last  hook.Request
}

func (r *recordingRunner) Execute(ctx context.Context, h *hook.Hook, req *hook.Request) (*hook.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = *req
	return &hook.Response{Success: true}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func containsKind(kinds []scene.EventKind, k scene.EventKind) bool {
	for _, got := range kinds {
		if got == k {
			return true
		}
	}
	return false
}
