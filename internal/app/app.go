// Package app runs the handtower overlay loop: read a frame, track the body,
// map it to visual state, animate and draw the scene, then present it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/handtower/internal/capture"
	"github.com/ayusman/handtower/internal/config"
	"github.com/ayusman/handtower/internal/hook"
	"github.com/ayusman/handtower/internal/log"
	"github.com/ayusman/handtower/internal/mapper"
	"github.com/ayusman/handtower/internal/render"
	"github.com/ayusman/handtower/internal/scene"
	"github.com/ayusman/handtower/internal/server"
	"github.com/ayusman/handtower/internal/store"
	"github.com/ayusman/handtower/internal/tracker"
	"gocv.io/x/gocv"
)

// Loop constants.
const (
	// DefaultFrameDelay is the pause between iterations.
	DefaultFrameDelay = 20 * time.Millisecond
	// MaxTrackFailures is how many consecutive tracker errors end the run.
	MaxTrackFailures = 50
	// FrameFlush is how many frames are counted before the session row is updated.
	FrameFlush = 50
	// WindowName is the title of the preview window.
	WindowName = "handtower"
)

var (
	// ErrCameraUnavailable is returned when the camera cannot be opened.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrDetectorUnavailable is returned when no landmark detector can run.
	ErrDetectorUnavailable = errors.New("detector unavailable")
)

// Config holds the collaborators of one run. Camera and Tracker are required;
// every other field is optional and a nil value disables that surface.
type Config struct {
	Camera   capture.Camera
	Tracker  tracker.Tracker
	Renderer *render.Renderer
	Tuning   config.Tuning

	// Display opens a preview window; q or Esc in the window quits.
	Display    bool
	FrameDelay time.Duration
	// Seed drives the particle spread of the break animation.
	Seed uint64
	// MaxFrames stops the run after this many frames. Zero runs until cancelled.
	MaxFrames int

	// DetectorName is recorded on the session.
	DetectorName string
	Store        *store.Store
	Hooks        *hook.Dispatcher
	Frames       *server.FrameHub
	Visuals      *server.VisualHub
	// Reloads delivers new tuning; it is applied at the start of the next iteration.
	Reloads <-chan config.Tuning
}

// App owns the mapper and the scene. Both are touched only by the goroutine
// that calls Run.
type App struct {
	config   Config
	mapper   *mapper.Mapper
	scene    *scene.Scene
	renderer *render.Renderer
	ownsR    bool
	window   *gocv.Window

	enabled atomic.Bool
	running atomic.Bool

	releaseOnce sync.Once

	mu      sync.RWMutex
	onEvent func(scene.Event)

	session     *store.Session
	frames      int
	unflushed   int
	trackErrors int
}

// New creates an App. The overlay starts enabled.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil {
		return nil, fmt.Errorf("%w: no camera configured", ErrCameraUnavailable)
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("%w: no tracker configured", ErrDetectorUnavailable)
	}
	if cfg.FrameDelay < 0 {
		cfg.FrameDelay = DefaultFrameDelay
	}
	if cfg.Tuning == (config.Tuning{}) {
		cfg.Tuning = config.DefaultTuning()
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		mapper:   mapper.New(cfg.Tuning.Mapper),
		scene:    scene.New(cfg.Tuning.Scene, cfg.Seed),
		renderer: cfg.Renderer,
	}
	if a.renderer == nil {
		a.renderer = render.New(render.DefaultOptions())
		a.ownsR = true
	}
	a.enabled.Store(true)
	return a, nil
}

// Close releases the tracker if Run has not already done so, and the
// renderer if New created it.
func (a *App) Close() error {
	a.releaseTracker()
	if a.ownsR {
		return a.renderer.Close()
	}
	return nil
}

// releaseTracker closes the tracker once, from Run or Close.
func (a *App) releaseTracker() {
	a.releaseOnce.Do(func() {
		if err := a.config.Tracker.Close(); err != nil {
			log.Warn("close tracker", "error", err)
		}
	})
}

// SetEnabled switches the overlay on or off. While off, frames are still
// presented but no tracking is done.
func (a *App) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// IsEnabled reports whether the overlay is on.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// OnEvent sets a callback run on the loop goroutine for every scene event.
func (a *App) OnEvent(fn func(scene.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEvent = fn
}

// Scene returns the scene state. Only read it from the loop goroutine or after Run returns.
func (a *App) Scene() *scene.Scene {
	return a.scene
}

// Mapper returns the motion mapper. The same goroutine rule as Scene applies.
func (a *App) Mapper() *mapper.Mapper {
	return a.mapper
}

// Frames returns how many frames have been presented.
func (a *App) Frames() int {
	return a.frames
}

// Session returns the recorded session, or nil when recording is off.
func (a *App) Session() *store.Session {
	return a.session
}

// Run acquires the camera, window and session, runs the loop until ctx is
// cancelled, the user quits or MaxFrames is reached, and releases everything
// on the way out. A clean stop returns nil.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("app is already running")
	}
	defer a.running.Store(false)

	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	defer func() {
		if err := a.config.Camera.Close(); err != nil {
			log.Warn("close camera", "error", err)
		}
	}()
	defer a.releaseTracker()

	if a.config.Display {
		a.window = gocv.NewWindow(WindowName)
		defer func() {
			_ = a.window.Close()
			a.window = nil
		}()
	}

	if err := a.startSession(); err != nil {
		return err
	}
	defer a.finishSession()

	log.Info("overlay loop started", "display", a.config.Display, "detector", a.config.DetectorName)
	defer func() { log.Info("overlay loop stopped", "frames", a.frames) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-a.config.Reloads:
			if ok {
				a.applyTuning(t)
			}
		default:
		}

		quit, err := a.step(time.Now())
		if err != nil {
			return err
		}
		if quit {
			log.Info("quit requested from window")
			return nil
		}
		if a.config.MaxFrames > 0 && a.frames >= a.config.MaxFrames {
			return nil
		}

		if !sleep(ctx, a.config.FrameDelay) {
			return nil
		}
	}
}

func (a *App) applyTuning(t config.Tuning) {
	a.mapper.SetConfig(t.Mapper)
	a.scene.SetConfig(t.Scene)
	log.Info("tuning reloaded")
}

func (a *App) startSession() error {
	if a.config.Store == nil {
		return nil
	}
	sess := &store.Session{Detector: a.config.DetectorName}
	if err := a.config.Store.Sessions().Create(sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	a.session = sess
	log.Info("recording session", "session", sess.ID)
	return nil
}

func (a *App) finishSession() {
	if a.session == nil {
		return
	}
	a.flushFrames()
	now := time.Now()
	if err := a.config.Store.Sessions().Finish(a.session.ID, now); err != nil {
		log.Warn("finish session", "session", a.session.ID, "error", err)
		return
	}
	a.session.EndedAt = &now
}

func (a *App) flushFrames() {
	if a.session == nil || a.unflushed == 0 {
		return
	}
	if err := a.config.Store.Sessions().AddFrames(a.session.ID, a.unflushed); err != nil {
		log.Warn("update session frames", "session", a.session.ID, "error", err)
		return
	}
	a.session.Frames += a.unflushed
	a.unflushed = 0
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
