package app

import (
	"fmt"
	"time"

	"github.com/ayusman/handtower/internal/hook"
	"github.com/ayusman/handtower/internal/log"
	"github.com/ayusman/handtower/internal/mapper"
	"github.com/ayusman/handtower/internal/scene"
	"github.com/ayusman/handtower/internal/store"
	"gocv.io/x/gocv"
)

// Window key codes that end the run.
const (
	keyQuit   = 'q'
	keyEscape = 27
)

// step runs one iteration of the loop:
//
//  1. read a frame (a failed read skips the iteration)
//  2. track and map it while the overlay is enabled
//  3. apply the visual state to the scene and advance the animation
//  4. draw and present the frame
//  5. record and publish the scene events
//
// A nil body state or visual state leaves the scene targets untouched but
// the frame is still drawn and presented.
func (a *App) step(now time.Time) (quit bool, err error) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		log.Debug("skipping frame", "error", err)
		return false, nil
	}
	defer frame.Close()

	var visual *mapper.VisualState
	if a.IsEnabled() {
		visual, err = a.track(frame)
		if err != nil {
			return false, err
		}
	}

	events := a.scene.Apply(visual, now)
	a.scene.Advance(now)

	if a.IsEnabled() {
		a.renderer.Render(frame, a.scene)
	}

	quit = a.present(frame)
	a.publish(frame, visual, events)

	a.frames++
	if a.session != nil {
		a.unflushed++
		if a.unflushed >= FrameFlush {
			a.flushFrames()
		}
	}
	return quit, nil
}

// track returns the visual state for frame, or nil when nobody is visible.
// Tracker errors are logged once per streak; a long streak ends the run.
func (a *App) track(frame *gocv.Mat) (*mapper.VisualState, error) {
	st, err := a.config.Tracker.Track(frame)
	if err != nil {
		a.trackErrors++
		if a.trackErrors == 1 {
			log.Warn("tracking failed", "error", err)
		}
		if a.trackErrors >= MaxTrackFailures {
			return nil, fmt.Errorf("%w: %d consecutive failures: %w", ErrDetectorUnavailable, a.trackErrors, err)
		}
		return nil, nil
	}
	if a.trackErrors > 0 {
		log.Info("tracking recovered", "failures", a.trackErrors)
		a.trackErrors = 0
	}

	visual := a.mapper.Map(st)
	if visual == nil {
		log.Debug("no body in frame")
	}
	return visual, nil
}

// present shows frame in the window and reports whether the user asked to quit.
func (a *App) present(frame *gocv.Mat) bool {
	if a.window == nil {
		return false
	}
	a.window.IMShow(*frame)
	switch a.window.WaitKey(1) {
	case keyQuit, keyEscape:
		return true
	}
	return false
}

func (a *App) publish(frame *gocv.Mat, visual *mapper.VisualState, events []scene.Event) {
	if hub := a.config.Frames; hub != nil {
		if err := hub.PublishMat(frame); err != nil {
			log.Debug("publish frame", "error", err)
		}
	}
	if hub := a.config.Visuals; hub != nil && visual != nil && hub.Clients() > 0 {
		if err := hub.Broadcast(visual); err != nil {
			log.Debug("broadcast visual state", "error", err)
		}
	}

	if len(events) == 0 {
		return
	}

	a.mu.RLock()
	onEvent := a.onEvent
	a.mu.RUnlock()

	for _, ev := range events {
		log.Info("scene event", "event", ev.Kind, "height", ev.Height, "width", ev.Width)
		a.recordEvent(ev)
		if a.config.Hooks != nil {
			a.config.Hooks.Fire(hook.Request{
				Event:   string(ev.Kind),
				Session: a.sessionID(),
				At:      ev.At,
				Visual:  visual,
			})
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}
}

func (a *App) recordEvent(ev scene.Event) {
	if a.session == nil {
		return
	}
	err := a.config.Store.Events().Record(&store.Event{
		SessionID:   a.session.ID,
		Kind:        string(ev.Kind),
		TowerHeight: ev.Height,
		TowerWidth:  ev.Width,
		SideOffset:  ev.Offset,
		At:          ev.At,
	})
	if err != nil {
		log.Warn("record event", "event", ev.Kind, "error", err)
		return
	}
	if ev.Kind == scene.EventBreak {
		a.session.Breaks++
	}
}

func (a *App) sessionID() string {
	if a.session == nil {
		return ""
	}
	return a.session.ID
}
