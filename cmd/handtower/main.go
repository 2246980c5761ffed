package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/handtower/internal/app"
	"github.com/ayusman/handtower/internal/config"
	"github.com/ayusman/handtower/internal/hook"
	"github.com/ayusman/handtower/internal/log"
	"github.com/ayusman/handtower/internal/render"
	"github.com/ayusman/handtower/internal/scene"
	"github.com/ayusman/handtower/internal/server"
	"github.com/ayusman/handtower/internal/store"
	"github.com/ayusman/handtower/internal/tray"
)

// HookQueueSize is how many scene events may wait for the hook worker.
const HookQueueSize = 32

func init() {
	// the preview window and the tray both need the main thread on macOS
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "handtower: %v\n", err)
		return 1
	}
	log.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, stop, cfg); err != nil {
		switch {
		case errors.Is(err, app.ErrCameraUnavailable):
			log.Error("camera unavailable", "camera", cfg.CameraID, "error", err)
		case errors.Is(err, app.ErrDetectorUnavailable):
			log.Error("landmark detector unavailable, try TOWER_DETECTOR=simulated", "error", err)
		default:
			log.Error("handtower stopped", "error", err)
		}
		return 1
	}
	return 0
}

func start(ctx context.Context, stop context.CancelFunc, cfg config.Config) error {
	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		return err
	}

	seed := uint64(time.Now().UnixNano())

	renderer := render.New(render.DefaultOptions())
	defer renderer.Close()
	if err := renderer.LoadSprite(cfg.SpritePath); err != nil {
		log.Warn("creature sprite not loaded, drawing without it", "error", err)
	}

	appCfg := app.Config{
		Camera:       app.NewCamera(cfg),
		Renderer:     renderer,
		Tuning:       tuning,
		Display:      cfg.Display,
		FrameDelay:   cfg.FrameDelay,
		Seed:         seed,
		DetectorName: cfg.Detector,
	}

	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		st, err := store.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		appCfg.Store = st
	}

	if cfg.HookDir != "" {
		mgr := hook.NewManager(cfg.HookDir)
		if err := mgr.Discover(); err != nil {
			return fmt.Errorf("discover hooks: %w", err)
		}
		log.Info("hooks loaded", "dir", cfg.HookDir, "count", len(mgr.List()))

		dispatcher := hook.NewDispatcher(mgr, hook.NewExecutor(cfg.HookTimeout), HookQueueSize)
		dispatcher.Start(ctx)
		defer dispatcher.Close()
		appCfg.Hooks = dispatcher
	}

	if cfg.TuningPath != "" {
		w, err := config.Watch(cfg.TuningPath, config.DefaultDebounce)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			for err := range w.Errors {
				log.Warn("tuning not reloaded", "path", cfg.TuningPath, "error", err)
			}
		}()
		appCfg.Reloads = w.Updates
	}

	if cfg.HTTPAddr != "" {
		appCfg.Frames = server.NewFrameHub()
		appCfg.Visuals = server.NewVisualHub()
		srv := server.New(server.Config{
			Store:   appCfg.Store,
			Frames:  appCfg.Frames,
			Visuals: appCfg.Visuals,
		})
		go func() {
			if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
				log.Error("http server failed", "error", err)
				stop()
			}
		}()
	}

	// created last so a failed setup step above has nothing to release
	tr, err := app.NewTracker(cfg, seed)
	if err != nil {
		return err
	}
	appCfg.Tracker = tr

	a, err := app.New(appCfg)
	if err != nil {
		_ = tr.Close()
		return err
	}
	defer a.Close()

	if !cfg.Tray {
		return a.Run(ctx)
	}
	return runWithTray(ctx, stop, a)
}

// runWithTray gives the main goroutine to the tray and runs the loop beside it.
func runWithTray(ctx context.Context, stop context.CancelFunc, a *app.App) error {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnQuit(stop)
	a.OnEvent(func(ev scene.Event) {
		t.SetLastEvent(string(ev.Kind))
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
		t.Quit()
	}()

	t.Run()
	stop()
	return <-errCh
}
