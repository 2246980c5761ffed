package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reloads a tuning file when it changes. Parsed tuning arrives on
// Updates; read and parse failures arrive on Errors and the previous tuning
// stays in effect.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration

	Updates chan Tuning
	Errors  chan error

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching the tuning file at path. The parent directory is
// watched so editors that replace the file on save are handled.
func Watch(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve tuning path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		watcher:  fw,
		path:     abs,
		debounce: debounce,
		Updates:  make(chan Tuning, 1),
		Errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher and closes both channels.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
		close(w.Updates)
		close(w.Errors)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			t, err := LoadTuning(w.path)
			if err != nil {
				w.send(nil, err)
				continue
			}
			w.send(&t, nil)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(nil, err)
		case <-w.closeCh:
			return
		}
	}
}

// send delivers without blocking; a newer value replaces an unread one.
func (w *Watcher) send(t *Tuning, err error) {
	if t != nil {
		select {
		case <-w.Updates:
		default:
		}
		select {
		case w.Updates <- *t:
		case <-w.closeCh:
		}
		return
	}
	select {
	case w.Errors <- err:
	default:
	}
}
