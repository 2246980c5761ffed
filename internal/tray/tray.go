// Package tray provides the system tray menu used when handtower runs without a window.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the headless control surface: overlay toggle, last event, quit.
type Tray struct {
	onToggle func(enabled bool)
	onQuit   func()
	enabled  bool
	last     string
	mu       sync.RWMutex

	menuToggle    *systray.MenuItem
	menuLastEvent *systray.MenuItem
}

// New creates a Tray with the overlay enabled.
func New() *Tray {
	return &Tray{enabled: true}
}

// OnToggle sets the callback run when the overlay is switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback run when Quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run shows the tray and blocks until Quit is called.
// It must be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Tower")
	systray.SetTooltip("handtower overlay")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle the tower overlay")
	systray.AddSeparator()
	t.menuLastEvent = systray.AddMenuItem(lastTitle(t.last), "Last scene event")
	t.menuLastEvent.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handtower")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// Toggle flips the overlay state and runs the toggle callback.
func (t *Tray) Toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// outside the lock: the callback may call back into the tray
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetLastEvent updates the "Last:" line. It is safe to call before Run.
func (t *Tray) SetLastEvent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.menuLastEvent != nil {
		t.menuLastEvent.SetTitle(lastTitle(name))
	}
}

// LastEvent returns the name shown on the "Last:" line.
func (t *Tray) LastEvent() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsEnabled returns the current overlay state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Overlay on"
	}
	return "○ Overlay off"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
