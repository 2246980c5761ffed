package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/handtower/internal/log"
)

// ErrHookNotFound is returned when a requested hook cannot be found.
var ErrHookNotFound = errors.New("hook not found")

// Manager discovers hooks in a directory and looks them up by name or event.
type Manager struct {
	dir   string
	hooks map[string]*Hook
	mu    sync.RWMutex
}

// NewManager creates a Manager for dir. Nothing is read until Discover.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:   dir,
		hooks: make(map[string]*Hook),
	}
}

// Discover scans each subdirectory of the hook directory for a manifest.
// A missing directory yields no hooks. Unreadable or invalid manifests are
// skipped with a warning.
func (m *Manager) Discover() error {
	hooks := make(map[string]*Hook)

	info, err := os.Stat(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		m.replace(hooks)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat hook dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("hook dir %s is not a directory", m.dir)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read hook dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		hookPath := filepath.Join(m.dir, entry.Name())
		h, err := loadHook(hookPath)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Warn("skipping hook", "path", hookPath, "error", err)
			continue
		}
		hooks[h.Manifest.Name] = h
	}

	m.replace(hooks)
	return nil
}

func loadHook(dir string) (*Hook, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, errors.New("manifest needs a name and an executable")
	}

	return &Hook{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

func (m *Manager) replace(hooks map[string]*Hook) {
	m.mu.Lock()
	m.hooks = hooks
	m.mu.Unlock()
}

// Get returns a hook by name.
func (m *Manager) Get(name string) (*Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return h, nil
}

// List returns all discovered hooks sorted by name.
func (m *Manager) List() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]*Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool {
		return hooks[i].Manifest.Name < hooks[j].Manifest.Name
	})
	return hooks
}

// Subscribers returns the hooks subscribed to event, sorted by name.
func (m *Manager) Subscribers(event string) []*Hook {
	var out []*Hook
	for _, h := range m.List() {
		if h.Subscribes(event) {
			out = append(out, h)
		}
	}
	return out
}

// Dir returns the hook directory path.
func (m *Manager) Dir() string {
	return m.dir
}
