// Package hook runs external executables in response to scene events.
//
// A hook lives in its own directory under the hook directory and is described
// by a hook.json manifest:
//
//	{"name": "sound", "version": "1.0.0", "executable": "sound", "events": ["break"]}
//
// The executable receives a JSON Request on stdin and must print a JSON
// Response on stdout.
package hook

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/ayusman/handtower/internal/mapper"
)

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook and the events it subscribes to.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is sent to a hook on stdin.
type Request struct {
	Event   string              `json:"event"`
	Session string              `json:"session,omitempty"`
	At      time.Time           `json:"at"`
	Visual  *mapper.VisualState `json:"visual,omitempty"`
	Config  json.RawMessage     `json:"config,omitempty"`
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribes reports whether the hook wants event. "*" matches every event.
func (h *Hook) Subscribes(event string) bool {
	return slices.Contains(h.Manifest.Events, event) || slices.Contains(h.Manifest.Events, "*")
}
