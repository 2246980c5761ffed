// Package main provides a keyboard hook for macOS.
// It sends a keystroke via AppleScript when a tower event fires, for example
// to advance slides on a break.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request is the subset of the hook request this hook reads.
type Request struct {
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Keystroke is one configured key press.
type Keystroke struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// Config maps event names to keystrokes.
type Config struct {
	Keys map[string]Keystroke `json:"keys"`
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeResponse(Response{Error: fmt.Sprintf("failed to parse config: %v", err)})
			return
		}
	}

	ks, ok := cfg.Keys[req.Event]
	if !ok {
		writeResponse(Response{Success: true, Data: json.RawMessage(`{"skipped":true}`)})
		return
	}
	if ks.Key == "" {
		writeResponse(Response{Error: fmt.Sprintf("no key configured for %s", req.Event)})
		return
	}

	if err := runAppleScript(buildKeystrokeScript(ks.Key, ks.Modifiers)); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("keystroke for %s failed: %v", req.Event, err)})
		return
	}
	writeResponse(Response{Success: true})
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`,
		key, strings.Join(appleModifiers, ", "))
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
