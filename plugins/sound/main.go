// Package main provides a sound hook. It plays a system sound for each
// configured tower event.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
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

// Config maps event names to sound names or file paths.
type Config struct {
	Sounds map[string]string `json:"sounds"`
}

// defaultSounds is used when the manifest has no config.
var defaultSounds = map[string]string{
	"break":       "Glass",
	"creature_on": "Submarine",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	cfg := Config{Sounds: defaultSounds}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeResponse(Response{Error: fmt.Sprintf("failed to parse config: %v", err)})
			return
		}
	}

	name, ok := cfg.Sounds[req.Event]
	if !ok {
		writeResponse(Response{Success: true, Data: json.RawMessage(`{"skipped":true}`)})
		return
	}

	if err := play(name); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("play %s: %v", name, err)})
		return
	}
	writeResponse(Response{Success: true})
}

// play runs the platform sound player. A bare name is looked up among the
// system sounds on macOS and the freedesktop theme on Linux.
func play(name string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		path := name
		if filepath.Ext(name) == "" {
			path = filepath.Join("/System/Library/Sounds", name+".aiff")
		}
		cmd = exec.Command("afplay", path)
	case "linux":
		path := name
		if filepath.Ext(name) == "" {
			path = filepath.Join("/usr/share/sounds/freedesktop/stereo", "complete.oga")
		}
		cmd = exec.Command("paplay", path)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
