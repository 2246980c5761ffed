package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantFPS int
	}{
		{
			name:    "default config",
			config:  DefaultConfig(),
			wantFPS: DefaultFPS,
		},
		{
			name:    "zero fps falls back to default",
			config:  Config{DeviceID: 1},
			wantFPS: DefaultFPS,
		},
		{
			name:    "explicit fps",
			config:  Config{DeviceID: 2, FPS: 15},
			wantFPS: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.config)

			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}

			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{"set to 10", 10, 10},
		{"set to 60", 60, 60},
		{"set to 0 should keep previous", 0, 60},
		{"set to negative should keep previous", -5, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened camera should return nil, got: %v", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultConfig())

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		if mat.Empty() {
			t.Error("ReadFrame() returned empty mat")
		} else if mat.Cols() != DefaultWidth || mat.Rows() != DefaultHeight {
			t.Logf("Frame dimensions: %dx%d (camera may not support %dx%d)", mat.Cols(), mat.Rows(), DefaultWidth, DefaultHeight)
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}

	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mat := gocv.NewMatWithSize(2, 4, gocv.MatTypeCV8UC3)
	defer mat.Close()
	mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
	mat.SetUCharAt(0, 0, 200) // blue channel of pixel (0,0)

	Mirror(&mat)

	if got := mat.GetUCharAt(0, 0); got != 0 {
		t.Errorf("left pixel after mirror = %d, want 0", got)
	}
	// pixel (0,3) blue channel sits at column 3*3
	if got := mat.GetUCharAt(0, 9); got != 200 {
		t.Errorf("right pixel after mirror = %d, want 200", got)
	}

	Mirror(nil)
}

func TestBlankCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewBlankCamera(320, 240)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen before Open, got %v", err)
	}

	cam.Open()
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer frame.Close()

	if frame.Cols() != 320 || frame.Rows() != 240 {
		t.Errorf("frame size = %dx%d, want 320x240", frame.Cols(), frame.Rows())
	}
	if frame.Channels() != 3 {
		t.Errorf("channels = %d, want 3", frame.Channels())
	}
}
