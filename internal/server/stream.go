package server

import (
	"fmt"
	"net/http"
	"sync"

	"gocv.io/x/gocv"
)

// FrameHub hands the latest rendered frame to every MJPEG viewer. Frames are
// only encoded while someone is watching.
type FrameHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewFrameHub creates an empty FrameHub.
func NewFrameHub() *FrameHub {
	return &FrameHub{clients: make(map[chan []byte]struct{})}
}

// Watching reports whether any viewer is connected.
func (h *FrameHub) Watching() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// PublishMat encodes frame as JPEG and publishes it when there are viewers.
func (h *FrameHub) PublishMat(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() || !h.Watching() {
		return nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())
	h.Publish(jpeg)
	return nil
}

// Publish hands jpeg to every viewer. A slow viewer skips frames instead of
// holding up the caller.
func (h *FrameHub) Publish(jpeg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case <-ch:
		default:
		}
		ch <- jpeg
	}
}

// Subscribe registers a viewer. The returned cancel func must be called when done.
func (h *FrameHub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

// StreamHandler serves rendered frames as MJPEG.
type StreamHandler struct {
	hub *FrameHub
}

// NewStreamHandler creates a new StreamHandler reading from hub.
func NewStreamHandler(hub *FrameHub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// ServeHTTP streams frames until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frames, cancel := h.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case jpeg := <-frames:
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
			if _, err := w.Write(jpeg); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
