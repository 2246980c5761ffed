package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/handtower/internal/store"
	"github.com/gorilla/websocket"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/sessions", "/api/stream", "/api/visual", "/api/nonexistent", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d without its component, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_Sessions(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	sess := &store.Session{Detector: "simulated"}
	if err := st.Sessions().Create(sess); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(New(Config{Store: st}))
	defer ts.Close()

	for _, path := range []string{"/api/sessions", "/api/sessions/" + sess.ID, "/api/sessions/" + sess.ID + "/events"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestStream_DeliversPublishedFrames(t *testing.T) {
	hub := NewFrameHub()
	ts := httptest.NewServer(New(Config{Frames: hub}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("unexpected Content-Type %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !hub.Watching() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !hub.Watching() {
		t.Fatal("viewer was not registered")
	}

	jpeg := []byte{0xFF, 0xD8, 'f', 'a', 'k', 'e', 0xFF, 0xD9}
	hub.Publish(jpeg)

	r := bufio.NewReader(resp.Body)
	wantHeaders := []string{"--frame", "Content-Type: image/jpeg", "Content-Length: 8", ""}
	for _, want := range wantHeaders {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read part header: %v", err)
		}
		if got := strings.TrimRight(line, "\r\n"); got != want {
			t.Fatalf("header line = %q, want %q", got, want)
		}
	}
	body := make([]byte, len(jpeg))
	if _, err := io.ReadFull(r, body); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(body) != string(jpeg) {
		t.Errorf("frame = %v, want %v", body, jpeg)
	}
}

func TestFrameHub_SlowViewerKeepsLatest(t *testing.T) {
	hub := NewFrameHub()
	frames, cancel := hub.Subscribe()

	hub.Publish([]byte("one"))
	hub.Publish([]byte("two"))

	if got := string(<-frames); got != "two" {
		t.Errorf("viewer got %q, want the latest frame", got)
	}

	cancel()
	if hub.Watching() {
		t.Error("hub should have no viewers after cancel")
	}
	hub.Publish([]byte("three"))
}

func TestFrameHub_PublishMatWithoutViewers(t *testing.T) {
	hub := NewFrameHub()
	if err := hub.PublishMat(nil); err != nil {
		t.Errorf("PublishMat(nil) error = %v", err)
	}
}

func TestVisualHub_Broadcast(t *testing.T) {
	hub := NewVisualHub()
	ts := httptest.NewServer(New(Config{Visuals: hub}))
	defer ts.Close()

	if err := hub.Broadcast(map[string]any{"ignored": true}); err != nil {
		t.Errorf("Broadcast without clients error = %v", err)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/visual"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	msg := map[string]any{"active": true, "tower_height": 0.5}
	if err := hub.Broadcast(msg); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["active"] != true || got["tower_height"] != 0.5 {
		t.Errorf("unexpected message %v", got)
	}

	hub.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close after hub.Close, got %v", err)
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(Config{Visuals: NewVisualHub()}).Run(ctx, addr)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/api/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_RunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	err = New(Config{}).Run(context.Background(), ln.Addr().String())
	if err == nil {
		t.Error("expected error for an address in use")
	}
}
