package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Detector: "mediapipe"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Errorf("ID %q should be a UUID: %v", sess.ID, err)
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Detector != "mediapipe" || got.Frames != 0 || got.Breaks != 0 {
		t.Errorf("unexpected session %+v", got)
	}
	if got.EndedAt != nil {
		t.Error("new session should not be finished")
	}
	if !got.StartedAt.Equal(sess.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, sess.StartedAt)
	}
}

func TestSessionRepository_Create_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	id := uuid.NewString()
	if err := repo.Create(&Session{ID: id, Detector: "simulated"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(&Session{ID: id, Detector: "simulated"}); err == nil {
		t.Error("expected error for duplicate ID")
	}
}

func TestSessionRepository_FinishAndFrames(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Detector: "simulated"}
	if err := repo.Create(sess); err != nil {
		t.Fatal(err)
	}

	if err := repo.AddFrames(sess.ID, 30); err != nil {
		t.Fatalf("AddFrames() error = %v", err)
	}
	if err := repo.AddFrames(sess.ID, 12); err != nil {
		t.Fatalf("AddFrames() error = %v", err)
	}

	end := sess.StartedAt.Add(90 * time.Second)
	if err := repo.Finish(sess.ID, end); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Frames != 42 {
		t.Errorf("Frames = %d, want 42", got.Frames)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(end) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, end)
	}
}

func TestSessionRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()
	missing := uuid.NewString()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"GetByID", func() error { _, err := repo.GetByID(missing); return err }},
		{"Finish", func() error { return repo.Finish(missing, time.Now()) }},
		{"AddFrames", func() error { return repo.AddFrames(missing, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSessionRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	for i, det := range []string{"first", "second", "third"} {
		sess := &Session{Detector: det, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(sess); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].Detector != "third" || all[2].Detector != "first" {
		t.Errorf("sessions should be newest first, got %s..%s", all[0].Detector, all[2].Detector)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions", len(limited))
	}
}

func TestSessionRepository_List_Empty(t *testing.T) {
	s := newTestStore(t)
	sessions, err := s.Sessions().List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}
}
