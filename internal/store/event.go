package store

import (
	"database/sql"
	"fmt"
	"time"
)

// BreakKind is the event kind that increments a session's break counter.
const BreakKind = "break"

// Event is a recorded scene transition.
type Event struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Kind        string    `json:"kind"`
	TowerHeight float64   `json:"tower_height"`
	TowerWidth  float64   `json:"tower_width"`
	SideOffset  float64   `json:"side_offset"`
	At          time.Time `json:"at"`
}

// EventRepository provides access to events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Record inserts an event and sets its ID. Recording a break also bumps the
// session's break counter. It returns ErrNotFound for an unknown session.
func (r *EventRepository) Record(e *Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, e.SessionID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("session %s: %w", e.SessionID, ErrNotFound)
	}

	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()
	result, err := tx.Exec(
		`INSERT INTO events (session_id, kind, tower_height, tower_width, side_offset, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.TowerHeight, e.TowerWidth, e.SideOffset, e.At,
	)
	if err != nil {
		return err
	}
	if e.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	if e.Kind == BreakKind {
		if _, err := tx.Exec(`UPDATE sessions SET breaks = breaks + 1 WHERE id = ?`, e.SessionID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession returns a session's events in the order they happened.
func (r *EventRepository) ListBySession(sessionID string) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, tower_height, tower_width, side_offset, at
		 FROM events WHERE session_id = ? ORDER BY at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.TowerHeight, &e.TowerWidth, &e.SideOffset, &e.At); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
