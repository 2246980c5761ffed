package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the render loop.
type Session struct {
	ID        string     `json:"id"`
	Detector  string     `json:"detector"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Frames    int        `json:"frames"`
	Breaks    int        `json:"breaks"`
}

// SessionRepository provides access to sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is filled with a random UUID and
// a zero StartedAt with the current time.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	sess.StartedAt = sess.StartedAt.UTC()

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, detector, started_at, frames, breaks)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Detector, sess.StartedAt, sess.Frames, sess.Breaks,
	)
	return err
}

// Finish marks a session as ended at the given time.
func (r *SessionRepository) Finish(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// AddFrames increments the frame counter of a session by n.
func (r *SessionRepository) AddFrames(id string, n int) error {
	result, err := r.db.Exec(`UPDATE sessions SET frames = frames + ? WHERE id = ?`, n, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, detector, started_at, ended_at, frames, breaks
		 FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns the most recent sessions first. limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, detector, started_at, ended_at, frames, breaks
		 FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Detector, &sess.StartedAt, &ended, &sess.Frames, &sess.Breaks); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
