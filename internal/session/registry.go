package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/store"
)

var (
	// ErrEmptySubject is returned when a session is created without a subject.
	ErrEmptySubject = errors.New("subject is required")

	// ErrNotFound is returned by tx-scoped reads when no active, unexpired
	// session matches the code. Callers cannot tell a never-issued code from
	// an expired one; both require obtaining a fresh code.
	ErrNotFound = errors.New("session expired or invalid")
)

// Session is a time-boxed attendance window.
type Session struct {
	Code      string    `json:"code"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Registry owns the session lifecycle: creation, the active-session view,
// and expiry cleanup.
type Registry struct {
	db  *sql.DB
	ttl time.Duration
}

// NewRegistry creates a registry. Sessions live for ttl after creation.
func NewRegistry(db *sql.DB, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{db: db, ttl: ttl}
}

// Create opens a new attendance window for subject and returns it.
// Expired sessions are swept first so the table only holds live codes.
func (r *Registry) Create(ctx context.Context, subject string) (Session, error) {
	if subject == "" {
		return Session{}, ErrEmptySubject
	}

	if _, err := r.PurgeExpired(ctx); err != nil {
		return Session{}, fmt.Errorf("purge before create: %w", err)
	}

	// A code collision surfaces as a unique violation on the primary key;
	// retry with a fresh code rather than bothering the administrator.
	for attempt := 0; attempt < 5; attempt++ {
		s := Session{
			Code:      newCode(),
			Subject:   subject,
			ExpiresAt: time.Now().Add(r.ttl),
		}
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO sessions (code, subject, expires_at)
			VALUES ($1, $2, $3)
			RETURNING created_at
		`, s.Code, s.Subject, s.ExpiresAt)
		err := row.Scan(&s.CreatedAt)
		if err == nil {
			return s, nil
		}
		if store.IsUniqueViolation(err) {
			continue
		}
		return Session{}, err
	}
	return Session{}, errors.New("could not generate a unique session code")
}

// Active returns the most recently created session that is still open, or
// nil when none is. Absence is a normal outcome, not an error.
func (r *Registry) Active(ctx context.Context) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, subject, created_at, expires_at
		FROM sessions
		WHERE expires_at > now() AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`)
	var s Session
	if err := row.Scan(&s.Code, &s.Subject, &s.CreatedAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ActiveSubject reads the subject of an open session by code within the
// caller's unit of work. Used by the mark-attendance transaction so that
// session validity and the attendance insert are decided under one
// isolation envelope.
func (r *Registry) ActiveSubject(ctx context.Context, q DBTX, code string) (string, error) {
	row := q.QueryRowContext(ctx, `
		SELECT subject FROM sessions
		WHERE code = $1 AND expires_at > now() AND status = 'active'
	`, code)
	var subject string
	if err := row.Scan(&subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return subject, nil
}

// PurgeExpired deletes sessions whose expiry has passed and returns how
// many were removed. Sessions with a future expiry are never touched,
// whatever their status. Idempotent.
func (r *Registry) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
