package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/session"
)

// ErrSessionInvalid is returned when the supplied code does not match an
// active, unexpired session. Deliberately covers "never existed",
// "expired" and "closed" alike: the fix is the same — get a new code.
var ErrSessionInvalid = errors.New("session expired or invalid")

// Coordinator runs the mark-attendance transaction: session validity and
// the ledger insert are decided inside one isolated unit of work, so a
// session cannot expire and a duplicate cannot sneak in between the check
// and the insert.
type Coordinator struct {
	db       *sql.DB
	sessions *session.Registry
	ledger   Ledger
	timeout  time.Duration
}

// NewCoordinator creates a coordinator. Each mark operation is bounded by
// timeout so a transaction can never hold a pool connection indefinitely.
func NewCoordinator(db *sql.DB, sessions *session.Registry, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Coordinator{db: db, sessions: sessions, timeout: timeout}
}

// Mark records attendance for studentID against the session identified by
// code and returns the session's subject. Exactly one record is committed
// or none: any failure after the transaction opens rolls everything back.
func (c *Coordinator) Mark(ctx context.Context, studentID, code string) (string, error) {
	if code == "" {
		return "", ErrSessionInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin mark tx: %w", err)
	}
	defer tx.Rollback()

	subject, err := c.sessions.ActiveSubject(ctx, tx, code)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrSessionInvalid
		}
		return "", err
	}

	marked, err := c.ledger.HasMarked(ctx, tx, studentID, code)
	if err != nil {
		return "", err
	}
	if marked {
		return "", ErrAlreadyMarked
	}

	if err := c.ledger.RecordMark(ctx, tx, studentID, code); err != nil {
		// A concurrent transaction can land its insert between our
		// existence check and ours; the unique constraint settles it.
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit mark tx: %w", err)
	}
	return subject, nil
}
