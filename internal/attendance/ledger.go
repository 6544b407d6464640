package attendance

import (
	"context"
	"database/sql"
	"errors"

	"rollcall/internal/store"
)

// ErrAlreadyMarked is returned when a (student, session) pair already has a
// record. Terminal for that pair; retrying with the same input cannot succeed.
var ErrAlreadyMarked = errors.New("attendance already marked for this session")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger owns the at-most-once invariant on attendance records. Its methods
// take an explicit querier so they run inside whatever unit of work the
// caller has open.
type Ledger struct{}

// HasMarked reports whether a record exists for the pair.
func (Ledger) HasMarked(ctx context.Context, q DBTX, studentID, code string) (bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance WHERE student_id = $1 AND session_code = $2
		)
	`, studentID, code)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// RecordMark inserts the record for the pair. Two callers racing on the
// same pair resolve at the unique constraint: exactly one insert lands,
// the loser gets ErrAlreadyMarked.
func (Ledger) RecordMark(ctx context.Context, q DBTX, studentID, code string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO attendance (student_id, session_code)
		VALUES ($1, $2)
	`, studentID, code)
	if store.IsUniqueViolation(err) {
		return ErrAlreadyMarked
	}
	return err
}
