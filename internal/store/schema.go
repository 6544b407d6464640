package store

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id VARCHAR(50) PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		code VARCHAR(8) PRIMARY KEY,
		subject VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL,
		status VARCHAR(10) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'expired'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id BIGSERIAL PRIMARY KEY,
		student_id VARCHAR(50) NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		session_code VARCHAR(8) NOT NULL REFERENCES sessions(code) ON DELETE CASCADE,
		marked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (student_id, session_code)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_student_id ON attendance (student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_marked_at ON attendance (marked_at)`,
	`CREATE TABLE IF NOT EXISTS admins (
		username VARCHAR(50) PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the four tables and seeds the default admin account.
// Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB, adminUsername, adminPassword string) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 12)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO admins (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
	`, adminUsername, string(hash))
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
