package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rollcall/internal/store"
)

const bcryptCost = 12

var (
	// ErrInvalidCredentials is returned on any login failure. It never
	// reveals whether the identifier or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateID is returned when registering an already-taken roll number.
	ErrDuplicateID = errors.New("student id already exists")
)

// Student is a registered student.
type Student struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Store persists students and admins in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates an identity store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Register creates a student with a bcrypt-hashed password.
func (s *Store) Register(ctx context.Context, id, name, password string) error {
	if id == "" || name == "" || password == "" {
		return errors.New("id, name and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO students (id, password_hash, name)
		VALUES ($1, $2, $3)
	`, id, string(hash), name)
	if store.IsUniqueViolation(err) {
		return ErrDuplicateID
	}
	return err
}

// VerifyStudent checks the credentials and updates last_login on success.
func (s *Store) VerifyStudent(ctx context.Context, id, password string) (Student, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash, name, created_at, last_login
		FROM students WHERE id = $1
	`, id)
	var st Student
	var hash string
	if err := row.Scan(&st.ID, &hash, &st.Name, &st.CreatedAt, &st.LastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrInvalidCredentials
		}
		return Student{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Student{}, ErrInvalidCredentials
	}
	_, err := s.db.ExecContext(ctx, `UPDATE students SET last_login = now() WHERE id = $1`, id)
	return st, err
}

// VerifyAdmin checks administrator credentials.
func (s *Store) VerifyAdmin(ctx context.Context, username, password string) error {
	row := s.db.QueryRowContext(ctx, `SELECT password_hash FROM admins WHERE username = $1`, username)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}
