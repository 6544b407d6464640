package attendance

import (
	"context"
	"database/sql"
	"time"
)

// Record is one attendance entry joined with its student and session.
type Record struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	SessionCode string    `json:"session_code"`
	Subject     string    `json:"subject"`
	MarkedAt    time.Time `json:"marked_at"`
}

// Stats summarizes one student's attendance.
type Stats struct {
	Today int `json:"today"`
	Total int `json:"total"`
}

// Records serves the read side: admin listings and per-student stats.
type Records struct {
	db *sql.DB
}

// NewRecords creates the read-side query helper.
func NewRecords(db *sql.DB) *Records {
	return &Records{db: db}
}

// ListAll returns attendance entries newest first, capped at 1000 rows.
func (r *Records) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.student_id, s.name, a.session_code, ses.subject, a.marked_at
		FROM attendance a
		JOIN students s ON a.student_id = s.id
		JOIN sessions ses ON a.session_code = ses.code
		ORDER BY a.marked_at DESC
		LIMIT 1000
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.StudentID, &rec.StudentName, &rec.SessionCode, &rec.Subject, &rec.MarkedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StatsFor returns today's and the all-time mark counts for a student.
func (r *Records) StatsFor(ctx context.Context, studentID string) (Stats, error) {
	var st Stats
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE marked_at::date = CURRENT_DATE),
			COUNT(*)
		FROM attendance WHERE student_id = $1
	`, studentID)
	if err := row.Scan(&st.Today, &st.Total); err != nil {
		return Stats{}, err
	}
	return st, nil
}
