package academic

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresRepository persists academic records in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

// ListGrades returns a student's grades with subject details.
func (r *PostgresRepository) ListGrades(ctx context.Context, studentID string) ([]Grade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.student_id, g.subject_id, g.semester_id, g.grade, g.updated_at,
		       s.id, s.name, s.credits
		FROM grades g
		LEFT JOIN subjects s ON s.id = g.subject_id
		WHERE g.student_id = $1
		ORDER BY g.semester_id, g.subject_id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	defer rows.Close()

	var res []Grade
	for rows.Next() {
		var g Grade
		var sub nullSubject
		if err := rows.Scan(&g.ID, &g.StudentID, &g.SubjectID, &g.SemesterID, &g.Grade, &g.UpdatedAt,
			&sub.id, &sub.name, &sub.credits); err != nil {
			return nil, err
		}
		g.Subject = sub.subject()
		res = append(res, g)
	}
	return res, rows.Err()
}

// UpsertGrades writes grades in a single transaction.
func (r *PostgresRepository) UpsertGrades(ctx context.Context, grades []Grade) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grades: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grades (id, student_id, subject_id, semester_id, grade, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, subject_id, semester_id) DO UPDATE SET
			grade = EXCLUDED.grade,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare grades: %w", err)
	}
	defer stmt.Close()

	for _, g := range grades {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), g.StudentID, g.SubjectID, g.SemesterID, g.Grade, g.UpdatedAt); err != nil {
			return fmt.Errorf("upsert grade %s/%s/%s: %w", g.StudentID, g.SubjectID, g.SemesterID, err)
		}
	}
	return tx.Commit()
}

// ListAttendance returns a student's attendance with subject details.
func (r *PostgresRepository) ListAttendance(ctx context.Context, studentID string) ([]Attendance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.subject_id, a.semester_id, a.attended_classes, a.total_classes, a.updated_at,
		       s.id, s.name, s.credits
		FROM attendance a
		LEFT JOIN subjects s ON s.id = a.subject_id
		WHERE a.student_id = $1
		ORDER BY a.semester_id, a.subject_id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var res []Attendance
	for rows.Next() {
		var a Attendance
		var sub nullSubject
		if err := rows.Scan(&a.ID, &a.StudentID, &a.SubjectID, &a.SemesterID, &a.AttendedClasses, &a.TotalClasses, &a.UpdatedAt,
			&sub.id, &sub.name, &sub.credits); err != nil {
			return nil, err
		}
		a.Subject = sub.subject()
		res = append(res, a)
	}
	return res, rows.Err()
}

// UpsertAttendance writes attendance records in a single transaction.
func (r *PostgresRepository) UpsertAttendance(ctx context.Context, records []Attendance) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance (id, student_id, subject_id, semester_id, attended_classes, total_classes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, subject_id, semester_id) DO UPDATE SET
			attended_classes = EXCLUDED.attended_classes,
			total_classes = EXCLUDED.total_classes,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare attendance: %w", err)
	}
	defer stmt.Close()

	for _, a := range records {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), a.StudentID, a.SubjectID, a.SemesterID,
			a.AttendedClasses, a.TotalClasses, a.UpdatedAt); err != nil {
			return fmt.Errorf("upsert attendance %s/%s/%s: %w", a.StudentID, a.SubjectID, a.SemesterID, err)
		}
	}
	return tx.Commit()
}

// ListSubjects returns the subject catalogue.
func (r *PostgresRepository) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, credits FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var res []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Credits); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

type nullSubject struct {
	id      sql.NullString
	name    sql.NullString
	credits sql.NullInt64
}

func (n nullSubject) subject() *Subject {
	if !n.id.Valid {
		return nil
	}
	return &Subject{ID: n.id.String, Name: n.name.String, Credits: int(n.credits.Int64)}
}
