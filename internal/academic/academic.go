// Package academic stores grades and attendance keyed by student, subject and
// semester.
package academic

import (
	"context"
	"errors"
	"time"
)

// DefaultSemester is used for attendance submitted without a semester.
const DefaultSemester = "CURRENT"

// ErrInvalidRecord rejects malformed batch entries.
var ErrInvalidRecord = errors.New("invalid record")

// Subject is reference data.
type Subject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

// Grade is one student's grade in a subject for a semester.
type Grade struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	SubjectID  string    `json:"subjectId"`
	SemesterID string    `json:"semesterId"`
	Grade      string    `json:"grade"`
	Subject    *Subject  `json:"subject,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Attendance counts classes attended out of classes held.
type Attendance struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"studentId"`
	SubjectID       string    `json:"subjectId"`
	SemesterID      string    `json:"semesterId"`
	AttendedClasses int       `json:"attendedClasses"`
	TotalClasses    int       `json:"totalClasses"`
	Subject         *Subject  `json:"subject,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Repository persists academic records. Upserts in one call commit together.
type Repository interface {
	ListGrades(ctx context.Context, studentID string) ([]Grade, error)
	UpsertGrades(ctx context.Context, grades []Grade) error
	ListAttendance(ctx context.Context, studentID string) ([]Attendance, error)
	UpsertAttendance(ctx context.Context, records []Attendance) error
	ListSubjects(ctx context.Context) ([]Subject, error)
}
