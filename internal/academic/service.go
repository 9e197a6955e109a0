package academic

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GradeInput is one entry of a grade batch.
type GradeInput struct {
	SubjectID string
	Grade     string
}

// AttendanceInput is one entry of an attendance batch.
type AttendanceInput struct {
	StudentID  string
	SemesterID string
	Attended   int
	Total      int
}

// Service reads and writes academic records.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Grades returns every grade recorded for studentID.
func (s *Service) Grades(ctx context.Context, studentID string) ([]Grade, error) {
	out, err := s.repo.ListGrades(ctx, studentID)
	if out == nil && err == nil {
		out = []Grade{}
	}
	return out, err
}

// Attendance returns every attendance record for studentID.
func (s *Service) Attendance(ctx context.Context, studentID string) ([]Attendance, error) {
	out, err := s.repo.ListAttendance(ctx, studentID)
	if out == nil && err == nil {
		out = []Attendance{}
	}
	return out, err
}

// Subjects lists the subject catalogue.
func (s *Service) Subjects(ctx context.Context) ([]Subject, error) {
	out, err := s.repo.ListSubjects(ctx)
	if out == nil && err == nil {
		out = []Subject{}
	}
	return out, err
}

// AddGrades upserts a semester's grades for one student and returns how many
// records were written.
func (s *Service) AddGrades(ctx context.Context, studentID, semesterID string, in []GradeInput) (int, error) {
	studentID, semesterID = strings.TrimSpace(studentID), strings.TrimSpace(semesterID)
	if studentID == "" || semesterID == "" {
		return 0, fmt.Errorf("%w: student and semester required", ErrInvalidRecord)
	}
	now := s.now()
	grades := make([]Grade, 0, len(in))
	for i, g := range in {
		subjectID, value := strings.TrimSpace(g.SubjectID), strings.TrimSpace(g.Grade)
		if subjectID == "" || value == "" {
			return 0, fmt.Errorf("%w: grade %d needs subject and grade", ErrInvalidRecord, i)
		}
		grades = append(grades, Grade{
			StudentID:  studentID,
			SubjectID:  subjectID,
			SemesterID: semesterID,
			Grade:      value,
			UpdatedAt:  now,
		})
	}
	if len(grades) == 0 {
		return 0, nil
	}
	if err := s.repo.UpsertGrades(ctx, grades); err != nil {
		return 0, err
	}
	return len(grades), nil
}

// AddAttendance upserts attendance for one subject across students.
func (s *Service) AddAttendance(ctx context.Context, subjectID string, in []AttendanceInput) (int, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return 0, fmt.Errorf("%w: subject required", ErrInvalidRecord)
	}
	now := s.now()
	records := make([]Attendance, 0, len(in))
	for i, r := range in {
		studentID := strings.TrimSpace(r.StudentID)
		if studentID == "" {
			return 0, fmt.Errorf("%w: record %d needs a student", ErrInvalidRecord, i)
		}
		if r.Attended < 0 || r.Total < 0 || r.Attended > r.Total {
			return 0, fmt.Errorf("%w: record %d has attended %d of %d", ErrInvalidRecord, i, r.Attended, r.Total)
		}
		semesterID := strings.TrimSpace(r.SemesterID)
		if semesterID == "" {
			semesterID = DefaultSemester
		}
		records = append(records, Attendance{
			StudentID:       studentID,
			SubjectID:       subjectID,
			SemesterID:      semesterID,
			AttendedClasses: r.Attended,
			TotalClasses:    r.Total,
			UpdatedAt:       now,
		})
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.repo.UpsertAttendance(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
