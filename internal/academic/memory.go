package academic

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type recordKey struct {
	student, subject, semester string
}

// MemoryRepository keeps academic records in process memory for dev and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	subjects   map[string]Subject
	grades     map[recordKey]Grade
	attendance map[recordKey]Attendance
}

// NewMemoryRepository returns a repository seeded with subjects.
func NewMemoryRepository(subjects ...Subject) *MemoryRepository {
	m := &MemoryRepository{
		subjects:   make(map[string]Subject, len(subjects)),
		grades:     make(map[recordKey]Grade),
		attendance: make(map[recordKey]Attendance),
	}
	for _, s := range subjects {
		m.subjects[s.ID] = s
	}
	return m
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) ListGrades(_ context.Context, studentID string) ([]Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Grade
	for k, g := range m.grades {
		if k.student == studentID {
			g.Subject = m.subjectLocked(g.SubjectID)
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SemesterID != out[j].SemesterID {
			return out[i].SemesterID < out[j].SemesterID
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out, nil
}

func (m *MemoryRepository) UpsertGrades(_ context.Context, grades []Grade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range grades {
		k := recordKey{g.StudentID, g.SubjectID, g.SemesterID}
		if prev, ok := m.grades[k]; ok {
			g.ID = prev.ID
		} else {
			g.ID = uuid.NewString()
		}
		g.Subject = nil
		m.grades[k] = g
	}
	return nil
}

func (m *MemoryRepository) ListAttendance(_ context.Context, studentID string) ([]Attendance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attendance
	for k, a := range m.attendance {
		if k.student == studentID {
			a.Subject = m.subjectLocked(a.SubjectID)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SemesterID != out[j].SemesterID {
			return out[i].SemesterID < out[j].SemesterID
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out, nil
}

func (m *MemoryRepository) UpsertAttendance(_ context.Context, records []Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range records {
		k := recordKey{a.StudentID, a.SubjectID, a.SemesterID}
		if prev, ok := m.attendance[k]; ok {
			a.ID = prev.ID
		} else {
			a.ID = uuid.NewString()
		}
		a.Subject = nil
		m.attendance[k] = a
	}
	return nil
}

func (m *MemoryRepository) ListSubjects(_ context.Context) ([]Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Subject, 0, len(m.subjects))
	for _, s := range m.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) subjectLocked(id string) *Subject {
	s, ok := m.subjects[id]
	if !ok {
		return nil
	}
	return &s
}
