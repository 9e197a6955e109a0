package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory for dev and tests.
type MemoryRepository struct {
	mu    sync.Mutex
	creds map[string]Credential
	otps  []*OTPEntry
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{creds: make(map[string]Credential)}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) GetCredential(_ context.Context, username string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[username]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryRepository) CreateCredential(_ context.Context, c Credential) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[c.Username]; ok {
		return Credential{}, ErrConflict
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.creds[c.Username] = c
	return c, nil
}

// SetDisabled toggles the disabled flag of an existing credential.
func (m *MemoryRepository) SetDisabled(username string, disabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[username]
	if !ok {
		return false
	}
	c.IsDisabled = disabled
	m.creds[username] = c
	return true
}

func (m *MemoryRepository) IssueOTP(_ context.Context, e OTPEntry, supersede bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if supersede {
		for _, prev := range m.otps {
			if prev.Username == e.Username && prev.ConsumedAt == nil {
				t := e.CreatedAt
				prev.ConsumedAt = &t
			}
		}
	}
	m.otps = append(m.otps, &e)
	return nil
}

func (m *MemoryRepository) FindUsableOTP(_ context.Context, username, code string, now time.Time) (*OTPEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *OTPEntry
	for _, e := range m.otps {
		if e.Username != username || e.Code != code || !e.Usable(now) {
			continue
		}
		if best == nil || !e.CreatedAt.Before(best.CreatedAt) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *MemoryRepository) ConsumeOTP(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumeLocked(id, at), nil
}

func (m *MemoryRepository) ResetPassword(_ context.Context, otpID, username, passwordHash string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[username]
	if !ok {
		return false, nil
	}
	if !m.consumeLocked(otpID, at) {
		return false, nil
	}
	c.PasswordHash = passwordHash
	c.UpdatedAt = at
	m.creds[username] = c
	return true, nil
}

// OTPs returns a snapshot of every entry issued for username.
func (m *MemoryRepository) OTPs(username string) []OTPEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OTPEntry
	for _, e := range m.otps {
		if e.Username == username {
			out = append(out, *e)
		}
	}
	return out
}

func (m *MemoryRepository) consumeLocked(id string, at time.Time) bool {
	for _, e := range m.otps {
		if e.ID == id {
			if e.ConsumedAt != nil {
				return false
			}
			t := at
			e.ConsumedAt = &t
			return true
		}
	}
	return false
}
