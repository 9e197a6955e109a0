// Package account owns login credentials and the one-time passcodes used to
// recover them.
package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown users, disabled users and wrong
	// passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrConflict reports a username that is already taken.
	ErrConflict = errors.New("username already exists")
	// ErrNotFound reports an unknown username.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidOTP covers wrong, expired, superseded and consumed codes.
	ErrInvalidOTP = errors.New("invalid or expired otp")
)

// Roles known to the campus system.
const (
	RoleStudent   = "student"
	RoleTeacher   = "teacher"
	RoleHOD       = "hod"
	RoleDean      = "dean"
	RoleDirector  = "director"
	RoleWebmaster = "webmaster"
	RoleAdmin     = "admin"
)

var roles = map[string]struct{}{
	RoleStudent: {}, RoleTeacher: {}, RoleHOD: {}, RoleDean: {},
	RoleDirector: {}, RoleWebmaster: {}, RoleAdmin: {},
}

// ValidRole reports whether r names a known role.
func ValidRole(r string) bool {
	_, ok := roles[strings.ToLower(r)]
	return ok
}

// Credential is a stored login.
type Credential struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	Email        *string
	IsDisabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OTPEntry is one issued passcode.
type OTPEntry struct {
	ID         string
	Username   string
	Code       string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the entry can still be redeemed at now.
func (e OTPEntry) Usable(now time.Time) bool {
	return e.ConsumedAt == nil && now.Before(e.ExpiresAt)
}

// Repository persists credentials and the OTP log.
type Repository interface {
	// GetCredential returns nil, nil when the username is unknown.
	GetCredential(ctx context.Context, username string) (*Credential, error)
	// CreateCredential returns ErrConflict when the username is taken.
	CreateCredential(ctx context.Context, cred Credential) (Credential, error)

	// IssueOTP stores entry. With supersede set, every unconsumed entry of the
	// same username is consumed first, in the same transaction.
	IssueOTP(ctx context.Context, entry OTPEntry, supersede bool) error
	// FindUsableOTP returns the newest usable entry matching username and code,
	// or nil, nil.
	FindUsableOTP(ctx context.Context, username, code string, now time.Time) (*OTPEntry, error)
	// ConsumeOTP marks the entry consumed if nobody did so first.
	ConsumeOTP(ctx context.Context, id string, at time.Time) (bool, error)
	// ResetPassword consumes the entry and replaces the password hash in one
	// transaction. It reports false, and changes nothing, when the entry was
	// already consumed.
	ResetPassword(ctx context.Context, otpID, username, passwordHash string, at time.Time) (bool, error)
}
