package account

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"campusauth/internal/auth"
	"campusauth/internal/notify"
)

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (auth.Token, error)
}

// OTPPublisher hands passcodes to the delivery pipeline.
type OTPPublisher interface {
	PublishOTP(ctx context.Context, n notify.OTP)
}

// Options tunes the OTP lifecycle.
type Options struct {
	OTPTTL time.Duration
	// SupersedePrior consumes a user's outstanding codes whenever a new one is
	// issued, so only the latest code is ever usable.
	SupersedePrior bool
}

// Session is the outcome of a successful login.
type Session struct {
	ID       string
	Username string
	Role     string
	Token    auth.Token
}

// SignupInput carries the fields accepted at signup.
type SignupInput struct {
	Username string
	Password string
	Role     string
	Email    string
}

// Service runs the login, signup and recovery flows.
type Service struct {
	repo      Repository
	hasher    auth.Hasher
	tokens    TokenIssuer
	publisher OTPPublisher
	opts      Options

	now     func() time.Time
	newCode func() (string, error)

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the flows to their collaborators.
func NewService(repo Repository, hasher auth.Hasher, tokens TokenIssuer, publisher OTPPublisher, opts Options) *Service {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	return &Service{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		publisher: publisher,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newCode:   GenerateOTP,
	}
}

// Login checks the password and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	cred, err := s.repo.GetCredential(ctx, username)
	if err != nil {
		return Session{}, err
	}
	if cred == nil || cred.IsDisabled {
		// burn the same bcrypt work as a real check
		_ = s.hasher.Compare(s.dummy(), password)
		return Session{}, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(cred.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(auth.Identity{ID: cred.ID, Username: cred.Username, Role: cred.Role})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{ID: cred.ID, Username: cred.Username, Role: cred.Role, Token: tok}, nil
}

// Signup creates a credential. Profile creation belongs to downstream services.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Credential, error) {
	existing, err := s.repo.GetCredential(ctx, in.Username)
	if err != nil {
		return Credential{}, err
	}
	if existing != nil {
		return Credential{}, ErrConflict
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password: %w", err)
	}

	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = RoleStudent
	}
	cred := Credential{Username: in.Username, PasswordHash: hash, Role: role}
	if email := strings.TrimSpace(in.Email); email != "" {
		cred.Email = &email
	}
	return s.repo.CreateCredential(ctx, cred)
}

// RequestOTP issues a passcode for username and queues it for delivery.
func (s *Service) RequestOTP(ctx context.Context, username string) error {
	cred, err := s.repo.GetCredential(ctx, username)
	if err != nil {
		return err
	}
	if cred == nil {
		return ErrNotFound
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	now := s.now()
	entry := OTPEntry{
		Username:  username,
		Code:      code,
		ExpiresAt: now.Add(s.opts.OTPTTL),
		CreatedAt: now,
	}

	if err := s.repo.IssueOTP(ctx, entry, s.opts.SupersedePrior); err != nil {
		return err
	}

	n := notify.OTP{Username: username, Code: code, ExpiresAt: entry.ExpiresAt}
	if cred.Email != nil {
		n.Email = *cred.Email
	}
	s.publisher.PublishOTP(ctx, n)
	return nil
}

// VerifyOTP redeems a passcode. A code verifies at most once.
func (s *Service) VerifyOTP(ctx context.Context, username, code string) error {
	now := s.now()
	entry, err := s.repo.FindUsableOTP(ctx, username, code, now)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrInvalidOTP
	}
	ok, err := s.repo.ConsumeOTP(ctx, entry.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOTP
	}
	return nil
}

// ResetPassword redeems a passcode and replaces the password in one step.
// It does not depend on an earlier VerifyOTP call.
func (s *Service) ResetPassword(ctx context.Context, username, code, newPassword string) error {
	now := s.now()
	entry, err := s.repo.FindUsableOTP(ctx, username, code, now)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrInvalidOTP
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ok, err := s.repo.ResetPassword(ctx, entry.ID, username, hash, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOTP
	}
	return nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equalizer")
		if err != nil {
			log.Printf("account: dummy hash failed: %v", err)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
