package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"campusauth/internal/auth"
	"campusauth/internal/notify"
)

type capturePublisher struct {
	mu   sync.Mutex
	sent []notify.OTP
}

func (c *capturePublisher) PublishOTP(_ context.Context, n notify.OTP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
}

func (c *capturePublisher) last(t *testing.T) notify.OTP {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("no otp published")
	}
	return c.sent[len(c.sent)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *Service
	repo  *MemoryRepository
	pub   *capturePublisher
	clock *clock
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	repo := NewMemoryRepository()
	pub := &capturePublisher{}
	clk := &clock{now: time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)}
	signer := auth.NewSigner("test-key", "campus-test", 7*24*time.Hour)

	svc := NewService(repo, auth.NewBcryptHasher(bcrypt.MinCost), signer, pub, opts)
	svc.now = clk.Now
	return fixture{svc: svc, repo: repo, pub: pub, clock: clk}
}

func (f fixture) signup(t *testing.T, username, password, role string) Credential {
	t.Helper()
	cred, err := f.svc.Signup(context.Background(), SignupInput{Username: username, Password: password, Role: role})
	if err != nil {
		t.Fatalf("Signup(%s): %v", username, err)
	}
	return cred
}

func (f fixture) requestCode(t *testing.T, username string) string {
	t.Helper()
	if err := f.svc.RequestOTP(context.Background(), username); err != nil {
		t.Fatalf("RequestOTP(%s): %v", username, err)
	}
	return f.pub.last(t).Code
}

func TestLogin(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")

	sess, err := f.svc.Login(context.Background(), "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Username != "alice" || sess.Role != RoleStudent || sess.Token.Value == "" {
		t.Fatalf("session = %+v", sess)
	}
	if got := sess.Token.ExpiresAt.Sub(sess.Token.IssuedAt); got != 7*24*time.Hour {
		t.Fatalf("token lifetime = %v, want 168h", got)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	f.signup(t, "carol", "secret1", "teacher")
	f.repo.SetDisabled("carol", true)

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "alice", "wrong-pass"},
		{"unknown user", "nobody", "secret1"},
		{"disabled user", "carol", "secret1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.username, tt.password)
			if err != ErrInvalidCredentials {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestSignupConflictLeavesCredentialUntouched(t *testing.T) {
	f := newFixture(t, Options{})
	original := f.signup(t, "bob", "secret1", "")

	_, err := f.svc.Signup(context.Background(), SignupInput{Username: "bob", Password: "another1", Role: "admin"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	stored, _ := f.repo.GetCredential(context.Background(), "bob")
	if stored.PasswordHash != original.PasswordHash || stored.Role != RoleStudent {
		t.Fatalf("credential changed: %+v", stored)
	}
	if _, err := f.svc.Login(context.Background(), "bob", "secret1"); err != nil {
		t.Fatalf("original password no longer works: %v", err)
	}
}

func TestSignupStoresRoleAndEmail(t *testing.T) {
	f := newFixture(t, Options{})
	cred, err := f.svc.Signup(context.Background(), SignupInput{Username: "hod1", Password: "secret1", Role: "HOD", Email: "hod@example.com"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if cred.Role != RoleHOD || cred.Email == nil || *cred.Email != "hod@example.com" {
		t.Fatalf("cred = %+v", cred)
	}
	if cred.PasswordHash == "secret1" {
		t.Fatal("password stored in clear")
	}
}

func TestRequestOTPUnknownUser(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.svc.RequestOTP(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := f.repo.OTPs("ghost"); len(got) != 0 {
		t.Fatalf("entries = %v, want none", got)
	}
	if len(f.pub.sent) != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestRequestOTPIssuesSixDigitCode(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")

	if len(code) != OTPLength {
		t.Fatalf("code %q has %d digits", code, len(code))
	}
	entries := f.repo.OTPs("alice")
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if want := f.clock.Now().Add(10 * time.Minute); !entries[0].ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", entries[0].ExpiresAt, want)
	}
}

func TestVerifyOTPIsSingleUse(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")

	if err := f.svc.VerifyOTP(context.Background(), "alice", code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := f.svc.VerifyOTP(context.Background(), "alice", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("second verify err = %v, want ErrInvalidOTP", err)
	}
}

func TestVerifyOTPExpiry(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")

	f.clock.Advance(10*time.Minute + time.Millisecond)
	if err := f.svc.VerifyOTP(context.Background(), "alice", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("err = %v, want ErrInvalidOTP", err)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	f.svc.newCode = func() (string, error) { return "123456", nil }
	f.requestCode(t, "alice")

	if err := f.svc.VerifyOTP(context.Background(), "alice", "654321"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("err = %v, want ErrInvalidOTP", err)
	}
	if err := f.svc.VerifyOTP(context.Background(), "bob", "123456"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("err = %v, want ErrInvalidOTP", err)
	}
}

func TestSupersedePrior(t *testing.T) {
	codes := []string{"111111", "222222"}
	for _, tc := range []struct {
		supersede bool
		firstOK   bool
	}{
		{supersede: true, firstOK: false},
		{supersede: false, firstOK: true},
	} {
		f := newFixture(t, Options{SupersedePrior: tc.supersede})
		f.signup(t, "alice", "secret1", "")
		i := 0
		f.svc.newCode = func() (string, error) { c := codes[i]; i++; return c, nil }
		f.requestCode(t, "alice")
		f.clock.Advance(time.Second)
		f.requestCode(t, "alice")

		err := f.svc.VerifyOTP(context.Background(), "alice", "111111")
		if (err == nil) != tc.firstOK {
			t.Fatalf("supersede=%v: first code err = %v", tc.supersede, err)
		}
		if err := f.svc.VerifyOTP(context.Background(), "alice", "222222"); err != nil {
			t.Fatalf("supersede=%v: latest code: %v", tc.supersede, err)
		}
	}
}

func TestVerifyOTPPicksNewestDuplicate(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	f.svc.newCode = func() (string, error) { return "777777", nil }
	f.requestCode(t, "alice")
	f.clock.Advance(time.Minute)
	f.requestCode(t, "alice")

	if err := f.svc.VerifyOTP(context.Background(), "alice", "777777"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	entries := f.repo.OTPs("alice")
	if entries[0].ConsumedAt != nil || entries[1].ConsumedAt == nil {
		t.Fatalf("expected newest entry consumed, got %+v", entries)
	}
}

func TestConcurrentVerifyAcceptsOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.VerifyOTP(context.Background(), "alice", code); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")

	if err := f.svc.ResetPassword(context.Background(), "alice", code, "newpass1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "alice", "secret1"); err != ErrInvalidCredentials {
		t.Fatalf("old password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.svc.Login(context.Background(), "alice", "newpass1"); err != nil {
		t.Fatalf("new password: %v", err)
	}
	if err := f.svc.ResetPassword(context.Background(), "alice", code, "third333"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("reuse err = %v, want ErrInvalidOTP", err)
	}
}

func TestResetPasswordAfterVerifyFails(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")

	if err := f.svc.VerifyOTP(context.Background(), "alice", code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := f.svc.ResetPassword(context.Background(), "alice", code, "newpass1"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("err = %v, want ErrInvalidOTP", err)
	}
	if _, err := f.svc.Login(context.Background(), "alice", "secret1"); err != nil {
		t.Fatalf("old password should still work: %v", err)
	}
}

type failingResetRepo struct {
	*MemoryRepository
}

func (failingResetRepo) ResetPassword(context.Context, string, string, string, time.Time) (bool, error) {
	return false, errors.New("connection reset")
}

func TestResetPasswordStoreFailureLeavesStateIntact(t *testing.T) {
	f := newFixture(t, Options{})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")
	f.svc.repo = failingResetRepo{f.repo}

	err := f.svc.ResetPassword(context.Background(), "alice", code, "newpass1")
	if err == nil || errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("err = %v, want store failure", err)
	}
	if _, err := f.svc.Login(context.Background(), "alice", "secret1"); err != nil {
		t.Fatalf("old password should still work: %v", err)
	}
	if entries := f.repo.OTPs("alice"); entries[0].ConsumedAt != nil {
		t.Fatal("otp must remain unconsumed")
	}
}

type failingIssueRepo struct {
	*MemoryRepository
}

func (failingIssueRepo) IssueOTP(context.Context, OTPEntry, bool) error {
	return errors.New("connection reset")
}

func TestRequestOTPStoreFailureKeepsPriorCode(t *testing.T) {
	f := newFixture(t, Options{SupersedePrior: true})
	f.signup(t, "alice", "secret1", "")
	code := f.requestCode(t, "alice")
	f.svc.repo = failingIssueRepo{f.repo}

	if err := f.svc.RequestOTP(context.Background(), "alice"); err == nil {
		t.Fatal("expected store failure")
	}
	if n := len(f.pub.sent); n != 1 {
		t.Fatalf("published %d notifications, want 1", n)
	}

	f.svc.repo = f.repo
	if err := f.svc.VerifyOTP(context.Background(), "alice", code); err != nil {
		t.Fatalf("prior code should still verify: %v", err)
	}
}

func TestRequestOTPCarriesEmail(t *testing.T) {
	f := newFixture(t, Options{})
	if _, err := f.svc.Signup(context.Background(), SignupInput{Username: "alice", Password: "secret1", Email: "alice@example.com"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	f.requestCode(t, "alice")
	if got := f.pub.last(t).Email; got != "alice@example.com" {
		t.Fatalf("Email = %q", got)
	}
}

func TestGenerateOTP(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if len(code) != OTPLength {
			t.Fatalf("code %q has wrong length", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q is not numeric", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes are not random")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{"student", "Teacher", "HOD", "admin"} {
		if !ValidRole(r) {
			t.Fatalf("ValidRole(%q) = false", r)
		}
	}
	if ValidRole("janitor") {
		t.Fatal("ValidRole(janitor) = true")
	}
}
