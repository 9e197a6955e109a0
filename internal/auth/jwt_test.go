package auth

import (
	"testing"
	"time"
)

func fixedSigner(now time.Time) *Signer {
	s := NewSigner("test-key", "campus-test", 7*24*time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func TestIssueParseRoundTrip(t *testing.T) {
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	s := fixedSigner(now)

	tok, err := s.Issue(Identity{ID: "id-1", Username: "alice", Role: "student"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !tok.IssuedAt.Equal(now) {
		t.Fatalf("IssuedAt = %v, want %v", tok.IssuedAt, now)
	}

	claims, err := s.Parse(tok.Value)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.ID != "id-1" || claims.Username != "alice" || claims.Role != "student" {
		t.Fatalf("claims = %+v", claims)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != 7*24*time.Hour {
		t.Fatalf("exp - iat = %v, want %v", got, 7*24*time.Hour)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	s := fixedSigner(now)
	tok, err := s.Issue(Identity{ID: "id-1", Username: "alice", Role: "student"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s.now = func() time.Time { return now.Add(7*24*time.Hour + time.Second) }
	if _, err := s.Parse(tok.Value); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsForeignKeyAndIssuer(t *testing.T) {
	now := time.Now()
	tok, err := fixedSigner(now).Issue(Identity{ID: "id-1", Username: "alice", Role: "admin"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewSigner("other-key", "campus-test", time.Hour)
	if _, err := other.Parse(tok.Value); err == nil {
		t.Fatal("expected signature mismatch")
	}

	wrongIssuer := NewSigner("test-key", "someone-else", time.Hour)
	if _, err := wrongIssuer.Parse(tok.Value); err == nil {
		t.Fatal("expected issuer mismatch")
	}

	if _, err := fixedSigner(now).Parse("not-a-token"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}

func TestNewSignerDefaultsTTL(t *testing.T) {
	s := NewSigner("k", "", 0)
	if s.ttl != 7*24*time.Hour {
		t.Fatalf("ttl = %v, want 168h", s.ttl)
	}
}
