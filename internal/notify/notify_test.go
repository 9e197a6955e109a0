package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"campusauth/internal/queue"
)

type failingQueue struct{}

func (failingQueue) Publish(context.Context, queue.Message) error { return errors.New("redis down") }
func (failingQueue) Consume(context.Context) (<-chan queue.Message, error) {
	return nil, errors.New("redis down")
}

type recordingSender struct {
	mu   sync.Mutex
	sent []OTP
}

func (r *recordingSender) SendOTP(_ context.Context, n OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func TestPublishOTPThenDecode(t *testing.T) {
	q := queue.NewInMemory(2)
	p := NewPublisher(q)
	expires := time.Date(2024, 9, 1, 10, 10, 0, 0, time.UTC)

	p.PublishOTP(context.Background(), OTP{Username: "alice", Email: "a@example.com", Code: "123456", ExpiresAt: expires})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, _ := q.Consume(ctx)
	msg := <-msgs

	n, err := DecodeOTP(msg)
	if err != nil {
		t.Fatalf("DecodeOTP: %v", err)
	}
	if n.Username != "alice" || n.Code != "123456" || !n.ExpiresAt.Equal(expires) {
		t.Fatalf("decoded = %+v", n)
	}
}

func TestPublishOTPSwallowsFailures(t *testing.T) {
	NewPublisher(failingQueue{}).PublishOTP(context.Background(), OTP{Username: "alice", Code: "1"})
	NewPublisher(nil).PublishOTP(context.Background(), OTP{Username: "alice", Code: "1"})
	var p *Publisher
	p.PublishOTP(context.Background(), OTP{Username: "alice", Code: "1"})
}

func TestDecodeOTPRejectsBadMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  queue.Message
	}{
		{"wrong type", queue.Message{Type: "checkin", Body: []byte(`{}`)}},
		{"bad json", queue.Message{Type: MessageTypeOTP, Body: []byte(`{`)}},
		{"missing code", queue.Message{Type: MessageTypeOTP, Body: []byte(`{"username":"alice"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeOTP(tt.msg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDispatchDeliversValidMessages(t *testing.T) {
	ch := make(chan queue.Message, 3)
	ch <- queue.Message{Type: MessageTypeOTP, Body: []byte(`{"username":"alice","code":"111111"}`)}
	ch <- queue.Message{Type: MessageTypeOTP, Body: []byte(`garbage`)}
	ch <- queue.Message{Type: "other", Body: []byte(`{}`)}
	close(ch)

	s := &recordingSender{}
	Dispatch(context.Background(), ch, s)

	if len(s.sent) != 1 || s.sent[0].Code != "111111" {
		t.Fatalf("sent = %+v", s.sent)
	}
}

func TestSMTPSender(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, User: "noreply@example.com", AppName: "Campus"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := s.SendOTP(context.Background(), OTP{Username: "alice", Code: "123456"}); err == nil {
		t.Fatal("expected error without email")
	}

	n := OTP{Username: "alice", Email: "alice@example.com", Code: "123456", ExpiresAt: time.Now().Add(10 * time.Minute)}
	if err := s.SendOTP(context.Background(), n); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "noreply@example.com" {
		t.Fatalf("addr=%q from=%q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	if !strings.Contains(string(gotMsg), "Verification Code: 123456") {
		t.Fatalf("message missing code:\n%s", gotMsg)
	}
}

func TestStartDeliversPublishedOTPs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := queue.NewInMemory(4)
	s := &recordingSender{}

	if err := Start(ctx, q, s); err != nil {
		t.Fatalf("Start: %v", err)
	}
	NewPublisher(q).PublishOTP(ctx, OTP{Username: "alice", Code: "654321"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.sent)
		s.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("otp was not delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.sent[0].Code != "654321" {
		t.Fatalf("sent = %+v", s.sent)
	}
}

func TestStartReportsConsumeError(t *testing.T) {
	if err := Start(context.Background(), failingQueue{}, LogSender{}); err == nil {
		t.Fatal("expected error")
	}
}
