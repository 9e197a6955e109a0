// Package notify carries user-facing notifications from request handlers to
// the delivery worker through the job queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"campusauth/internal/queue"
)

// MessageTypeOTP tags queue messages that carry a one-time passcode.
const MessageTypeOTP = "notification.otp"

// OTP is a one-time passcode addressed to an account holder.
type OTP struct {
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher hands notifications to the queue. Delivery is best effort: callers
// are never told whether the enqueue worked.
type Publisher struct {
	q queue.Queue
}

// NewPublisher wraps q. A nil queue drops every notification.
func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// PublishOTP enqueues an OTP notification. Failures are logged and swallowed.
func (p *Publisher) PublishOTP(ctx context.Context, n OTP) {
	if p == nil || p.q == nil {
		log.Printf("notify: no queue configured, dropping otp for %s", n.Username)
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("notify: encode otp for %s: %v", n.Username, err)
		return
	}
	if err := p.q.Publish(ctx, queue.Message{Type: MessageTypeOTP, Body: body}); err != nil {
		log.Printf("notify: enqueue otp for %s: %v", n.Username, err)
	}
}

// DecodeOTP parses the body of an OTP queue message.
func DecodeOTP(msg queue.Message) (OTP, error) {
	if msg.Type != MessageTypeOTP {
		return OTP{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var n OTP
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		return OTP{}, fmt.Errorf("decode otp: %w", err)
	}
	if n.Username == "" || n.Code == "" {
		return OTP{}, fmt.Errorf("decode otp: missing username or code")
	}
	return n, nil
}
