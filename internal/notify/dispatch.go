package notify

import (
	"context"
	"log"

	"campusauth/internal/queue"
)

// Dispatch drains messages and delivers OTP notifications until the channel
// closes. Undeliverable messages are logged and dropped.
func Dispatch(ctx context.Context, messages <-chan queue.Message, sender Sender) {
	for msg := range messages {
		if msg.Type != MessageTypeOTP {
			log.Printf("notify: skipping message type %q", msg.Type)
			continue
		}
		n, err := DecodeOTP(msg)
		if err != nil {
			log.Printf("notify: %v", err)
			continue
		}
		if err := sender.SendOTP(ctx, n); err != nil {
			log.Printf("notify: deliver otp to %s failed: %v", n.Username, err)
			continue
		}
		log.Printf("notify: otp delivered to %s", n.Username)
	}
}

// Start consumes q and runs Dispatch in the background until ctx is done.
func Start(ctx context.Context, q queue.Queue, sender Sender) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	go Dispatch(ctx, messages, sender)
	return nil
}
