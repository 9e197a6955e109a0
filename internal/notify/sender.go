package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers an OTP to its recipient.
type Sender interface {
	SendOTP(ctx context.Context, n OTP) error
}

// LogSender writes the passcode to the process log instead of mailing it.
type LogSender struct{}

func (LogSender) SendOTP(_ context.Context, n OTP) error {
	log.Printf("[MOCK EMAIL] OTP for %s: %s (expires %s)", n.Username, n.Code, n.ExpiresAt.Format(time.RFC3339))
	return nil
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	AppName  string
}

// SMTPSender mails passcodes through an authenticated SMTP relay.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender builds a sender. From defaults to User.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) SendOTP(_ context.Context, n OTP) error {
	if n.Email == "" {
		return fmt.Errorf("no email on file for %s", n.Username)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	return s.send(addr, auth, s.cfg.From, []string{n.Email}, s.message(n))
}

func (s *SMTPSender) message(n OTP) []byte {
	minutes := int(time.Until(n.ExpiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"Use the code below to reset your %s password:\n\n"+
			"Verification Code: %s\n\n"+
			"This code will expire in %d minutes. If you did not request it, ignore this email.\n",
		n.Username, s.cfg.AppName, n.Code, minutes)

	headers := []string{
		"From: " + s.cfg.From,
		"To: " + n.Email,
		fmt.Sprintf("Subject: %s - Your Password Reset Code", s.cfg.AppName),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}
	return []byte(strings.Join(headers, "\r\n"))
}
