package httpapi

import (
	"errors"

	"campusauth/internal/account"
	"campusauth/internal/auth"
)

// count records the outcome of a flow on the counter for kind.
func (h *handler) count(kind string, err error) {
	m := h.deps.Metrics
	if m == nil {
		return
	}
	result := outcome(err)
	switch kind {
	case "login":
		m.Logins.WithLabelValues(result).Inc()
	case "signup":
		m.Signups.WithLabelValues(result).Inc()
	case "verify":
		m.OTPVerified.WithLabelValues(result).Inc()
	case "reset":
		m.PasswordResets.WithLabelValues(result).Inc()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrConflict),
		errors.Is(err, account.ErrNotFound),
		errors.Is(err, account.ErrInvalidOTP),
		errors.Is(err, auth.ErrPasswordTooLong):
		return "rejected"
	default:
		return "error"
	}
}
