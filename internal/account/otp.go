package account

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPLength is the number of digits in an issued passcode.
const OTPLength = 6

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP returns a uniformly random six-digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
