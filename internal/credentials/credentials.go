// Package credentials hashes secrets, generates one-time passcodes and
// issues the signed session tokens carried in the jwt and adminJwt cookies.
package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for passwords and OTP hashes.
const BcryptCost = 10

// OTPWindow is how long a generated OTP stays valid.
const OTPWindow = 60 * time.Second

const (
	otpMin = 1000
	otpMax = 9999
)

// ErrSecretTooLong is returned by HashPassword for input over bcrypt's 72-byte limit.
var ErrSecretTooLong = bcrypt.ErrPasswordTooLong

// HashPassword returns the bcrypt hash of secret.
func HashPassword(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether secret matches hash.
func CheckPassword(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// GenerateOTP returns a 4-digit code drawn uniformly from [1000, 9999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}

// OTPExpired reports whether an OTP generated at generatedAt is no longer valid at now.
// The boundary itself counts as expired.
func OTPExpired(generatedAt, now time.Time) bool {
	return now.Sub(generatedAt) >= OTPWindow
}
