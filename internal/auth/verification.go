package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// Verification tokens are opaque random strings, not JWTs: they are stored
// on the user record and compared by equality, so structure buys nothing.
const (
	emailTokenBytes = 20
	phoneTokenBytes = 6
)

// NewEmailVerificationToken returns a fresh hex-encoded email token.
func NewEmailVerificationToken() (string, error) {
	return randomHex(emailTokenBytes)
}

// NewPhoneVerificationToken returns a fresh hex-encoded phone token, short
// enough to be typed from an SMS.
func NewPhoneVerificationToken() (string, error) {
	return randomHex(phoneTokenBytes)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
