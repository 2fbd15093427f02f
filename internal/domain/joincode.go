package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
)

const (
	JoinCodeLength   = 6
	joinCodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateJoinCode returns a fresh lowercase alphanumeric join code.
func GenerateJoinCode() (string, error) {
	b := make([]byte, JoinCodeLength)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// MatchJoinCode compares a user supplied code against the stored one,
// ignoring case and surrounding whitespace.
func MatchJoinCode(stored, supplied string) bool {
	supplied = strings.ToLower(strings.TrimSpace(supplied))
	if len(supplied) != JoinCodeLength || len(stored) != JoinCodeLength {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
