package slug

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

var maxIdx = big.NewInt(int64(len(charset)))

var validRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Generate returns a random 8-character lowercase alphanumeric slug.
func Generate() (string, error) {
	b := make([]byte, 8)
	for i := range b {
		n, err := rand.Int(rand.Reader, maxIdx)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}

// Valid reports whether s is a usable project slug: lowercase alphanumerics
// and single hyphens, 1-64 characters.
func Valid(s string) bool {
	return len(s) >= 1 && len(s) <= 64 && validRe.MatchString(s)
}

// Normalize lowercases a user-supplied slug and trims surrounding whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
