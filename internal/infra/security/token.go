package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// SessionTokenPrefix marks bearer tokens issued by this service.
const SessionTokenPrefix = "rs_"

const minTokenBytes = 16

// RandomTokenGenerator issues opaque session tokens of Size random bytes.
type RandomTokenGenerator struct {
	Size int
}

func (g RandomTokenGenerator) NewToken() (string, error) {
	size := g.Size
	if size < minTokenBytes {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: token entropy: %w", err)
	}
	return SessionTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// LooksLikeToken rejects strings that were never issued by NewToken without a
// store lookup.
func LooksLikeToken(token string) bool {
	rest, ok := strings.CutPrefix(token, SessionTokenPrefix)
	if !ok || len(rest) < base64.RawURLEncoding.EncodedLen(minTokenBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(rest)
	return err == nil
}
