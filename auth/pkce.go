package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

const (
	codeVerifierBytes = 32 // 43 characters once encoded, the RFC 7636 minimum
	stateBytes        = 32
)

// GenerateRandomString returns n bytes from crypto/rand as unpadded base64url.
func GenerateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewCodeVerifier returns a fresh PKCE code verifier.
func NewCodeVerifier() (string, error) {
	return GenerateRandomString(codeVerifierBytes)
}

// NewState returns an opaque, single-use state token.
func NewState() (string, error) {
	return GenerateRandomString(stateBytes)
}

// CodeChallengeS256 derives the S256 code challenge for verifier.
func CodeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
