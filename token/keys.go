package token

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	derivedKeyLength     = 32
	sessionCookieKeyInfo = "marketplace-auth/session-cookie/v1"
)

// DeriveKey expands secret into a 32 byte HMAC key bound to info.
func DeriveKey(secret, info string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("secret is required")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	key := make([]byte, derivedKeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrap(err, "derive key")
	}
	return key, nil
}
