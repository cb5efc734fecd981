package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/pkg/errors"
)

// sessionClaims is the payload of the session cookie: only the session
// reference, everything else stays server-side.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionCookieCodec turns session IDs into tamper-evident cookie values.
type SessionCookieCodec struct {
	signer  Signer
	nowTime func() time.Time
}

// NewSessionCookieCodec creates a codec; nowFunc may be nil to use time.Now.
func NewSessionCookieCodec(signer Signer, nowFunc func() time.Time) *SessionCookieCodec {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &SessionCookieCodec{signer: signer, nowTime: nowFunc}
}

// Encode signs sessionID into a cookie value valid until expiresAt.
func (c *SessionCookieCodec) Encode(sessionID string, expiresAt time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("session ID is required")
	}
	now := c.nowTime()
	return c.signer.Sign(sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

// Decode verifies a cookie value and returns the session ID it carries.
func (c *SessionCookieCodec) Decode(value string) (string, error) {
	if value == "" {
		return "", apperrors.ErrInvalidSessionCookie
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(value, &claims, c.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowTime),
	)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidSessionCookie, "%v", err)
	}
	if claims.SessionID == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidSessionCookie, "missing sid claim")
	}
	return claims.SessionID, nil
}
