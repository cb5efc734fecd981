package errors

import (
	"errors"
	"fmt"
)

// Common error types for the marketplace auth server
var (
	// Pending authorization (state/PKCE) errors
	ErrPendingAuthorizationNotFound = errors.New("pending authorization not found")
	ErrPendingAuthorizationExpired  = errors.New("pending authorization expired")
	ErrEmptyState                   = errors.New("state cannot be empty")
	ErrEmptyCodeVerifier            = errors.New("code verifier cannot be empty")

	// Provider errors
	ErrTokenExchange       = errors.New("token exchange failed")
	ErrIDTokenVerification = errors.New("id token verification failed")
	ErrTokenRefresh        = errors.New("token refresh failed")
	ErrTokenRevocation     = errors.New("token revocation failed")

	// Session errors
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionPersistence    = errors.New("session persistence failed")
	ErrInvalidSessionCookie  = errors.New("invalid session cookie")
	ErrNoRefreshToken        = errors.New("no refresh token available")
	ErrSessionUpdateConflict = errors.New("session update conflict")
	ErrSessionIDRequired     = errors.New("session ID is required")
	ErrSessionExists         = errors.New("session already exists")

	// Profile errors
	ErrInvalidRole = errors.New("invalid role")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return errors.Join(errs...)
}
