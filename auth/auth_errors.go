package auth

import "fmt"

// Callback error codes carried back to the storefront as ?error=<code>.
const (
	CodeInvalidCallback     = "invalid_callback"
	CodeInvalidState        = "invalid_state"
	CodeTokenExchangeFailed = "token_exchange_failed"
	CodeSessionError        = "session_error"
	CodeAuthInitFailed      = "auth_init_failed"
	CodeRateLimited         = "rate_limited"
)

// FlowError is a terminal failure of the browser sign-in flow. Code is what
// the storefront sees; Err is kept for logs.
type FlowError struct {
	Code string
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func flowError(code string, err error) *FlowError {
	return &FlowError{Code: code, Err: err}
}
