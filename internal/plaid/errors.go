package plaid

import (
	"errors"
	"fmt"
)

// ErrorKind separates token-level rejections from service-level
// failures so callers can log differentiated diagnostics even where
// both are handled the same way.
type ErrorKind string

const (
	// KindInvalidToken means Plaid rejected the token itself
	// (expired, already exchanged, malformed).
	KindInvalidToken ErrorKind = "invalid_token"
	// KindUnavailable means the Plaid API could not be reached or
	// failed internally; the same call may succeed on retry.
	KindUnavailable ErrorKind = "unavailable"
)

// TokenExchangeError is returned by ExchangePublicToken and RemoveItem
// when the Plaid API call fails.
type TokenExchangeError struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *TokenExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("plaid %s: %s (%s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("plaid %s: %s", e.Kind, e.Message)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.cause
}

func invalidTokenError(code, message string) *TokenExchangeError {
	return &TokenExchangeError{Kind: KindInvalidToken, Code: code, Message: message}
}

func unavailableError(message string, cause error) *TokenExchangeError {
	return &TokenExchangeError{Kind: KindUnavailable, Message: message, cause: cause}
}

// IsInvalidToken reports whether err is a token-level rejection.
func IsInvalidToken(err error) bool {
	var exchErr *TokenExchangeError
	return errors.As(err, &exchErr) && exchErr.Kind == KindInvalidToken
}

// IsUnavailable reports whether err is a service-level failure.
func IsUnavailable(err error) bool {
	var exchErr *TokenExchangeError
	return errors.As(err, &exchErr) && exchErr.Kind == KindUnavailable
}
