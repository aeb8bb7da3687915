package account

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrNoEmptyString guards helpers that refuse empty input
var ErrNoEmptyString = errors.New("value should not be an empty string")

// ErrMismatchedHashAndPassword given password does not match stored hash
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrTooManyLoginAttempts user exceeded the login attempt budget for the window
var ErrTooManyLoginAttempts = errors.New("too many login attempts")

// Text codes surfaced to transport layers so they can map failures without
// string matching.
const (
	TextCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	TextCodeActivationInvalid    = "ACTIVATION_TOKEN_INVALID"
	TextCodeResetTokenNotFound   = "RESET_TOKEN_NOT_FOUND"
	TextCodeEmailDispatchFailed  = "EMAIL_DISPATCH_FAILED"
	TextCodeEmailNotFound        = "EMAIL_NOT_FOUND"
	TextCodeUserNotActivated     = "USER_NOT_ACTIVATED"
)

// ErrAuthenticationFailed covers every session token rejection: unknown,
// expired, or malformed. Callers degrade the request to anonymous, they never
// learn which case it was.
var ErrAuthenticationFailed = goerrors.New("invalid or expired session token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeAuthenticationFailed)

// ErrActivationTokenInvalid is returned when an activation secret is unknown
// or was already consumed.
var ErrActivationTokenInvalid = goerrors.New("invalid or already used activation token", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeActivationInvalid)

// ErrResetTokenNotFound is returned when a password reset secret is unknown
// or was already consumed.
var ErrResetTokenNotFound = goerrors.New("invalid or already used password reset token", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeResetTokenNotFound)

// ErrEmailNotFound no account matches the address on a reset request
var ErrEmailNotFound = goerrors.New("no account matches the given email", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeEmailNotFound)

// ErrEmailDispatchFailed the email collaborator rejected or errored. The core
// does not retry; registration compensates by rolling back, reset-request
// does not.
var ErrEmailDispatchFailed = goerrors.New("failed to dispatch notification email", goerrors.CategoryOperation).
	WithTextCode(TextCodeEmailDispatchFailed)

// ErrUserNotActivated login attempted before the account was activated
var ErrUserNotActivated = goerrors.New("account has not been activated", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUserNotActivated)

// IsAuthenticationFailure will check for rejected session tokens
func IsAuthenticationFailure(err error) bool {
	return hasTextCode(err, TextCodeAuthenticationFailed)
}

// IsEmailDispatchFailure will check for email collaborator failures
func IsEmailDispatchFailure(err error) bool {
	return hasTextCode(err, TextCodeEmailDispatchFailed)
}

// IsNotFoundFailure will check for unknown email or consumed secrets
func IsNotFoundFailure(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
