// Package errs is the error taxonomy shared by every core package and
// service handler. It generalizes the sentinel-error idiom the services
// already use (a bare `type forbiddenError struct{}` implementing error)
// into a single typed Error carrying a Kind, a machine-readable Code and
// an HTTP status, so a handler can translate any core error into the
// {error_code, message, trace_id} envelope with one switch.
package errs

import "fmt"

// Kind classifies an error for HTTP surfacing and retry behavior.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientBalance
	KindDailyLimitExceeded
	KindMonthlyLimitExceeded
	KindRateLimited
	KindAccountFrozen
	KindInvalidOtp
	KindChainErrorTransient
	KindChainErrorTerminal
	KindCryptoAuth
)

// HTTPStatus maps a Kind to the status code it surfaces as.
// ChainErrorTransient never reaches a handler directly (the chain client
// retries it internally); it defaults to 500 if ever surfaced by mistake.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindInsufficientBalance:
		return 400
	case KindDailyLimitExceeded, KindMonthlyLimitExceeded:
		return 400
	case KindRateLimited:
		return 429
	case KindAccountFrozen:
		return 403
	case KindInvalidOtp:
		return 401
	case KindChainErrorTerminal:
		return 503
	case KindCryptoAuth:
		return 500
	default:
		return 500
	}
}

// Code is the wire error_code string for a Kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case KindDailyLimitExceeded:
		return "DAILY_LIMIT_EXCEEDED"
	case KindMonthlyLimitExceeded:
		return "MONTHLY_LIMIT_EXCEEDED"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindAccountFrozen:
		return "ACCOUNT_FROZEN"
	case KindInvalidOtp:
		return "INVALID_OTP"
	case KindChainErrorTransient, KindChainErrorTerminal:
		return "CHAIN_ERROR"
	case KindCryptoAuth:
		return "INTERNAL_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is the concrete error type every core package returns for
// classified failures. Unclassified failures are wrapped as KindInternal
// by As, so a handler always gets a *Error back.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithErr attaches a wrapped cause to an existing classified error,
// returning a copy so the package-level sentinels stay immutable.
func (e *Error) WithErr(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// As extracts a *Error from err, classifying any unrecognized error as
// KindInternal so callers always get a surfaceable Kind.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errorsAs(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Validation, NotFound, InsufficientBalance etc. are constructor helpers
// used throughout core/payment, core/walletcrypto and the handlers.

func Validation(message string) *Error { return New(KindValidation, message) }
func NotFound(message string) *Error   { return New(KindNotFound, message) }

func InsufficientBalance(requested, available float64) *Error {
	return &Error{
		Kind:    KindInsufficientBalance,
		Message: fmt.Sprintf("requested %.6f, available %.6f", requested, available),
	}
}

func DailyLimitExceeded(message string) *Error   { return New(KindDailyLimitExceeded, message) }
func MonthlyLimitExceeded(message string) *Error { return New(KindMonthlyLimitExceeded, message) }
func RateLimited(message string) *Error          { return New(KindRateLimited, message) }
func AccountFrozen(message string) *Error        { return New(KindAccountFrozen, message) }
func InvalidOtp(message string) *Error           { return New(KindInvalidOtp, message) }

func ChainTransient(message string, err error) *Error {
	return Wrap(KindChainErrorTransient, message, err)
}

func ChainTerminal(message string, err error) *Error {
	return Wrap(KindChainErrorTerminal, message, err)
}

func CryptoAuth(message string) *Error { return New(KindCryptoAuth, message) }
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// Wallet-crypto specific sentinels (core/walletcrypto), all surfaced as
// CryptoAuth/Internal — the caller never sees these Kinds directly, only
// the generic 500; they exist so tests can assert on the exact failure mode.
var (
	ErrWalletInvalid      = New(KindCryptoAuth, "wallet payload invalid")
	ErrDecryptionFailed   = New(KindCryptoAuth, "decryption failed")
	ErrInvalidPayload     = New(KindCryptoAuth, "encrypted payload malformed")
	ErrUnsupportedVersion = New(KindCryptoAuth, "unsupported payload version")
	ErrUserMismatch       = New(KindCryptoAuth, "payload user_id does not match wallet")
	ErrKeyMismatch        = New(KindCryptoAuth, "rotated payload public key mismatch")
)
