package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// Identity provider outcomes. ErrInvalidToken means the provider rejected
	// the token (or it was malformed) and retrying is pointless;
	// ErrProviderUnavailable means the provider could not be reached and the
	// caller may retry.
	ErrInvalidToken        = errors.New("invalid token")
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// OTP outcomes. Invalid and expired are deliberately the only two kinds
	// exposed; whether a code was never issued or simply wrong is not
	// disclosed.
	ErrOTPInvalid        = errors.New("invalid otp")
	ErrOTPExpired        = errors.New("otp expired")
	ErrOTPDeliveryFailed = errors.New("otp delivery failed")

	ErrInvalidTotpCode = errors.New("invalid totp code")
)
