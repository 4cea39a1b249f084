package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to user-facing replies without
// leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")

	// Issuance rejections, in the order they are checked.
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrAlreadyVerified    = errors.New("already verified with this email")
	ErrVerifiedOtherEmail = errors.New("already verified with a different email")
	ErrEmailClaimed       = errors.New("email already claimed")
	ErrDomainNotAllowed   = errors.New("email domain not allowed")

	// ErrAttemptRace means a concurrent issuance won the insert for the
	// same (user, guild) pair. The remediation is simply to retry.
	ErrAttemptRace = errors.New("verification already in progress")

	// ErrCodeInvalid covers wrong, expired and never-issued codes alike so
	// callers cannot tell which users have pending verifications.
	ErrCodeInvalid = errors.New("code invalid or expired")
)
