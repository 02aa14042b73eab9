package service

import (
	"errors"
	"strings"
)

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrAccountDisabled = errors.New("account_disabled")
	ErrSessionExpired  = errors.New("session_expired")
	ErrInactiveProfile = errors.New("inactive_profile")
	ErrInvalidState    = errors.New("invalid_state")
	ErrMissingCode     = errors.New("missing_code")
	ErrMissingFields   = errors.New("missing_fields")
)

// PolicyError lists why a new password was refused before it reached the
// directory.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password policy: " + strings.Join(e.Violations, "; ")
}
