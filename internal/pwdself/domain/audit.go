package domain

import "time"

// AuditAction names a self-service mutation.
type AuditAction string

const (
	ActionResetPassword  AuditAction = "reset_password"
	ActionUnlockAccount  AuditAction = "unlock_account"
	ActionChangePassword AuditAction = "change_password"
)

// AuditOutcome is the result of an attempted mutation.
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
)

// AuditEvent records one attempt to change an account. Passwords and
// authorization codes are never part of it.
type AuditEvent struct {
	ID        string
	Username  string
	Action    AuditAction
	Outcome   AuditOutcome
	Detail    string
	Provider  string // identity provider used, empty for old-password changes
	RemoteIP  string
	CreatedAt time.Time
}
