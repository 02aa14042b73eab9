package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/domain"
	"github.com/aussiebroadwan/pwdself/internal/pwdself/store"
	"github.com/aussiebroadwan/pwdself/pkg/directory"
	"github.com/aussiebroadwan/pwdself/pkg/idx"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

// DefaultDisabledCodes are userAccountControl values AD reports for
// disabled accounts (ACCOUNTDISABLE combined with the usual flag sets).
var DefaultDisabledCodes = []int{514, 546, 66050, 66082, 262658, 262690, 328194, 328226}

// AccountService runs the reset and unlock flows against the directory.
// Every mutation first checks that the account exists and is not disabled.
type AccountService struct {
	Directory Directory
	Policy    PasswordPolicy

	// DisabledCodes are refused before any change. Empty falls back to the
	// ACCOUNTDISABLE bit.
	DisabledCodes []int

	// Audit is optional.
	Audit store.AuditEvents

	Now func() time.Time
}

// RequestMeta describes who asked, for the audit trail.
type RequestMeta struct {
	RemoteIP string
	Provider string
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AccountService) isDisabled(acct directory.Account) bool {
	if len(s.DisabledCodes) == 0 {
		return acct.Disabled()
	}
	for _, c := range s.DisabledCodes {
		if acct.UserAccountControl == c {
			return true
		}
	}
	return false
}

// ensureMutable refuses missing and disabled accounts.
func (s *AccountService) ensureMutable(ctx context.Context, username string) error {
	found, err := s.Directory.FindAccount(ctx, username)
	if err != nil {
		return err
	}
	if !found {
		return ErrAccountNotFound
	}

	acct, err := s.Directory.AccountStatus(ctx, username)
	if err != nil {
		if directory.IsCode(err, directory.CodeNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	log := slogx.FromContext(ctx)
	log.Debug("account status",
		"uac", acct.UserAccountControl,
		"locked", acct.Locked(),
		"password_expired", acct.PasswordExpired(),
	)
	if s.isDisabled(acct) {
		log.Warn("refusing change on disabled account", "uac", acct.UserAccountControl)
		return ErrAccountDisabled
	}
	return nil
}

// ResetPassword sets newPassword and then unlocks the account so the new
// password works straight away.
func (s *AccountService) ResetPassword(ctx context.Context, username, newPassword string, meta RequestMeta) error {
	err := s.resetPassword(ctx, username, "", newPassword)
	s.record(ctx, username, domain.ActionResetPassword, meta, err)
	return err
}

// UnlockAccount clears the lockout of username.
func (s *AccountService) UnlockAccount(ctx context.Context, username string, meta RequestMeta) error {
	ctx = slogx.WithUsername(ctx, username)

	err := s.ensureMutable(ctx, username)
	if err == nil {
		err = s.Directory.UnlockAccount(ctx, username)
	}
	s.record(ctx, username, domain.ActionUnlockAccount, meta, err)
	if err == nil {
		slogx.FromContext(ctx).Info("account unlocked")
	}
	return err
}

// ChangePassword proves knowledge of oldPassword with a bind, then runs the
// reset flow. account may be a sAMAccountName or a mail address.
func (s *AccountService) ChangePassword(ctx context.Context, account, oldPassword, newPassword string, meta RequestMeta) error {
	account = strings.TrimSpace(account)
	if account == "" || oldPassword == "" || newPassword == "" {
		return ErrMissingFields
	}

	username, err := s.Directory.ResolveUsername(ctx, account)
	if err != nil {
		if directory.IsCode(err, directory.CodeNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	err = s.Policy.Check(username, oldPassword, newPassword)
	if err == nil {
		err = s.Directory.Authenticate(slogx.WithUsername(ctx, username), username, oldPassword)
	}
	if err == nil {
		err = s.resetPassword(ctx, username, oldPassword, newPassword)
	}
	s.record(ctx, username, domain.ActionChangePassword, meta, err)
	return err
}

func (s *AccountService) resetPassword(ctx context.Context, username, oldPassword, newPassword string) error {
	ctx = slogx.WithUsername(ctx, username)
	log := slogx.FromContext(ctx)

	if strings.TrimSpace(username) == "" || newPassword == "" {
		return ErrMissingFields
	}
	if err := s.Policy.Check(username, oldPassword, newPassword); err != nil {
		return err
	}
	if err := s.ensureMutable(ctx, username); err != nil {
		return err
	}

	if err := s.Directory.ResetPassword(ctx, username, newPassword); err != nil {
		log.Warn("password reset failed", "error", err)
		return err
	}
	if err := s.Directory.UnlockAccount(ctx, username); err != nil {
		log.Error("password reset but unlock failed", "error", err)
		return fmt.Errorf("unlock after reset: %w", err)
	}

	log.Info("password reset")
	return nil
}

// record writes an audit event. Failures are logged and otherwise ignored.
func (s *AccountService) record(ctx context.Context, username string, action domain.AuditAction, meta RequestMeta, opErr error) {
	if s.Audit == nil {
		return
	}

	e := domain.AuditEvent{
		ID:        idx.New().String(),
		Username:  username,
		Action:    action,
		Outcome:   domain.OutcomeSuccess,
		Provider:  meta.Provider,
		RemoteIP:  meta.RemoteIP,
		CreatedAt: s.now(),
	}
	if opErr != nil {
		e.Outcome = domain.OutcomeFailure
		e.Detail = auditDetail(opErr)
	}

	if err := s.Audit.RecordAuditEvent(ctx, e); err != nil {
		slogx.FromContext(ctx).Error("failed to record audit event", "action", action, "error", err)
	}
}

// auditDetail is a short, secret-free failure reason.
func auditDetail(err error) string {
	var pe *PolicyError
	switch {
	case errors.As(err, &pe):
		return "policy"
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrAccountDisabled), errors.Is(err, ErrMissingFields):
		return err.Error()
	}
	var de *directory.Error
	if errors.As(err, &de) {
		return de.Op + ":" + de.Code.String()
	}
	return "error"
}
