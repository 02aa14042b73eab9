package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/pwdself/pkg/codecache"
	"github.com/aussiebroadwan/pwdself/pkg/cryptox"
	"github.com/aussiebroadwan/pwdself/pkg/idp"
	"github.com/aussiebroadwan/pwdself/pkg/jwtx"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

const (
	NextReset  = "reset"
	NextUnlock = "unlock"
)

// HandoffService turns a QR scan into a short-lived right to act on one
// directory account.
type HandoffService struct {
	Provider  idp.Provider
	Directory Directory
	Cache     codecache.Cache
	State     *jwtx.StateSigner

	// RedirectURL is where the provider sends the user after the scan.
	RedirectURL string

	CodeTTL  time.Duration
	StateTTL time.Duration
}

// ScanRequest is everything the scan page renders.
type ScanRequest struct {
	Login idp.LoginParams
	State string
}

// Handoff is the outcome of a successful exchange.
type Handoff struct {
	Username string
	Code     string
	Next     string
	Profile  idp.Profile
}

func (s *HandoffService) codeTTL() time.Duration {
	if s.CodeTTL <= 0 {
		return codecache.DefaultTTL
	}
	return s.CodeTTL
}

// BeginScan mints the signed state for a new scan. next selects the form
// shown after the redirect.
func (s *HandoffService) BeginScan(ctx context.Context, next string) (ScanRequest, error) {
	if next != NextUnlock {
		next = NextReset
	}

	state, err := s.State.Issue(s.Provider.Name(), next, s.StateTTL)
	if err != nil {
		return ScanRequest{}, fmt.Errorf("sign scan state: %w", err)
	}

	slogx.FromContext(ctx).Debug("scan started", "provider", s.Provider.Name(), "next", next)
	return ScanRequest{
		Login: s.Provider.LoginParams(s.RedirectURL, state),
		State: state,
	}, nil
}

// Exchange validates the redirect, trades code for a profile, maps the
// profile to an account and binds that account to the code for CodeTTL.
func (s *HandoffService) Exchange(ctx context.Context, code, state string) (Handoff, error) {
	log := slogx.FromContext(ctx)

	if strings.TrimSpace(code) == "" {
		return Handoff{}, ErrMissingCode
	}

	claims, err := s.State.Verify(state)
	if err != nil {
		log.Warn("scan state rejected", "error", err)
		return Handoff{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.Provider != s.Provider.Name() {
		log.Warn("scan state issued for another provider", "state_provider", claims.Provider)
		return Handoff{}, ErrInvalidState
	}

	profile, err := s.Provider.ExchangeCode(ctx, code)
	if err != nil {
		log.Error("code exchange failed", "provider", s.Provider.Name(), "error", err)
		return Handoff{}, err
	}
	if !profile.Active {
		log.Warn("inactive profile scanned", "userid", profile.UserID)
		return Handoff{}, ErrInactiveProfile
	}

	mail, err := profile.Mail()
	if err != nil {
		return Handoff{}, err
	}

	username, err := s.Directory.ResolveUsername(ctx, mail)
	if err != nil {
		log.Warn("no directory account for profile mail", "mail", mail, "error", err)
		return Handoff{}, err
	}

	if err := s.Cache.Set(ctx, cacheKey(username), cryptox.FingerprintToken(code), s.codeTTL()); err != nil {
		return Handoff{}, fmt.Errorf("cache handoff: %w", err)
	}

	log.Info("scan handoff bound", "username", username, "userid", profile.UserID)
	return Handoff{Username: username, Code: code, Next: claims.Next, Profile: profile}, nil
}

// Verify reports ErrSessionExpired unless code is the one bound to username
// and the binding is still live.
func (s *HandoffService) Verify(ctx context.Context, username, code string) error {
	if strings.TrimSpace(username) == "" || code == "" {
		return ErrSessionExpired
	}

	fingerprint, ok, err := s.Cache.Get(ctx, cacheKey(username))
	if err != nil {
		return fmt.Errorf("read handoff: %w", err)
	}
	if !ok || !cryptox.MatchFingerprint(code, fingerprint) {
		slogx.FromContext(ctx).Warn("handoff verification failed", "username", username, "cached", ok)
		return ErrSessionExpired
	}
	return nil
}

// cacheKey folds case; AD account names are case-insensitive.
func cacheKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
