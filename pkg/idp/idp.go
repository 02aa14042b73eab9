// Package idp exchanges scan-to-login authorization codes with the
// corporate messaging platforms (DingTalk, WeWork) for a user profile.
package idp

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderDingTalk = "dingtalk"
	ProviderWeWork   = "wework"
)

// ErrNoEmail is returned by Profile.Mail when neither the personal nor the
// corporate mail address is set.
var ErrNoEmail = errors.New("idp: profile has no email or corporate email")

// Provider turns a one-time code from the QR redirect into a profile.
type Provider interface {
	Name() string
	ExchangeCode(ctx context.Context, code string) (Profile, error)
	LoginParams(redirectURI, state string) LoginParams
}

// Profile is the subset of the platform's user record the service needs.
type Profile struct {
	UserID  string
	Name    string
	Email   string
	BizMail string
	Active  bool
}

// Mail returns Email when present, otherwise BizMail.
func (p Profile) Mail() (string, error) {
	if v := strings.TrimSpace(p.Email); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(p.BizMail); v != "" {
		return v, nil
	}
	return "", ErrNoEmail
}

// LoginParams is what the scan page needs to render the provider's QR login.
type LoginParams struct {
	Provider     string
	AppID        string
	AgentID      string
	RedirectURI  string
	State        string
	AuthorizeURL string
}

// Error reports a failed provider call. Code is the platform errcode, or 0
// for transport and decoding failures.
type Error struct {
	Provider string
	Op       string
	Code     int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("idp %s: %s: %v", e.Provider, e.Op, e.Err)
	default:
		return fmt.Sprintf("idp %s: %s: errcode %d: %s", e.Provider, e.Op, e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }
