package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
	"github.com/aussiebroadwan/pwdself/pkg/directory"
	"github.com/aussiebroadwan/pwdself/pkg/idp"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

// renderError maps a flow error to a message page. retry is offered for
// errors the user can fix by resubmitting the form; the rest point home or
// back to the scan.
func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, err error, retry Button) {
	log := slogx.FromContext(r.Context())

	var (
		pe *service.PolicyError
		de *directory.Error
		ie *idp.Error
	)

	switch {
	case errors.As(err, &pe):
		p.message(w, r, http.StatusBadRequest, "The new password was not accepted.", retry, pe.Violations...)

	case errors.Is(err, service.ErrMissingFields):
		p.message(w, r, http.StatusBadRequest, "Please fill in every field.", retry)

	case errors.Is(err, service.ErrSessionExpired):
		p.message(w, r, http.StatusUnauthorized, "Your authorization has expired. Please scan again.", p.reauthButton())

	case errors.Is(err, service.ErrMissingCode):
		p.message(w, r, http.StatusBadRequest, "The authorization code is missing or has expired. Please scan again.", p.reauthButton())

	case errors.Is(err, service.ErrInvalidState):
		p.message(w, r, http.StatusBadRequest, "This sign-in link is not valid any more. Please scan again.", p.reauthButton())

	case errors.Is(err, service.ErrInactiveProfile):
		p.message(w, r, http.StatusForbidden,
			"Your "+p.ScanApp+" account is not active or you may have left the organisation.", p.homeButton())

	case errors.Is(err, idp.ErrNoEmail):
		p.message(w, r, http.StatusUnprocessableEntity,
			"Your "+p.ScanApp+" profile has no mail address. Please ask HR to complete it.", p.reauthButton())

	case errors.Is(err, service.ErrAccountNotFound):
		p.message(w, r, http.StatusNotFound, "The account does not exist in the directory. Please check the account name.", p.homeButton())

	case errors.Is(err, service.ErrAccountDisabled):
		p.message(w, r, http.StatusForbidden, "This account is disabled. Please ask HR to confirm the account is correct.", p.homeButton())

	case errors.As(err, &ie):
		log.Error("identity provider call failed", "provider", ie.Provider, "op", ie.Op, "errcode", ie.Code, "error", err)
		p.message(w, r, http.StatusBadGateway,
			"Could not confirm your identity with "+p.ScanApp+". Please scan again.", p.reauthButton())

	case errors.As(err, &de):
		p.renderDirectoryError(w, r, de, retry)

	default:
		log.Error("unhandled error", "error", err)
		p.message(w, r, http.StatusInternalServerError, "Something went wrong. Please contact IT.", p.homeButton())
	}
}

func (p *Pages) renderDirectoryError(w http.ResponseWriter, r *http.Request, de *directory.Error, retry Button) {
	status := http.StatusInternalServerError
	btn := p.homeButton()

	switch de.Code {
	case directory.CodeNotFound:
		status, btn = http.StatusNotFound, p.reauthButton()
	case directory.CodeInvalidCredentials:
		status, btn = http.StatusUnauthorized, retry
	case directory.CodePolicyViolation:
		status, btn = http.StatusBadRequest, retry
	case directory.CodeLocked:
		status, btn = http.StatusForbidden, Button{URL: p.HomeURL + "/auth?next=unlock", Label: "Unlock with " + p.ScanApp}
	case directory.CodeDisabled, directory.CodePasswordExpired, directory.CodeAccountExpired, directory.CodeMustChangePassword:
		status = http.StatusForbidden
	case directory.CodeTransport:
		status = http.StatusServiceUnavailable
	default:
		slogx.FromContext(r.Context()).Error("directory operation failed", "op", de.Op, "code", de.Code.String(), "error", de)
	}

	p.message(w, r, status, de.Message(), btn)
}
