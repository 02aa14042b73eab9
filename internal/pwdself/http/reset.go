package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

// ResetPasswordHandler is the provider redirect target and the reset form.
type ResetPasswordHandler struct {
	Handoff  *service.HandoffService
	Accounts *service.AccountService
	Pages    *Pages
}

// HandleGet godoc
//
//	@Summary		Reset Password Form
//	@Description	Renders the reset form straight away when username and code are already bound in the cache.
//	@Description	Otherwise treats the request as the provider redirect and exchanges the code.
//	@Tags			Password
//	@Produce		html
//	@Param			code		query		string	true	"Provider authorization code"
//	@Param			state		query		string	false	"Signed state from the scan page"
//	@Param			username	query		string	false	"Username bound to the code"
//	@Success		200			{string}	string	"HTML page"
//	@Failure		401			{string}	string	"HTML message page"
//	@Failure		429			{string}	string	"HTML message page"
//	@Router			/resetPassword [get].
func (h *ResetPasswordHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	username := strings.TrimSpace(q.Get("username"))
	code := q.Get("code")

	if username != "" && code != "" {
		err := h.Handoff.Verify(ctx, username, code)
		if err == nil {
			h.Pages.render(w, r, http.StatusOK, "reset_password.html", h.Pages.handoffPage(username, code))
			return
		}
		if !errors.Is(err, service.ErrSessionExpired) {
			h.Pages.renderError(w, r, err, h.Pages.reauthButton())
			return
		}
	}

	handoff, err := h.Handoff.Exchange(ctx, code, q.Get("state"))
	if err != nil {
		h.Pages.renderError(w, r, err, h.Pages.reauthButton())
		return
	}

	name := "reset_password.html"
	if handoff.Next == service.NextUnlock {
		name = "unlock.html"
	}
	h.Pages.render(w, r, http.StatusOK, name, h.Pages.handoffPage(handoff.Username, handoff.Code))
}

// HandlePost godoc
//
//	@Summary		Reset Password
//	@Description	Re-validates the code against the cache before touching the directory.
//	@Tags			Password
//	@Accept			x-www-form-urlencoded
//	@Produce		html
//	@Param			username		formData	string	true	"Username bound to the code"
//	@Param			code			formData	string	true	"Provider authorization code"
//	@Param			new_password	formData	string	true	"New password"
//	@Success		200				{string}	string	"HTML message page"
//	@Failure		400				{string}	string	"HTML message page"
//	@Failure		401				{string}	string	"HTML message page"
//	@Failure		429				{string}	string	"HTML message page"
//	@Router			/resetPassword [post].
func (h *ResetPasswordHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := parseForm(r); err != nil {
		h.Pages.renderError(w, r, service.ErrSessionExpired, h.Pages.reauthButton())
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	code := r.PostForm.Get("code")

	if err := h.Handoff.Verify(ctx, username, code); err != nil {
		h.Pages.renderError(w, r, err, h.Pages.reauthButton())
		return
	}

	ctx = slogx.WithUsername(ctx, username)
	err := h.Accounts.ResetPassword(ctx, username, strings.TrimSpace(r.PostForm.Get("new_password")), service.RequestMeta{
		RemoteIP: remoteIP(r),
		Provider: h.Handoff.Provider.Name(),
	})
	if err != nil {
		retry := Button{URL: h.Pages.handoffURL("/resetPassword", username, code), Label: "Try again"}
		h.Pages.renderError(w, r, err, retry)
		return
	}

	h.Pages.message(w, r, http.StatusOK, "Your password has been reset and the account is unlocked. Please keep it safe.", h.Pages.homeButton())
}
