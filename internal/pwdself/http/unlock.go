package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
)

// UnlockHandler serves the unlock form. Both methods require a live
// username and code binding.
type UnlockHandler struct {
	Handoff  *service.HandoffService
	Accounts *service.AccountService
	Pages    *Pages
}

// HandleGet godoc
//
//	@Summary		Unlock Account Form
//	@Tags			Account
//	@Produce		html
//	@Param			username	query		string	true	"Username bound to the code"
//	@Param			code		query		string	true	"Provider authorization code"
//	@Success		200			{string}	string	"HTML page"
//	@Failure		401			{string}	string	"HTML message page"
//	@Router			/unlockAccount [get].
func (h *UnlockHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	username := strings.TrimSpace(q.Get("username"))
	code := q.Get("code")

	if err := h.Handoff.Verify(r.Context(), username, code); err != nil {
		h.Pages.renderError(w, r, err, h.Pages.reauthButton())
		return
	}
	h.Pages.render(w, r, http.StatusOK, "unlock.html", h.Pages.handoffPage(username, code))
}

// HandlePost godoc
//
//	@Summary		Unlock Account
//	@Description	Clears the lockout of the account bound to the code.
//	@Tags			Account
//	@Accept			x-www-form-urlencoded
//	@Produce		html
//	@Param			username	formData	string	true	"Username bound to the code"
//	@Param			code		formData	string	true	"Provider authorization code"
//	@Success		200			{string}	string	"HTML message page"
//	@Failure		401			{string}	string	"HTML message page"
//	@Failure		429			{string}	string	"HTML message page"
//	@Router			/unlockAccount [post].
func (h *UnlockHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.Pages.renderError(w, r, service.ErrSessionExpired, h.Pages.reauthButton())
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	code := r.PostForm.Get("code")

	if err := h.Handoff.Verify(r.Context(), username, code); err != nil {
		h.Pages.renderError(w, r, err, h.Pages.reauthButton())
		return
	}

	err := h.Accounts.UnlockAccount(r.Context(), username, service.RequestMeta{
		RemoteIP: remoteIP(r),
		Provider: h.Handoff.Provider.Name(),
	})
	if err != nil {
		h.Pages.renderError(w, r, err, h.Pages.reauthButton())
		return
	}

	h.Pages.message(w, r, http.StatusOK, "Your account is unlocked. You can go back home or close this page.", h.Pages.homeButton())
}
