package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
)

// ChangePasswordHandler serves the old-password change form on /.
type ChangePasswordHandler struct {
	Accounts *service.AccountService
	Pages    *Pages
}

// HandleGet godoc
//
//	@Summary		Change Password Form
//	@Tags			Pages
//	@Produce		html
//	@Success		200	{string}	string	"HTML page"
//	@Router			/ [get].
func (h *ChangePasswordHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.Pages.render(w, r, http.StatusOK, "index.html", h.Pages.base())
}

// HandlePost godoc
//
//	@Summary		Change Password
//	@Description	Proves the old password with a bind and then resets to the new one.
//	@Description	The username field also accepts a mail address.
//	@Tags			Password
//	@Accept			x-www-form-urlencoded
//	@Produce		html
//	@Param			username		formData	string	true	"sAMAccountName or mail"
//	@Param			old_password	formData	string	true	"Current password"
//	@Param			new_password	formData	string	true	"New password"
//	@Success		200				{string}	string	"HTML message page"
//	@Failure		400				{string}	string	"HTML message page"
//	@Failure		403				{string}	string	"HTML message page"
//	@Failure		429				{string}	string	"HTML message page"
//	@Router			/ [post].
func (h *ChangePasswordHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	retry := Button{URL: h.Pages.HomeURL + "/", Label: "Try again"}

	if err := parseForm(r); err != nil {
		h.Pages.renderError(w, r, err, retry)
		return
	}

	err := h.Accounts.ChangePassword(r.Context(),
		strings.TrimSpace(r.PostForm.Get("username")),
		r.PostForm.Get("old_password"),
		strings.TrimSpace(r.PostForm.Get("new_password")),
		service.RequestMeta{RemoteIP: remoteIP(r)},
	)
	if err != nil {
		h.Pages.renderError(w, r, err, retry)
		return
	}

	h.Pages.message(w, r, http.StatusOK, "Your password has been changed. Please keep it safe.", h.Pages.homeButton())
}
