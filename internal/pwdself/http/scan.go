package http

import (
	"net"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
)

// ScanHandler serves the QR scan page.
type ScanHandler struct {
	Handoff *service.HandoffService
	Pages   *Pages
}

// HandleGet godoc
//
//	@Summary		QR Scan Page
//	@Description	Renders the provider login for a fresh signed state.
//	@Description	next=unlock lands on the unlock form after the scan instead of the reset form.
//	@Tags			Pages
//	@Produce		html
//	@Param			next	query		string	false	"Form to land on after the scan"	Enums(reset, unlock)
//	@Success		200		{string}	string	"HTML page"
//	@Failure		429		{string}	string	"HTML message page"
//	@Failure		502		{string}	string	"HTML message page"
//	@Router			/auth [get].
func (h *ScanHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	scan, err := h.Handoff.BeginScan(r.Context(), r.URL.Query().Get("next"))
	if err != nil {
		h.Pages.renderError(w, r, err, h.Pages.homeButton())
		return
	}

	data := h.Pages.base()
	data.Login = scan.Login
	h.Pages.render(w, r, http.StatusOK, "auth.html", data)
}

// parseForm accepts only url-encoded bodies.
func parseForm(r *http.Request) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		return service.ErrMissingFields
	}
	if err := r.ParseForm(); err != nil {
		return service.ErrMissingFields
	}
	return nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
