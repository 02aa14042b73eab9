package http

import (
	"net/http"
	"strings"
)

// MessagesHandler godoc
//
//	@Summary		Message Page
//	@Description	Renders a message page with a single button. Targets off this site fall back to home.
//	@Tags			Pages
//	@Produce		html
//	@Param			msg				query	string	false	"Message to show"
//	@Param			button_click	query	string	false	"Absolute path on this site"
//	@Param			button_display	query	string	false	"Button label"
//	@Success		200				{string}	string	"HTML page"
//	@Router			/messages [get].
func MessagesHandler(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		label := strings.TrimSpace(q.Get("button_display"))
		if label == "" {
			label = "Back to home"
		}
		btn := Button{URL: pages.sameSitePath(q.Get("button_click")), Label: label}

		pages.message(w, r, http.StatusOK, q.Get("msg"), btn)
	}
}
