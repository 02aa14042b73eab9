package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/pwdself/pkg/httpx"
	"github.com/aussiebroadwan/pwdself/pkg/idp"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

// Button is the single next action offered on a message page.
type Button struct {
	URL   string
	Label string
}

type page struct {
	Title     string
	HomeURL   string
	ScanApp   string
	MinLength int

	Login     idp.LoginParams
	Username  string
	Code      string
	UnlockURL string
	ResetURL  string

	Message string
	Details []string
	Button  *Button
}

// Pages renders the embedded HTML templates.
type Pages struct {
	tmpl *template.Template

	Title     string
	HomeURL   string // scheme://host[:port][/prefix], no trailing slash
	ScanApp   string
	MinLength int
}

// NewPages parses the embedded templates.
func NewPages(title, homeURL, provider string, minLength int) (*Pages, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Pages{
		tmpl:      tmpl,
		Title:     title,
		HomeURL:   strings.TrimRight(homeURL, "/"),
		ScanApp:   providerDisplayName(provider),
		MinLength: minLength,
	}, nil
}

func providerDisplayName(provider string) string {
	switch provider {
	case idp.ProviderDingTalk:
		return "DingTalk"
	case idp.ProviderWeWork:
		return "WeWork"
	default:
		return provider
	}
}

func (p *Pages) base() page {
	return page{
		Title:     p.Title,
		HomeURL:   p.HomeURL,
		ScanApp:   p.ScanApp,
		MinLength: p.MinLength,
	}
}

func (p *Pages) homeButton() Button {
	return Button{URL: p.HomeURL + "/", Label: "Back to home"}
}

func (p *Pages) reauthButton() Button {
	return Button{URL: p.HomeURL + "/auth", Label: "Authorize again"}
}

// handoffURL links one of the scan-gated forms for username and code.
func (p *Pages) handoffURL(path, username, code string) string {
	q := url.Values{}
	q.Set("username", username)
	q.Set("code", code)
	return p.HomeURL + path + "?" + q.Encode()
}

// handoffPage fills the form fields shared by the reset and unlock pages.
func (p *Pages) handoffPage(username, code string) page {
	data := p.base()
	data.Username = username
	data.Code = code
	data.ResetURL = p.handoffURL("/resetPassword", username, code)
	data.UnlockURL = p.handoffURL("/unlockAccount", username, code)
	return data
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p *Pages) message(w http.ResponseWriter, r *http.Request, status int, msg string, btn Button, details ...string) {
	data := p.base()
	data.Message = msg
	data.Details = details
	data.Button = &btn
	p.render(w, r, status, "messages.html", data)
}

// sameSitePath accepts only an absolute path on this site. Anything else,
// including scheme-relative and javascript: targets, falls back to home.
func (p *Pages) sameSitePath(target string) string {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return p.HomeURL + "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return p.HomeURL + "/"
	}
	return p.HomeURL + u.RequestURI()
}
