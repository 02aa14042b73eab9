package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/pwdself/api/pwdself" // Swagger docs
	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
	"github.com/aussiebroadwan/pwdself/pkg/httpx"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

// RouterOptions are the transport settings of the router.
type RouterOptions struct {
	BuildVersion string

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// the scheme from X-Forwarded-Proto. Enable it only behind a reverse
	// proxy that appends to X-Forwarded-For.
	TrustProxyHeaders bool

	// TrustedProxyHops is how many proxies append to X-Forwarded-For in
	// front of the service. Zero means one.
	TrustedProxyHops int

	// FrameSrc are the origins the scan page may embed.
	FrameSrc []string
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	// accountLimit is shared by every form post so an account has one
	// budget across them.
	accountLimit httpx.Middleware

	pages        *Pages
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	HandoffService *service.HandoffService
	AccountService *service.AccountService

	// Readiness lists the dependencies /readyz pings, by name.
	Readiness map[string]Pinger
}

func NewRouter(pages *Pages, opts RouterOptions, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		pages:        pages,
		buildVersion: opts.BuildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	// Outermost first.
	r.middlewares = []httpx.Middleware{
		handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}), handlers.PrintRecoveryStack(false)),
	}
	if opts.TrustProxyHeaders {
		r.middlewares = append(r.middlewares,
			httpx.TrustedForwardedFor(opts.TrustedProxyHops),
			handlers.ProxyHeaders,
		)
	}
	r.middlewares = append(r.middlewares,
		slogx.HTTPMiddleware(r.logger),
		httpx.SecureHeaders(opts.FrameSrc...),
	)

	r.accountLimit = httpx.RateLimitByFormField(httpx.AccountLimit, "username", r.limited)

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerScan()
	r.registerChangePassword()
	r.registerResetPassword()
	r.registerUnlock()
	r.registerMessages()
	r.registerSystem()

	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Password Self-Service API
//	@version		0.1.0
//	@description	Lets domain users change, reset and unlock their Active Directory accounts.
//	@description
//	@description	Reset and unlock are gated by a QR scan with the corporate identity provider.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/pwdself
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h := r.handler
	if h == nil {
		h = httpx.Chain(r.Mux, r.middlewares...)
	}
	h.ServeHTTP(w, req)
}

// limited renders the rate limit rejection as a message page.
func (r *Router) limited(w http.ResponseWriter, req *http.Request, retryAfter time.Duration) {
	r.pages.message(w, req, http.StatusTooManyRequests,
		fmt.Sprintf("Too many attempts. Please wait %s and try again.", retryAfter),
		r.pages.homeButton())
}

func (r *Router) registerScan() {
	h := &ScanHandler{Handoff: r.HandoffService, Pages: r.pages}

	// GET /auth - each view mints a state token, moderate limit
	r.Mux.Handle("GET /auth",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit, r.limited),
		),
	)
}

func (r *Router) registerChangePassword() {
	h := &ChangePasswordHandler{Accounts: r.AccountService, Pages: r.pages}

	r.Mux.Handle("GET /{$}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit, r.limited),
		),
	)

	// POST / - binds with the old password, strict limit by IP + account
	// plus the per-account budget
	r.Mux.Handle("POST /{$}",
		httpx.Chain(http.HandlerFunc(h.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username", r.limited),
			r.accountLimit,
		),
	)
}

func (r *Router) registerResetPassword() {
	h := &ResetPasswordHandler{Handoff: r.HandoffService, Accounts: r.AccountService, Pages: r.pages}

	// GET /resetPassword - provider redirect, exchanges the code
	r.Mux.Handle("GET /resetPassword",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit, r.limited),
		),
	)
	r.Mux.Handle("POST /resetPassword",
		httpx.Chain(http.HandlerFunc(h.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username", r.limited),
			r.accountLimit,
		),
	)
}

func (r *Router) registerUnlock() {
	h := &UnlockHandler{Handoff: r.HandoffService, Accounts: r.AccountService, Pages: r.pages}

	r.Mux.Handle("GET /unlockAccount",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit, r.limited),
		),
	)
	r.Mux.Handle("POST /unlockAccount",
		httpx.Chain(http.HandlerFunc(h.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username", r.limited),
			r.accountLimit,
		),
	)
}

func (r *Router) registerMessages() {
	r.Mux.Handle("GET /messages",
		httpx.Chain(MessagesHandler(r.pages),
			httpx.RateLimitByIP(httpx.LenientLimit, r.limited),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit, nil),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Readiness),
			httpx.RateLimitByIP(httpx.PublicLimit, nil),
		),
	)

	r.Mux.Handle("GET /swagger/",
		httpx.Chain(httpSwagger.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit, nil),
		),
	)
}

// recoveryLogger routes panics caught by handlers.RecoveryHandler to slog.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("panic recovered", "panic", fmt.Sprint(v...))
}
