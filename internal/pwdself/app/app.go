package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/pwdself/internal/pwdself/http"
	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
	"github.com/aussiebroadwan/pwdself/internal/pwdself/store"
	"github.com/aussiebroadwan/pwdself/pkg/codecache"
	"github.com/aussiebroadwan/pwdself/pkg/cryptox"
	"github.com/aussiebroadwan/pwdself/pkg/directory"
	"github.com/aussiebroadwan/pwdself/pkg/idp"
	"github.com/aussiebroadwan/pwdself/pkg/jwtx"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	stateIssuer = "pwdself"
)

// Application encapsulates the self-service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	directory *directory.Client
	provider  idp.Provider
	cache     codecache.Cache
	memCache  *codecache.Memory // nil with redis
	redis     *redis.Client     // nil with the memory cache
	state     *jwtx.StateSigner

	// Services
	handoffService      *service.HandoffService
	accountService      *service.AccountService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "pwdself",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initState(); err != nil {
		app.closeStores()
		return nil, err
	}

	app.directory = directory.NewClient(cfg.Directory, directory.WithLogger(app.logger))
	app.provider = newProvider(cfg)

	app.initServices()
	if err := app.initHTTP(); err != nil {
		app.closeStores()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := app.directory.Ping(ctx); err != nil {
		// Not fatal: /readyz reports it until the directory answers.
		app.logger.Warn("directory not reachable at startup", "url", app.cfg.Directory.URL(), "error", err)
	}
	cancel()

	app.logger.Info("pwdself starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"idp", app.provider.Name(),
		"cache", app.cfg.CacheBackend,
		"public_url", app.cfg.PublicURL(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down pwdself...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("pwdself stopped")
	return nil
}

func (app *Application) closeStores() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase opens the audit database and applies migrations
func (app *Application) initDatabase() error {
	db, err := openAuditStore(app.cfg.AuditDatabaseFile)
	if err != nil {
		return err
	}
	app.db = db

	app.logger.Info("database migrations applied successfully", "file", app.cfg.AuditDatabaseFile)
	return nil
}

// initCache selects the handoff cache backend. Redis must answer a ping.
func (app *Application) initCache() error {
	if app.cfg.CacheBackend != CacheBackendRedis {
		app.memCache = codecache.NewMemory()
		app.cache = app.memCache
		return nil
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	rc := codecache.NewRedis(app.redis, app.cfg.CacheKeyPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = app.redis.Close()
		app.redis = nil
		return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.cache = rc
	app.logger.Info("using redis handoff cache", "addr", app.cfg.RedisAddr, "prefix", app.cfg.CacheKeyPrefix)
	return nil
}

// initState builds the scan state signer. Without STATE_SECRET a random key
// is used, which invalidates pending scans on restart and cannot be shared
// between replicas.
func (app *Application) initState() error {
	secret := app.cfg.StateSecret
	if secret == "" {
		secret = cryptox.MustGenerateToken(cryptox.TokenSize256)
		app.logger.Warn("STATE_SECRET not set, using a random per-process key")
	}

	signer, err := jwtx.NewStateSigner([]byte(secret), stateIssuer)
	if err != nil {
		return fmt.Errorf("failed to initialize state signer: %w", err)
	}
	app.state = signer
	return nil
}

func newProvider(cfg Config) idp.Provider {
	hc := &http.Client{Timeout: 10 * time.Second}
	if cfg.IDPType == idp.ProviderWeWork {
		return idp.NewWeWork(cfg.WeWork, hc)
	}
	return idp.NewDingTalk(cfg.DingTalk, hc)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.handoffService = &service.HandoffService{
		Provider:    app.provider,
		Directory:   app.directory,
		Cache:       app.cache,
		State:       app.state,
		RedirectURL: app.cfg.PublicURL() + "/resetPassword",
		CodeTTL:     app.cfg.CodeTTL,
		StateTTL:    app.cfg.StateTTL,
	}

	app.accountService = &service.AccountService{
		Directory:     app.directory,
		Policy:        service.PasswordPolicy{MinLength: app.cfg.PasswordMinLength},
		DisabledCodes: app.cfg.DisabledCodes,
		Audit:         app.db.AuditEvents(),
	}

	var cleaner service.CacheCleaner
	if app.memCache != nil {
		cleaner = app.memCache
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		cleaner,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	pages, err := httpapi.NewPages(app.cfg.SiteTitle, app.cfg.PublicURL(), app.provider.Name(), app.cfg.PasswordMinLength)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(pages, httpapi.RouterOptions{
		BuildVersion:      BuildVersion,
		TrustProxyHeaders: app.cfg.TrustProxyHeaders,
		TrustedProxyHops:  app.cfg.TrustedProxyHops,
		FrameSrc:          frameOrigins(app.provider, app.cfg.PublicURL()),
	}, app.logger)

	router.HandoffService = app.handoffService
	router.AccountService = app.accountService
	router.Readiness = map[string]httpapi.Pinger{
		"database":  app.db,
		"directory": app.directory,
	}
	if rc, ok := app.cache.(httpapi.Pinger); ok {
		router.Readiness["cache"] = rc
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// frameOrigins returns the origin of the provider's QR login page, which the
// scan page embeds.
func frameOrigins(p idp.Provider, publicURL string) []string {
	u, err := url.Parse(p.LoginParams(publicURL, "").AuthorizeURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}
