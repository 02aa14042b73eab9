package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
	"github.com/aussiebroadwan/pwdself/pkg/codecache"
	"github.com/aussiebroadwan/pwdself/pkg/directory"
	"github.com/aussiebroadwan/pwdself/pkg/idp"
	"github.com/aussiebroadwan/pwdself/pkg/jwtx"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	PublicBaseURL     string // Optional: host[:port][/prefix] or a full URL (default: localhost:8080)
	SiteTitle         string // Optional: page title (default: Password Self-Service)
	TrustProxyHeaders bool   // Optional: read client address from X-Forwarded-* (default: false)
	TrustedProxyHops  int    // Optional: proxies appending to X-Forwarded-For (default: 1)

	Directory     directory.Config // Required: LDAP_HOST, LDAP_BASE_DN, LDAP_BIND_USER, LDAP_BIND_PASSWORD
	DisabledCodes []int            // Optional: userAccountControl values refused as disabled

	IDPType  string             // Optional: dingtalk or wework (default: dingtalk)
	DingTalk idp.DingTalkConfig // Required when IDPType is dingtalk
	WeWork   idp.WeWorkConfig   // Required when IDPType is wework

	CacheBackend   string        // Optional: memory or redis (default: memory)
	RedisAddr      string        // Required when CacheBackend is redis
	RedisPassword  string        // Optional
	RedisDB        int           // Optional (default: 0)
	CacheKeyPrefix string        // Optional (default: pwdself:code)
	CodeTTL        time.Duration // Optional: lifetime of a scan handoff (default: 300s)

	StateSecret string        // Optional: HS256 key for the scan state, random per process when empty
	StateTTL    time.Duration // Optional (default: 10m)

	PasswordMinLength int // Optional (default: 8)

	AuditDatabaseFile string        // Optional: path to SQLite database file (default: ./audit.db)
	AuditRetention    time.Duration // Optional (default: 2160h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1m)
}

// source resolves a setting from the process environment first and the
// optional YAML file second.
type source struct {
	file map[string]string
}

// LoadConfig reads .env (when present), then CONFIG_FILE (when set), then
// the environment. Environment variables win.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	return src.config()
}

// readConfigFile parses a flat YAML mapping whose keys are the environment
// variable names, e.g. "LDAP_HOST: dc01.corp.example.com".
func readConfigFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("parse config file %s: key %s must be a scalar or a list", path, k)
		default:
			out[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return out, nil
}

func (s source) config() (Config, error) {
	disabled, err := parseIntList(s.getOrDefault("AD_DISABLED_CODES", ""))
	if err != nil {
		return Config{}, fmt.Errorf("AD_DISABLED_CODES: %w", err)
	}
	if len(disabled) == 0 {
		disabled = service.DefaultDisabledCodes
	}

	cfg := Config{
		PublicBaseURL:     s.getOrDefault("PUBLIC_BASE_URL", "localhost:8080"),
		SiteTitle:         s.getOrDefault("SITE_TITLE", "Password Self-Service"),
		TrustProxyHeaders: s.getBoolOrDefault("TRUST_PROXY_HEADERS", false),
		TrustedProxyHops:  s.getIntOrDefault("TRUSTED_PROXY_HOPS", 1),

		Directory: directory.Config{
			Host:               s.get("LDAP_HOST"),
			Port:               s.getIntOrDefault("LDAP_PORT", 636),
			UseTLS:             s.getBoolOrDefault("LDAP_USE_TLS", true),
			InsecureSkipVerify: s.getBoolOrDefault("LDAP_INSECURE_SKIP_VERIFY", false),
			Domain:             s.get("LDAP_DOMAIN"),
			BindUser:           s.get("LDAP_BIND_USER"),
			BindPassword:       s.get("LDAP_BIND_PASSWORD"),
			AuthMethod:         strings.ToLower(s.getOrDefault("LDAP_AUTH_METHOD", directory.AuthMethodNTLM)),
			BaseDN:             s.get("LDAP_BASE_DN"),
			SearchFilter:       s.getOrDefault("LDAP_SEARCH_FILTER", directory.DefaultSearchFilter),
			ConnectTimeout:     s.getDurationOrDefault("LDAP_CONNECT_TIMEOUT", directory.DefaultConnectTimeout),
		},
		DisabledCodes: disabled,

		IDPType: strings.ToLower(s.getOrDefault("IDP_TYPE", idp.ProviderDingTalk)),
		DingTalk: idp.DingTalkConfig{
			CorpID:         s.get("DINGTALK_CORP_ID"),
			AppKey:         s.get("DINGTALK_APP_KEY"),
			AppSecret:      s.get("DINGTALK_APP_SECRET"),
			LoginAppID:     s.get("DINGTALK_LOGIN_APP_ID"),
			LoginAppSecret: s.get("DINGTALK_LOGIN_APP_SECRET"),
			BaseURL:        s.get("DINGTALK_API_URL"),
			LoginURL:       s.get("DINGTALK_LOGIN_URL"),
		},
		WeWork: idp.WeWorkConfig{
			CorpID:   s.get("WEWORK_CORP_ID"),
			AgentID:  s.get("WEWORK_AGENT_ID"),
			Secret:   s.get("WEWORK_SECRET"),
			BaseURL:  s.get("WEWORK_API_URL"),
			LoginURL: s.get("WEWORK_LOGIN_URL"),
		},

		CacheBackend:   strings.ToLower(s.getOrDefault("CACHE_BACKEND", CacheBackendMemory)),
		RedisAddr:      s.get("REDIS_ADDR"),
		RedisPassword:  s.get("REDIS_PASSWORD"),
		RedisDB:        s.getIntOrDefault("REDIS_DB", 0),
		CacheKeyPrefix: s.getOrDefault("CACHE_KEY_PREFIX", codecache.DefaultKeyPrefix),
		CodeTTL:        s.getDurationOrDefault("CODE_TTL", codecache.DefaultTTL),

		StateSecret: s.get("STATE_SECRET"),
		StateTTL:    s.getDurationOrDefault("STATE_TTL", jwtx.DefaultStateTTL),

		PasswordMinLength: s.getIntOrDefault("PASSWORD_MIN_LENGTH", service.DefaultMinPasswordLength),

		AuditDatabaseFile: s.getOrDefault("AUDIT_DATABASE_FILE", "audit.db"),
		AuditRetention:    s.getDurationOrDefault("AUDIT_RETENTION", service.DefaultAuditRetention),

		Env:                  s.getOrDefault("ENV", "dev"),
		LogLevel:             s.getOrDefault("LOG_LEVEL", "info"),
		LogFormat:            s.getOrDefault("LOG_FORMAT", "json"),
		Port:                 s.getIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  s.getDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: s.getDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Minute),
	}

	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	need := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	need(c.Directory.Host, "LDAP_HOST")
	need(c.Directory.BaseDN, "LDAP_BASE_DN")
	need(c.Directory.BindUser, "LDAP_BIND_USER")
	need(c.Directory.BindPassword, "LDAP_BIND_PASSWORD")
	if c.Directory.AuthMethod != directory.AuthMethodNTLM && c.Directory.AuthMethod != directory.AuthMethodSimple {
		errs = append(errs, fmt.Errorf("LDAP_AUTH_METHOD must be %q or %q", directory.AuthMethodNTLM, directory.AuthMethodSimple))
	}
	if !strings.Contains(c.Directory.SearchFilter, directory.UsernamePlaceholder) {
		errs = append(errs, fmt.Errorf("LDAP_SEARCH_FILTER must contain %s", directory.UsernamePlaceholder))
	}

	switch c.IDPType {
	case idp.ProviderDingTalk:
		need(c.DingTalk.AppKey, "DINGTALK_APP_KEY")
		need(c.DingTalk.AppSecret, "DINGTALK_APP_SECRET")
		need(c.DingTalk.LoginAppID, "DINGTALK_LOGIN_APP_ID")
		need(c.DingTalk.LoginAppSecret, "DINGTALK_LOGIN_APP_SECRET")
	case idp.ProviderWeWork:
		need(c.WeWork.CorpID, "WEWORK_CORP_ID")
		need(c.WeWork.AgentID, "WEWORK_AGENT_ID")
		need(c.WeWork.Secret, "WEWORK_SECRET")
	default:
		errs = append(errs, fmt.Errorf("IDP_TYPE must be %q or %q, got %q", idp.ProviderDingTalk, idp.ProviderWeWork, c.IDPType))
	}

	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		need(c.RedisAddr, "REDIS_ADDR")
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.CacheBackend))
	}

	if c.CodeTTL <= 0 {
		errs = append(errs, errors.New("CODE_TTL must be positive"))
	}
	if c.StateSecret != "" && len(c.StateSecret) < 32 {
		errs = append(errs, errors.New("STATE_SECRET must be at least 32 bytes"))
	}
	if _, err := url.Parse(c.PublicURL()); err != nil {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL: %w", err))
	}

	return errors.Join(errs...)
}

// PublicURL returns the externally visible base URL without a trailing
// slash. A bare host gets https, except localhost which gets http.
func (c Config) PublicURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	if strings.Contains(base, "://") {
		return base
	}
	host := base
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "http://" + base
	}
	return "https://" + base
}

func parseIntList(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s source) get(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getOrDefault(key, defaultValue string) string {
	if value := s.get(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getIntOrDefault(key string, defaultValue int) int {
	value := s.get(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func (s source) getBoolOrDefault(key string, defaultValue bool) bool {
	value := s.get(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func (s source) getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := s.get(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds, as in CODE_TTL=300
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
