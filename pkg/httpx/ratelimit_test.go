package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/pwdself/pkg/httpx"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func postForm(path, remote string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remote
	return req
}

func TestIPKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req), "forwarding headers are ignored")

	req.RemoteAddr = "not-a-hostport"
	require.Equal(t, "not-a-hostport", httpx.IPKeyExtractor(req))
}

func TestFormFieldKeyExtractor(t *testing.T) {
	extract := httpx.FormFieldKeyExtractor("username")

	require.Equal(t, "alice", extract(httptest.NewRequest(http.MethodGet, "/?username=Alice", nil)))
	require.Equal(t, "bob", extract(postForm("/", "10.0.0.1:1", url.Values{"username": {" BOB "}})))
	require.Empty(t, extract(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestCompositeKeyExtractor(t *testing.T) {
	extract := httpx.CompositeKeyExtractor(":",
		func(*http.Request) string { return "a" },
		func(*http.Request) string { return "" },
		func(*http.Request) string { return "c" },
	)
	require.Equal(t, "a:c", extract(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}

	t.Run("blocks over the limit with JSON by default", func(t *testing.T) {
		h := httpx.RateLimitByIP(cfg, nil)(okHandler)

		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:1000"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		require.Contains(t, rec.Body.String(), "rate_limit_exceeded")

		// Another client is unaffected.
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.2:1000"
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("custom limit handler", func(t *testing.T) {
		var got time.Duration
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1},
			func(w http.ResponseWriter, _ *http.Request, retryAfter time.Duration) {
				got = retryAfter
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("<p>slow down</p>"))
			})(okHandler)

		for range 2 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.3:1000"
			h.ServeHTTP(httptest.NewRecorder(), req)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.3:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, "<p>slow down</p>", rec.Body.String())
		require.GreaterOrEqual(t, got, time.Second)
	})

	t.Run("missing key passes", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1},
			func(*http.Request) string { return "" }, nil)(okHandler)

		for range 5 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestRateLimitByIPAndFormField(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	h := httpx.RateLimitByIPAndFormField(cfg, "username", nil)(okHandler)

	send := func(user string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postForm("/", "10.0.0.9:4000", url.Values{"username": {user}}))
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("alice"))
	require.Equal(t, http.StatusOK, send("Alice"))
	require.Equal(t, http.StatusTooManyRequests, send("ALICE "))
	require.Equal(t, http.StatusOK, send("bob"))
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	t.Run("defaults", func(t *testing.T) {
		require.Equal(t, def, httpx.ParseRateLimitFromEnv("PWDTEST_NONE", def))
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("RATELIMIT_PWDTEST_REQUESTS", "50")
		t.Setenv("RATELIMIT_PWDTEST_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_PWDTEST_BURST", "7")

		got := httpx.ParseRateLimitFromEnv("PWDTEST", def)
		require.Equal(t, httpx.RateLimitConfig{RequestsPerWindow: 50, Window: 30 * time.Second, Burst: 7}, got)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		t.Setenv("RATELIMIT_PWDBAD_REQUESTS", "lots")
		t.Setenv("RATELIMIT_PWDBAD_WINDOW_SEC", "0")
		t.Setenv("RATELIMIT_PWDBAD_BURST", "-3")

		require.Equal(t, def, httpx.ParseRateLimitFromEnv("PWDBAD", def))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	httpx.Chain(okHandler, mw("first"), mw("second")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second"}, order)
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.SecureHeaders("https://login.dingtalk.com")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-src https://login.dingtalk.com")
}
