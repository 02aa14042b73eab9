package httpx

import (
	"net/http"
	"strings"
)

// TrustedForwardedFor rewrites X-Forwarded-For down to the one entry the
// proxies vouch for, counting hops trusted proxies from the right. Entries
// further left were supplied by the client. X-Real-IP and Forwarded are
// removed so handlers.ProxyHeaders, running after this, only sees that
// address.
func TrustedForwardedFor(hops int) Middleware {
	if hops < 1 {
		hops = 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del("X-Real-IP")
			r.Header.Del("Forwarded")

			if ip := ForwardedClient(r.Header.Values("X-Forwarded-For"), hops); ip != "" {
				r.Header.Set("X-Forwarded-For", ip)
			} else {
				r.Header.Del("X-Forwarded-For")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ForwardedClient picks the client address from X-Forwarded-For values
// when hops proxies each appended the address they received from. With
// fewer entries than hops the left-most is returned.
func ForwardedClient(values []string, hops int) string {
	var chain []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				chain = append(chain, p)
			}
		}
	}
	if len(chain) == 0 {
		return ""
	}
	return chain[max(len(chain)-hops, 0)]
}
