package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/pwdself/pkg/httpx"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

// Pinger is a dependency the service cannot work without.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 3 * time.Second

// ReadyzHandler godoc
//
//	@Summary		Readiness Endpoint
//	@Description	Pings the directory, the handoff cache and the audit store.
//	@Description	Any failure turns the response into a 503. Failure details go to the log only; the body says "error".
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	HealthResponse	"status, uptime, version, checks"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		status := "ok"
		code := http.StatusOK

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				slogx.FromContext(r.Context()).Warn("readiness check failed", "dependency", name, "error", err)
				checks[name] = "error"
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
