package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"ekyc/internal/document/providers/inference"
	"ekyc/internal/platform/redis"
	"ekyc/pkg/platform/httputil"
)

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

func healthChecks(vision *inference.Client, redisClient *redis.Client, pool *pgxpool.Pool) []healthCheck {
	checks := []healthCheck{{name: "inference", check: vision.Health}}
	if redisClient != nil {
		checks = append(checks, healthCheck{name: "redis", check: redisClient.Health})
	}
	if pool != nil {
		checks = append(checks, healthCheck{name: "postgres", check: pool.Ping})
	}
	return checks
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthHandler runs every dependency check concurrently. Any failure turns
// the response into a 503.
func healthHandler(log *slog.Logger, checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make([]error, len(checks))
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				results[i] = c.check(ctx)
				return nil
			})
		}
		_ = g.Wait()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		for i, c := range checks {
			if results[i] != nil {
				log.WarnContext(ctx, "health check failed", "check", c.name, "error", results[i])
				resp.Status = "degraded"
				resp.Checks[c.name] = results[i].Error()
				continue
			}
			resp.Checks[c.name] = "ok"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
