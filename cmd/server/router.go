package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mighandler "eligo/internal/migration/handler"
	"eligo/internal/platform/metrics"
	rlmiddleware "eligo/internal/ratelimit/middleware"
	rlmodels "eligo/internal/ratelimit/models"
	simhandler "eligo/internal/simulation/handler"
	"eligo/pkg/platform/httputil"
	"eligo/pkg/platform/middleware/metadata"
	"eligo/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

type healthChecker interface {
	Health(ctx context.Context) error
}

func newRouter(a *app, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(metrics.New().Middleware)

	r.Get("/healthz", healthHandler(a))
	r.Handle("/metrics", promhttp.Handler())

	limit := func(rlmodels.EndpointClass) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler { return next }
	}
	if a.limiter != nil {
		limit = rlmiddleware.New(a.limiter, log).RateLimit
	}

	r.Group(func(r chi.Router) {
		r.Use(limit(rlmodels.ClassGlobal))
		simhandler.New(a.simulation, log).Register(r)
		r.Group(func(r chi.Router) {
			r.Use(limit(rlmodels.ClassMigration))
			mighandler.New(a.migration, log).Register(r)
		})
	})
	return r
}

func healthHandler(checker healthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := checker.Health(ctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
