package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eligo/internal/migration/models"
	dErrors "eligo/pkg/domain-errors"
	"eligo/pkg/platform/httputil"
	"eligo/pkg/requestcontext"
)

// Service defines the migration operation used by the HTTP layer.
type Service interface {
	Migrate(ctx context.Context, token string, reg models.Registration) (*models.Outcome, error)
}

// Handler exposes account migration over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts/migrate", h.HandleMigrate)
}

// HandleMigrate handles POST /accounts/migrate. A fresh migration answers 201,
// a repeated one 200 with the prior outcome.
func (h *Handler) HandleMigrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[MigrateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token := req.AccessToken
	if token == "" {
		token = httputil.BearerToken(r)
	}
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "access token is required"))
		return
	}

	outcome, err := h.service.Migrate(ctx, token, req.toRegistration())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.Status == models.OutcomeAlreadyMigrated {
		status = http.StatusOK
	}
	h.logger.InfoContext(ctx, "migration request completed",
		"request_id", requestID,
		"status", outcome.Status,
		"account_id", outcome.AccountID,
		"records", outcome.MigratedRecordCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, status, fromOutcome(outcome))
}
