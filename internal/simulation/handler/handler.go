package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eligo/internal/eligibility/extract"
	"eligo/internal/simulation/models"
	id "eligo/pkg/domain"
	dErrors "eligo/pkg/domain-errors"
	"eligo/pkg/platform/httputil"
	"eligo/pkg/requestcontext"
)

// Service defines the simulation operations used by the HTTP layer.
type Service interface {
	Create(ctx context.Context, answers []extract.Answer) (*models.Created, error)
	Authorize(ctx context.Context, token string) (id.SessionID, error)
	ReadWithToken(ctx context.Context, token string, sessionID id.SessionID) (*models.TemporarySession, error)
	Abandon(ctx context.Context, sessionID id.SessionID, reason string) error
	Stats(ctx context.Context, since time.Time) (models.Stats, error)
}

// Handler wires simulation endpoints to the simulation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts simulation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/simulation-session", h.HandleCreate)
	r.Get("/simulation-session/stats", h.HandleStats)
	r.Get("/simulation-session/{id}", h.HandleGet)
	r.Post("/simulation-session/{id}/abandon", h.HandleAbandon)
}

// HandleCreate handles POST /simulation-session.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Create(ctx, req.Answers)
	if err != nil {
		h.logger.ErrorContext(ctx, "simulation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "simulation session created",
		"request_id", requestID,
		"session_id", created.SessionID,
		"answers", len(req.Answers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, fromCreated(created))
}

// HandleGet handles GET /simulation-session/{id}. The bearer token must be
// bound to the requested session.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, token, ok := h.sessionAndToken(w, r)
	if !ok {
		return
	}

	session, err := h.service.ReadWithToken(ctx, token, sessionID)
	if err != nil {
		h.logger.InfoContext(ctx, "simulation session read rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromSession(session))
}

// HandleAbandon handles POST /simulation-session/{id}/abandon.
func (h *Handler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, token, ok := h.sessionAndToken(w, r)
	if !ok {
		return
	}
	tokenSession, err := h.service.Authorize(ctx, token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if tokenSession != sessionID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token does not grant access to this session"))
		return
	}

	reason := ""
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[AbandonRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		reason = req.Reason
	}

	if err := h.service.Abandon(ctx, sessionID, reason); err != nil {
		h.logger.InfoContext(ctx, "simulation abandon rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /simulation-session/stats?since=RFC3339.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "since must be an RFC 3339 timestamp"))
			return
		}
		since = parsed
	}

	stats, err := h.service.Stats(ctx, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "simulation stats failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if since.IsZero() {
		since = requestcontext.Now(ctx).Add(-30 * 24 * time.Hour)
	}
	httputil.WriteJSON(w, http.StatusOK, StatsResponse{
		Since:          since,
		Total:          stats.Total,
		Completed:      stats.Completed,
		Migrated:       stats.Migrated,
		Abandoned:      stats.Abandoned,
		ConversionRate: stats.ConversionRate,
	})
}

func (h *Handler) sessionAndToken(w http.ResponseWriter, r *http.Request) (id.SessionID, string, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, "", false
	}
	token := httputil.BearerToken(r)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "session access token is required"))
		return id.SessionID{}, "", false
	}
	return sessionID, token, true
}
