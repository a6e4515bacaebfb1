package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eligo/internal/eligibility"
	"eligo/internal/eligibility/extract"
	"eligo/internal/simulation/device"
	"eligo/internal/simulation/metrics"
	"eligo/internal/simulation/models"
	id "eligo/pkg/domain"
	dErrors "eligo/pkg/domain-errors"
	audit "eligo/pkg/platform/audit"
	"eligo/pkg/platform/sentinel"
	"eligo/pkg/requestcontext"
)

// Store persists temporary sessions.
type Store interface {
	Create(ctx context.Context, session *models.TemporarySession) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.TemporarySession, error)
	Abandon(ctx context.Context, sessionID id.SessionID, reason string, at time.Time) error
	Stats(ctx context.Context, since time.Time) (models.Stats, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
	DeleteMigrated(ctx context.Context, before time.Time) (int, error)
}

// TokenService signs and checks session access tokens.
type TokenService interface {
	GenerateSessionToken(sessionID id.SessionID, issuedAt, expiresAt time.Time) (string, error)
	ValidateSessionToken(token string, now time.Time) (id.SessionID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultTTL         = 24 * time.Hour
	defaultGracePeriod = 7 * 24 * time.Hour
	defaultStatsWindow = 30 * 24 * time.Hour

	maxAnswers       = 200
	maxAbandonReason = 500
)

// Service runs the simulator: it extracts a profile from answers, scores it,
// stores the outcome under a temporary session and hands back a signed token.
type Service struct {
	store          Store
	engine         *eligibility.Engine
	tokens         TokenService
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	ttl            time.Duration
	gracePeriod    time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithTTL sets the fixed session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithGracePeriod sets how long expired or migrated sessions are kept before
// Sweep deletes them.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gracePeriod = d
		}
	}
}

func New(store Store, engine *eligibility.Engine, tokens TokenService, opts ...Option) *Service {
	s := &Service{
		store:       store,
		engine:      engine,
		tokens:      tokens,
		logger:      slog.Default(),
		tracer:      otel.Tracer("eligo/simulation"),
		ttl:         defaultTTL,
		gracePeriod: defaultGracePeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create scores answers and persists them under a new temporary session.
func (s *Service) Create(ctx context.Context, answers []extract.Answer) (*models.Created, error) {
	if len(answers) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "answers must not be empty")
	}
	if len(answers) > maxAnswers {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d answers are accepted", maxAnswers))
	}

	profile := extract.Extract(answers)
	results := s.score(ctx, profile)

	now := requestcontext.Now(ctx)
	userAgent := requestcontext.UserAgent(ctx)
	session := &models.TemporarySession{
		ID:          id.SessionID(uuid.New()),
		Answers:     answers,
		Results:     results,
		Profile:     profile,
		Company:     extract.Company(answers),
		ClientIP:    requestcontext.ClientIP(ctx),
		UserAgent:   userAgent,
		DeviceLabel: device.ParseUserAgent(userAgent),
		Completed:   true,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save simulation session")
	}

	token, err := s.tokens.GenerateSessionToken(session.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementSessionsCreated()
	s.emit(ctx, audit.Event{
		Action:    audit.EventSimulationCreated,
		SessionID: session.ID,
		Attributes: map[string]string{
			"device":  session.DeviceLabel,
			"bot":     fmt.Sprint(device.IsBot(userAgent)),
			"sector":  string(profile.Sector),
			"results": fmt.Sprint(len(results)),
		},
	})
	s.reportHighEligibility(ctx, session)

	return &models.Created{
		SessionID:   session.ID,
		ExpiresAt:   session.ExpiresAt,
		AccessToken: token,
		Results:     results,
	}, nil
}

func (s *Service) score(ctx context.Context, profile eligibility.AttributeProfile) eligibility.Results {
	_, span := s.tracer.Start(ctx, "eligibility.score")
	defer span.End()

	results := s.engine.Score(profile)
	span.SetAttributes(
		attribute.String("eligibility.sector", string(profile.Sector)),
		attribute.Int("eligibility.products", len(results)),
		attribute.Float64("eligibility.total_amount", results.TotalAmount()),
	)
	for _, r := range results {
		s.metrics.ObserveScore(r.ProductCode, r.Score)
	}
	return results
}

func (s *Service) reportHighEligibility(ctx context.Context, session *models.TemporarySession) {
	high := session.Results.HighEligibility()
	if len(high) == 0 {
		return
	}
	codes := make([]string, 0, len(high))
	for _, r := range high {
		codes = append(codes, r.ProductCode)
	}
	total := high.TotalAmount()

	s.metrics.IncrementHighEligibility()
	s.logger.InfoContext(ctx, "high eligibility detected",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"products", codes,
		"total_savings", total,
	)
	s.emit(ctx, audit.Event{
		Action:    audit.EventHighEligibility,
		SessionID: session.ID,
		Attributes: map[string]string{
			"products":      strings.Join(codes, ","),
			"total_savings": fmt.Sprintf("%.0f", total),
		},
	})
}

// Authorize checks the token alone and returns the session it is bound to.
// Every failure maps to the same unauthorized error.
func (s *Service) Authorize(ctx context.Context, token string) (id.SessionID, error) {
	sessionID, err := s.tokens.ValidateSessionToken(token, requestcontext.Now(ctx))
	if err != nil {
		s.metrics.IncrementTokenRejected("token")
		return id.SessionID{}, err
	}
	return sessionID, nil
}

// Verify reports whether token is valid and its session row still exists and
// has not expired.
func (s *Service) Verify(ctx context.Context, token string) bool {
	sessionID, err := s.Authorize(ctx, token)
	if err != nil {
		return false
	}
	_, err = s.Read(ctx, sessionID)
	return err == nil
}

// Read loads a session and enforces the row's own expiry.
func (s *Service) Read(ctx context.Context, sessionID id.SessionID) (*models.TemporarySession, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementTokenRejected("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "simulation session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load simulation session")
	}
	if session.IsExpired(requestcontext.Now(ctx)) {
		s.metrics.IncrementTokenRejected("expired")
		return nil, dErrors.New(dErrors.CodeGone, "simulation session expired")
	}
	return session, nil
}

// ReadWithToken authorizes token for sessionID and returns the session.
func (s *Service) ReadWithToken(ctx context.Context, token string, sessionID id.SessionID) (*models.TemporarySession, error) {
	tokenSession, err := s.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}
	if tokenSession != sessionID {
		s.metrics.IncrementTokenRejected("mismatch")
		return nil, dErrors.New(dErrors.CodeForbidden, "token does not grant access to this session")
	}
	return s.Read(ctx, sessionID)
}

// Abandon records that the visitor left without registering. Abandoned
// sessions stay migratable until they expire.
func (s *Service) Abandon(ctx context.Context, sessionID id.SessionID, reason string) error {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxAbandonReason {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("reason must be at most %d characters", maxAbandonReason))
	}
	session, err := s.Read(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Migrated {
		return dErrors.New(dErrors.CodeConflict, "simulation session already migrated")
	}
	if err := s.store.Abandon(ctx, sessionID, reason, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeConflict, "simulation session already abandoned or migrated")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to abandon simulation session")
	}

	s.metrics.IncrementSessionsAbandoned()
	s.emit(ctx, audit.Event{
		Action:    audit.EventSimulationAbandoned,
		SessionID: sessionID,
		Reason:    reason,
	})
	return nil
}

// Stats reports simulator conversion since the given time, or over the last
// 30 days when since is zero.
func (s *Service) Stats(ctx context.Context, since time.Time) (models.Stats, error) {
	if since.IsZero() {
		since = requestcontext.Now(ctx).Add(-defaultStatsWindow)
	}
	stats, err := s.store.Stats(ctx, since)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute simulation stats")
	}
	return stats, nil
}

// Sweep deletes sessions that expired, or were migrated, longer than the
// grace period ago.
func (s *Service) Sweep(ctx context.Context) (models.SweepReport, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.gracePeriod)

	var report models.SweepReport
	expired, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge expired sessions")
	}
	report.ExpiredDeleted = expired

	migrated, err := s.store.DeleteMigrated(ctx, cutoff)
	if err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge migrated sessions")
	}
	report.MigratedDeleted = migrated

	s.metrics.AddSessionsPurged("expired", expired)
	s.metrics.AddSessionsPurged("migrated", migrated)
	if expired+migrated > 0 {
		s.logger.InfoContext(ctx, "simulation sessions purged",
			"expired", expired,
			"migrated", migrated,
			"cutoff", cutoff,
		)
		s.emit(ctx, audit.Event{
			Action: audit.EventSessionsPurged,
			Attributes: map[string]string{
				"expired":  fmt.Sprint(expired),
				"migrated": fmt.Sprint(migrated),
			},
		})
	}
	return report, nil
}

// emit records an operational audit event. Failures are logged and dropped.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"session_id", event.SessionID,
			"error", err,
		)
	}
}
