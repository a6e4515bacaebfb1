package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	jwttoken "eligo/internal/jwt_token"
	"eligo/internal/migration/identity"
	"eligo/internal/migration/metrics"
	"eligo/internal/migration/models"
	"eligo/internal/migration/saga"
	simmodels "eligo/internal/simulation/models"
	id "eligo/pkg/domain"
	audit "eligo/pkg/platform/audit"
	"eligo/pkg/platform/sentinel"
	"eligo/pkg/requestcontext"
)

// SessionStore is the part of the temporary session store the migration
// needs. Reserve, RecordIdentity, Release and MarkMigrated are single
// conditional updates that return sentinel.ErrConflict when their condition
// does not hold.
type SessionStore interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*simmodels.TemporarySession, error)
	Reserve(ctx context.Context, sessionID id.SessionID, token uuid.UUID, at time.Time) error
	RecordIdentity(ctx context.Context, sessionID id.SessionID, token uuid.UUID, ref id.IdentityRef) error
	Release(ctx context.Context, sessionID id.SessionID, token uuid.UUID) error
	MarkMigrated(ctx context.Context, sessionID id.SessionID, token uuid.UUID, accountID id.AccountID, at time.Time) error
	ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]simmodels.Reservation, error)
}

// AccountStore persists the durable side of a migration.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	InsertRecords(ctx context.Context, records []models.EligibilityRecord) error
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	FindAccountBySession(ctx context.Context, sessionID id.SessionID) (*models.Account, error)
	CountRecords(ctx context.Context, accountID id.AccountID) (int, error)
}

// Transactor runs fn atomically. Stores reached through the ctx passed to fn
// take part in the transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type TokenValidator interface {
	ValidateSessionToken(token string, now time.Time) (id.SessionID, error)
}

// CatalogResolver maps scoring codes to live catalog products.
type CatalogResolver interface {
	Resolve(ctx context.Context, code string) (id.CatalogProductID, bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultLease        = 10 * time.Minute
	defaultMarkAttempts = 3
	defaultMarkBackoff  = 50 * time.Millisecond
	reconcileBatch      = 100
)

// Service promotes temporary sessions into durable accounts.
//
// Ordering: the session is reserved with a compare-and-set before anything
// durable is written. Identity creation, the account row and its records all
// happen under that reservation, and the migrated latch is flipped last by
// the reservation holder only. A crash leaves a reserved session that
// Reconcile either releases (no account) or finalizes (account committed).
type Service struct {
	sessions   SessionStore
	accounts   AccountStore
	tx         Transactor
	tokens     TokenValidator
	identities identity.Provider
	catalog    CatalogResolver

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	lease          time.Duration
	markAttempts   int
	markBackoff    time.Duration
	bcryptCost     int
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

// WithAuditPublisher sets the audit sink. Compliance events are emitted
// inside the account transaction.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithReservationLease sets how old a reservation must be before Reconcile
// touches it.
func WithReservationLease(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lease = d
		}
	}
}

func WithMarkRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.markAttempts = attempts
		}
		if backoff >= 0 {
			s.markBackoff = backoff
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(
	sessions SessionStore,
	accounts AccountStore,
	tx Transactor,
	tokens TokenValidator,
	identities identity.Provider,
	catalog CatalogResolver,
	opts ...Option,
) *Service {
	s := &Service{
		sessions:     sessions,
		accounts:     accounts,
		tx:           tx,
		tokens:       tokens,
		identities:   identities,
		catalog:      catalog,
		logger:       slog.Default(),
		lease:        defaultLease,
		markAttempts: defaultMarkAttempts,
		markBackoff:  defaultMarkBackoff,
		bcryptCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errLostRace marks a run that found an account already committed for its
// session.
var errLostRace = errors.New("concurrent migration committed first")

// Migrate runs the migration saga for the session bound to token. A session
// that is already migrated, or held by a concurrent migration, yields
// OutcomeAlreadyMigrated and no writes.
func (s *Service) Migrate(ctx context.Context, token string, reg models.Registration) (*models.Outcome, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration(time.Since(start)) }()

	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, s.fail(ctx, id.SessionID{}, models.ErrInvalidRegistration(err))
	}

	now := requestcontext.Now(ctx)
	sessionID, err := s.tokens.ValidateSessionToken(token, now)
	if errors.Is(err, jwttoken.ErrExpiredToken) {
		return s.expiredSession(ctx, sessionID)
	}
	if err != nil {
		return nil, s.fail(ctx, id.SessionID{}, models.ErrSessionNotFound(err))
	}

	r := &run{svc: s, sessionID: sessionID, reg: reg, now: now}
	report, err := saga.New("migration", s.logger).
		Then(saga.Step{Name: "validate_session", Action: r.validateSession}).
		Then(saga.Step{Name: "reserve_session", Action: r.reserve, Compensate: r.release}).
		Then(saga.Step{Name: "provision_identity", Action: r.provisionIdentity, Compensate: r.deleteIdentity}).
		Then(saga.Step{Name: "map_products", Action: r.mapProducts}).
		Then(saga.Step{Name: "persist_account", Action: r.persistAccount}).
		Then(saga.Step{Name: "mark_migrated", Action: r.markMigrated}).
		Run(ctx)

	switch {
	case err == nil && report.Stopped:
		s.metrics.IncrementOutcome(string(models.OutcomeAlreadyMigrated))
		s.logger.InfoContext(ctx, "session already migrated",
			"session_id", sessionID,
			"account_id", r.outcome.AccountID,
		)
		return r.outcome, nil

	case err == nil:
		outcome := &models.Outcome{
			Status:              models.OutcomeMigrated,
			AccountID:           r.accountID,
			MigratedRecordCount: len(r.records),
			SkippedProducts:     r.skipped,
		}
		s.metrics.IncrementOutcome(string(models.OutcomeMigrated))
		s.metrics.AddRecordsMigrated(len(r.records))
		s.logger.InfoContext(ctx, "session migrated",
			"session_id", sessionID,
			"account_id", r.accountID,
			"records", len(r.records),
			"skipped", len(r.skipped),
			"request_id", requestcontext.RequestID(ctx),
		)
		return outcome, nil

	case errors.Is(err, errLostRace):
		s.recordCompensation(ctx, r, report, err)
		return s.lostRace(ctx, sessionID), nil
	}

	s.recordCompensation(ctx, r, report, err)
	var me *models.Error
	if !errors.As(err, &me) {
		me = models.ErrProfilePersistence(err)
	}
	return nil, s.fail(ctx, sessionID, me)
}

// Reconcile resolves reservations older than the lease. A reservation whose
// session already owns an account is finalized. Any other is released so the
// visitor can retry, after deleting the identity it recorded.
func (s *Service) Reconcile(ctx context.Context) (models.ReconcileReport, error) {
	now := requestcontext.Now(ctx)
	var report models.ReconcileReport

	stale, err := s.sessions.ListStaleReservations(ctx, now.Add(-s.lease), reconcileBatch)
	if err != nil {
		return report, fmt.Errorf("list stale reservations: %w", err)
	}

	for _, res := range stale {
		account, err := s.accounts.FindAccountBySession(ctx, res.SessionID)
		switch {
		case err == nil:
			err = s.sessions.MarkMigrated(ctx, res.SessionID, res.Token, account.ID, now)
			if err == nil {
				report.Finalized++
				s.emit(ctx, audit.Event{
					Action:    audit.EventReservationFinalized,
					SessionID: res.SessionID,
					AccountID: account.ID,
				})
			}
		case errors.Is(err, sentinel.ErrNotFound):
			if res.IdentityRef != "" {
				if err = s.identities.Delete(ctx, res.IdentityRef); err != nil {
					err = fmt.Errorf("delete orphaned identity %s: %w", res.IdentityRef, err)
					break
				}
			}
			err = s.sessions.Release(ctx, res.SessionID, res.Token)
			if err == nil {
				report.Released++
				s.emit(ctx, audit.Event{
					Action:    audit.EventReservationReleased,
					SessionID: res.SessionID,
					Reason:    "lease expired",
				})
			}
		}
		if err != nil && !errors.Is(err, sentinel.ErrConflict) {
			s.logger.WarnContext(ctx, "failed to reconcile reservation",
				"session_id", res.SessionID,
				"reserved_at", res.ReservedAt,
				"error", err,
			)
		}
	}

	s.metrics.AddReservationsReconciled("released", report.Released)
	s.metrics.AddReservationsReconciled("finalized", report.Finalized)
	if report.Released+report.Finalized > 0 {
		s.logger.InfoContext(ctx, "stale migration reservations reconciled",
			"released", report.Released,
			"finalized", report.Finalized,
		)
	}
	return report, nil
}

// expiredSession answers an authentic token that outlived its session. A
// session migrated before it expired still reports its outcome.
func (s *Service) expiredSession(ctx context.Context, sessionID id.SessionID) (*models.Outcome, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	switch {
	case err == nil && session.Migrated:
		s.metrics.IncrementOutcome(string(models.OutcomeAlreadyMigrated))
		return s.priorOutcome(ctx, session), nil
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return nil, s.fail(ctx, sessionID, models.ErrSessionUnavailable(err))
	}
	return nil, s.fail(ctx, sessionID, models.ErrSessionExpired())
}

// priorOutcome rebuilds the outcome of a migration that already completed.
func (s *Service) priorOutcome(ctx context.Context, session *simmodels.TemporarySession) *models.Outcome {
	outcome := &models.Outcome{Status: models.OutcomeAlreadyMigrated}
	if session.AccountID == nil {
		return outcome
	}
	outcome.AccountID = *session.AccountID
	n, err := s.accounts.CountRecords(ctx, *session.AccountID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to count migrated records",
			"session_id", session.ID,
			"account_id", *session.AccountID,
			"error", err,
		)
		return outcome
	}
	outcome.MigratedRecordCount = n
	return outcome
}

// lostRace reports the account another migration committed for sessionID.
func (s *Service) lostRace(ctx context.Context, sessionID id.SessionID) *models.Outcome {
	s.metrics.IncrementOutcome(string(models.OutcomeAlreadyMigrated))
	outcome := &models.Outcome{Status: models.OutcomeAlreadyMigrated}
	account, err := s.accounts.FindAccountBySession(ctx, sessionID)
	if err != nil {
		return outcome
	}
	outcome.AccountID = account.ID
	if n, err := s.accounts.CountRecords(ctx, account.ID); err == nil {
		outcome.MigratedRecordCount = n
	}
	s.logger.InfoContext(ctx, "concurrent migration committed first",
		"session_id", sessionID,
		"account_id", account.ID,
	)
	return outcome
}

func (s *Service) recordCompensation(ctx context.Context, r *run, report saga.Report, err error) {
	failedStep := ""
	var stepErr *saga.StepError
	if errors.As(err, &stepErr) {
		failedStep = stepErr.Step
		if len(stepErr.CompensationErrs) > 0 {
			s.logger.ErrorContext(ctx, "migration compensation incomplete",
				"session_id", r.sessionID,
				"identity_ref", r.identityRef,
				"failed_step", failedStep,
				"error", errors.Join(stepErr.CompensationErrs...),
			)
		}
	}
	if len(report.Compensated) == 0 {
		return
	}
	s.metrics.IncrementCompensation()
	s.emit(ctx, audit.Event{
		Action:    audit.EventMigrationCompensated,
		SessionID: r.sessionID,
		Subject:   r.identityRef.String(),
		Reason:    failedStep,
		Attributes: map[string]string{
			"compensated": strings.Join(report.Compensated, ","),
		},
	})
}

func (s *Service) fail(ctx context.Context, sessionID id.SessionID, err *models.Error) error {
	s.metrics.IncrementFailure(string(err.Kind))
	level := slog.LevelWarn
	if !err.Retryable {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "migration failed",
		"session_id", sessionID,
		"kind", err.Kind,
		"retryable", err.Retryable,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return err
}

// emit records an audit event. Failures are logged and dropped.
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
