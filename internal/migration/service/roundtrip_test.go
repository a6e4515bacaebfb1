package service_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	internalaudit "eligo/internal/audit"
	"eligo/internal/catalog"
	catalogstore "eligo/internal/catalog/store"
	"eligo/internal/eligibility"
	"eligo/internal/eligibility/extract"
	jwttoken "eligo/internal/jwt_token"
	"eligo/internal/migration/identity"
	"eligo/internal/migration/models"
	"eligo/internal/migration/service"
	migrationstore "eligo/internal/migration/store"
	simmodels "eligo/internal/simulation/models"
	simservice "eligo/internal/simulation/service"
	simstore "eligo/internal/simulation/store"
	id "eligo/pkg/domain"
	dErrors "eligo/pkg/domain-errors"
	audit "eligo/pkg/platform/audit"
	auditmemory "eligo/pkg/platform/audit/store/memory"
	"eligo/pkg/requestcontext"
)

type failingRecords struct {
	*migrationstore.InMemoryStore
	fail bool
}

func (f *failingRecords) InsertRecords(ctx context.Context, records []models.EligibilityRecord) error {
	if f.fail {
		return errors.New("insert failed")
	}
	return f.InMemoryStore.InsertRecords(ctx, records)
}

// flakyProvider commits the first create and then reports a timeout, the
// way a dropped connection looks to the caller. While lookupDown is set,
// email lookups fail too.
type flakyProvider struct {
	*identity.InMemoryProvider
	timedOut   bool
	lookupDown bool
}

func (p *flakyProvider) Create(ctx context.Context, req identity.NewIdentity) (id.IdentityRef, error) {
	ref, err := p.InMemoryProvider.Create(ctx, req)
	if err != nil || p.timedOut {
		return ref, err
	}
	p.timedOut = true
	return "", context.DeadlineExceeded
}

func (p *flakyProvider) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	if p.lookupDown {
		return nil, identity.ErrUnavailable
	}
	return p.InMemoryProvider.FindByEmail(ctx, email)
}

type harness struct {
	sessions   *simstore.InMemoryStore
	accounts   *failingRecords
	identities *identity.InMemoryProvider
	auditStore *auditmemory.InMemoryStore
	tokens     *jwttoken.JWTService
	service    *service.Service
	now        time.Time
	ctx        context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith lets wrap replace the identity provider the service sees.
func newHarnessWith(t *testing.T, wrap func(*identity.InMemoryProvider) identity.Provider) *harness {
	t.Helper()
	h := &harness{
		sessions:   simstore.NewInMemoryStore(),
		accounts:   &failingRecords{InMemoryStore: migrationstore.NewInMemoryStore()},
		identities: identity.NewInMemoryProvider(),
		auditStore: auditmemory.NewInMemoryStore(),
		tokens:     jwttoken.NewJWTService("roundtrip-key"),
		now:        time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
	}
	h.ctx = requestcontext.WithTime(context.Background(), h.now)
	var provider identity.Provider = h.identities
	if wrap != nil {
		provider = wrap(h.identities)
	}
	mapper := catalog.NewMapper(catalogstore.NewInMemoryStore(catalog.DefaultProducts()...))
	h.service = service.New(h.sessions, h.accounts, h.accounts.InMemoryStore, h.tokens, provider, mapper,
		service.WithLogger(slog.New(slog.DiscardHandler)),
		service.WithAuditPublisher(internalaudit.NewPublisher(h.auditStore, slog.New(slog.DiscardHandler))),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithMarkRetry(1, 0),
	)
	return h
}

// seed stores a scored session and returns its access token.
func (h *harness) seed(t *testing.T, results eligibility.Results, expiresAt time.Time) (id.SessionID, string) {
	t.Helper()
	sessionID := id.SessionID(uuid.New())
	require.NoError(t, h.sessions.Create(h.ctx, &simmodels.TemporarySession{
		ID:        sessionID,
		Answers:   []extract.Answer{extract.TextAnswer("q_secteur", "Transport routier")},
		Results:   results,
		Company:   extract.CompanyAttributes{SectorLabel: "Transport routier", EmployeeCount: 12, AnnualRevenue: 960000, CompanyAgeYears: 5},
		CreatedAt: h.now.Add(-time.Hour),
		ExpiresAt: expiresAt,
		Completed: true,
	}))
	token, err := h.tokens.GenerateSessionToken(sessionID, h.now.Add(-time.Hour), h.now.Add(23*time.Hour))
	require.NoError(t, err)
	return sessionID, token
}

func retryable(err error) bool {
	var me *models.Error
	return errors.As(err, &me) && me.IsRetryable()
}

func scored() eligibility.Results {
	return eligibility.Results{
		{ProductCode: "TICPE", Score: 85, EstimatedAmount: 12000, Confidence: eligibility.ConfidenceHigh},
		{ProductCode: "CEE", Score: 65, EstimatedAmount: 3000, Confidence: eligibility.ConfidenceMedium},
	}
}

func registration(email string) models.Registration {
	return models.Registration{Email: email, Password: "s3cret-pass", CompanyName: "Transports Dupont"}
}

func TestMigrateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	sessionID, token := h.seed(t, scored(), h.now.Add(23*time.Hour))

	first, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, first.Status)
	assert.Equal(t, 2, first.MigratedRecordCount)

	second, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyMigrated, second.Status)
	assert.Equal(t, first.AccountID, second.AccountID)
	assert.Equal(t, 2, second.MigratedRecordCount)

	assert.Len(t, h.accounts.Accounts(), 1)
	assert.Len(t, h.accounts.RecordsFor(first.AccountID), 2)
	assert.Equal(t, 1, h.identities.Count())

	session, err := h.sessions.FindByID(h.ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, session.Migrated)
	require.NotNil(t, session.AccountID)
	assert.Equal(t, first.AccountID, *session.AccountID)

	account := h.accounts.Accounts()[0]
	assert.Equal(t, "Transport routier", account.Sector)
	assert.Equal(t, 12, account.EmployeeCount)
	assert.Equal(t, int64(960000), account.AnnualRevenue)
	assert.Len(t, h.accounts.Snapshots(), 1)
	assert.Contains(t, h.auditStore.Actions(), audit.EventAccountMigrated)
}

func TestMigrateUnmappedProductIsSkipped(t *testing.T) {
	h := newHarness(t)
	results := append(scored(), eligibility.Result{ProductCode: "MSA", Score: 70, EstimatedAmount: 900})
	_, token := h.seed(t, results, h.now.Add(23*time.Hour))

	outcome, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, outcome.Status)
	assert.Equal(t, 2, outcome.MigratedRecordCount)
	assert.Less(t, outcome.MigratedRecordCount, len(results))
	assert.Equal(t, []models.SkippedProduct{{ProductCode: "MSA", Reason: models.SkipUnmapped}}, outcome.SkippedProducts)
}

func TestMigrateEmptyResultsStillCreatesAccount(t *testing.T) {
	h := newHarness(t)
	_, token := h.seed(t, nil, h.now.Add(23*time.Hour))

	outcome, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, outcome.Status)
	assert.Zero(t, outcome.MigratedRecordCount)
	assert.Len(t, h.accounts.Accounts(), 1)
}

// simulate runs a real simulation so the token is the one visitors hold.
func (h *harness) simulate(t *testing.T) *simmodels.Created {
	t.Helper()
	simulation := simservice.New(h.sessions, eligibility.NewEngine(), h.tokens,
		simservice.WithLogger(slog.New(slog.DiscardHandler)),
	)
	created, err := simulation.Create(h.ctx, []extract.Answer{
		extract.TextAnswer("q_secteur", "Transport routier"),
	})
	require.NoError(t, err)
	return created
}

func TestMigrateExpiredSession(t *testing.T) {
	h := newHarness(t)
	created := h.simulate(t)

	later := requestcontext.WithTime(context.Background(), h.now.Add(25*time.Hour))
	_, err := h.service.Migrate(later, created.AccessToken, registration("jean@example.fr"))
	require.Error(t, err)
	assert.Equal(t, models.FailureSessionExpired, models.KindOf(err))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGone))
	assert.Empty(t, h.accounts.Accounts())
	assert.Zero(t, h.identities.Count())
}

func TestMigrateReplayAfterExpiryReturnsFirstOutcome(t *testing.T) {
	h := newHarness(t)
	created := h.simulate(t)

	first, err := h.service.Migrate(h.ctx, created.AccessToken, registration("jean@example.fr"))
	require.NoError(t, err)
	require.Equal(t, models.OutcomeMigrated, first.Status)

	later := requestcontext.WithTime(context.Background(), h.now.Add(25*time.Hour))
	replay, err := h.service.Migrate(later, created.AccessToken, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyMigrated, replay.Status)
	assert.Equal(t, first.AccountID, replay.AccountID)
	assert.Equal(t, first.MigratedRecordCount, replay.MigratedRecordCount)
}

func TestMigrateRetriesAfterTimedOutIdentityCreate(t *testing.T) {
	h := newHarnessWith(t, func(p *identity.InMemoryProvider) identity.Provider {
		return &flakyProvider{InMemoryProvider: p}
	})
	sessionID, token := h.seed(t, scored(), h.now.Add(23*time.Hour))

	_, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.Error(t, err)
	assert.Equal(t, models.FailureIdentityProvisioning, models.KindOf(err))
	assert.True(t, retryable(err))
	assert.Zero(t, h.identities.Count(), "identity created before the timeout is removed")

	session, err := h.sessions.FindByID(h.ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, session.IsReserved())

	outcome, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, outcome.Status)
	assert.Equal(t, 1, h.identities.Count())
	assert.Len(t, h.accounts.Accounts(), 1)
}

func TestMigrateRetryReclaimsIdentityLeftByTimedOutCreate(t *testing.T) {
	var provider *flakyProvider
	h := newHarnessWith(t, func(p *identity.InMemoryProvider) identity.Provider {
		provider = &flakyProvider{InMemoryProvider: p, lookupDown: true}
		return provider
	})
	_, token := h.seed(t, scored(), h.now.Add(23*time.Hour))

	_, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.Error(t, err)
	assert.True(t, retryable(err))
	assert.Equal(t, 1, h.identities.Count(), "cleanup could not reach the provider")

	provider.lookupDown = false
	outcome, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, outcome.Status)
	assert.Equal(t, 1, h.identities.Count())

	account := h.accounts.Accounts()[0]
	found, err := h.identities.FindByEmail(h.ctx, "jean@example.fr")
	require.NoError(t, err)
	assert.Equal(t, found.Ref, account.IdentityRef)
}

func TestMigrateDoesNotReclaimAnotherVisitorsIdentity(t *testing.T) {
	h := newHarness(t)
	_, token := h.seed(t, scored(), h.now.Add(23*time.Hour))
	_, err := h.identities.Create(h.ctx, identity.NewIdentity{Email: "jean@example.fr", Password: "other-pass"})
	require.NoError(t, err)

	_, err = h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.Error(t, err)
	assert.Equal(t, models.FailureInvalidRegistration, models.KindOf(err))
	assert.False(t, retryable(err))
	assert.Equal(t, 1, h.identities.Count())
}

func TestMigrateCompensatesAndAllowsRetry(t *testing.T) {
	h := newHarness(t)
	sessionID, token := h.seed(t, scored(), h.now.Add(23*time.Hour))
	h.accounts.fail = true

	_, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.Error(t, err)
	assert.Equal(t, models.FailureRecordPersistence, models.KindOf(err))
	assert.Empty(t, h.accounts.Accounts(), "account row rolled back")
	assert.Zero(t, h.identities.Count(), "identity compensated")

	session, err := h.sessions.FindByID(h.ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, session.Migrated)
	assert.False(t, session.IsReserved())
	assert.Contains(t, h.auditStore.Actions(), audit.EventMigrationCompensated)

	h.accounts.fail = false
	outcome, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, outcome.Status)
	assert.Equal(t, 1, h.identities.Count())
}

func TestConcurrentMigrationsCreateOneAccount(t *testing.T) {
	h := newHarness(t)
	_, token := h.seed(t, scored(), h.now.Add(23*time.Hour))

	const callers = 8
	outcomes := make([]*models.Outcome, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
		}()
	}
	close(start)
	wg.Wait()

	migrated := 0
	for i := range callers {
		require.NoError(t, errs[i])
		switch outcomes[i].Status {
		case models.OutcomeMigrated:
			migrated++
		case models.OutcomeAlreadyMigrated:
		default:
			t.Fatalf("unexpected outcome %q", outcomes[i].Status)
		}
	}
	assert.Equal(t, 1, migrated)
	assert.Len(t, h.accounts.Accounts(), 1)
	assert.Equal(t, 1, h.identities.Count())
}

func TestReconcileReleasesAbandonedReservation(t *testing.T) {
	h := newHarness(t)
	sessionID, token := h.seed(t, scored(), h.now.Add(23*time.Hour))
	require.NoError(t, h.sessions.Reserve(h.ctx, sessionID, uuid.New(), h.now.Add(-time.Hour)))

	outcome, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyMigrated, outcome.Status, "held reservation blocks a second migration")

	report, err := h.service.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileReport{Released: 1}, report)

	outcome, err = h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, outcome.Status)
}

func TestReconcileDeletesIdentityOfAbandonedReservation(t *testing.T) {
	h := newHarness(t)
	sessionID, token := h.seed(t, scored(), h.now.Add(23*time.Hour))
	reservation := uuid.New()
	require.NoError(t, h.sessions.Reserve(h.ctx, sessionID, reservation, h.now.Add(-time.Hour)))
	ref, err := h.identities.Create(h.ctx, identity.NewIdentity{
		Email:    "jean@example.fr",
		Password: "s3cret-pass",
		Metadata: map[string]string{identity.MetadataSessionKey: sessionID.String()},
	})
	require.NoError(t, err)
	require.NoError(t, h.sessions.RecordIdentity(h.ctx, sessionID, reservation, ref))

	report, err := h.service.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileReport{Released: 1}, report)
	assert.Zero(t, h.identities.Count())

	outcome, err := h.service.Migrate(h.ctx, token, registration("jean@example.fr"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMigrated, outcome.Status)
}

func TestReconcileFinalizesCommittedMigration(t *testing.T) {
	h := newHarness(t)
	sessionID, _ := h.seed(t, scored(), h.now.Add(23*time.Hour))
	reservation := uuid.New()
	require.NoError(t, h.sessions.Reserve(h.ctx, sessionID, reservation, h.now.Add(-time.Hour)))
	account := &models.Account{
		ID:              id.AccountID(uuid.New()),
		IdentityRef:     "identity-1",
		SourceSessionID: sessionID,
		CreatedAt:       h.now.Add(-time.Hour),
	}
	require.NoError(t, h.accounts.CreateAccount(h.ctx, account))

	report, err := h.service.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileReport{Finalized: 1}, report)

	session, err := h.sessions.FindByID(h.ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, session.Migrated)
	assert.Equal(t, account.ID, *session.AccountID)
}
