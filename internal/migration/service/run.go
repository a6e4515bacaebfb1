package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"eligo/internal/eligibility"
	"eligo/internal/migration/identity"
	"eligo/internal/migration/models"
	"eligo/internal/migration/saga"
	simmodels "eligo/internal/simulation/models"
	id "eligo/pkg/domain"
	audit "eligo/pkg/platform/audit"
	"eligo/pkg/platform/sentinel"
)

// mappedResult is a scored result with its resolved catalog product.
type mappedResult struct {
	productID id.CatalogProductID
	result    eligibility.Result
}

// run is the state of one migration attempt, threaded through the saga steps.
type run struct {
	svc       *Service
	sessionID id.SessionID
	reg       models.Registration
	now       time.Time

	session     *simmodels.TemporarySession
	token       uuid.UUID
	identityRef id.IdentityRef
	mapped      []mappedResult
	skipped     []models.SkippedProduct
	accountID   id.AccountID
	records     []models.EligibilityRecord

	outcome *models.Outcome
}

func (r *run) validateSession(ctx context.Context) error {
	session, err := r.svc.sessions.FindByID(ctx, r.sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.ErrSessionNotFound(err)
	}
	if err != nil {
		return models.ErrSessionUnavailable(err)
	}
	if session.Migrated {
		r.outcome = r.svc.priorOutcome(ctx, session)
		return saga.ErrStop
	}
	if session.IsExpired(r.now) {
		return models.ErrSessionExpired()
	}
	r.session = session
	return nil
}

// reserve is the serialization point: exactly one caller wins the CAS.
func (r *run) reserve(ctx context.Context) error {
	token := uuid.New()
	err := r.svc.sessions.Reserve(ctx, r.sessionID, token, r.now)
	if errors.Is(err, sentinel.ErrConflict) {
		r.outcome = &models.Outcome{Status: models.OutcomeAlreadyMigrated}
		if session, ferr := r.svc.sessions.FindByID(ctx, r.sessionID); ferr == nil && session.Migrated {
			r.outcome = r.svc.priorOutcome(ctx, session)
		}
		r.svc.logger.InfoContext(ctx, "migration reservation lost",
			"session_id", r.sessionID,
		)
		return saga.ErrStop
	}
	if err != nil {
		return models.ErrSessionUnavailable(err)
	}
	r.token = token
	return nil
}

func (r *run) release(ctx context.Context) error {
	err := r.svc.sessions.Release(ctx, r.sessionID, r.token)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil
	}
	return err
}

// provisionIdentity creates the login identity and records it on the
// reservation. A failed step is not compensated by the saga, so any identity
// this session may have created is cleaned up here before returning.
func (r *run) provisionIdentity(ctx context.Context) error {
	req := identity.NewIdentity{
		Email:    r.reg.Email,
		Password: r.reg.Password,
		Metadata: map[string]string{
			"username":                  r.reg.DisplayName(),
			"company_name":              r.reg.CompanyName,
			"siren":                     r.reg.SIREN,
			"phone_number":              r.reg.Phone,
			"source":                    models.ProvenanceSource,
			identity.MetadataSessionKey: r.sessionID.String(),
		},
	}
	ref, err := r.svc.identities.Create(ctx, req)
	if identity.IsEmailTaken(err) {
		// An earlier attempt may have created the identity and lost the reply.
		reclaimed, rerr := r.reclaimIdentity(ctx)
		if rerr != nil {
			return models.ErrIdentityProvisioning(rerr)
		}
		if !reclaimed {
			return models.ErrEmailTaken(err)
		}
		ref, err = r.svc.identities.Create(ctx, req)
		if identity.IsEmailTaken(err) {
			return models.ErrEmailTaken(err)
		}
	}
	if err != nil {
		// The provider may have committed the create before the call failed.
		if _, rerr := r.reclaimIdentity(context.WithoutCancel(ctx)); rerr != nil {
			r.svc.logger.WarnContext(ctx, "failed to clean up identity after provisioning error",
				"session_id", r.sessionID,
				"error", rerr,
			)
		}
		return models.ErrIdentityProvisioning(err)
	}

	if err := r.svc.sessions.RecordIdentity(ctx, r.sessionID, r.token, ref); err != nil {
		if derr := r.svc.identities.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			r.svc.logger.ErrorContext(ctx, "failed to delete unrecorded identity",
				"session_id", r.sessionID,
				"identity_ref", ref,
				"error", derr,
			)
		}
		return models.ErrSessionUnavailable(err)
	}
	r.identityRef = ref
	return nil
}

// reclaimIdentity deletes the identity registered under the visitor's email
// when it was created by a migration of this same session. It reports whether
// one was deleted.
func (r *run) reclaimIdentity(ctx context.Context) (bool, error) {
	existing, err := r.svc.identities.FindByEmail(ctx, r.reg.Email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up identity: %w", err)
	}
	if !existing.CreatedFor(r.sessionID) {
		return false, nil
	}
	if err := r.svc.identities.Delete(ctx, existing.Ref); err != nil {
		return false, fmt.Errorf("delete identity %s: %w", existing.Ref, err)
	}
	r.svc.logger.InfoContext(ctx, "reclaimed identity left by an earlier attempt",
		"session_id", r.sessionID,
		"identity_ref", existing.Ref,
	)
	return true, nil
}

func (r *run) deleteIdentity(ctx context.Context) error {
	return r.svc.identities.Delete(ctx, r.identityRef)
}

// mapProducts never fails: unresolved codes are skipped and reported.
func (r *run) mapProducts(ctx context.Context) error {
	for _, result := range r.session.Results {
		productID, ok, err := r.svc.catalog.Resolve(ctx, result.ProductCode)
		if err != nil || !ok {
			reason := models.SkipUnmapped
			if err != nil {
				reason = models.SkipCatalogUnavailable
			}
			r.skipped = append(r.skipped, models.SkippedProduct{ProductCode: result.ProductCode, Reason: reason})
			r.svc.metrics.IncrementProductSkipped(reason)
			r.svc.logger.WarnContext(ctx, "product dropped from migration",
				"session_id", r.sessionID,
				"product_code", result.ProductCode,
				"reason", reason,
				"error", err,
			)
			continue
		}
		r.mapped = append(r.mapped, mappedResult{productID: productID, result: result})
	}
	return nil
}

// persistAccount writes the profile, the records, the snapshot and the
// compliance audit event in one transaction.
func (r *run) persistAccount(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(r.reg.Password), r.svc.bcryptCost)
	if err != nil {
		return models.ErrProfilePersistence(fmt.Errorf("hash password: %w", err))
	}

	account := r.buildAccount(string(hash))
	records := make([]models.EligibilityRecord, 0, len(r.mapped))
	for _, m := range r.mapped {
		records = append(records, models.NewRecord(account.ID, m.productID, r.sessionID, m.result, r.now))
	}

	err = r.svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.svc.accounts.CreateAccount(ctx, account); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return fmt.Errorf("%w: %w", errLostRace, err)
			}
			return models.ErrProfilePersistence(err)
		}
		if err := r.svc.accounts.InsertRecords(ctx, records); err != nil {
			return models.ErrRecordPersistence(err)
		}
		snapshot := &models.Snapshot{
			ID:        uuid.New(),
			AccountID: account.ID,
			SessionID: r.sessionID,
			Answers:   r.session.Answers,
			Results:   r.session.Results,
			CreatedAt: r.now,
		}
		if err := r.svc.accounts.SaveSnapshot(ctx, snapshot); err != nil {
			return models.ErrRecordPersistence(err)
		}
		if r.svc.auditPublisher != nil {
			err := r.svc.auditPublisher.Emit(ctx, audit.Event{
				Action:    audit.EventAccountMigrated,
				SessionID: r.sessionID,
				AccountID: account.ID,
				Subject:   account.IdentityRef.String(),
				Attributes: map[string]string{
					"records": fmt.Sprint(len(records)),
					"skipped": fmt.Sprint(len(r.skipped)),
				},
			})
			if err != nil {
				return models.ErrRecordPersistence(fmt.Errorf("append audit event: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.accountID = account.ID
	r.records = records
	return nil
}

func (r *run) buildAccount(passwordHash string) *models.Account {
	company := r.session.Company
	account := &models.Account{
		ID:              id.AccountID(uuid.New()),
		IdentityRef:     r.identityRef,
		Email:           r.reg.Email,
		DisplayName:     r.reg.DisplayName(),
		CompanyName:     r.reg.CompanyName,
		Phone:           r.reg.Phone,
		Address:         r.reg.Address,
		City:            r.reg.City,
		PostalCode:      r.reg.PostalCode,
		SIREN:           r.reg.SIREN,
		Sector:          firstNonEmpty(r.reg.Sector, company.SectorLabel),
		EmployeeCount:   r.reg.EmployeeCount,
		AnnualRevenue:   r.reg.AnnualRevenue,
		CompanyAgeYears: r.reg.CompanyAgeYears,
		PasswordHash:    passwordHash,
		SourceSessionID: r.sessionID,
		Metadata: map[string]string{
			"source":         models.ProvenanceSource,
			"migration_date": r.now.UTC().Format(time.RFC3339),
		},
		CreatedAt: r.now,
	}
	if account.EmployeeCount == 0 {
		account.EmployeeCount = company.EmployeeCount
	}
	if account.AnnualRevenue == 0 {
		account.AnnualRevenue = int64(company.AnnualRevenue)
	}
	if account.CompanyAgeYears == 0 {
		account.CompanyAgeYears = company.CompanyAgeYears
	}
	return account
}

// markMigrated flips the latch for this reservation. The account is already
// committed, so this step never fails the saga: after the retries are spent,
// or once the request is cancelled, the reservation is left for Reconcile to
// finalize. Each store call runs detached from cancellation.
func (r *run) markMigrated(ctx context.Context) error {
	storeCtx := context.WithoutCancel(ctx)
	logger := r.svc.logger

	var err error
	for attempt := 1; attempt <= r.svc.markAttempts; attempt++ {
		err = r.svc.sessions.MarkMigrated(storeCtx, r.sessionID, r.token, r.accountID, r.now)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			session, ferr := r.svc.sessions.FindByID(storeCtx, r.sessionID)
			if ferr == nil && session.Migrated && session.AccountID != nil && *session.AccountID == r.accountID {
				return nil
			}
			break
		}
		if attempt == r.svc.markAttempts {
			break
		}
		r.svc.metrics.IncrementMarkRetry()
		if !sleepCtx(ctx, r.svc.markBackoff*time.Duration(attempt)) {
			err = fmt.Errorf("%w (last attempt: %w)", context.Cause(ctx), err)
			break
		}
	}

	r.svc.metrics.IncrementMarkAbandoned()
	logger.ErrorContext(storeCtx, "failed to mark session migrated, leaving reservation for reconciliation",
		"session_id", r.sessionID,
		"account_id", r.accountID,
		"error", err,
	)
	return nil
}

// sleepCtx waits for d and reports false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
