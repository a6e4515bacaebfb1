package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"eligo/internal/migration/models"
	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
	txcontext "eligo/pkg/platform/tx"
)

const uniqueViolation = "23505"

// ErrDuplicateAccount is returned when the session or identity already owns
// an account.
var ErrDuplicateAccount = fmt.Errorf("account already exists: %w", sentinel.ErrConflict)

// PostgresStore persists accounts, their eligibility records and simulation
// snapshots. Writes join the transaction carried in ctx, if any.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	metadata, err := json.Marshal(account.Metadata)
	if err != nil {
		return fmt.Errorf("marshal account metadata: %w", err)
	}
	query := `
		INSERT INTO accounts (
			id, identity_ref, email, display_name, company_name, phone, address, city,
			postal_code, siren, sector, employee_count, annual_revenue, company_age_years,
			password_hash, source_session_id, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		account.ID.String(), account.IdentityRef.String(), account.Email, account.DisplayName,
		account.CompanyName, account.Phone, account.Address, account.City,
		account.PostalCode, account.SIREN, account.Sector, account.EmployeeCount,
		account.AnnualRevenue, account.CompanyAgeYears, account.PasswordHash,
		account.SourceSessionID.String(), metadata, account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w (%s)", ErrDuplicateAccount, pqErr.Constraint)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// InsertRecords writes all records in one statement.
func (s *PostgresStore) InsertRecords(ctx context.Context, records []models.EligibilityRecord) error {
	if len(records) == 0 {
		return nil
	}
	var (
		ids, accounts, products, statuses, notes, provenance []string
		scores, amounts                                      []float64
		ranks, durations, steps, progress                    []int64
	)
	for _, r := range records {
		raw, err := json.Marshal(r.Provenance)
		if err != nil {
			return fmt.Errorf("marshal provenance: %w", err)
		}
		ids = append(ids, r.ID.String())
		accounts = append(accounts, r.AccountID.String())
		products = append(products, r.CatalogProductID.String())
		statuses = append(statuses, string(r.Status))
		scores = append(scores, r.NormalizedScore)
		amounts = append(amounts, r.EstimatedAmount)
		ranks = append(ranks, int64(r.PriorityRank))
		durations = append(durations, int64(r.DurationMonths))
		steps = append(steps, int64(r.CurrentStep))
		progress = append(progress, int64(r.Progress))
		notes = append(notes, r.Notes)
		provenance = append(provenance, string(raw))
	}
	query := `
		INSERT INTO eligibility_records (
			id, account_id, catalog_product_id, status, normalized_score, estimated_amount,
			priority_rank, duration_months, current_step, progress, notes, provenance, created_at
		)
		SELECT u.id, u.account_id, u.catalog_product_id, u.status, u.normalized_score, u.estimated_amount,
			u.priority_rank, u.duration_months, u.current_step, u.progress, u.notes, u.provenance, $13
		FROM unnest(
			$1::uuid[], $2::uuid[], $3::uuid[], $4::text[], $5::float8[], $6::float8[],
			$7::int[], $8::int[], $9::int[], $10::int[], $11::text[], $12::jsonb[]
		) AS u(id, account_id, catalog_product_id, status, normalized_score, estimated_amount,
			priority_rank, duration_months, current_step, progress, notes, provenance)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		pq.Array(ids), pq.Array(accounts), pq.Array(products), pq.Array(statuses),
		pq.Array(scores), pq.Array(amounts), pq.Array(ranks), pq.Array(durations),
		pq.Array(steps), pq.Array(progress), pq.Array(notes), pq.Array(provenance),
		records[0].CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert eligibility records: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	answers, err := json.Marshal(snapshot.Answers)
	if err != nil {
		return fmt.Errorf("marshal snapshot answers: %w", err)
	}
	results, err := json.Marshal(snapshot.Results)
	if err != nil {
		return fmt.Errorf("marshal snapshot results: %w", err)
	}
	query := `
		INSERT INTO simulation_snapshots (id, account_id, session_id, answers, results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		snapshot.ID.String(), snapshot.AccountID.String(), snapshot.SessionID.String(),
		answers, results, snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert simulation snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAccountBySession(ctx context.Context, sessionID id.SessionID) (*models.Account, error) {
	query := `
		SELECT id, identity_ref, email, display_name, company_name, source_session_id, created_at
		FROM accounts
		WHERE source_session_id = $1
	`
	var (
		account             models.Account
		accountID, sourceID uuid.UUID
		identityRef         string
		createdAt           time.Time
	)
	err := s.conn(ctx).QueryRowContext(ctx, query, sessionID.String()).Scan(
		&accountID, &identityRef, &account.Email, &account.DisplayName,
		&account.CompanyName, &sourceID, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account by session: %w", err)
	}
	account.ID = id.AccountID(accountID)
	account.IdentityRef = id.IdentityRef(identityRef)
	account.SourceSessionID = id.SessionID(sourceID)
	account.CreatedAt = createdAt
	return &account, nil
}

func (s *PostgresStore) CountRecords(ctx context.Context, accountID id.AccountID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM eligibility_records WHERE account_id = $1`
	if err := s.conn(ctx).QueryRowContext(ctx, query, accountID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count eligibility records: %w", err)
	}
	return n, nil
}
