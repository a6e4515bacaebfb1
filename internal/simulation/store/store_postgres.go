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

	"eligo/internal/simulation/models"
	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
	txcontext "eligo/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists temporary sessions. The migrated latch and the
// migration reservation are only ever changed by single conditional UPDATEs.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const sessionColumns = `id, answers, results, profile, company, client_ip, user_agent, device_label,
	completed, created_at, expires_at, abandoned_at, abandon_reason,
	reserved_by, reserved_at, reserved_identity, migrated, migrated_at, account_id`

func (s *PostgresStore) Create(ctx context.Context, session *models.TemporarySession) error {
	answers, err := json.Marshal(session.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	results, err := json.Marshal(session.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	profile, err := json.Marshal(session.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	company, err := json.Marshal(session.Company)
	if err != nil {
		return fmt.Errorf("marshal company: %w", err)
	}

	query := `
		INSERT INTO temporary_sessions (id, answers, results, profile, company, client_ip,
			user_agent, device_label, completed, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		session.ID.String(), answers, results, profile, company,
		session.ClientIP, session.UserAgent, session.DeviceLabel,
		session.Completed, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.TemporarySession, error) {
	query := `SELECT ` + sessionColumns + ` FROM temporary_sessions WHERE id = $1`
	session, err := scanSession(s.conn(ctx).QueryRowContext(ctx, query, sessionID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) Abandon(ctx context.Context, sessionID id.SessionID, reason string, at time.Time) error {
	query := `
		UPDATE temporary_sessions
		SET abandoned_at = $2, abandon_reason = $3
		WHERE id = $1 AND migrated = FALSE AND abandoned_at IS NULL
	`
	return s.conditional(ctx, "abandon session", sentinel.ErrInvalidState, query, sessionID.String(), at, reason)
}

// Reserve takes the migration lease. Zero rows means the session is already
// migrated or held by another migration.
func (s *PostgresStore) Reserve(ctx context.Context, sessionID id.SessionID, token uuid.UUID, at time.Time) error {
	query := `
		UPDATE temporary_sessions
		SET reserved_by = $2, reserved_at = $3
		WHERE id = $1 AND migrated = FALSE AND reserved_by IS NULL
	`
	return s.conditional(ctx, "reserve session", sentinel.ErrConflict, query, sessionID.String(), token, at)
}

func (s *PostgresStore) Release(ctx context.Context, sessionID id.SessionID, token uuid.UUID) error {
	query := `
		UPDATE temporary_sessions
		SET reserved_by = NULL, reserved_at = NULL, reserved_identity = NULL
		WHERE id = $1 AND migrated = FALSE AND reserved_by = $2
	`
	return s.conditional(ctx, "release session", sentinel.ErrConflict, query, sessionID.String(), token)
}

// MarkMigrated flips the one-way latch for the lease holder.
func (s *PostgresStore) MarkMigrated(ctx context.Context, sessionID id.SessionID, token uuid.UUID, accountID id.AccountID, at time.Time) error {
	query := `
		UPDATE temporary_sessions
		SET migrated = TRUE, migrated_at = $3, account_id = $4,
			reserved_by = NULL, reserved_at = NULL, reserved_identity = NULL
		WHERE id = $1 AND migrated = FALSE AND reserved_by = $2
	`
	return s.conditional(ctx, "mark session migrated", sentinel.ErrConflict, query, sessionID.String(), token, at, accountID.String())
}

// RecordIdentity attaches the identity created under the lease so a crashed
// migration can be cleaned up by Reconcile.
func (s *PostgresStore) RecordIdentity(ctx context.Context, sessionID id.SessionID, token uuid.UUID, ref id.IdentityRef) error {
	query := `
		UPDATE temporary_sessions
		SET reserved_identity = $3
		WHERE id = $1 AND migrated = FALSE AND reserved_by = $2
	`
	return s.conditional(ctx, "record reserved identity", sentinel.ErrConflict, query, sessionID.String(), token, ref.String())
}

func (s *PostgresStore) conditional(ctx context.Context, op string, zeroRows error, query string, args ...any) error {
	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return zeroRows
	}
	return nil
}

func (s *PostgresStore) ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error) {
	query := `
		SELECT id, reserved_by, reserved_at, COALESCE(reserved_identity, '')
		FROM temporary_sessions
		WHERE reserved_by IS NOT NULL AND migrated = FALSE AND reserved_at < $1
		ORDER BY reserved_at
		LIMIT $2
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		var (
			sessionID, token uuid.UUID
			reservedAt       time.Time
			identityRef      string
		)
		if err := rows.Scan(&sessionID, &token, &reservedAt, &identityRef); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, models.Reservation{
			SessionID:   id.SessionID(sessionID),
			Token:       token,
			ReservedAt:  reservedAt,
			IdentityRef: id.IdentityRef(identityRef),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

// DeleteExpired removes unmigrated, unreserved sessions that expired before
// the cutoff.
func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	query := `
		DELETE FROM temporary_sessions
		WHERE expires_at < $1 AND migrated = FALSE AND reserved_by IS NULL
	`
	return s.delete(ctx, "delete expired sessions", query, before)
}

func (s *PostgresStore) DeleteMigrated(ctx context.Context, before time.Time) (int, error) {
	query := `DELETE FROM temporary_sessions WHERE migrated = TRUE AND migrated_at < $1`
	return s.delete(ctx, "delete migrated sessions", query, before)
}

func (s *PostgresStore) delete(ctx context.Context, op, query string, before time.Time) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

func (s *PostgresStore) Stats(ctx context.Context, since time.Time) (models.Stats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE completed),
			COUNT(*) FILTER (WHERE migrated),
			COUNT(*) FILTER (WHERE abandoned_at IS NOT NULL)
		FROM temporary_sessions
		WHERE created_at >= $1
	`
	var stats models.Stats
	err := s.conn(ctx).QueryRowContext(ctx, query, since).
		Scan(&stats.Total, &stats.Completed, &stats.Migrated, &stats.Abandoned)
	if err != nil {
		return models.Stats{}, fmt.Errorf("session stats: %w", err)
	}
	stats.ComputeConversion()
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.TemporarySession, error) {
	var (
		session                             models.TemporarySession
		rawID                               uuid.UUID
		answers, results, profile, company  []byte
		abandonedAt, reservedAt, migratedAt sql.NullTime
		abandonReason, reservedIdentity     sql.NullString
		reservedBy, accountID               uuid.NullUUID
	)
	err := row.Scan(
		&rawID, &answers, &results, &profile, &company,
		&session.ClientIP, &session.UserAgent, &session.DeviceLabel,
		&session.Completed, &session.CreatedAt, &session.ExpiresAt,
		&abandonedAt, &abandonReason,
		&reservedBy, &reservedAt, &reservedIdentity, &session.Migrated, &migratedAt, &accountID,
	)
	if err != nil {
		return nil, err
	}
	session.ID = id.SessionID(rawID)
	if err := json.Unmarshal(answers, &session.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal(results, &session.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if err := json.Unmarshal(profile, &session.Profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := json.Unmarshal(company, &session.Company); err != nil {
		return nil, fmt.Errorf("decode company: %w", err)
	}
	if abandonedAt.Valid {
		session.AbandonedAt = &abandonedAt.Time
	}
	session.AbandonReason = abandonReason.String
	if reservedBy.Valid {
		session.ReservedBy = &reservedBy.UUID
	}
	if reservedAt.Valid {
		session.ReservedAt = &reservedAt.Time
	}
	session.ReservedIdentity = id.IdentityRef(reservedIdentity.String)
	if migratedAt.Valid {
		session.MigratedAt = &migratedAt.Time
	}
	if accountID.Valid {
		acc := id.AccountID(accountID.UUID)
		session.AccountID = &acc
	}
	return &session, nil
}
