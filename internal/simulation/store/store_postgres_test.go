package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligo/internal/eligibility"
	"eligo/internal/eligibility/extract"
	"eligo/internal/simulation/models"
	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresStore_ReserveZeroRowsIsConflict(t *testing.T) {
	store, mock := newMock(t)
	sessionID := id.SessionID(uuid.New())
	token := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE temporary_sessions SET reserved_by").
		WithArgs(sessionID.String(), token, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Reserve(context.Background(), sessionID, token, now)
	require.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveWins(t *testing.T) {
	store, mock := newMock(t)
	sessionID := id.SessionID(uuid.New())

	mock.ExpectExec("UPDATE temporary_sessions SET reserved_by").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Reserve(context.Background(), sessionID, uuid.New(), time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkMigratedRequiresLeaseHolder(t *testing.T) {
	store, mock := newMock(t)
	sessionID := id.SessionID(uuid.New())
	account := id.AccountID(uuid.New())
	token := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE temporary_sessions SET migrated = TRUE").
		WithArgs(sessionID.String(), token, now, account.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkMigrated(context.Background(), sessionID, token, account, now)
	require.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordIdentityRequiresLeaseHolder(t *testing.T) {
	store, mock := newMock(t)
	sessionID := id.SessionID(uuid.New())
	token := uuid.New()

	mock.ExpectExec("UPDATE temporary_sessions SET reserved_identity").
		WithArgs(sessionID.String(), token, "gotrue-user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE temporary_sessions SET reserved_identity").
		WithArgs(sessionID.String(), token, "gotrue-user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.RecordIdentity(context.Background(), sessionID, token, "gotrue-user-1"))
	err := store.RecordIdentity(context.Background(), sessionID, token, "gotrue-user-2")
	require.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStaleReservationsCarriesIdentity(t *testing.T) {
	store, mock := newMock(t)
	sessionID := id.SessionID(uuid.New())
	token := uuid.New()
	reservedAt := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, reserved_by, reserved_at, COALESCE\\(reserved_identity, ''\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reserved_by", "reserved_at", "reserved_identity"}).
			AddRow(sessionID.String(), token.String(), reservedAt, "gotrue-user-1"))

	got, err := store.ListStaleReservations(context.Background(), reservedAt.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.Reservation{
		SessionID:   sessionID,
		Token:       token,
		ReservedAt:  reservedAt,
		IdentityRef: "gotrue-user-1",
	}, got[0])
}

func TestPostgresStore_ConditionalPropagatesDriverError(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("UPDATE temporary_sessions SET reserved_by = NULL").
		WillReturnError(errors.New("connection reset"))

	err := store.Release(context.Background(), id.SessionID(uuid.New()), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrConflict)
}

func TestPostgresStore_CreateDuplicateIsConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("INSERT INTO temporary_sessions").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Create(context.Background(), &models.TemporarySession{ID: id.SessionID(uuid.New())})
	require.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestPostgresStore_FindByIDNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM temporary_sessions WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.FindByID(context.Background(), id.SessionID(uuid.New()))
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_FindByIDDecodesRow(t *testing.T) {
	store, mock := newMock(t)
	sessionID := id.SessionID(uuid.New())
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	token := uuid.New()

	answers, _ := json.Marshal([]extract.Answer{extract.ChoicesAnswer("carburants", "Gazole", "GPL")})
	results, _ := json.Marshal(eligibility.Results{{ProductCode: "TICPE", Score: 90, EstimatedAmount: 13275, Confidence: eligibility.ConfidenceHigh}})

	columns := []string{"id", "answers", "results", "profile", "company", "client_ip", "user_agent", "device_label",
		"completed", "created_at", "expires_at", "abandoned_at", "abandon_reason",
		"reserved_by", "reserved_at", "reserved_identity", "migrated", "migrated_at", "account_id"}
	mock.ExpectQuery("SELECT (.+) FROM temporary_sessions WHERE id").
		WithArgs(sessionID.String()).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			sessionID.String(), answers, results, []byte(`{"sector":"road_freight"}`), []byte(`{}`),
			"10.0.0.1", "curl/8", "Unknown Browser on Unknown OS",
			true, created, created.Add(24*time.Hour), nil, nil,
			token.String(), created, "gotrue-user-1", false, nil, nil,
		))

	got, err := store.FindByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, got.ID)
	require.Len(t, got.Answers, 1)
	assert.Equal(t, []string{"Gazole", "GPL"}, got.Answers[0].Choices)
	assert.Equal(t, 13275.0, got.Results[0].EstimatedAmount)
	assert.Equal(t, eligibility.SectorRoadFreight, got.Profile.Sector)
	require.NotNil(t, got.ReservedBy)
	assert.Equal(t, token, *got.ReservedBy)
	assert.Equal(t, id.IdentityRef("gotrue-user-1"), got.ReservedIdentity)
	assert.Nil(t, got.AccountID)
	assert.Nil(t, got.AbandonedAt)
	assert.True(t, got.IsReserved())
}

func TestPostgresStore_Stats(t *testing.T) {
	store, mock := newMock(t)
	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed", "migrated", "abandoned"}).AddRow(10, 8, 2, 3))

	stats, err := store.Stats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 25.0, stats.ConversionRate)
}

func TestPostgresStore_DeleteExpiredReturnsCount(t *testing.T) {
	store, mock := newMock(t)
	cutoff := time.Now()
	mock.ExpectExec("DELETE FROM temporary_sessions WHERE expires_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
