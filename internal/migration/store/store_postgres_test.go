package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"eligo/internal/migration/models"
	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock = db, mock
	s.store = NewPostgres(db)
	s.now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *PostgresStoreSuite) account() *models.Account {
	return &models.Account{
		ID:              id.AccountID(uuid.New()),
		IdentityRef:     "identity-1",
		Email:           "jean@example.fr",
		DisplayName:     "Jean Dupont",
		CompanyName:     "Transports Dupont",
		PasswordHash:    "$2a$04$hash",
		SourceSessionID: id.SessionID(uuid.New()),
		Metadata:        map[string]string{"source": "simulator"},
		CreatedAt:       s.now,
	}
}

func (s *PostgresStoreSuite) TestCreateAccount() {
	a := s.account()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(a.ID.String(), "identity-1", a.Email, a.DisplayName, a.CompanyName,
			"", "", "", "", "", "", 0, int64(0), 0, a.PasswordHash,
			a.SourceSessionID.String(), []byte(`{"source":"simulator"}`), s.now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.store.CreateAccount(context.Background(), a))
}

func (s *PostgresStoreSuite) TestCreateAccountDuplicateSession() {
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "idx_accounts_source_session"})

	err := s.store.CreateAccount(context.Background(), s.account())
	s.Require().ErrorIs(err, ErrDuplicateAccount)
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Contains(err.Error(), "idx_accounts_source_session")
}

func (s *PostgresStoreSuite) TestCreateAccountFailure() {
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(errors.New("connection refused"))

	err := s.store.CreateAccount(context.Background(), s.account())
	s.Require().Error(err)
	s.NotErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestInsertRecordsSingleStatement() {
	accountID := id.AccountID(uuid.New())
	records := []models.EligibilityRecord{
		{ID: id.RecordID(uuid.New()), AccountID: accountID, Status: models.StatusEligible, CreatedAt: s.now},
		{ID: id.RecordID(uuid.New()), AccountID: accountID, Status: models.StatusNonEligible, CreatedAt: s.now},
	}
	args := make([]driver.Value, 0, 13)
	for range 12 {
		args = append(args, sqlmock.AnyArg())
	}
	args = append(args, s.now)
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO eligibility_records")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 2))

	s.NoError(s.store.InsertRecords(context.Background(), records))
}

func (s *PostgresStoreSuite) TestInsertRecordsEmpty() {
	s.NoError(s.store.InsertRecords(context.Background(), nil))
}

func (s *PostgresStoreSuite) TestFindAccountBySession() {
	sessionID := id.SessionID(uuid.New())
	accountID := uuid.New()
	query := regexp.QuoteMeta("FROM accounts")

	s.mock.ExpectQuery(query).
		WithArgs(sessionID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_ref", "email", "display_name", "company_name", "source_session_id", "created_at"}).
			AddRow(accountID.String(), "identity-1", "jean@example.fr", "Jean Dupont", "Transports Dupont", sessionID.String(), s.now))
	account, err := s.store.FindAccountBySession(context.Background(), sessionID)
	s.Require().NoError(err)
	s.Equal(id.AccountID(accountID), account.ID)
	s.Equal(sessionID, account.SourceSessionID)
	s.Equal(id.IdentityRef("identity-1"), account.IdentityRef)

	s.mock.ExpectQuery(query).WithArgs(sessionID.String()).WillReturnError(sql.ErrNoRows)
	_, err = s.store.FindAccountBySession(context.Background(), sessionID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCountRecords() {
	accountID := id.AccountID(uuid.New())
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM eligibility_records WHERE account_id = $1")).
		WithArgs(accountID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.store.CountRecords(context.Background(), accountID)
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *PostgresStoreSuite) TestRunInTxCommitsAndSharesTransaction() {
	snapshot := &models.Snapshot{
		ID:        uuid.New(),
		AccountID: id.AccountID(uuid.New()),
		SessionID: id.SessionID(uuid.New()),
		CreatedAt: s.now,
	}
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO simulation_snapshots")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := NewPostgresTx(s.db).RunInTx(context.Background(), func(ctx context.Context) error {
		return s.store.SaveSnapshot(ctx, snapshot)
	})
	s.NoError(err)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBack() {
	boom := errors.New("boom")
	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	err := NewPostgresTx(s.db).RunInTx(context.Background(), func(context.Context) error {
		return boom
	})
	s.ErrorIs(err, boom)
}

func TestRunInTxRejectsCancelledContext(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewPostgresTx(db).RunInTx(ctx, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
