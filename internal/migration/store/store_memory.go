package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"eligo/internal/migration/models"
	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in process. RunInTx serializes transactions
// and restores the previous state when fn fails.
type InMemoryStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	accounts  map[id.AccountID]*models.Account
	bySession map[id.SessionID]id.AccountID
	byRef     map[id.IdentityRef]id.AccountID
	records   []models.EligibilityRecord
	snapshots []models.Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts:  make(map[id.AccountID]*models.Account),
		bySession: make(map[id.SessionID]id.AccountID),
		byRef:     make(map[id.IdentityRef]id.AccountID),
	}
}

type checkpoint struct {
	accounts  map[id.AccountID]*models.Account
	bySession map[id.SessionID]id.AccountID
	byRef     map[id.IdentityRef]id.AccountID
	records   int
	snapshots int
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	cp := checkpoint{
		accounts:  maps.Clone(s.accounts),
		bySession: maps.Clone(s.bySession),
		byRef:     maps.Clone(s.byRef),
		records:   len(s.records),
		snapshots: len(s.snapshots),
	}
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.accounts = cp.accounts
		s.bySession = cp.bySession
		s.byRef = cp.byRef
		s.records = s.records[:cp.records]
		s.snapshots = s.snapshots[:cp.snapshots]
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemoryStore) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySession[account.SourceSessionID]; exists {
		return ErrDuplicateAccount
	}
	if _, exists := s.byRef[account.IdentityRef]; exists {
		return ErrDuplicateAccount
	}
	stored := *account
	stored.Metadata = maps.Clone(account.Metadata)
	s.accounts[account.ID] = &stored
	s.bySession[account.SourceSessionID] = account.ID
	s.byRef[account.IdentityRef] = account.ID
	return nil
}

func (s *InMemoryStore) InsertRecords(_ context.Context, records []models.EligibilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, ok := s.accounts[r.AccountID]; !ok {
			return sentinel.ErrInvalidState
		}
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *InMemoryStore) SaveSnapshot(_ context.Context, snapshot *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, *snapshot)
	return nil
}

func (s *InMemoryStore) FindAccountBySession(_ context.Context, sessionID id.SessionID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.bySession[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	account := *s.accounts[accountID]
	return &account, nil
}

func (s *InMemoryStore) CountRecords(_ context.Context, accountID id.AccountID) (int, error) {
	return len(s.RecordsFor(accountID)), nil
}

// RecordsFor returns the records owned by accountID.
func (s *InMemoryStore) RecordsFor(accountID id.AccountID) []models.EligibilityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EligibilityRecord
	for _, r := range s.records {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out
}

// Accounts returns every stored account.
func (s *InMemoryStore) Accounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out
}

// Snapshots returns the stored simulation snapshots.
func (s *InMemoryStore) Snapshots() []models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snapshots)
}
