package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "eligo/pkg/domain"
	audit "eligo/pkg/platform/audit"
	"eligo/pkg/platform/audit/store/memory"
)

type fakeProducer struct {
	keys   []string
	failAt int
}

func (p *fakeProducer) Publish(_ context.Context, key, _ []byte) error {
	if p.failAt > 0 && len(p.keys)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, string(key))
	return nil
}

func appendEvents(t *testing.T, store *memory.InMemoryStore, n int) id.AccountID {
	t.Helper()
	account := id.AccountID(uuid.New())
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(context.Background(), audit.Event{
			Action:    audit.EventAccountMigrated,
			AccountID: account,
		}))
	}
	return account
}

func TestRelayOnce_DeliversAndMarks(t *testing.T) {
	store := memory.NewInMemoryStore()
	account := appendEvents(t, store, 3)
	producer := &fakeProducer{}

	relay := NewRelay(store, producer)
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{account.String(), account.String(), account.String()}, producer.keys)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "published entries are not relayed twice")
}

func TestRelayOnce_StopsAtFirstBrokerFailure(t *testing.T) {
	store := memory.NewInMemoryStore()
	appendEvents(t, store, 3)
	producer := &fakeProducer{failAt: 2}

	relay := NewRelay(store, producer)
	n, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
