package store

import (
	"context"
	"sync"

	"eligo/internal/catalog"
	id "eligo/pkg/domain"
)

// InMemoryStore is a catalog for development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[id.CatalogProductID]catalog.Product
}

func NewInMemoryStore(products ...catalog.Product) *InMemoryStore {
	s := &InMemoryStore{products: make(map[id.CatalogProductID]catalog.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *InMemoryStore) Upsert(_ context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// Remove deletes a product, simulating a retired catalog entry.
func (s *InMemoryStore) Remove(productID id.CatalogProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, productID)
}

func (s *InMemoryStore) Exists(_ context.Context, productID id.CatalogProductID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	return ok && p.Active, nil
}
