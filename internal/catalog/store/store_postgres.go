package store

import (
	"context"
	"database/sql"
	"fmt"

	"eligo/internal/catalog"
	id "eligo/pkg/domain"
)

// PostgresStore reads the catalog_products table. The service never writes
// the catalog outside of seeding.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Exists(ctx context.Context, productID id.CatalogProductID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM catalog_products WHERE id = $1 AND active)`
	if err := s.db.QueryRowContext(ctx, query, productID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check catalog product: %w", err)
	}
	return exists, nil
}

// Seed inserts products that are not present yet and leaves existing rows
// untouched.
func (s *PostgresStore) Seed(ctx context.Context, products []catalog.Product) error {
	query := `
		INSERT INTO catalog_products (id, code, name, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	for _, p := range products {
		if _, err := s.db.ExecContext(ctx, query, p.ID.String(), p.Code, p.Name, p.Active); err != nil {
			return fmt.Errorf("seed catalog product %s: %w", p.Code, err)
		}
	}
	return nil
}
