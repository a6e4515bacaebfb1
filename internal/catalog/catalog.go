package catalog

import (
	"context"
	"log/slog"
	"strings"

	id "eligo/pkg/domain"
)

// Product is one entry of the durable product catalog.
type Product struct {
	ID     id.CatalogProductID
	Code   string
	Name   string
	Active bool
}

// Known scoring codes and their durable catalog identifiers.
var (
	ProductTICPE            = id.MustCatalogProductID("32dd9cf8-15e2-4375-86ab-a95158d3ada1")
	ProductURSSAF           = id.MustCatalogProductID("d1e8f740-7c2a-4b5e-9a91-0e15c0e7d3a2")
	ProductDFS              = id.MustCatalogProductID("e2f9a830-8d3b-4c7c-b590-1d7631c0d4b5")
	ProductFoncier          = id.MustCatalogProductID("c5d2e980-4f63-44c0-b8a9-9d6e8e21c0f7")
	ProductCIR              = id.MustCatalogProductID("37da1c4e-3fcc-49f8-9acb-9b75e231edfd")
	ProductCEE              = id.MustCatalogProductID("b7f3c891-28d9-4982-b0eb-821c9e7cbcf0")
	ProductAuditEnergetique = id.MustCatalogProductID("bc2b94ec-659b-4cf5-a693-d61178b03caf")
)

// DefaultTable maps scoring product codes to catalog identifiers.
func DefaultTable() map[string]id.CatalogProductID {
	return map[string]id.CatalogProductID{
		"TICPE":             ProductTICPE,
		"URSSAF":            ProductURSSAF,
		"DFS":               ProductDFS,
		"FONCIER":           ProductFoncier,
		"CIR":               ProductCIR,
		"CEE":               ProductCEE,
		"AUDIT_ENERGETIQUE": ProductAuditEnergetique,
	}
}

// DefaultProducts is the seed catalog for development and tests.
func DefaultProducts() []Product {
	return []Product{
		{ID: ProductTICPE, Code: "TICPE", Name: "Remboursement TICPE", Active: true},
		{ID: ProductURSSAF, Code: "URSSAF", Name: "Optimisation des charges URSSAF", Active: true},
		{ID: ProductDFS, Code: "DFS", Name: "Déduction forfaitaire spécifique", Active: true},
		{ID: ProductFoncier, Code: "FONCIER", Name: "Optimisation de la taxe foncière", Active: true},
		{ID: ProductCIR, Code: "CIR", Name: "Crédit d'impôt recherche", Active: true},
		{ID: ProductCEE, Code: "CEE", Name: "Certificats d'économies d'énergie", Active: true},
		{ID: ProductAuditEnergetique, Code: "AUDIT_ENERGETIQUE", Name: "Audit énergétique", Active: true},
	}
}

// LivenessReader reports whether a catalog product currently exists and is
// active.
type LivenessReader interface {
	Exists(ctx context.Context, productID id.CatalogProductID) (bool, error)
}

// Mapper resolves scoring codes to live catalog identifiers.
type Mapper struct {
	table  map[string]id.CatalogProductID
	reader LivenessReader
	logger *slog.Logger
}

type Option func(*Mapper)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// WithTable replaces the code table.
func WithTable(table map[string]id.CatalogProductID) Option {
	return func(m *Mapper) {
		m.table = make(map[string]id.CatalogProductID, len(table))
		for code, pid := range table {
			m.table[normalize(code)] = pid
		}
	}
}

func NewMapper(reader LivenessReader, opts ...Option) *Mapper {
	m := &Mapper{reader: reader, logger: slog.Default()}
	WithTable(DefaultTable())(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the catalog ID for code. ok is false when the code has no
// mapping or maps to a product missing from the live catalog. A non-nil
// error means liveness could not be checked.
func (m *Mapper) Resolve(ctx context.Context, code string) (id.CatalogProductID, bool, error) {
	pid, mapped := m.table[normalize(code)]
	if !mapped {
		return id.CatalogProductID{}, false, nil
	}
	live, err := m.reader.Exists(ctx, pid)
	if err != nil {
		return id.CatalogProductID{}, false, err
	}
	if !live {
		m.logger.DebugContext(ctx, "catalog product mapped but not live",
			"product_code", code,
			"catalog_product_id", pid,
		)
		return id.CatalogProductID{}, false, nil
	}
	return pid, true, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
