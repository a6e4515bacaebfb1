package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompany(t *testing.T) {
	t.Run("revenue from headcount and sector", func(t *testing.T) {
		got := Company([]Answer{
			TextAnswer("secteur_activite", "Transport routier de marchandises"),
			TextAnswer("nombre_employes", "5 à 20 employés"),
		})
		assert.Equal(t, CompanyAttributes{
			SectorLabel:     "Transport routier de marchandises",
			EmployeeCount:   12,
			AnnualRevenue:   12 * 80000,
			CompanyAgeYears: 5,
		}, got)
	})

	t.Run("numeric headcount and unknown sector use defaults", func(t *testing.T) {
		got := Company([]Answer{
			TextAnswer("secteur", "Artisanat"),
			NumberAnswer("effectif", 4),
		})
		assert.Equal(t, 4, got.EmployeeCount)
		assert.Equal(t, 4.0*80000, got.AnnualRevenue)
	})

	t.Run("no headcount means no revenue estimate", func(t *testing.T) {
		got := Company([]Answer{TextAnswer("secteur", "Immobilier")})
		assert.Zero(t, got.AnnualRevenue)
		assert.Equal(t, 5, got.CompanyAgeYears)
	})
}
