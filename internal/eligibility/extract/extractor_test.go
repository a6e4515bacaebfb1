package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"eligo/internal/eligibility"
)

func TestExtract_FullTransportQuestionnaire(t *testing.T) {
	answers := []Answer{
		TextAnswer("q_secteur", "Transport routier de marchandises"),
		TextAnswer("q_vehicules", "Oui, nous avons des véhicules professionnels"),
		TextAnswer("q_nombre", "4 à 10 véhicules"),
		ChoicesAnswer("q_types", "Camions de plus de 7,5 tonnes", "Véhicules utilitaires légers"),
		TextAnswer("q_conso", "Plus de 50 000 litres"),
		ChoicesAnswer("q_carburant", "Gazole professionnel", "Essence"),
		TextAnswer("q_factures", "Oui, 3 dernières années complètes"),
		TextAnswer("q_usage", "100% professionnel"),
	}

	got := Extract(answers)

	assert.Equal(t, eligibility.AttributeProfile{
		Sector:                  eligibility.SectorRoadFreight,
		HasProfessionalVehicles: true,
		FleetSize:               eligibility.FleetFourToTen,
		VehicleTypes:            []eligibility.VehicleType{eligibility.VehicleHeavyTruck, eligibility.VehicleLightUtility},
		FuelTypes:               []eligibility.FuelType{eligibility.FuelDiesel, eligibility.FuelPetrol},
		ConsumptionTier:         eligibility.ConsumptionVeryHigh,
		UsageRatio:              eligibility.UsageFull,
		FuelInvoices:            eligibility.InvoicesComplete,
	}, got)
}

func TestExtract_SectorVariants(t *testing.T) {
	tests := []struct {
		answer string
		want   eligibility.Sector
	}{
		{"Transport", eligibility.SectorRoadFreight},
		{"Transport routier de voyageurs", eligibility.SectorRoadPassenger},
		{"Logistique", eligibility.SectorRoadFreight},
		{"BTP / Travaux publics", eligibility.SectorConstruction},
		{"Taxi / VTC", eligibility.SectorTaxi},
		{"Secteur Agricole", eligibility.SectorAgriculture},
		{"Commerce de détail", eligibility.SectorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract([]Answer{TextAnswer("secteur", tt.answer)}).Sector)
		})
	}
}

func TestExtract_LaterSingleValuedAnswerOverwrites(t *testing.T) {
	got := Extract([]Answer{
		TextAnswer("q1", "Taxi / VTC"),
		TextAnswer("q2", "BTP"),
		TextAnswer("q3", "Moins de 5 000 litres"),
		TextAnswer("q4", "15 000 à 50 000 litres"),
	})
	assert.Equal(t, eligibility.SectorConstruction, got.Sector)
	assert.Equal(t, eligibility.ConsumptionHigh, got.ConsumptionTier)
}

func TestExtract_SetFieldsAccumulateWithoutDedupe(t *testing.T) {
	got := Extract([]Answer{
		TextAnswer("q1", "Gazole"),
		TextAnswer("q2", "Gazole"),
		TextAnswer("q3", "Engins de chantier"),
		TextAnswer("q4", "engins"),
	})
	assert.Equal(t, []eligibility.FuelType{eligibility.FuelDiesel, eligibility.FuelDiesel}, got.FuelTypes)
	assert.Equal(t, []eligibility.VehicleType{eligibility.VehicleConstructionMachinery, eligibility.VehicleConstructionMachinery}, got.VehicleTypes)
}

func TestExtract_TruckWeightClasses(t *testing.T) {
	medium := Extract([]Answer{TextAnswer("q", "Camions de 3,5 à 7,5 tonnes")})
	assert.Equal(t, []eligibility.VehicleType{eligibility.VehicleMediumTruck}, medium.VehicleTypes)

	both := Extract([]Answer{ChoicesAnswer("q", "Camions de plus de 7,5 tonnes", "Camions de 3,5 à 7,5 tonnes")})
	assert.ElementsMatch(t, []eligibility.VehicleType{eligibility.VehicleHeavyTruck, eligibility.VehicleMediumTruck}, both.VehicleTypes)
}

func TestExtract_OffRoadDieselIsNotRoadDiesel(t *testing.T) {
	got := Extract([]Answer{TextAnswer("q", "Gazole Non Routier (GNR)")})
	assert.Equal(t, []eligibility.FuelType{eligibility.FuelOffRoadDiesel}, got.FuelTypes)
}

func TestExtract_FleetImpliesProfessionalVehicles(t *testing.T) {
	assert.True(t, Extract([]Answer{TextAnswer("q", "Plus de 25 véhicules")}).HasProfessionalVehicles)
	assert.True(t, Extract([]Answer{TextAnswer("q", "Tracteurs agricoles")}).HasProfessionalVehicles)
	assert.False(t, Extract([]Answer{TextAnswer("q", "Secteur Agricole")}).HasProfessionalVehicles)
}

func TestExtract_NumericConsumption(t *testing.T) {
	got := Extract([]Answer{NumberAnswer("consommation_annuelle", 62000)})
	assert.Equal(t, eligibility.ConsumptionVeryHigh, got.ConsumptionTier)

	got = Extract([]Answer{NumberAnswer("nombre_salaries", 62000)})
	assert.Equal(t, eligibility.ConsumptionUnknown, got.ConsumptionTier)
}

func TestExtract_IgnoresUnrecognizedAnswers(t *testing.T) {
	got := Extract([]Answer{
		TextAnswer("q1", ""),
		TextAnswer("q2", "lorem ipsum"),
		ChoicesAnswer("q3"),
	})
	assert.Equal(t, eligibility.AttributeProfile{}, got)
}

func TestTierForLitres(t *testing.T) {
	assert.Equal(t, eligibility.ConsumptionUnknown, tierForLitres(0))
	assert.Equal(t, eligibility.ConsumptionLow, tierForLitres(4999))
	assert.Equal(t, eligibility.ConsumptionMedium, tierForLitres(5000))
	assert.Equal(t, eligibility.ConsumptionHigh, tierForLitres(50000))
	assert.Equal(t, eligibility.ConsumptionVeryHigh, tierForLitres(50001))
}
