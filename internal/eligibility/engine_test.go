package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultFor(t *testing.T, results Results, code string) Result {
	t.Helper()
	for _, r := range results {
		if r.ProductCode == code {
			return r
		}
	}
	t.Fatalf("no result for product %s", code)
	return Result{}
}

func heavyFreightProfile() AttributeProfile {
	return AttributeProfile{
		Sector:                  SectorRoadFreight,
		HasProfessionalVehicles: true,
		VehicleTypes:            []VehicleType{VehicleHeavyTruck},
		FuelTypes:               []FuelType{FuelDiesel},
		ConsumptionTier:         ConsumptionVeryHigh,
		UsageRatio:              UsageFull,
	}
}

func TestScore_HeavyFreightScenario(t *testing.T) {
	results := NewEngine().Score(heavyFreightProfile())
	require.Len(t, results, 2)

	ticpe := resultFor(t, results, ProductTICPE)
	assert.Equal(t, 90, ticpe.Score)
	assert.Equal(t, ConfidenceHigh, ticpe.Confidence)
	assert.Equal(t, 13275.0, ticpe.EstimatedAmount)
	assert.Equal(t, []string{
		"Éligibilité possible : gain potentiel de 13 275 €",
		followUpAdvice,
	}, ticpe.Recommendations)

	cee := resultFor(t, results, ProductCEE)
	assert.GreaterOrEqual(t, cee.Score, 70)
	assert.Equal(t, 900.0, cee.EstimatedAmount)
}

func TestScore_EmptyProfileGatesEveryProduct(t *testing.T) {
	results := NewEngine().Score(AttributeProfile{})
	require.Len(t, results, 2, "gated products are reported, not omitted")
	for _, r := range results {
		assert.Zero(t, r.Score, r.ProductCode)
		assert.Zero(t, r.EstimatedAmount, r.ProductCode)
		assert.Equal(t, ConfidenceLow, r.Confidence, r.ProductCode)
		assert.Equal(t, []string{"Non éligible", followUpAdvice}, r.Recommendations)
	}
}

func TestScore_GateRequiresProfessionalVehicles(t *testing.T) {
	engine := NewEngine()
	for _, sector := range []Sector{SectorRoadFreight, SectorRoadPassenger, SectorTaxi, SectorConstruction, SectorAgriculture, SectorUnknown} {
		for _, tier := range append([]ConsumptionTier{ConsumptionUnknown}, ConsumptionTiers...) {
			profile := heavyFreightProfile()
			profile.Sector = sector
			profile.ConsumptionTier = tier
			profile.HasProfessionalVehicles = false
			profile.FuelInvoices = InvoicesComplete

			for _, r := range engine.Score(profile) {
				assert.Zero(t, r.Score, "sector=%s tier=%s product=%s", sector, tier, r.ProductCode)
				assert.Zero(t, r.EstimatedAmount)
			}
		}
	}
}

func TestScore_IneligibleSectorIsZeroNotError(t *testing.T) {
	profile := heavyFreightProfile()
	profile.Sector = SectorConstruction

	results := NewEngine().Score(profile)
	assert.Positive(t, resultFor(t, results, ProductTICPE).Score)
	cee := resultFor(t, results, ProductCEE)
	assert.Zero(t, cee.Score)
	assert.Zero(t, cee.EstimatedAmount)
}

func TestScore_MonotonicInConsumptionTier(t *testing.T) {
	engine := NewEngine()
	for _, sector := range []Sector{SectorRoadFreight, SectorTaxi, SectorConstruction, SectorAgriculture} {
		for _, vehicles := range [][]VehicleType{nil, {VehicleLightUtility}, {VehicleHeavyTruck, VehicleMediumTruck}} {
			prev := map[string]int{}
			for _, tier := range ConsumptionTiers {
				profile := AttributeProfile{
					Sector:                  sector,
					HasProfessionalVehicles: true,
					VehicleTypes:            vehicles,
					ConsumptionTier:         tier,
				}
				for _, r := range engine.Score(profile) {
					assert.GreaterOrEqual(t, r.Score, prev[r.ProductCode], "sector=%s tier=%s product=%s", sector, tier, r.ProductCode)
					prev[r.ProductCode] = r.Score
				}
			}
		}
	}
}

func TestScore_VehicleBucketCappedAndDuplicatesTolerated(t *testing.T) {
	profile := AttributeProfile{
		Sector:                  SectorRoadFreight,
		HasProfessionalVehicles: true,
		VehicleTypes:            []VehicleType{VehicleHeavyTruck, VehicleHeavyTruck, VehicleMediumTruck},
	}
	ticpe := resultFor(t, NewEngine().Score(profile), ProductTICPE)
	assert.Equal(t, 30+25+20, ticpe.Score)
	assert.InDelta(t, (1.0+1.0+0.8)/3, vehicleCoefficient(profile.VehicleTypes), 1e-9)
}

func TestScore_TotalCappedAt100(t *testing.T) {
	generous := TICPE
	generous.ProfessionalBonus = 90
	profile := heavyFreightProfile()
	profile.FuelInvoices = InvoicesComplete

	r := NewEngine(generous).Score(profile)[0]
	assert.Equal(t, 100, r.Score)
}

func TestUnitRate_PicksMaximumAcrossFuelTypes(t *testing.T) {
	profile := AttributeProfile{Sector: SectorConstruction, FuelTypes: []FuelType{FuelOffRoadDiesel, FuelDiesel}}
	assert.Equal(t, 0.177, unitRate(TICPE, profile), "max rate, not first match")

	profile.FuelTypes = []FuelType{FuelOffRoadDiesel}
	assert.Equal(t, 0.150, unitRate(TICPE, profile))

	profile.FuelTypes = []FuelType{FuelType("hydrogen")}
	assert.Equal(t, TICPE.UnlistedFuelRate, unitRate(TICPE, profile))
}

func TestUnitRate_SectorDefaultWithoutFuelTypes(t *testing.T) {
	assert.Equal(t, 0.213, unitRate(TICPE, AttributeProfile{Sector: SectorTaxi}))
	assert.Equal(t, 0.150, unitRate(TICPE, AttributeProfile{Sector: SectorAgriculture}))
	assert.Equal(t, CEE.DefaultRate, unitRate(CEE, AttributeProfile{Sector: SectorTaxi}))
}

func TestEstimateAmount_ClampedToBand(t *testing.T) {
	engine := NewEngine()
	sectors := []Sector{SectorRoadFreight, SectorRoadPassenger, SectorTaxi, SectorConstruction, SectorAgriculture}
	fuels := [][]FuelType{nil, {FuelDiesel}, {FuelOffRoadDiesel}, {FuelLPG, FuelElectric}}
	vehicles := [][]VehicleType{nil, {VehicleCompanyCar}, {VehicleHeavyTruck, VehicleLightUtility}}
	usages := []UsageRatio{UsageUnknown, UsageFull, UsagePartial}

	for _, sector := range sectors {
		for _, tier := range append([]ConsumptionTier{ConsumptionUnknown}, ConsumptionTiers...) {
			for _, ft := range fuels {
				for _, vt := range vehicles {
					for _, usage := range usages {
						profile := AttributeProfile{
							Sector:                  sector,
							HasProfessionalVehicles: true,
							VehicleTypes:            vt,
							FuelTypes:               ft,
							ConsumptionTier:         tier,
							UsageRatio:              usage,
						}
						for _, r := range engine.Score(profile) {
							if r.Score == 0 {
								assert.Zero(t, r.EstimatedAmount)
								continue
							}
							assert.GreaterOrEqual(t, r.EstimatedAmount, AmountFloor)
							assert.LessOrEqual(t, r.EstimatedAmount, AmountCeiling)
						}
					}
				}
			}
		}
	}
}

func TestEstimateAmount_CeilingApplies(t *testing.T) {
	pricey := TICPE
	pricey.SectorRates = nil
	pricey.DefaultRate = 5
	profile := heavyFreightProfile()
	profile.FuelTypes = nil

	r := NewEngine(pricey).Score(profile)[0]
	assert.Equal(t, AmountCeiling, r.EstimatedAmount)
}

func TestEstimateAmount_FloorApplies(t *testing.T) {
	profile := AttributeProfile{
		Sector:                  SectorTaxi,
		HasProfessionalVehicles: true,
		ConsumptionTier:         ConsumptionLow,
	}
	// 3000 × 0.213 × 0.7 × 0.8 is well under the floor
	r := resultFor(t, NewEngine().Score(profile), ProductTICPE)
	assert.Equal(t, AmountFloor, r.EstimatedAmount)
}

func TestConfidenceBands(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, confidenceFor(70))
	assert.Equal(t, ConfidenceMedium, confidenceFor(69))
	assert.Equal(t, ConfidenceMedium, confidenceFor(40))
	assert.Equal(t, ConfidenceLow, confidenceFor(39))
}

func TestResults_HighEligibility(t *testing.T) {
	results := Results{
		{ProductCode: "A", Score: 90, EstimatedAmount: 1000},
		{ProductCode: "B", Score: 45, EstimatedAmount: 600},
	}
	high := results.HighEligibility()
	require.Len(t, high, 1)
	assert.Equal(t, "A", high[0].ProductCode)
	assert.Equal(t, 1600.0, results.TotalAmount())
}

func TestFormatEuros(t *testing.T) {
	assert.Equal(t, "500 €", formatEuros(500))
	assert.Equal(t, "13 275 €", formatEuros(13275))
	assert.Equal(t, "100 000 €", formatEuros(100000))
}
