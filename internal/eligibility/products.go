package eligibility

// Product is the rule table for one candidate product. Membership in
// SectorPoints is the sector gate.
type Product struct {
	Code string
	Name string

	SectorPoints      map[Sector]int
	ProfessionalBonus int
	VehicleWeights    map[VehicleType]int
	VehicleCap        int
	ConsumptionPoints map[ConsumptionTier]int
	// CompleteInvoiceBonus is added when the visitor holds complete fuel invoices.
	CompleteInvoiceBonus int

	FuelRates map[FuelType]float64
	// UnlistedFuelRate applies to a matched fuel type absent from FuelRates.
	UnlistedFuelRate float64
	// SectorRates apply when no fuel type was matched.
	SectorRates map[Sector]float64
	DefaultRate float64
}

func (p Product) eligible(sector Sector) bool {
	_, ok := p.SectorPoints[sector]
	return ok
}

// Volumes (litres/year) and coefficients shared by every fuel-based product.
var (
	consumptionVolumes = map[ConsumptionTier]float64{
		ConsumptionLow:      3000,
		ConsumptionMedium:   10000,
		ConsumptionHigh:     32500,
		ConsumptionVeryHigh: 75000,
	}
	defaultConsumptionVolume = 10000.0

	vehicleCoefficients = map[VehicleType]float64{
		VehicleHeavyTruck:            1.0,
		VehicleMediumTruck:           0.8,
		VehicleLightUtility:          0.6,
		VehicleConstructionMachinery: 0.9,
		VehicleAgriculturalTractor:   0.9,
		VehicleService:               0.7,
		VehicleCompanyCar:            0.5,
	}
	unlistedVehicleCoefficient = 0.5
	defaultVehicleCoefficient  = 0.7

	fullUsageCoefficient    = 1.0
	partialUsageCoefficient = 0.8
)

// Estimates of scored products are clamped to this band.
const (
	AmountFloor   = 500.0
	AmountCeiling = 100000.0
)

const (
	ProductTICPE = "TICPE"
	ProductCEE   = "CEE"
)

// TICPE is the road fuel excise recovery.
var TICPE = Product{
	Code: ProductTICPE,
	Name: "Récupération TICPE",
	SectorPoints: map[Sector]int{
		SectorRoadFreight:   30,
		SectorRoadPassenger: 30,
		SectorTaxi:          25,
		SectorConstruction:  20,
		SectorAgriculture:   15,
	},
	ProfessionalBonus: 25,
	VehicleWeights: map[VehicleType]int{
		VehicleHeavyTruck:            20,
		VehicleMediumTruck:           15,
		VehicleConstructionMachinery: 15,
		VehicleAgriculturalTractor:   15,
		VehicleLightUtility:          10,
		VehicleService:               10,
	},
	VehicleCap: 20,
	ConsumptionPoints: map[ConsumptionTier]int{
		ConsumptionMedium:   5,
		ConsumptionHigh:     10,
		ConsumptionVeryHigh: 15,
	},
	CompleteInvoiceBonus: 10,
	FuelRates: map[FuelType]float64{
		FuelDiesel:        0.177,
		FuelOffRoadDiesel: 0.150,
		FuelPetrol:        0.177,
		FuelLPG:           0.177,
		FuelElectric:      0.177,
	},
	UnlistedFuelRate: 0.177,
	SectorRates: map[Sector]float64{
		SectorRoadFreight:   0.177,
		SectorRoadPassenger: 0.177,
		SectorTaxi:          0.213,
		SectorConstruction:  0.150,
		SectorAgriculture:   0.150,
	},
	DefaultRate: 0.177,
}

// CEE values fleet energy-saving operations (energy savings certificates)
// per litre of road fuel. Off-road fleets are out of its scope. Its weights
// and rates are a per-litre calibration, not a published tariff.
var CEE = Product{
	Code: ProductCEE,
	Name: "Certificats d'économies d'énergie flotte",
	SectorPoints: map[Sector]int{
		SectorRoadFreight:   30,
		SectorRoadPassenger: 30,
		SectorTaxi:          20,
	},
	ProfessionalBonus: 25,
	VehicleWeights: map[VehicleType]int{
		VehicleHeavyTruck:   20,
		VehicleMediumTruck:  15,
		VehicleLightUtility: 10,
		VehicleService:      10,
		VehicleCompanyCar:   5,
	},
	VehicleCap: 20,
	ConsumptionPoints: map[ConsumptionTier]int{
		ConsumptionMedium:   5,
		ConsumptionHigh:     10,
		ConsumptionVeryHigh: 15,
	},
	FuelRates: map[FuelType]float64{
		FuelDiesel: 0.012,
		FuelPetrol: 0.012,
		FuelLPG:    0.008,
	},
	UnlistedFuelRate: 0.004,
	DefaultRate:      0.010,
}

// DefaultProducts returns the candidate products scored for every session.
func DefaultProducts() []Product {
	return []Product{TICPE, CEE}
}
