package eligibility

// Sector is the activity sector detected from the questionnaire.
type Sector string

const (
	SectorUnknown       Sector = ""
	SectorRoadFreight   Sector = "road_freight"
	SectorRoadPassenger Sector = "road_passenger"
	SectorTaxi          Sector = "taxi_vtc"
	SectorConstruction  Sector = "construction"
	SectorAgriculture   Sector = "agriculture"
)

type VehicleType string

const (
	VehicleHeavyTruck            VehicleType = "heavy_truck"  // > 7.5 t
	VehicleMediumTruck           VehicleType = "medium_truck" // 3.5 to 7.5 t
	VehicleLightUtility          VehicleType = "light_utility"
	VehicleConstructionMachinery VehicleType = "construction_machinery"
	VehicleAgriculturalTractor   VehicleType = "agricultural_tractor"
	VehicleService               VehicleType = "service_vehicle"
	VehicleCompanyCar            VehicleType = "company_car"
)

type FuelType string

const (
	FuelDiesel        FuelType = "diesel"
	FuelOffRoadDiesel FuelType = "off_road_diesel"
	FuelPetrol        FuelType = "petrol"
	FuelLPG           FuelType = "lpg"
	FuelElectric      FuelType = "electric"
)

// ConsumptionTier is the yearly fuel volume bracket, ordered low to very high.
type ConsumptionTier string

const (
	ConsumptionUnknown  ConsumptionTier = ""
	ConsumptionLow      ConsumptionTier = "low"       // < 5 000 L
	ConsumptionMedium   ConsumptionTier = "medium"    // 5 000 to 15 000 L
	ConsumptionHigh     ConsumptionTier = "high"      // 15 000 to 50 000 L
	ConsumptionVeryHigh ConsumptionTier = "very_high" // > 50 000 L
)

// ConsumptionTiers lists the known tiers in ascending order.
var ConsumptionTiers = []ConsumptionTier{ConsumptionLow, ConsumptionMedium, ConsumptionHigh, ConsumptionVeryHigh}

type UsageRatio string

const (
	UsageUnknown UsageRatio = ""
	UsageFull    UsageRatio = "full"
	UsagePartial UsageRatio = "partial"
)

type FleetSize string

const (
	FleetUnknown    FleetSize = ""
	FleetOneToThree FleetSize = "1-3"
	FleetFourToTen  FleetSize = "4-10"
	FleetUpTo25     FleetSize = "11-25"
	FleetOver25     FleetSize = "25+"
)

// InvoiceHistory describes how much fuel invoice history the visitor can produce.
type InvoiceHistory string

const (
	InvoicesUnknown  InvoiceHistory = ""
	InvoicesComplete InvoiceHistory = "complete_3y"
	InvoicesTwoYears InvoiceHistory = "two_years"
	InvoicesOneYear  InvoiceHistory = "one_year"
)

// AttributeProfile is the structured view of a questionnaire. It is rebuilt
// for every scoring call and never persisted. Set-valued fields may carry
// duplicates.
type AttributeProfile struct {
	Sector                  Sector          `json:"sector,omitempty" yaml:"sector,omitempty"`
	HasProfessionalVehicles bool            `json:"has_professional_vehicles" yaml:"has_professional_vehicles"`
	FleetSize               FleetSize       `json:"fleet_size,omitempty" yaml:"fleet_size,omitempty"`
	VehicleTypes            []VehicleType   `json:"vehicle_types,omitempty" yaml:"vehicle_types,omitempty"`
	FuelTypes               []FuelType      `json:"fuel_types,omitempty" yaml:"fuel_types,omitempty"`
	ConsumptionTier         ConsumptionTier `json:"consumption_tier,omitempty" yaml:"consumption_tier,omitempty"`
	UsageRatio              UsageRatio      `json:"usage_ratio,omitempty" yaml:"usage_ratio,omitempty"`
	FuelInvoices            InvoiceHistory  `json:"fuel_invoices,omitempty" yaml:"fuel_invoices,omitempty"`
}
