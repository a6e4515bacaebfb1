package extract

import (
	"strings"

	"eligo/internal/eligibility"
	pstrings "eligo/pkg/platform/strings"
)

// rule inspects one lowercased answer and updates the profile. Rules for
// single-valued fields overwrite (later answers win); rules for set-valued
// fields append without de-duplication.
type rule struct {
	name  string
	apply func(p *eligibility.AttributeProfile, text string)
}

// phrase maps any of its keywords to a value. Tables are checked in order
// and the first hit wins within one answer.
type phrase[T any] struct {
	keywords []string
	value    T
}

func firstMatch[T any](text string, table []phrase[T]) (T, bool) {
	for _, ph := range table {
		if pstrings.ContainsAny(text, ph.keywords...) {
			return ph.value, true
		}
	}
	var zero T
	return zero, false
}

var fleetPhrases = []phrase[eligibility.FleetSize]{
	{[]string{"1 à 3"}, eligibility.FleetOneToThree},
	{[]string{"4 à 10"}, eligibility.FleetFourToTen},
	{[]string{"11 à 25"}, eligibility.FleetUpTo25},
	{[]string{"plus de 25"}, eligibility.FleetOver25},
}

var consumptionPhrases = []phrase[eligibility.ConsumptionTier]{
	{[]string{"plus de 50 000"}, eligibility.ConsumptionVeryHigh},
	{[]string{"15 000 à 50 000"}, eligibility.ConsumptionHigh},
	{[]string{"5 000 à 15 000"}, eligibility.ConsumptionMedium},
	{[]string{"moins de 5 000"}, eligibility.ConsumptionLow},
}

var invoicePhrases = []phrase[eligibility.InvoiceHistory]{
	{[]string{"complètes"}, eligibility.InvoicesComplete},
	{[]string{"2 dernières années"}, eligibility.InvoicesTwoYears},
	{[]string{"1 dernière année"}, eligibility.InvoicesOneYear},
}

var usagePhrases = []phrase[eligibility.UsageRatio]{
	{[]string{"100% professionnel"}, eligibility.UsageFull},
	{[]string{"80-99%", "60-79%"}, eligibility.UsagePartial},
}

// vehicle and fuel rules are independent: one answer can add several types.
var vehicleRules = []struct {
	match func(text string) bool
	value eligibility.VehicleType
}{
	{func(t string) bool {
		return strings.Contains(t, "camion") &&
			(strings.Contains(t, "plus de 7,5") || (strings.Contains(t, "7,5 tonnes") && !strings.Contains(t, "3,5 à 7,5")))
	}, eligibility.VehicleHeavyTruck},
	{func(t string) bool { return strings.Contains(t, "camion") && strings.Contains(t, "3,5 à 7,5") }, eligibility.VehicleMediumTruck},
	{func(t string) bool { return strings.Contains(t, "utilitaire") }, eligibility.VehicleLightUtility},
	{func(t string) bool { return strings.Contains(t, "engin") }, eligibility.VehicleConstructionMachinery},
	{func(t string) bool { return strings.Contains(t, "tracteur") }, eligibility.VehicleAgriculturalTractor},
	{func(t string) bool { return pstrings.ContainsAny(t, "véhicule de service", "véhicules de service") }, eligibility.VehicleService},
	{func(t string) bool { return pstrings.ContainsAny(t, "véhicule de fonction", "véhicules de fonction") }, eligibility.VehicleCompanyCar},
}

var fuelRules = []struct {
	match func(text string) bool
	value eligibility.FuelType
}{
	{func(t string) bool {
		return pstrings.ContainsAny(t, "gazole", "diesel") && !pstrings.ContainsAny(t, "non routier", "gnr")
	}, eligibility.FuelDiesel},
	{func(t string) bool { return pstrings.ContainsAny(t, "gnr", "non routier") }, eligibility.FuelOffRoadDiesel},
	{func(t string) bool { return strings.Contains(t, "essence") }, eligibility.FuelPetrol},
	{func(t string) bool { return strings.Contains(t, "gpl") }, eligibility.FuelLPG},
	{func(t string) bool { return pstrings.ContainsAny(t, "électrique", "electrique", "électricité") }, eligibility.FuelElectric},
}

var rules = []rule{
	{"sector", func(p *eligibility.AttributeProfile, t string) {
		if s, ok := detectSector(t); ok {
			p.Sector = s
		}
	}},
	{"professional_vehicles", func(p *eligibility.AttributeProfile, t string) {
		if strings.Contains(t, "oui") && pstrings.ContainsAny(t, "véhicule", "vehicule", "professionnel") {
			p.HasProfessionalVehicles = true
		}
	}},
	{"fleet_size", func(p *eligibility.AttributeProfile, t string) {
		if v, ok := firstMatch(t, fleetPhrases); ok {
			p.FleetSize = v
		}
	}},
	{"vehicle_types", func(p *eligibility.AttributeProfile, t string) {
		for _, vr := range vehicleRules {
			if vr.match(t) {
				p.VehicleTypes = append(p.VehicleTypes, vr.value)
			}
		}
	}},
	{"consumption", func(p *eligibility.AttributeProfile, t string) {
		if v, ok := firstMatch(t, consumptionPhrases); ok {
			p.ConsumptionTier = v
		}
	}},
	{"fuel_types", func(p *eligibility.AttributeProfile, t string) {
		for _, fr := range fuelRules {
			if fr.match(t) {
				p.FuelTypes = append(p.FuelTypes, fr.value)
			}
		}
	}},
	{"fuel_invoices", func(p *eligibility.AttributeProfile, t string) {
		if v, ok := firstMatch(t, invoicePhrases); ok {
			p.FuelInvoices = v
		}
	}},
	{"usage", func(p *eligibility.AttributeProfile, t string) {
		if v, ok := firstMatch(t, usagePhrases); ok {
			p.UsageRatio = v
		}
	}},
}

func detectSector(t string) (eligibility.Sector, bool) {
	switch {
	case pstrings.ContainsAny(t, "transport", "logistique"):
		if !strings.Contains(t, "marchandises") && !strings.Contains(t, "logistique") && strings.Contains(t, "voyageurs") {
			return eligibility.SectorRoadPassenger, true
		}
		return eligibility.SectorRoadFreight, true
	case pstrings.ContainsAny(t, "btp", "travaux"):
		return eligibility.SectorConstruction, true
	case pstrings.ContainsAny(t, "taxi", "vtc"):
		return eligibility.SectorTaxi, true
	case pstrings.ContainsAny(t, "agricole", "agriculture"):
		return eligibility.SectorAgriculture, true
	}
	return eligibility.SectorUnknown, false
}

// tierForLitres buckets a numeric yearly consumption.
func tierForLitres(litres float64) eligibility.ConsumptionTier {
	switch {
	case litres > 50000:
		return eligibility.ConsumptionVeryHigh
	case litres >= 15000:
		return eligibility.ConsumptionHigh
	case litres >= 5000:
		return eligibility.ConsumptionMedium
	case litres > 0:
		return eligibility.ConsumptionLow
	default:
		return eligibility.ConsumptionUnknown
	}
}
