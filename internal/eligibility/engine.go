// Package eligibility scores attribute profiles against candidate products.
//
// Everything in this package is pure: no I/O, no clock, no randomness. The
// same profile always yields the same results, so the engine is safe to call
// concurrently and trivially testable.
package eligibility

import (
	"math"
	"strconv"
	"strings"
)

// Engine scores profiles against a fixed product table.
type Engine struct {
	products []Product
}

// NewEngine builds an engine over products, or DefaultProducts when none are given.
func NewEngine(products ...Product) *Engine {
	if len(products) == 0 {
		products = DefaultProducts()
	}
	return &Engine{products: products}
}

// Products returns the candidate product codes in scoring order.
func (e *Engine) Products() []string {
	codes := make([]string, 0, len(e.products))
	for _, p := range e.products {
		codes = append(codes, p.Code)
	}
	return codes
}

// Score returns exactly one result per candidate product. Gated-out products
// are reported with score 0, amount 0 and low confidence rather than omitted.
func (e *Engine) Score(profile AttributeProfile) Results {
	results := make(Results, 0, len(e.products))
	for _, product := range e.products {
		results = append(results, scoreProduct(product, profile))
	}
	return results
}

func scoreProduct(product Product, profile AttributeProfile) Result {
	if !profile.HasProfessionalVehicles || !product.eligible(profile.Sector) {
		return Result{
			ProductCode:     product.Code,
			Confidence:      ConfidenceLow,
			Recommendations: recommendations(0),
		}
	}

	score := product.SectorPoints[profile.Sector] + product.ProfessionalBonus

	vehiclePoints := 0
	for _, vt := range profile.VehicleTypes {
		vehiclePoints += product.VehicleWeights[vt]
	}
	score += min(vehiclePoints, product.VehicleCap)
	score += product.ConsumptionPoints[profile.ConsumptionTier]
	if profile.FuelInvoices == InvoicesComplete {
		score += product.CompleteInvoiceBonus
	}
	score = min(score, 100)

	amount := estimateAmount(product, profile)
	return Result{
		ProductCode:     product.Code,
		Score:           score,
		EstimatedAmount: amount,
		Confidence:      confidenceFor(score),
		Recommendations: recommendations(amount),
	}
}

// estimateAmount = volume × unit rate × vehicle coefficient × usage coefficient,
// clamped to [AmountFloor, AmountCeiling] and rounded to whole units.
func estimateAmount(product Product, profile AttributeProfile) float64 {
	volume, ok := consumptionVolumes[profile.ConsumptionTier]
	if !ok {
		volume = defaultConsumptionVolume
	}

	usage := partialUsageCoefficient
	if profile.UsageRatio == UsageFull {
		usage = fullUsageCoefficient
	}

	raw := volume * unitRate(product, profile) * vehicleCoefficient(profile.VehicleTypes) * usage
	return math.Round(math.Min(math.Max(raw, AmountFloor), AmountCeiling))
}

// unitRate takes the highest rate across matched fuel types, not the first match.
func unitRate(product Product, profile AttributeProfile) float64 {
	if len(profile.FuelTypes) == 0 {
		if rate, ok := product.SectorRates[profile.Sector]; ok {
			return rate
		}
		return product.DefaultRate
	}
	best := 0.0
	for _, ft := range profile.FuelTypes {
		rate, ok := product.FuelRates[ft]
		if !ok {
			rate = product.UnlistedFuelRate
		}
		if rate > best {
			best = rate
		}
	}
	return best
}

// vehicleCoefficient averages per-type coefficients, duplicates included.
func vehicleCoefficient(types []VehicleType) float64 {
	if len(types) == 0 {
		return defaultVehicleCoefficient
	}
	total := 0.0
	for _, vt := range types {
		c, ok := vehicleCoefficients[vt]
		if !ok {
			c = unlistedVehicleCoefficient
		}
		total += c
	}
	return total / float64(len(types))
}

const followUpAdvice = "Inscrivez-vous pour une analyse approfondie de votre dossier"

func recommendations(amount float64) []string {
	if amount > 0 {
		return []string{
			"Éligibilité possible : gain potentiel de " + formatEuros(amount),
			followUpAdvice,
		}
	}
	return []string{"Non éligible", followUpAdvice}
}

// formatEuros renders 13275 as "13 275 €".
func formatEuros(amount float64) string {
	digits := strconv.FormatInt(int64(math.Round(amount)), 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(" €")
	return b.String()
}
