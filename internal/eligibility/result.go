package eligibility

type ConfidenceBand string

const (
	ConfidenceLow    ConfidenceBand = "low"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceHigh   ConfidenceBand = "high"
)

// Result is the scored, priced outcome for one product. Immutable once computed.
type Result struct {
	ProductCode     string         `json:"product_code" yaml:"product_code"`
	Score           int            `json:"score" yaml:"score"`
	EstimatedAmount float64        `json:"estimated_amount" yaml:"estimated_amount"`
	Confidence      ConfidenceBand `json:"confidence" yaml:"confidence"`
	Recommendations []string       `json:"recommendations" yaml:"recommendations"`
}

// HighEligibilityScore is the score from which a result is reported as a
// high-eligibility lead.
const HighEligibilityScore = 70

// Results is the per-session list of product outcomes.
type Results []Result

// HighEligibility returns the results scoring at least HighEligibilityScore.
func (rs Results) HighEligibility() Results {
	var out Results
	for _, r := range rs {
		if r.Score >= HighEligibilityScore {
			out = append(out, r)
		}
	}
	return out
}

// TotalAmount sums the estimated amounts.
func (rs Results) TotalAmount() float64 {
	var total float64
	for _, r := range rs {
		total += r.EstimatedAmount
	}
	return total
}

func confidenceFor(score int) ConfidenceBand {
	switch {
	case score >= 70:
		return ConfidenceHigh
	case score >= 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
