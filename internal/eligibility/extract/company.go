package extract

import (
	"strings"

	pstrings "eligo/pkg/platform/strings"
)

// CompanyAttributes are organization facts inferred from the questionnaire.
// They prefill the durable profile when registration leaves them blank.
type CompanyAttributes struct {
	SectorLabel     string  `json:"sector_label,omitempty" yaml:"sector_label,omitempty"`
	EmployeeCount   int     `json:"employee_count,omitempty" yaml:"employee_count,omitempty"`
	AnnualRevenue   float64 `json:"annual_revenue,omitempty" yaml:"annual_revenue,omitempty"`
	CompanyAgeYears int     `json:"company_age_years" yaml:"company_age_years"`
}

const defaultCompanyAgeYears = 5

var employeePhrases = []phrase[int]{
	{[]string{"moins de 5"}, 3},
	{[]string{"5 à 20"}, 12},
	{[]string{"plus de 20"}, 50},
}

// revenuePerEmployee is checked in order against the lowercased sector label.
var revenuePerEmployee = []phrase[float64]{
	{[]string{"logistique"}, 75000},
	{[]string{"transport"}, 80000},
	{[]string{"industrie"}, 90000},
	{[]string{"commerce"}, 70000},
	{[]string{"immobilier"}, 120000},
	{[]string{"agricult", "agricole"}, 60000},
	{[]string{"construction", "btp"}, 80000},
	{[]string{"technologie"}, 100000},
	{[]string{"services"}, 85000},
}

const defaultRevenuePerEmployee = 80000

// Company reads sector and headcount answers, identified by question id.
func Company(answers []Answer) CompanyAttributes {
	attrs := CompanyAttributes{CompanyAgeYears: defaultCompanyAgeYears}
	for _, a := range answers {
		qid := strings.ToLower(a.QuestionID)
		switch {
		case pstrings.ContainsAny(qid, "secteur", "sector", "activit"):
			if label := a.String(); label != "" {
				attrs.SectorLabel = label
			}
		case pstrings.ContainsAny(qid, "employ", "salari", "effectif", "headcount"):
			if a.Kind == KindNumber {
				if a.Number > 0 {
					attrs.EmployeeCount = int(a.Number)
				}
				continue
			}
			if n, ok := firstMatch(a.matchText(), employeePhrases); ok {
				attrs.EmployeeCount = n
			}
		}
	}

	if attrs.EmployeeCount > 0 && attrs.SectorLabel != "" {
		rate, ok := firstMatch(strings.ToLower(attrs.SectorLabel), revenuePerEmployee)
		if !ok {
			rate = defaultRevenuePerEmployee
		}
		attrs.AnnualRevenue = float64(attrs.EmployeeCount) * rate
	}
	return attrs
}
