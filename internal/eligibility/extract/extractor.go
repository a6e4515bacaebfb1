// Package extract turns free-form questionnaire answers into an
// eligibility.AttributeProfile.
//
// Extraction never fails: unrecognized answers are ignored and a partial
// profile scores conservatively.
package extract

import (
	"strings"

	"eligo/internal/eligibility"
	pstrings "eligo/pkg/platform/strings"
)

// Extract applies every rule to every answer, in answer order.
func Extract(answers []Answer) eligibility.AttributeProfile {
	var profile eligibility.AttributeProfile
	for _, a := range answers {
		if a.Kind == KindNumber {
			applyNumeric(&profile, a)
			continue
		}
		text := a.matchText()
		if text == "" {
			continue
		}
		for _, r := range rules {
			r.apply(&profile, text)
		}
	}

	// A declared fleet implies professional vehicles even without an explicit "oui".
	if !profile.HasProfessionalVehicles && (profile.FleetSize != eligibility.FleetUnknown || len(profile.VehicleTypes) > 0) {
		profile.HasProfessionalVehicles = true
	}
	return profile
}

func applyNumeric(profile *eligibility.AttributeProfile, a Answer) {
	qid := strings.ToLower(a.QuestionID)
	if pstrings.ContainsAny(qid, "consommation", "consumption", "litre") {
		if tier := tierForLitres(a.Number); tier != eligibility.ConsumptionUnknown {
			profile.ConsumptionTier = tier
		}
	}
}
