package simulation

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	Remember(key, value string)
	Recall(key string) string
}

type answer struct {
	QuestionID string      `json:"question_id"`
	Value      interface{} `json:"value"`
}

var questionnaires = map[string][]answer{
	"a heavy freight carrier": {
		{QuestionID: "secteur", Value: "Transport routier de marchandises"},
		{QuestionID: "vehicules", Value: "Oui, véhicules professionnels"},
		{QuestionID: "types", Value: []string{"Camions de plus de 7,5 tonnes"}},
		{QuestionID: "conso", Value: "Plus de 50 000 litres"},
		{QuestionID: "carburant", Value: []string{"Gazole"}},
	},
	"a consulting firm without vehicles": {
		{QuestionID: "secteur", Value: "Conseil"},
		{QuestionID: "vehicules", Value: "Non"},
	},
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &simulationSteps{tc: tc}
	ctx.Step(`^a questionnaire from (.+)$`, steps.questionnaireFrom)
	ctx.Step(`^I submit the questionnaire$`, steps.submitQuestionnaire)
	ctx.Step(`^I read the session with its access token$`, steps.readWithToken)
	ctx.Step(`^I read the session with the token "([^"]*)"$`, steps.readWithGivenToken)
	ctx.Step(`^the "([^"]*)" result should have a positive estimated amount$`, steps.resultHasPositiveAmount)
	ctx.Step(`^every result should have a zero estimated amount$`, steps.everyResultIsZero)
}

type simulationSteps struct {
	tc      TestContext
	answers []answer
}

func (s *simulationSteps) questionnaireFrom(who string) error {
	answers, ok := questionnaires[who]
	if !ok {
		return fmt.Errorf("no questionnaire fixture for %q", who)
	}
	s.answers = answers
	return nil
}

func (s *simulationSteps) submitQuestionnaire() error {
	if err := s.tc.POST("/simulation-session", map[string]interface{}{"answers": s.answers}, nil); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return nil
	}
	for _, field := range []string{"session_id", "access_token"} {
		v, err := s.tc.GetResponseField(field)
		if err != nil {
			return err
		}
		s.tc.Remember(field, fmt.Sprint(v))
	}
	return nil
}

func (s *simulationSteps) readWithToken() error {
	return s.readWithGivenToken(s.tc.Recall("access_token"))
}

func (s *simulationSteps) readWithGivenToken(token string) error {
	return s.tc.GET("/simulation-session/"+s.tc.Recall("session_id"), map[string]string{
		"Authorization": "Bearer " + token,
	})
}

func (s *simulationSteps) results() ([]map[string]interface{}, error) {
	raw, err := s.tc.GetResponseField("results")
	if err != nil {
		return nil, err
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("results is not a list: %v", raw)
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("result is not an object: %v", item)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *simulationSteps) resultHasPositiveAmount(code string) error {
	results, err := s.results()
	if err != nil {
		return err
	}
	for _, r := range results {
		if r["product_code"] != code {
			continue
		}
		if amount, _ := r["estimated_amount"].(float64); amount > 0 {
			return nil
		}
		return fmt.Errorf("%s estimated amount is %v", code, r["estimated_amount"])
	}
	return fmt.Errorf("no %s result", code)
}

func (s *simulationSteps) everyResultIsZero() error {
	results, err := s.results()
	if err != nil {
		return err
	}
	for _, r := range results {
		if amount, _ := r["estimated_amount"].(float64); amount != 0 {
			return fmt.Errorf("%v estimated %v", r["product_code"], amount)
		}
	}
	return nil
}
