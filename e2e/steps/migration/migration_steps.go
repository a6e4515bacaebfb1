package migration

import (
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	Remember(key, value string)
	Recall(key string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &migrationSteps{tc: tc}
	ctx.Step(`^I register as "([^"]*)" with password "([^"]*)"$`, steps.register)
	ctx.Step(`^I register as "([^"]*)" without an access token$`, steps.registerWithoutToken)
	ctx.Step(`^the migrated account id is remembered$`, steps.rememberAccount)
	ctx.Step(`^the account id should be the remembered one$`, steps.accountIsRemembered)
	ctx.Step(`^at least (\d+) records? should have been migrated$`, steps.recordsMigrated)
}

type migrationSteps struct {
	tc TestContext
}

// uniqueEmail tags the local part so reruns against a persistent server do
// not collide with identities created earlier.
func uniqueEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	return fmt.Sprintf("%s+e2e%d@%s", local, time.Now().UnixNano(), domain)
}

func registration(email, password string) map[string]interface{} {
	return map[string]interface{}{
		"email":        uniqueEmail(email),
		"password":     password,
		"company_name": "Transports Bernard",
		"postal_code":  "69007",
	}
}

func (s *migrationSteps) register(email, password string) error {
	return s.tc.POST("/accounts/migrate", map[string]interface{}{
		"registration": registration(email, password),
	}, map[string]string{"Authorization": "Bearer " + s.tc.Recall("access_token")})
}

func (s *migrationSteps) registerWithoutToken(email string) error {
	return s.tc.POST("/accounts/migrate", map[string]interface{}{
		"registration": registration(email, "correct-horse-battery"),
	}, nil)
}

func (s *migrationSteps) rememberAccount() error {
	v, err := s.tc.GetResponseField("account_id")
	if err != nil {
		return err
	}
	s.tc.Remember("account_id", fmt.Sprint(v))
	return nil
}

func (s *migrationSteps) accountIsRemembered() error {
	v, err := s.tc.GetResponseField("account_id")
	if err != nil {
		return err
	}
	if want := s.tc.Recall("account_id"); fmt.Sprint(v) != want {
		return fmt.Errorf("expected account %s, got %v", want, v)
	}
	return nil
}

func (s *migrationSteps) recordsMigrated(n int) error {
	v, err := s.tc.GetResponseField("migrated_record_count")
	if err != nil {
		return err
	}
	if count, _ := v.(float64); int(count) < n {
		return fmt.Errorf("expected at least %d records, got %v", n, v)
	}
	return nil
}
