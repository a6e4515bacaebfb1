package e2e

import (
	"github.com/cucumber/godog"

	"eligo/e2e/steps/common"
	"eligo/e2e/steps/migration"
	"eligo/e2e/steps/simulation"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	simulation.RegisterSteps(ctx, tc)
	migration.RegisterSteps(ctx, tc)
}
