package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"eligo/internal/platform/config"
)

const freightFixture = `
- question_id: secteur
  value: Transport routier de marchandises
- question_id: vehicules
  value: Oui, véhicules professionnels
- question_id: types
  value: ["Camions de plus de 7,5 tonnes"]
- question_id: conso
  value: Plus de 50 000 litres
- question_id: carburant
  value: [Gazole]
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScore_JSON(t *testing.T) {
	out, err := execute(t, "score", "--answers", writeFixture(t, freightFixture))
	require.NoError(t, err)

	var report scoreReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Profile.HasProfessionalVehicles)
	require.NotEmpty(t, report.Results)
	assert.Equal(t, report.Results.TotalAmount(), report.TotalAmount)
	assert.Positive(t, report.TotalAmount)
}

func TestScore_YAML(t *testing.T) {
	out, err := execute(t, "score", "--answers", writeFixture(t, freightFixture), "--format", "yaml")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "results")
	assert.Contains(t, out, "product_code: TICPE")
}

func TestScore_RejectsBadFixtures(t *testing.T) {
	_, err := execute(t, "score", "--answers", writeFixture(t, "[]"))
	assert.ErrorContains(t, err, "contains no answers")

	_, err = execute(t, "score", "--answers", writeFixture(t, "- value: Oui\n"))
	assert.ErrorContains(t, err, "question_id is required")

	_, err = execute(t, "score", "--answers", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read answers")

	_, err = execute(t, "score")
	assert.Error(t, err)
}

func TestScore_UnknownFormat(t *testing.T) {
	_, err := execute(t, "score", "--answers", writeFixture(t, freightFixture), "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestSweep_RequiresDatabase(t *testing.T) {
	_, err := sweep(context.Background(), config.Config{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}
