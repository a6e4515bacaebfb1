package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eligo/pkg/domain-errors"
)

func TestAnswer_UnmarshalJSONVariants(t *testing.T) {
	payload := `[
		{"question_id": "secteur", "value": "Transport"},
		{"question_id": "carburant", "value": ["Gazole", " Gazole ", "Essence"]},
		{"question_id": "consommation", "value": 42000},
		{"question_id": "details", "value": {"b": "Camion", "a": "Oui"}},
		{"question_id": "vide", "value": null}
	]`

	var answers []Answer
	require.NoError(t, json.Unmarshal([]byte(payload), &answers))
	require.Len(t, answers, 5)

	assert.Equal(t, KindText, answers[0].Kind)
	assert.Equal(t, "Transport", answers[0].String())

	assert.Equal(t, KindChoices, answers[1].Kind)
	assert.Equal(t, "Gazole, Essence", answers[1].String())

	assert.Equal(t, KindNumber, answers[2].Kind)
	assert.Equal(t, 42000.0, answers[2].Number)

	assert.Equal(t, "Oui, Camion", answers[3].String(), "object values are joined in key order")
	assert.Empty(t, answers[4].String())
}

func TestAnswer_RejectsMissingQuestionID(t *testing.T) {
	var a Answer
	err := json.Unmarshal([]byte(`{"value": "Oui"}`), &a)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestAnswer_MarshalKeepsShape(t *testing.T) {
	data, err := json.Marshal([]Answer{ChoicesAnswer("types", "Camion"), NumberAnswer("litres", 12)})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"question_id":"types","value":["Camion"]},{"question_id":"litres","value":12}]`, string(data))
}

func TestAnswerFromValue_UnsupportedType(t *testing.T) {
	_, err := AnswerFromValue("q", struct{}{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
