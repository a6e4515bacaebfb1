package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	dErrors "eligo/pkg/domain-errors"
	pstrings "eligo/pkg/platform/strings"
)

// AnswerKind tags which field of an Answer carries the response.
type AnswerKind int

const (
	KindText AnswerKind = iota
	KindChoices
	KindNumber
)

func (k AnswerKind) String() string {
	switch k {
	case KindChoices:
		return "choices"
	case KindNumber:
		return "number"
	default:
		return "text"
	}
}

// Answer is one questionnaire response. The same attribute may be signaled
// by several question ids, so extraction looks at the response first and the
// question id only to disambiguate numeric answers.
type Answer struct {
	QuestionID string
	Kind       AnswerKind
	Text       string
	Choices    []string
	Number     float64
}

func TextAnswer(questionID, text string) Answer {
	return Answer{QuestionID: questionID, Kind: KindText, Text: text}
}

func ChoicesAnswer(questionID string, choices ...string) Answer {
	return Answer{QuestionID: questionID, Kind: KindChoices, Choices: choices}
}

func NumberAnswer(questionID string, n float64) Answer {
	return Answer{QuestionID: questionID, Kind: KindNumber, Number: n}
}

// String is the response as free text. Choices are trimmed, de-duplicated
// and joined with ", ".
func (a Answer) String() string {
	switch a.Kind {
	case KindChoices:
		return strings.Join(pstrings.DedupeAndTrim(a.Choices), ", ")
	case KindNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	default:
		return strings.TrimSpace(a.Text)
	}
}

func (a Answer) matchText() string {
	return strings.ToLower(a.String())
}

// AnswerFromValue builds an Answer from a decoded JSON or YAML value.
// Objects are flattened to their values in key order.
func AnswerFromValue(questionID string, v any) (Answer, error) {
	switch val := v.(type) {
	case nil:
		return TextAnswer(questionID, ""), nil
	case string:
		return TextAnswer(questionID, val), nil
	case bool:
		if val {
			return TextAnswer(questionID, "Oui"), nil
		}
		return TextAnswer(questionID, "Non"), nil
	case float64:
		return NumberAnswer(questionID, val), nil
	case int:
		return NumberAnswer(questionID, float64(val)), nil
	case json.Number:
		n, err := val.Float64()
		if err != nil {
			return Answer{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid numeric answer")
		}
		return NumberAnswer(questionID, n), nil
	case []string:
		return ChoicesAnswer(questionID, val...), nil
	case []any:
		choices := make([]string, 0, len(val))
		for _, item := range val {
			choices = append(choices, fmt.Sprint(item))
		}
		return ChoicesAnswer(questionID, choices...), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		choices := make([]string, 0, len(keys))
		for _, k := range keys {
			choices = append(choices, fmt.Sprint(val[k]))
		}
		return ChoicesAnswer(questionID, choices...), nil
	default:
		return Answer{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported answer type %T for question %q", v, questionID))
	}
}

type answerJSON struct {
	QuestionID string `json:"question_id"`
	Value      any    `json:"value"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	var value any
	switch a.Kind {
	case KindChoices:
		value = a.Choices
	case KindNumber:
		value = a.Number
	default:
		value = a.Text
	}
	return json.Marshal(answerJSON{QuestionID: a.QuestionID, Value: value})
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var raw answerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw.QuestionID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "question_id is required")
	}
	parsed, err := AnswerFromValue(raw.QuestionID, raw.Value)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
