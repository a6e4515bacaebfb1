package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eligo/internal/eligibility"
	"eligo/internal/eligibility/extract"
)

// answerFixture is one questionnaire response in a YAML fixture:
//
//	- question_id: secteur
//	  value: Transport routier de marchandises
//	- question_id: carburant
//	  value: [Gazole]
type answerFixture struct {
	QuestionID string `yaml:"question_id"`
	Value      any    `yaml:"value"`
}

type scoreReport struct {
	Profile     eligibility.AttributeProfile `json:"profile" yaml:"profile"`
	Company     extract.CompanyAttributes    `json:"company" yaml:"company"`
	Results     eligibility.Results          `json:"results" yaml:"results"`
	TotalAmount float64                      `json:"total_amount" yaml:"total_amount"`
}

func scoreCmd() *cobra.Command {
	var (
		answersPath string
		format      string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a questionnaire fixture without creating a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers, err := loadAnswers(answersPath)
			if err != nil {
				return err
			}
			report := score(answers)
			return writeReport(cmd.OutOrStdout(), format, report)
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "", "YAML file with the questionnaire answers")
	cmd.Flags().StringVar(&format, "format", "json", "Output format (json, yaml)")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func loadAnswers(path string) ([]extract.Answer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var fixtures []answerFixture
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	if len(fixtures) == 0 {
		return nil, fmt.Errorf("%s contains no answers", path)
	}

	answers := make([]extract.Answer, 0, len(fixtures))
	for i, f := range fixtures {
		if f.QuestionID == "" {
			return nil, fmt.Errorf("answer %d: question_id is required", i)
		}
		a, err := extract.AnswerFromValue(f.QuestionID, f.Value)
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i, err)
		}
		answers = append(answers, a)
	}
	return answers, nil
}

func score(answers []extract.Answer) scoreReport {
	profile := extract.Extract(answers)
	results := eligibility.NewEngine().Score(profile)
	return scoreReport{
		Profile:     profile,
		Company:     extract.Company(answers),
		Results:     results,
		TotalAmount: results.TotalAmount(),
	}
}

func writeReport(w io.Writer, format string, report any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
