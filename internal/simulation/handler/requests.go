package handler

import (
	"fmt"
	"strings"

	"eligo/internal/eligibility/extract"
	dErrors "eligo/pkg/domain-errors"
)

const maxAnswers = 200

// CreateSessionRequest is the HTTP request body for POST /simulation-session.
type CreateSessionRequest struct {
	Answers []extract.Answer `json:"answers"`
}

// Validate implements httputil.Validatable.
func (r *CreateSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Answers) == 0 {
		return dErrors.New(dErrors.CodeValidation, "answers must not be empty")
	}
	if len(r.Answers) > maxAnswers {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d answers are accepted", maxAnswers))
	}
	for i := range r.Answers {
		r.Answers[i].QuestionID = strings.TrimSpace(r.Answers[i].QuestionID)
		if r.Answers[i].QuestionID == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("answers[%d].question_id is required", i))
		}
	}
	return nil
}

// AbandonRequest is the optional body for POST /simulation-session/{id}/abandon.
type AbandonRequest struct {
	Reason string `json:"reason"`
}

func (r *AbandonRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}
