// Package types provides the wire types exchanged between the cover letter client and the generation backend.
package types

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Job completion values reported in SessionPayload.Status.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// JobInfo describes the job posting a session is generated for.
type JobInfo struct {
	CompanyName string `json:"company_name" validate:"required"`
	JobTitle    string `json:"job_title" validate:"required"`
	Description string `json:"description,omitempty"`
	JobURL      string `json:"job_url,omitempty" validate:"omitempty,url"`
}

// CreateSessionRequest starts a new generation session.
type CreateSessionRequest struct {
	JobInfo       JobInfo `json:"job_info"`
	ResumeContent string  `json:"resume_content" validate:"required,min=1"`
	Question      string  `json:"question" validate:"required,min=1"`
}

// CreateSessionResponse carries the server-assigned session identifier.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionPayload is the body returned by a session poll.
type SessionPayload struct {
	SessionID   string            `json:"session_id,omitempty"`
	CompanyName string            `json:"company_name,omitempty"`
	JobTitle    string            `json:"job_title,omitempty"`
	Status      string            `json:"status,omitempty"`
	IsCompleted *bool             `json:"is_completed,omitempty"`
	Questions   []QuestionPayload `json:"questions"`
}

// QuestionPayload is one question entry of a session poll.
//
// AnswerHistory is kept raw: the backend sends it either as a JSON-encoded
// string or as a native array, and may omit it.
type QuestionPayload struct {
	ID                  int             `json:"id"`
	Question            string          `json:"question"`
	Answer              string          `json:"answer"`
	AnswerHistory       json.RawMessage `json:"answer_history,omitempty"`
	CurrentVersionIndex *int            `json:"current_version_index,omitempty"`
}

// AddQuestionRequest adds a question to an existing session.
type AddQuestionRequest struct {
	Question string `json:"question" validate:"required,min=1"`
}

// AddQuestionResponse is the new question as echoed by the backend.
type AddQuestionResponse struct {
	ID       int    `json:"id,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ReviseRequest asks the backend to rewrite the current answer of a question.
type ReviseRequest struct {
	RevisionRequest string `json:"revision_request" validate:"required,min=1"`
}

// ReviseResponse holds the rewritten answer. Older backends reply with
// "answer" instead of "revised_answer".
type ReviseResponse struct {
	RevisedAnswer string `json:"revised_answer,omitempty"`
	Answer        string `json:"answer,omitempty"`
}

// Text returns the revised answer, preferring RevisedAnswer.
func (r ReviseResponse) Text() string {
	if strings.TrimSpace(r.RevisedAnswer) != "" {
		return r.RevisedAnswer
	}
	return r.Answer
}

// Validate validates the CreateSessionRequest using the validator.
func (r *CreateSessionRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	return requireNonBlank(
		[2]string{"resume_content", r.ResumeContent},
		[2]string{"question", r.Question},
	)
}

// Validate validates the AddQuestionRequest using the validator.
func (r *AddQuestionRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	return requireNonBlank([2]string{"question", r.Question})
}

// Validate validates the ReviseRequest using the validator.
func (r *ReviseRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	return requireNonBlank([2]string{"revision_request", r.RevisionRequest})
}

// BlankFieldError reports a field that only contains whitespace.
type BlankFieldError struct {
	Field string
}

func (e *BlankFieldError) Error() string {
	return "field " + e.Field + " must not be blank"
}

// requireNonBlank checks {name, value} pairs in order.
func requireNonBlank(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return &BlankFieldError{Field: f[0]}
		}
	}
	return nil
}
