//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateRequest() CreateSessionRequest {
	return CreateSessionRequest{
		JobInfo: JobInfo{
			CompanyName: "Acme",
			JobTitle:    "Backend Engineer",
		},
		ResumeContent: "Five years of Go.",
		Question:      "Why do you want this job?",
	}
}

func TestCreateSessionRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreateSessionRequest)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid request",
			mutate:  func(_ *CreateSessionRequest) {},
			wantErr: false,
		},
		{
			name:    "missing company",
			mutate:  func(r *CreateSessionRequest) { r.JobInfo.CompanyName = "" },
			wantErr: true,
			errMsg:  "CompanyName",
		},
		{
			name:    "missing question",
			mutate:  func(r *CreateSessionRequest) { r.Question = "" },
			wantErr: true,
			errMsg:  "required",
		},
		{
			name:    "whitespace question",
			mutate:  func(r *CreateSessionRequest) { r.Question = "   " },
			wantErr: true,
			errMsg:  "question must not be blank",
		},
		{
			name:    "invalid job url",
			mutate:  func(r *CreateSessionRequest) { r.JobInfo.JobURL = "not a url" },
			wantErr: true,
			errMsg:  "url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddQuestionRequest_Validate(t *testing.T) {
	assert.NoError(t, (&AddQuestionRequest{Question: "What is your biggest strength?"}).Validate())
	assert.Error(t, (&AddQuestionRequest{}).Validate())

	var blank *BlankFieldError
	require.ErrorAs(t, (&AddQuestionRequest{Question: "\t\n"}).Validate(), &blank)
	assert.Equal(t, "question", blank.Field)
}

func TestReviseRequest_Validate(t *testing.T) {
	assert.NoError(t, (&ReviseRequest{RevisionRequest: "make it shorter"}).Validate())
	assert.Error(t, (&ReviseRequest{RevisionRequest: " "}).Validate())
}

func TestReviseResponse_Text(t *testing.T) {
	assert.Equal(t, "new", ReviseResponse{RevisedAnswer: "new", Answer: "old"}.Text())
	assert.Equal(t, "old", ReviseResponse{Answer: "old"}.Text())
	assert.Equal(t, "old", ReviseResponse{RevisedAnswer: "  ", Answer: "old"}.Text())
}

func TestSessionPayload_Unmarshal(t *testing.T) {
	raw := `{
		"company_name": "Acme",
		"status": "completed",
		"is_completed": true,
		"questions": [
			{"id": 1, "question": "Why?", "answer": "Because.", "answer_history": "[\"Because.\"]", "current_version_index": 0},
			{"id": 2, "question": "How?", "answer": "Carefully.", "answer_history": ["Quickly.", "Carefully."]}
		]
	}`

	var payload SessionPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, "Acme", payload.CompanyName)
	require.NotNil(t, payload.IsCompleted)
	assert.True(t, *payload.IsCompleted)
	require.Len(t, payload.Questions, 2)
	assert.Equal(t, `"[\"Because.\"]"`, string(payload.Questions[0].AnswerHistory))
	require.NotNil(t, payload.Questions[0].CurrentVersionIndex)
	assert.Equal(t, 0, *payload.Questions[0].CurrentVersionIndex)
	assert.Nil(t, payload.Questions[1].CurrentVersionIndex)
	assert.Equal(t, `["Quickly.", "Carefully."]`, string(payload.Questions[1].AnswerHistory))
}
