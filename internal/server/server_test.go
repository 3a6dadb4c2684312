package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/coverletter/internal/auth"
	"github.com/jonathan/coverletter/internal/backend"
	"github.com/jonathan/coverletter/internal/config"
	"github.com/jonathan/coverletter/internal/generation"
	"github.com/jonathan/coverletter/internal/poller"
	"github.com/jonathan/coverletter/internal/server/ratelimit"
	"github.com/jonathan/coverletter/internal/store"
	"github.com/jonathan/coverletter/internal/types"
	"github.com/jonathan/coverletter/internal/workspace"
)

const createBody = `{
	"job_info": {"company_name": "Acme", "job_title": "Engineer", "description": "Build things"},
	"resume_content": "Ten years of Go.",
	"question": "Why do you want this job?"
}`

type failingGenerator struct{}

func (failingGenerator) Answer(context.Context, generation.Input) (string, error) {
	return "", errors.New("model unavailable")
}

func (failingGenerator) Revise(context.Context, generation.Input, string, string) (string, error) {
	return "", errors.New("model unavailable")
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestServer(t *testing.T, cfg Config, gen generation.Generator) (*Server, *store.MemoryStore) {
	t.Helper()
	if cfg.RateLimit == nil {
		cfg.RateLimit = &ratelimit.Config{Enabled: false}
	}
	cfg.Logger = quietLogger()
	if gen == nil {
		gen = &generation.TemplateGenerator{}
	}
	st := store.NewMemoryStore()
	s, err := New(cfg, st, gen)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, st
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s.Handler(), http.MethodPost, "/sessions", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp types.CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	s.Wait()
	return resp.SessionID
}

func poll(t *testing.T, s *Server, id string) types.SessionPayload {
	t.Helper()
	rec := do(t, s.Handler(), http.MethodGet, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var payload types.SessionPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateAndPoll(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	id := createSession(t, s)

	payload := poll(t, s, id)
	assert.Equal(t, id, payload.SessionID)
	assert.Equal(t, store.StatusCompleted, payload.Status)
	require.NotNil(t, payload.IsCompleted)
	assert.True(t, *payload.IsCompleted)
	require.Len(t, payload.Questions, 1)

	q := payload.Questions[0]
	assert.Equal(t, "Why do you want this job?", q.Question)
	assert.Contains(t, q.Answer, "**Engineer**")
	require.NotNil(t, q.CurrentVersionIndex)
	assert.Equal(t, 0, *q.CurrentVersionIndex)

	var encoded string
	require.NoError(t, json.Unmarshal(q.AnswerHistory, &encoded), "history is sent as a JSON string")
	var history []string
	require.NoError(t, json.Unmarshal([]byte(encoded), &history))
	assert.Equal(t, []string{q.Answer}, history)
}

func TestCreate_Rejected(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing company", `{"job_info":{"job_title":"Engineer"},"resume_content":"r","question":"q"}`},
		{"blank question", `{"job_info":{"company_name":"Acme","job_title":"Engineer"},"resume_content":"r","question":"   "}`},
		{"bad job url", `{"job_info":{"company_name":"Acme","job_title":"Engineer","job_url":"nope"},"resume_content":"r","question":"q"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCreate_GenerationFailureMarksSessionFailed(t *testing.T) {
	s, _ := newTestServer(t, Config{}, failingGenerator{})
	id := createSession(t, s)

	payload := poll(t, s, id)
	assert.Equal(t, store.StatusFailed, payload.Status)
	assert.False(t, *payload.IsCompleted)
	assert.Empty(t, payload.Questions[0].Answer)
	assert.Nil(t, payload.Questions[0].CurrentVersionIndex)
}

func TestGetSession_Unknown(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/sessions/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/sessions/9f1c2b3a-4d5e-4f60-8a7b-1c2d3e4f5a6b", "").Code)
}

func TestAddQuestion(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	id := createSession(t, s)
	path := "/sessions/" + id + "/questions"

	rec := do(t, s.Handler(), http.MethodPost, path, `{"question":"What is your greatest strength?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added types.AddQuestionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, "What is your greatest strength?", added.Question)
	assert.NotEmpty(t, added.Answer)
	assert.NotZero(t, added.ID)

	rec = do(t, s.Handler(), http.MethodPost, path, `{"question":"Why Acme?"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s.Handler(), http.MethodPost, path, `{"question":"One too many?"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	payload := poll(t, s, id)
	require.Len(t, payload.Questions, 3)
	for _, q := range payload.Questions {
		assert.NotEmpty(t, q.Answer)
	}
}

func TestAddQuestion_Rejected(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	id := createSession(t, s)

	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodPost, "/sessions/"+id+"/questions", `{"question":" "}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodPost, "/sessions/9f1c2b3a-4d5e-4f60-8a7b-1c2d3e4f5a6b/questions", `{"question":"q"}`).Code)
}

func TestAddQuestion_GenerationFailure(t *testing.T) {
	s, st := newTestServer(t, Config{}, failingGenerator{})
	sess := &store.Session{CompanyName: "Acme", JobTitle: "Engineer", Questions: []store.Question{{Text: "q1"}}}
	require.NoError(t, st.CreateSession(context.Background(), sess))

	rec := do(t, s.Handler(), http.MethodPost, "/sessions/"+sess.ID.String()+"/questions", `{"question":"q2"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Questions, 1, "no unanswered question is left behind")
}

func TestRevise(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	id := createSession(t, s)
	before := poll(t, s, id).Questions[0].Answer

	rec := do(t, s.Handler(), http.MethodPost, "/sessions/"+id+"/questions/1/revise", `{"revision_request":"mention Go"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var revised types.ReviseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revised))
	assert.Equal(t, before+" (mention Go)", revised.Text())

	q := poll(t, s, id).Questions[0]
	assert.Equal(t, revised.Text(), q.Answer)
	require.NotNil(t, q.CurrentVersionIndex)
	assert.Equal(t, 1, *q.CurrentVersionIndex)
}

func TestRevise_Rejected(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	id := createSession(t, s)
	base := "/sessions/" + id + "/questions/"

	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodPost, base+"0/revise", `{"revision_request":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodPost, base+"2/revise", `{"revision_request":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodPost, base+"one/revise", `{"revision_request":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodPost, base+"1/revise", `{"revision_request":""}`).Code)
}

func TestRevise_BeforeAnswerExists(t *testing.T) {
	s, st := newTestServer(t, Config{}, nil)
	sess := &store.Session{CompanyName: "Acme", JobTitle: "Engineer", Questions: []store.Question{{Text: "q1"}}}
	require.NoError(t, st.CreateSession(context.Background(), sess))

	rec := do(t, s.Handler(), http.MethodPost, "/sessions/"+sess.ID.String()+"/questions/1/revise", `{"revision_request":"x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	id := createSession(t, s)

	assert.Equal(t, http.StatusNoContent, do(t, s.Handler(), http.MethodDelete, "/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodDelete, "/sessions/"+id, "").Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	rec := do(t, s.Handler(), http.MethodOptions, "/sessions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{RateLimit: &ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Endpoints: []ratelimit.EndpointConfig{
			{Pattern: "/sessions", Method: "POST", Limit: 1, Window: time.Hour},
		},
	}}, nil)

	first := do(t, s.Handler(), http.MethodPost, "/sessions", createBody)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := do(t, s.Handler(), http.MethodPost, "/sessions", createBody)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "rate_limit_exceeded")

	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/health", "").Code)
	s.Wait()
}

func TestJWTAuth(t *testing.T) {
	s, _ := newTestServer(t, Config{JWT: &config.JWTConfig{Secret: "0123456789abcdef-test", ExpirationHours: 1}}, nil)

	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s.Handler(), http.MethodPost, "/sessions", createBody).Code)

	token, err := s.IssueToken("cli")
	require.NoError(t, err)
	rec := do(t, s.Handler(), http.MethodPost, "/sessions", createBody, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, rec.Code)
	s.Wait()
}

func TestIssueToken_AuthDisabled(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)
	_, err := s.IssueToken("cli")
	assert.Error(t, err)
}

func TestJWTService(t *testing.T) {
	svc := NewJWTService(&config.JWTConfig{Secret: "0123456789abcdef-test", ExpirationHours: 1})
	token, err := svc.GenerateToken("cli")
	require.NoError(t, err)

	subject, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cli", subject)

	other := NewJWTService(&config.JWTConfig{Secret: "another-secret-value", ExpirationHours: 1})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	expired := NewJWTService(&config.JWTConfig{Secret: "0123456789abcdef-test", ExpirationHours: 1})
	expired.expiration = -time.Minute
	old, err := expired.GenerateToken("cli")
	require.NoError(t, err)
	_, err = svc.ValidateToken(old)
	assert.Error(t, err)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, nil, &generation.TemplateGenerator{})
	assert.Error(t, err)
}

func TestEndToEnd_GenerationFailureStopsPoller(t *testing.T) {
	s, _ := newTestServer(t, Config{}, failingGenerator{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client, err := backend.NewClient(ts.URL, nil)
	require.NoError(t, err)

	ctx := context.Background()
	id, err := workspace.CreateSession(ctx, client, types.CreateSessionRequest{
		JobInfo:       types.JobInfo{CompanyName: "Acme", JobTitle: "Engineer"},
		ResumeContent: "Ten years of Go.",
		Question:      "Why do you want this job?",
	})
	require.NoError(t, err)
	s.Wait()

	res := poller.New(client,
		poller.WithInterval(time.Millisecond),
		poller.WithMaxTicks(10),
		poller.WithLogger(quietLogger()),
	).Run(ctx, id)

	assert.Equal(t, poller.StateFailed, res.State)
	assert.ErrorIs(t, res.Err, poller.ErrGenerationFailed)
	assert.Equal(t, 1, res.Ticks)
}

// TestEndToEnd_ReviseAndAdd drives the client stack against the real server:
// create, poll to completion, revise, add a question and delete.
func TestEndToEnd_ReviseAndAdd(t *testing.T) {
	s, _ := newTestServer(t, Config{JWT: &config.JWTConfig{Secret: "0123456789abcdef-test", ExpirationHours: 1}},
		&generation.TemplateGenerator{Delay: 5 * time.Millisecond})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	token, err := s.IssueToken("cli")
	require.NoError(t, err)
	client, err := backend.NewClient(ts.URL, &backend.Options{Tokens: auth.Static(token)})
	require.NoError(t, err)

	ctx := context.Background()
	id, err := workspace.CreateSession(ctx, client, types.CreateSessionRequest{
		JobInfo:       types.JobInfo{CompanyName: "Acme", JobTitle: "Engineer"},
		ResumeContent: "Ten years of Go.",
		Question:      "Why do you want this job?",
	})
	require.NoError(t, err)

	p := poller.New(client,
		poller.WithInterval(2*time.Millisecond),
		poller.WithMaxTicks(500),
		poller.WithLogger(log.New(&bytes.Buffer{}, "", 0)),
	)
	res := p.Run(ctx, id)
	require.Equal(t, poller.StateCompleted, res.State, "poll error: %v", res.Err)

	w, err := workspace.New(client, id, workspace.WithLogger(quietLogger()))
	require.NoError(t, err)
	w.LoadFromPayload(res.Payload)

	outcome, err := w.Revise(ctx, 1, "mention Go")
	require.NoError(t, err)
	require.Equal(t, workspace.OutcomeApplied, outcome)

	q := w.Questions()[0]
	require.Len(t, q.History, 2)
	assert.Equal(t, 1, q.CurrentIndex)
	assert.True(t, q.HasUndo())
	assert.False(t, q.HasRedo())
	assert.True(t, strings.HasSuffix(q.DisplayText(), "(mention Go)"))

	outcome, err = w.AddQuestion(ctx, "Why Acme?")
	require.NoError(t, err)
	require.Equal(t, workspace.OutcomeApplied, outcome)
	assert.Len(t, w.Questions(), 2)
	assert.Equal(t, 1, w.View().Active)

	require.NoError(t, w.Delete(ctx))
	assert.True(t, w.Deleted())
	_, err = client.PollSession(ctx, id)
	assert.ErrorIs(t, err, backend.ErrSessionGone)
}
