// Package backendtest provides a scripted in-memory Backend for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jonathan/coverletter/internal/backend"
	"github.com/jonathan/coverletter/internal/types"
)

// PollStep is one scripted poll response.
type PollStep struct {
	Payload *types.SessionPayload
	Err     error
}

// Fake implements backend.Backend. Polls are served from a script first;
// once the script is exhausted the live session state is returned.
type Fake struct {
	mu sync.Mutex

	SessionID   string
	CompanyName string
	JobTitle    string
	Questions   []FakeQuestion
	Deleted     bool

	Script []PollStep

	// Err, when set, is returned by every mutating call.
	Err error
	// BeforePoll runs before each poll is answered.
	BeforePoll func(call int)

	Calls map[string]int
}

// FakeQuestion is the fake's view of one question.
type FakeQuestion struct {
	ID      int
	Text    string
	History []string
	Current int
}

var _ backend.Backend = (*Fake)(nil)

// NewFake returns a fake holding one completed question.
func NewFake(sessionID string, questions ...FakeQuestion) *Fake {
	return &Fake{
		SessionID:   sessionID,
		CompanyName: "Acme",
		JobTitle:    "Backend Engineer",
		Questions:   questions,
		Calls:       make(map[string]int),
	}
}

// CallCount returns how many times op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.Calls {
		total += n
	}
	return total
}

func (f *Fake) record(op string) {
	if f.Calls == nil {
		f.Calls = make(map[string]int)
	}
	f.Calls[op]++
}

// CreateSession implements backend.Backend.
func (f *Fake) CreateSession(_ context.Context, req types.CreateSessionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if f.Err != nil {
		return "", f.Err
	}
	f.CompanyName = req.JobInfo.CompanyName
	f.JobTitle = req.JobInfo.JobTitle
	return f.SessionID, nil
}

// PollSession implements backend.Backend.
func (f *Fake) PollSession(_ context.Context, sessionID string) (*types.SessionPayload, error) {
	f.mu.Lock()
	f.record("poll")
	call := f.Calls["poll"]
	hook := f.BeforePoll
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Script) > 0 {
		step := f.Script[0]
		f.Script = f.Script[1:]
		return step.Payload, step.Err
	}
	if f.Deleted || sessionID != f.SessionID {
		return nil, backend.ErrSessionGone
	}
	return f.payload(), nil
}

// AddQuestion implements backend.Backend.
func (f *Fake) AddQuestion(_ context.Context, sessionID, question string) (*types.AddQuestionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add")
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Deleted || sessionID != f.SessionID {
		return nil, backend.ErrSessionGone
	}

	id := 1
	for _, q := range f.Questions {
		id = max(id, q.ID+1)
	}
	answer := "Answer to: " + question
	f.Questions = append(f.Questions, FakeQuestion{ID: id, Text: question, History: []string{answer}})
	return &types.AddQuestionResponse{ID: id, Question: question, Answer: answer}, nil
}

// ReviseAnswer implements backend.Backend.
func (f *Fake) ReviseAnswer(_ context.Context, sessionID string, position int, revision string) (*types.ReviseResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("revise")
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Deleted || sessionID != f.SessionID {
		return nil, backend.ErrSessionGone
	}
	if position < 1 || position > len(f.Questions) {
		return nil, &backend.TransportError{Op: "revise answer", StatusCode: 400, Message: "invalid position"}
	}

	q := &f.Questions[position-1]
	revised := q.History[q.Current] + " (" + revision + ")"
	q.History = append(q.History, revised)
	q.Current = len(q.History) - 1
	return &types.ReviseResponse{RevisedAnswer: revised}, nil
}

// DeleteSession implements backend.Backend.
func (f *Fake) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	if f.Err != nil {
		return f.Err
	}
	if f.Deleted || sessionID != f.SessionID {
		return backend.ErrSessionGone
	}
	f.Deleted = true
	return nil
}

func (f *Fake) payload() *types.SessionPayload {
	done := true
	out := &types.SessionPayload{
		SessionID:   f.SessionID,
		CompanyName: f.CompanyName,
		JobTitle:    f.JobTitle,
		Status:      types.StatusCompleted,
		IsCompleted: &done,
		Questions:   make([]types.QuestionPayload, 0, len(f.Questions)),
	}
	for _, q := range f.Questions {
		encoded, _ := json.Marshal(q.History)
		history, _ := json.Marshal(string(encoded))
		current := q.Current
		out.Questions = append(out.Questions, types.QuestionPayload{
			ID:                  q.ID,
			Question:            q.Text,
			Answer:              q.History[q.Current],
			AnswerHistory:       history,
			CurrentVersionIndex: &current,
		})
	}
	return out
}

// ErrTransport is a ready-made recoverable failure.
var ErrTransport = &backend.TransportError{Op: "fake", Message: "connection reset", Cause: errors.New("ECONNRESET")}
