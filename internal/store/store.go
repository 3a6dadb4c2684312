// Package store persists cover letter sessions for the reference backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrNotFound is returned for unknown sessions or question positions.
	ErrNotFound = errors.New("not found")
	// ErrQuestionLimit is returned when a session already holds the maximum
	// number of questions.
	ErrQuestionLimit = errors.New("question limit reached")
)

// Session is one stored cover letter session.
type Session struct {
	ID             uuid.UUID
	CompanyName    string
	JobTitle       string
	JobDescription string
	JobURL         string
	ResumeContent  string
	Status         string
	Questions      []Question
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Question is a stored question with its answer versions. History is empty
// until the first answer is generated.
type Question struct {
	ID           int
	Position     int
	Text         string
	History      []string
	CurrentIndex int
}

// Answer returns the current answer, or "" before generation.
func (q Question) Answer() string {
	if q.CurrentIndex < 0 || q.CurrentIndex >= len(q.History) {
		return ""
	}
	return q.History[q.CurrentIndex]
}

// Store is the persistence contract used by the server.
type Store interface {
	// CreateSession stores s with its questions and assigns IDs.
	CreateSession(ctx context.Context, s *Session) error
	// GetSession returns ErrNotFound for unknown ids.
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	// AddQuestion appends a question unless the session already has limit
	// questions.
	AddQuestion(ctx context.Context, id uuid.UUID, text string, limit int) (*Question, error)
	// AppendAnswer adds a version to the question at position (1-based) and
	// makes it current.
	AppendAnswer(ctx context.Context, id uuid.UUID, position int, answer string) (*Question, error)
	// SetStatus updates the session status.
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	// DeleteSession removes the session and its questions.
	DeleteSession(ctx context.Context, id uuid.UUID) error
	Close()
}
