// Package workspace holds the client-side state of one cover letter session
// and the revision and question-set operations that act on it.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jonathan/coverletter/internal/answers"
	"github.com/jonathan/coverletter/internal/backend"
	"github.com/jonathan/coverletter/internal/sessionid"
	"github.com/jonathan/coverletter/internal/types"
)

const (
	// MinQuestions is the number of questions a session is created with.
	MinQuestions = 1
	// MaxQuestions caps how many questions a session may hold.
	MaxQuestions = 3
)

// Outcome describes what a mutating call did.
type Outcome int

const (
	// OutcomeNoop means the input was empty and nothing was sent.
	OutcomeNoop Outcome = iota
	// OutcomeNotPermitted means a precondition failed and nothing was sent.
	OutcomeNotPermitted
	// OutcomeApplied means the backend accepted the change.
	OutcomeApplied
	// OutcomeFailed means the backend call failed; the input is kept.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeNotPermitted:
		return "not_permitted"
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// Workspace is the state of one session. Network calls run without holding
// the lock; whichever refetch resolves last overwrites the local state.
type Workspace struct {
	backend backend.Backend
	logger  *log.Logger

	mu          sync.Mutex
	sessionID   string
	companyName string
	jobTitle    string
	status      string
	questions   []answers.Question
	active      int
	drafts      map[int]string
	deleted     bool
}

// New creates an empty workspace for sessionID. Call Refresh or
// LoadFromPayload to populate it.
func New(b backend.Backend, sessionID string, opts ...Option) (*Workspace, error) {
	if !sessionid.IsValid(sessionID) {
		return nil, fmt.Errorf("%w: %q", sessionid.ErrInvalid, sessionID)
	}
	w := &Workspace{
		backend:   b,
		logger:    log.Default(),
		sessionID: strings.ToLower(sessionID),
		drafts:    make(map[int]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// CreateSession validates req locally and submits it. Invalid input never
// reaches the network.
func CreateSession(ctx context.Context, b backend.Backend, req types.CreateSessionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", &ValidationError{Kind: KindInvalidInput, Cause: err}
	}
	id, err := b.CreateSession(ctx, req)
	if err != nil {
		return "", err
	}
	if !sessionid.IsValid(id) {
		return "", &backend.TransportError{Op: "create session", Message: fmt.Sprintf("backend returned malformed session id %q", id)}
	}
	return id, nil
}

// SessionID returns the session this workspace tracks.
func (w *Workspace) SessionID() string {
	return w.sessionID
}

// Refresh refetches the session and replaces local state with it.
func (w *Workspace) Refresh(ctx context.Context) error {
	if w.isDeleted() {
		return ErrDeleted
	}
	payload, err := w.backend.PollSession(ctx, w.sessionID)
	if err != nil {
		w.noteGone(err)
		return err
	}
	if !w.load(payload) {
		return ErrDeleted
	}
	return nil
}

// LoadFromPayload replaces local state with a poll payload. Drafts and the
// active tab are kept where they still point at a question. A deleted
// workspace ignores the payload.
func (w *Workspace) LoadFromPayload(p *types.SessionPayload) {
	w.load(p)
}

func (w *Workspace) load(p *types.SessionPayload) bool {
	if p == nil {
		return true
	}
	questions := make([]answers.Question, 0, len(p.Questions))
	for _, q := range p.Questions {
		questions = append(questions, answers.FromPayload(q))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.deleted {
		w.logger.Printf("[WORKSPACE] Dropped refetch of deleted session %s", w.sessionID)
		return false
	}
	if p.CompanyName != "" {
		w.companyName = p.CompanyName
	}
	if p.JobTitle != "" {
		w.jobTitle = p.JobTitle
	}
	w.status = p.Status
	w.questions = questions
	w.active = clampIndex(w.active, len(questions))
	for pos := range w.drafts {
		if pos > len(questions) {
			delete(w.drafts, pos)
		}
	}
	return true
}

// Revise asks the backend to rewrite the answer at position (1-based) and
// then refetches the session. Blank text is a no-op. The draft for position
// is kept when the backend call fails.
func (w *Workspace) Revise(ctx context.Context, position int, text string) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return OutcomeNoop, nil
	}

	w.mu.Lock()
	if w.deleted {
		w.mu.Unlock()
		return OutcomeNotPermitted, ErrDeleted
	}
	count := len(w.questions)
	if position < MinQuestions || position > count {
		w.mu.Unlock()
		return OutcomeNotPermitted, &ValidationError{Kind: KindInvalidPosition, Position: position, Count: count}
	}
	w.drafts[position] = text
	w.mu.Unlock()

	if _, err := w.backend.ReviseAnswer(ctx, w.sessionID, position, text); err != nil {
		w.logger.Printf("[WORKSPACE] Revision of question %d failed: %v", position, err)
		w.noteGone(err)
		return OutcomeFailed, err
	}

	w.mu.Lock()
	delete(w.drafts, position)
	w.mu.Unlock()

	if err := w.Refresh(ctx); err != nil {
		return OutcomeApplied, fmt.Errorf("refresh after revision: %w", err)
	}
	return OutcomeApplied, nil
}

// ReviseActive revises the question on the active tab.
func (w *Workspace) ReviseActive(ctx context.Context, text string) (Outcome, error) {
	w.mu.Lock()
	position := w.active + 1
	w.mu.Unlock()
	return w.Revise(ctx, position, text)
}

// SetDraft stores pending revision text for position (1-based).
func (w *Workspace) SetDraft(position int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if text == "" {
		delete(w.drafts, position)
		return
	}
	w.drafts[position] = text
}

// Draft returns pending revision text for position (1-based).
func (w *Workspace) Draft(position int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drafts[position]
}

// CanAddQuestion reports whether another question fits in the session.
func (w *Workspace) CanAddQuestion() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.deleted && len(w.questions) < MaxQuestions
}

// AddQuestion adds a question, refetches the session and makes the new
// question active. Blank text or a full session is reported as
// OutcomeNotPermitted without calling the backend.
func (w *Workspace) AddQuestion(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return OutcomeNotPermitted, nil
	}

	w.mu.Lock()
	if w.deleted {
		w.mu.Unlock()
		return OutcomeNotPermitted, ErrDeleted
	}
	if len(w.questions) >= MaxQuestions {
		w.mu.Unlock()
		return OutcomeNotPermitted, nil
	}
	w.mu.Unlock()

	resp, err := w.backend.AddQuestion(ctx, w.sessionID, text)
	if err != nil {
		w.logger.Printf("[WORKSPACE] Adding question failed: %v", err)
		w.noteGone(err)
		return OutcomeFailed, err
	}

	if err := w.Refresh(ctx); err != nil {
		return OutcomeApplied, fmt.Errorf("refresh after adding question: %w", err)
	}

	w.mu.Lock()
	w.active = w.findAdded(resp)
	w.mu.Unlock()
	return OutcomeApplied, nil
}

// findAdded locates the question the backend just created: by id, then by
// text, then the last question. Caller holds the lock.
func (w *Workspace) findAdded(resp *types.AddQuestionResponse) int {
	last := len(w.questions) - 1
	if resp == nil || last < 0 {
		return max(last, 0)
	}
	if resp.ID != 0 {
		for i, q := range w.questions {
			if q.ID == resp.ID {
				return i
			}
		}
	}
	want := strings.TrimSpace(resp.Question)
	for i := last; i >= 0 && want != ""; i-- {
		if strings.TrimSpace(w.questions[i].Text) == want {
			return i
		}
	}
	return last
}

// SelectQuestion makes the question at index (0-based) active.
func (w *Workspace) SelectQuestion(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 0 || index >= len(w.questions) {
		return &ValidationError{Kind: KindInvalidPosition, Position: index + 1, Count: len(w.questions)}
	}
	w.active = index
	return nil
}

// SelectVersion points the question at index (0-based) to another version.
// It does not call the backend.
func (w *Workspace) SelectVersion(index, version int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 0 || index >= len(w.questions) {
		return &ValidationError{Kind: KindInvalidPosition, Position: index + 1, Count: len(w.questions)}
	}
	q, err := answers.SelectVersion(w.questions[index], version)
	if err != nil {
		return err
	}
	w.questions[index] = q
	return nil
}

// Delete removes the whole session on the backend. It cannot be undone.
func (w *Workspace) Delete(ctx context.Context) error {
	if w.isDeleted() {
		return ErrDeleted
	}
	if err := w.backend.DeleteSession(ctx, w.sessionID); err != nil && !errors.Is(err, backend.ErrSessionGone) {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.deleted = true
	w.questions = nil
	w.active = 0
	clear(w.drafts)
	w.logger.Printf("[WORKSPACE] Deleted session %s", w.sessionID)
	return nil
}

// Deleted reports whether the session is known to be gone.
func (w *Workspace) Deleted() bool {
	return w.isDeleted()
}

// Questions returns a copy of the current questions.
func (w *Workspace) Questions() []answers.Question {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]answers.Question, len(w.questions))
	for i, q := range w.questions {
		q.History = append([]string(nil), q.History...)
		out[i] = q
	}
	return out
}

// noteGone marks the workspace deleted when err says the session no longer
// exists.
func (w *Workspace) noteGone(err error) {
	if !errors.Is(err, backend.ErrSessionGone) {
		return
	}
	w.mu.Lock()
	w.deleted = true
	w.mu.Unlock()
}

func (w *Workspace) isDeleted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deleted
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	return min(i, n-1)
}
