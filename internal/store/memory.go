package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	nextID   int
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*Session),
		now:      time.Now,
	}
}

// CreateSession implements Store.
func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	now := m.now()
	s.CreatedAt, s.UpdatedAt = now, now
	for i := range s.Questions {
		m.nextID++
		s.Questions[i].ID = m.nextID
		s.Questions[i].Position = i + 1
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

// GetSession implements Store.
func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

// AddQuestion implements Store.
func (m *MemoryStore) AddQuestion(_ context.Context, id uuid.UUID, text string, limit int) (*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if len(s.Questions) >= limit {
		return nil, ErrQuestionLimit
	}
	m.nextID++
	q := Question{ID: m.nextID, Position: len(s.Questions) + 1, Text: text}
	s.Questions = append(s.Questions, q)
	s.UpdatedAt = m.now()
	return &q, nil
}

// AppendAnswer implements Store.
func (m *MemoryStore) AppendAnswer(_ context.Context, id uuid.UUID, position int, answer string) (*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || position < 1 || position > len(s.Questions) {
		return nil, ErrNotFound
	}
	q := &s.Questions[position-1]
	q.History = append(q.History, answer)
	q.CurrentIndex = len(q.History) - 1
	s.UpdatedAt = m.now()

	out := *q
	out.History = append([]string(nil), q.History...)
	return &out, nil
}

// SetStatus implements Store.
func (m *MemoryStore) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = m.now()
	return nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() {}

func cloneSession(s *Session) *Session {
	out := *s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.History = append([]string(nil), q.History...)
		out.Questions[i] = q
	}
	return &out
}
