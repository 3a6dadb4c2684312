// Package drafts keeps short-lived snapshots of unsubmitted form input so it
// survives a sign-in redirect. A snapshot is read at most once.
package drafts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/coverletter/internal/types"
)

// DefaultTTL is how long a snapshot stays readable.
const DefaultTTL = 30 * time.Minute

// keyPrefix namespaces snapshot keys.
const keyPrefix = "draft:"

// ErrEmptyPage is returned when no page key is given.
var ErrEmptyPage = errors.New("draft page key must not be empty")

// FileMeta describes an uploaded file. File contents are never stored.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Snapshot is the saved state of the session creation form.
type Snapshot struct {
	JobInfo    types.JobInfo `json:"job_info"`
	ActiveTab  string        `json:"active_tab,omitempty"`
	Files      []FileMeta    `json:"files,omitempty"`
	ManualText string        `json:"manual_text,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Store saves and takes snapshots keyed by page.
type Store interface {
	// Save stores snap for page, replacing any earlier snapshot.
	Save(ctx context.Context, page string, snap Snapshot) error
	// Take returns the snapshot for page and deletes it. The bool is false
	// when nothing is stored or the snapshot has expired.
	Take(ctx context.Context, page string) (Snapshot, bool, error)
}

// Key returns the storage key for page.
func Key(page string) (string, error) {
	page = strings.TrimSpace(page)
	if page == "" {
		return "", ErrEmptyPage
	}
	return keyPrefix + page, nil
}

func expired(snap Snapshot, now time.Time, ttl time.Duration) bool {
	return !snap.Timestamp.IsZero() && now.Sub(snap.Timestamp) > ttl
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Snapshot
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore. A non-positive ttl means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Snapshot),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, page string, snap Snapshot) error {
	key, err := Key(page)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Timestamp.IsZero() {
		snap.Timestamp = m.now()
	}
	m.entries[key] = snap
	return nil
}

// Take implements Store.
func (m *MemoryStore) Take(_ context.Context, page string) (Snapshot, bool, error) {
	key, err := Key(page)
	if err != nil {
		return Snapshot{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.entries[key]
	if !ok {
		return Snapshot{}, false, nil
	}
	delete(m.entries, key)
	if expired(snap, m.now(), m.ttl) {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}
