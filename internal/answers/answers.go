// Package answers holds the per-question answer version history.
//
// A Question owns an append-only list of answer versions and a pointer to
// the version currently displayed. Every operation returns a new Question and
// never writes through to the slice of its input, so callers may keep old
// values around as snapshots.
package answers

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/jonathan/coverletter/internal/types"
)

// ErrOutOfRange is returned when a version index does not exist.
var ErrOutOfRange = errors.New("version index out of range")

// OutOfRangeError reports the offending index and the history length.
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("version %d out of range [0, %d)", e.Index, e.Len)
}

func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}

// Question is one cover letter prompt and its answer versions.
type Question struct {
	ID           int
	Text         string
	History      []string
	CurrentIndex int
}

// NewQuestion builds a question whose history holds a single answer.
func NewQuestion(id int, text, answer string) Question {
	return Question{ID: id, Text: text, History: []string{answer}}
}

// FromPayload builds a question from a poll payload entry. A missing or
// out-of-range current_version_index points at the newest version.
func FromPayload(p types.QuestionPayload) Question {
	history := ParseHistoryPayload(p.AnswerHistory, p.Answer)
	last := len(history) - 1

	current := last
	if p.CurrentVersionIndex != nil {
		current = min(max(*p.CurrentVersionIndex, 0), last)
	}

	return Question{
		ID:           p.ID,
		Text:         p.Question,
		History:      history,
		CurrentIndex: current,
	}
}

// AppendVersion adds text as the newest version and makes it current.
func AppendVersion(q Question, text string) Question {
	history := make([]string, len(q.History), len(q.History)+1)
	copy(history, q.History)
	q.History = append(history, text)
	q.CurrentIndex = len(q.History) - 1
	return q
}

// SelectVersion points the question at an existing version. Newer versions
// are kept.
func SelectVersion(q Question, index int) (Question, error) {
	if index < 0 || index >= len(q.History) {
		return q, &OutOfRangeError{Index: index, Len: len(q.History)}
	}
	q.History = cloneHistory(q.History)
	q.CurrentIndex = index
	return q, nil
}

// HasUndo reports whether an older version exists.
func (q Question) HasUndo() bool {
	return q.CurrentIndex > 0
}

// HasRedo reports whether a newer version exists.
func (q Question) HasRedo() bool {
	return len(q.History) > q.CurrentIndex+1
}

// DisplayText returns the current version, or "" for an empty history.
func (q Question) DisplayText() string {
	if q.CurrentIndex < 0 || q.CurrentIndex >= len(q.History) {
		return ""
	}
	return q.History[q.CurrentIndex]
}

// DisplayLength counts the user-visible characters of the current version.
func (q Question) DisplayLength() int {
	return CharacterCount(StripMarkdownBold(q.DisplayText()))
}

// VersionCount returns the number of versions.
func (q Question) VersionCount() int {
	return len(q.History)
}

// CharacterCount returns the UTF-16 code unit length of text.
func CharacterCount(text string) int {
	return len(utf16.Encode([]rune(text)))
}

func cloneHistory(history []string) []string {
	out := make([]string, len(history))
	copy(out, history)
	return out
}
