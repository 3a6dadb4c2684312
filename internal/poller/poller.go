// Package poller watches an asynchronous generation job until it completes or
// runs out of ticks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/coverletter/internal/answers"
	"github.com/jonathan/coverletter/internal/backend"
	"github.com/jonathan/coverletter/internal/types"
)

const (
	// DefaultInterval is the fixed delay between ticks.
	DefaultInterval = 2 * time.Second
	// DefaultMaxTicks bounds a run to roughly two minutes at the default interval.
	DefaultMaxTicks = 60
)

var (
	// ErrTimedOut is returned when the tick ceiling is reached before completion.
	// Callers may start a new poller; nothing retries automatically.
	ErrTimedOut = errors.New("generation is taking longer than expected")
	// ErrGenerationFailed is reported when the backend marks the job failed.
	// Polling the same session again cannot succeed.
	ErrGenerationFailed = errors.New("answer generation failed")
	// ErrCancelled is reported when Cancel stopped the run.
	ErrCancelled = errors.New("polling cancelled")
	// ErrAlreadyStarted is returned by Start on a poller that has left Idle.
	ErrAlreadyStarted = errors.New("poller already started")
)

// State is a poller lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateCompleted
	StateTimedOut
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s != StateIdle && s != StatePolling
}

// EventKind identifies a listener notification.
type EventKind int

const (
	// EventCompleted carries the final payload and questions.
	EventCompleted EventKind = iota
	// EventRefreshSessions signals that any session list should be reloaded.
	EventRefreshSessions
	// EventTimedOut fires when the tick ceiling is reached.
	EventTimedOut
	// EventFailed fires when the backend reports that generation failed.
	EventFailed
)

// Event is delivered to listeners from the polling goroutine.
type Event struct {
	Kind      EventKind
	SessionID string
	Result    *Result
}

// Listener receives poller events.
type Listener func(Event)

// Fetcher is the subset of backend.Backend the poller needs.
type Fetcher interface {
	PollSession(ctx context.Context, sessionID string) (*types.SessionPayload, error)
}

// Result is the outcome of a run.
type Result struct {
	State     State
	SessionID string
	Payload   *types.SessionPayload
	Questions []answers.Question
	Ticks     int
	Err       error
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between ticks.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxTicks sets the tick ceiling.
func WithMaxTicks(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxTicks = n
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithListener registers a listener. It may be given more than once.
func WithListener(fn Listener) Option {
	return func(p *Poller) {
		if fn != nil {
			p.listeners = append(p.listeners, fn)
		}
	}
}

// WithSleep replaces the inter-tick wait, mainly for tests. The function must
// return early with ctx.Err() when ctx is done.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// Poller polls one session. It is single use: Start (or Run) once, then read
// the result.
type Poller struct {
	fetcher   Fetcher
	interval  time.Duration
	maxTicks  int
	logger    *log.Logger
	listeners []Listener
	sleep     func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     State
	cancelled bool
	result    Result
	done      chan struct{}
}

// New creates an idle poller.
func New(fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		interval: DefaultInterval,
		maxTicks: DefaultMaxTicks,
		logger:   log.Default(),
		sleep:    sleepContext,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling loop in a goroutine.
func (p *Poller) Start(ctx context.Context, sessionID string) error {
	if err := p.begin(); err != nil {
		return err
	}
	go p.loop(ctx, sessionID)
	return nil
}

// Run polls synchronously and returns the final result.
func (p *Poller) Run(ctx context.Context, sessionID string) Result {
	if err := p.begin(); err != nil {
		return Result{State: p.State(), SessionID: sessionID, Err: err}
	}
	p.loop(ctx, sessionID)
	return p.Result()
}

// Cancel asks the loop to stop. A fetch already in flight is not aborted; its
// result is discarded. Cancel on a finished poller has no effect.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = true
	if p.state == StateIdle {
		p.state = StateCancelled
		p.result = Result{State: StateCancelled, Err: ErrCancelled}
		close(p.done)
	}
}

// Done is closed once the poller reaches a terminal state.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (p *Poller) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return ErrAlreadyStarted
	}
	p.state = StatePolling
	return nil
}

func (p *Poller) isCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

func (p *Poller) loop(ctx context.Context, sessionID string) {
	p.logger.Printf("[POLLER] Watching session %s (interval %s, max %d ticks)", sessionID, p.interval, p.maxTicks)

	for tick := 1; tick <= p.maxTicks; tick++ {
		if tick > 1 {
			if err := p.sleep(ctx, p.interval); err != nil {
				p.finish(Result{State: StateCancelled, SessionID: sessionID, Ticks: tick - 1, Err: ErrCancelled})
				return
			}
		}
		if p.isCancelled() || ctx.Err() != nil {
			p.finish(Result{State: StateCancelled, SessionID: sessionID, Ticks: tick - 1, Err: ErrCancelled})
			return
		}

		payload, err := p.fetcher.PollSession(ctx, sessionID)

		if p.isCancelled() {
			p.finish(Result{State: StateCancelled, SessionID: sessionID, Ticks: tick, Err: ErrCancelled})
			return
		}

		if err != nil {
			if errors.Is(err, backend.ErrSessionGone) {
				p.logger.Printf("[POLLER] Session %s is gone: %v", sessionID, err)
				p.finish(Result{State: StateFailed, SessionID: sessionID, Ticks: tick, Err: err})
				return
			}
			p.logger.Printf("[POLLER] Tick %d/%d failed, will retry: %v", tick, p.maxTicks, err)
			continue
		}

		if !IsComplete(payload) {
			if payload != nil && payload.Status == types.StatusFailed {
				p.logger.Printf("[POLLER] Session %s reported generation failure", sessionID)
				res := Result{State: StateFailed, SessionID: sessionID, Payload: payload, Ticks: tick, Err: ErrGenerationFailed}
				p.finish(res)
				p.emit(Event{Kind: EventFailed, SessionID: sessionID, Result: &res})
				return
			}
			continue
		}

		questions := make([]answers.Question, 0, len(payload.Questions))
		for _, q := range payload.Questions {
			questions = append(questions, answers.FromPayload(q))
		}
		p.logger.Printf("[POLLER] Session %s completed after %d tick(s) with %d question(s)", sessionID, tick, len(questions))

		res := Result{State: StateCompleted, SessionID: sessionID, Payload: payload, Questions: questions, Ticks: tick}
		p.finish(res)
		p.emit(Event{Kind: EventCompleted, SessionID: sessionID, Result: &res})
		p.emit(Event{Kind: EventRefreshSessions, SessionID: sessionID})
		return
	}

	p.logger.Printf("[POLLER] Session %s not complete after %d ticks, giving up", sessionID, p.maxTicks)
	res := Result{State: StateTimedOut, SessionID: sessionID, Ticks: p.maxTicks, Err: ErrTimedOut}
	p.finish(res)
	p.emit(Event{Kind: EventTimedOut, SessionID: sessionID, Result: &res})
}

func (p *Poller) finish(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = res.State
	p.result = res
	close(p.done)
}

func (p *Poller) emit(ev Event) {
	for _, fn := range p.listeners {
		fn(ev)
	}
}

// IsComplete reports whether a poll response marks generation as finished.
// Either an explicit terminal flag or a non-blank first answer counts.
func IsComplete(p *types.SessionPayload) bool {
	if p == nil {
		return false
	}
	if p.Status == types.StatusCompleted {
		return true
	}
	if p.IsCompleted != nil && *p.IsCompleted {
		return true
	}
	return len(p.Questions) > 0 && strings.TrimSpace(p.Questions[0].Answer) != ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
