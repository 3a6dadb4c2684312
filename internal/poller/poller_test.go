package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/coverletter/internal/backend"
	"github.com/jonathan/coverletter/internal/backend/backendtest"
	"github.com/jonathan/coverletter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionID = "3f2b8c1e-9a4d-4e6f-8b7a-1c2d3e4f5a6b"

func payload(t *testing.T, raw string) *types.SessionPayload {
	t.Helper()
	var p types.SessionPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"status completed with empty answer", `{"status":"completed","questions":[{"id":1,"answer":""}]}`, true},
		{"whitespace answer only", `{"questions":[{"id":1,"answer":"   "}]}`, false},
		{"answer without status", `{"questions":[{"id":1,"answer":"done"}]}`, true},
		{"is_completed flag", `{"is_completed":true}`, true},
		{"is_completed false", `{"is_completed":false,"status":"pending"}`, false},
		{"pending", `{"status":"pending"}`, false},
		{"answer on second question only", `{"questions":[{"id":1,"answer":""},{"id":2,"answer":"x"}]}`, false},
		{"empty", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsComplete(payload(t, tt.raw)))
		})
	}

	assert.False(t, IsComplete(nil))
}

func TestRun_CompletesAfterPending(t *testing.T) {
	pending := payload(t, `{"status":"pending"}`)
	final := payload(t, `{"status":"completed","questions":[{"id":1,"question":"Why do you want this job?","answer":"...","answer_history":"[\"...\"]","current_version_index":0}]}`)

	fake := backendtest.NewFake(sessionID)
	fake.Script = []backendtest.PollStep{{Payload: pending}, {Payload: pending}, {Payload: pending}, {Payload: final}}

	var events []EventKind
	p := New(fake,
		WithSleep(noSleep),
		WithLogger(quietLogger()),
		WithListener(func(ev Event) { events = append(events, ev.Kind) }),
	)

	res := p.Run(context.Background(), sessionID)
	require.NoError(t, res.Err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 4, res.Ticks)
	assert.Equal(t, 4, fake.CallCount("poll"))

	require.Len(t, res.Questions, 1)
	q := res.Questions[0]
	assert.Len(t, q.History, 1)
	assert.Equal(t, 0, q.CurrentIndex)
	assert.False(t, q.HasUndo())
	assert.False(t, q.HasRedo())

	assert.Equal(t, []EventKind{EventCompleted, EventRefreshSessions}, events)
	assert.Equal(t, StateCompleted, p.State())
}

func TestRun_TimesOut(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	for range 10 {
		fake.Script = append(fake.Script, backendtest.PollStep{Payload: payload(t, `{"status":"pending"}`)})
	}

	var timedOut bool
	p := New(fake,
		WithMaxTicks(5),
		WithSleep(noSleep),
		WithLogger(quietLogger()),
		WithListener(func(ev Event) { timedOut = timedOut || ev.Kind == EventTimedOut }),
	)

	res := p.Run(context.Background(), sessionID)
	assert.Equal(t, StateTimedOut, res.State)
	assert.ErrorIs(t, res.Err, ErrTimedOut)
	assert.Equal(t, 5, fake.CallCount("poll"))
	assert.True(t, timedOut)
}

func TestRun_TransportErrorsAreRetried(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	fake.Script = []backendtest.PollStep{
		{Err: backendtest.ErrTransport},
		{Err: backendtest.ErrTransport},
		{Payload: payload(t, `{"questions":[{"id":1,"answer":"ready"}]}`)},
	}

	var logs bytes.Buffer
	p := New(fake, WithSleep(noSleep), WithLogger(log.New(&logs, "", 0)))

	res := p.Run(context.Background(), sessionID)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 3, res.Ticks)
	assert.Contains(t, logs.String(), "will retry")
}

func TestRun_SessionGoneFails(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	fake.Script = []backendtest.PollStep{{Err: backend.ErrSessionGone}}

	res := New(fake, WithSleep(noSleep), WithLogger(quietLogger())).Run(context.Background(), sessionID)
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, backend.ErrSessionGone)
	assert.Equal(t, 1, fake.CallCount("poll"))
}

func TestRun_FailedStatusStopsPolling(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	fake.Script = []backendtest.PollStep{
		{Payload: payload(t, `{"status":"pending"}`)},
		{Payload: payload(t, `{"status":"failed","is_completed":false,"questions":[{"id":1,"question":"Why?","answer":""}]}`)},
		{Payload: payload(t, `{"status":"completed"}`)},
	}

	var failed bool
	p := New(fake,
		WithMaxTicks(10),
		WithSleep(noSleep),
		WithLogger(quietLogger()),
		WithListener(func(ev Event) { failed = failed || ev.Kind == EventFailed }),
	)

	res := p.Run(context.Background(), sessionID)
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrGenerationFailed)
	assert.NotErrorIs(t, res.Err, ErrTimedOut)
	assert.Equal(t, 2, res.Ticks)
	assert.Equal(t, 2, fake.CallCount("poll"))
	assert.True(t, failed)
}

func TestRun_FailedStatusWithAnswerCompletes(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	fake.Script = []backendtest.PollStep{
		{Payload: payload(t, `{"status":"failed","questions":[{"id":1,"question":"Why?","answer":"Partial answer."}]}`)},
	}

	res := New(fake, WithSleep(noSleep), WithLogger(quietLogger())).Run(context.Background(), sessionID)
	assert.Equal(t, StateCompleted, res.State)
	require.Len(t, res.Questions, 1)
}

func TestRun_WaitsBetweenTicks(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	fake.Script = []backendtest.PollStep{
		{Payload: payload(t, `{"status":"pending"}`)},
		{Payload: payload(t, `{"status":"pending"}`)},
		{Payload: payload(t, `{"status":"completed"}`)},
	}

	var waits []time.Duration
	p := New(fake,
		WithInterval(250*time.Millisecond),
		WithLogger(quietLogger()),
		WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
	)

	res := p.Run(context.Background(), sessionID)
	assert.Equal(t, StateCompleted, res.State)
	// The first tick fires immediately.
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, waits)
}

func TestCancel_DiscardsInFlightResult(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	fake.Script = []backendtest.PollStep{{Payload: payload(t, `{"status":"completed"}`)}}

	release := make(chan struct{})
	entered := make(chan struct{})
	fake.BeforePoll = func(int) {
		close(entered)
		<-release
	}

	var mu sync.Mutex
	var events []Event
	p := New(fake,
		WithSleep(noSleep),
		WithLogger(quietLogger()),
		WithListener(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}),
	)
	require.NoError(t, p.Start(context.Background(), sessionID))

	<-entered
	p.Cancel()
	close(release)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	assert.Equal(t, StateCancelled, p.State())
	assert.ErrorIs(t, p.Result().Err, ErrCancelled)
	mu.Lock()
	assert.Empty(t, events)
	mu.Unlock()
}

func TestCancel_BeforeStart(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	p := New(fake, WithLogger(quietLogger()))
	p.Cancel()

	<-p.Done()
	assert.Equal(t, StateCancelled, p.State())
	assert.ErrorIs(t, p.Start(context.Background(), sessionID), ErrAlreadyStarted)
	assert.Zero(t, fake.CallCount("poll"))
}

func TestStart_Twice(t *testing.T) {
	fake := backendtest.NewFake(sessionID, backendtest.FakeQuestion{ID: 1, Text: "Q", History: []string{"A"}})
	p := New(fake, WithSleep(noSleep), WithLogger(quietLogger()))

	require.NoError(t, p.Start(context.Background(), sessionID))
	assert.ErrorIs(t, p.Start(context.Background(), sessionID), ErrAlreadyStarted)

	<-p.Done()
	assert.Equal(t, StateCompleted, p.Result().State)
}

func TestContextCancellationStopsLoop(t *testing.T) {
	fake := backendtest.NewFake(sessionID)
	for range 3 {
		fake.Script = append(fake.Script, backendtest.PollStep{Payload: payload(t, `{"status":"pending"}`)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	fake.BeforePoll = func(call int) {
		if call == 2 {
			cancel()
		}
	}

	res := New(fake, WithSleep(noSleep), WithLogger(quietLogger())).Run(ctx, sessionID)
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, 2, fake.CallCount("poll"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StatePolling.Terminal())
}
