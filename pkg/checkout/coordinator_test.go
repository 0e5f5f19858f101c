package checkout

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"salonshop/pkg/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records timers; tests fire them by hand.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) live() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fireNext runs the most recently scheduled live timer.
func (s *fakeScheduler) fireNext(t *testing.T) time.Duration {
	t.Helper()
	live := s.live()
	require.Len(t, live, 1, "expected exactly one live timer")
	tm := live[0]
	tm.stopped = true
	tm.f()
	return tm.d
}

type scriptedAPI struct {
	mu       sync.Mutex
	pushes   []PushParams
	pushErr  error
	nextID   int
	queries  []string
	statuses []payment.Status
	queryErr error
}

func (a *scriptedAPI) Push(_ context.Context, p PushParams) (*PushResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pushes = append(a.pushes, p)
	if a.pushErr != nil {
		return nil, a.pushErr
	}
	a.nextID++
	return &PushResult{CheckoutRequestID: "ws_CO_" + strconv.Itoa(a.nextID)}, nil
}

func (a *scriptedAPI) Query(_ context.Context, id string) (*PollResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, id)
	if a.queryErr != nil {
		return nil, a.queryErr
	}
	st := payment.StatusPending
	if len(a.statuses) > 0 {
		st, a.statuses = a.statuses[0], a.statuses[1:]
	}
	return &PollResult{Status: st}, nil
}

type outcome struct {
	successes []string
	errors    []string
}

func newCoordinator(api API, sched Scheduler, out *outcome) *Coordinator {
	return New(api, Options{
		Scheduler: sched,
		OnSuccess: func(id string) { out.successes = append(out.successes, id) },
		OnError:   func(msg string) { out.errors = append(out.errors, msg) },
	})
}

var amount = decimal.NewFromInt(1500)

func TestCoordinator_Success(t *testing.T) {
	api := &scriptedAPI{statuses: []payment.Status{payment.StatusPending, payment.StatusSuccess}}
	sched := &fakeScheduler{}
	out := &outcome{}
	c := newCoordinator(api, sched, out)

	require.True(t, c.Initiate(context.Background(), "0712345678", amount, "a1b2c3d4-e5f6"))
	assert.Equal(t, StateWaitingForPIN, c.Snapshot().State)
	require.Len(t, api.pushes, 1)
	assert.Equal(t, "ORDER-A1B2C3D4", api.pushes[0].AccountReference)

	assert.Equal(t, DefaultFirstPollDelay, sched.fireNext(t))
	assert.Equal(t, StateProcessing, c.Snapshot().State)

	assert.Equal(t, DefaultPollInterval, sched.fireNext(t))
	snap := c.Snapshot()
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, 2, snap.Attempts)
	assert.Equal(t, []string{"ws_CO_1"}, out.successes)
	assert.Empty(t, out.errors)
	assert.Empty(t, sched.live())
}

func TestCoordinator_TerminalFailures(t *testing.T) {
	tests := []struct {
		status payment.Status
		state  State
		err    string
	}{
		{payment.StatusCancelled, StateCancelled, "Payment cancelled by user"},
		{payment.StatusFailed, StateFailed, "Payment failed"},
		{payment.StatusTimeout, StateTimeout, "Payment request timed out"},
	}
	for _, tc := range tests {
		t.Run(string(tc.state), func(t *testing.T) {
			api := &scriptedAPI{statuses: []payment.Status{tc.status}}
			sched := &fakeScheduler{}
			out := &outcome{}
			c := newCoordinator(api, sched, out)

			require.True(t, c.Initiate(context.Background(), "0712345678", amount, "order-1"))
			sched.fireNext(t)
			assert.Equal(t, tc.state, c.Snapshot().State)
			assert.Equal(t, []string{tc.err}, out.errors)
			assert.Empty(t, sched.live())
		})
	}
}

func TestCoordinator_AttemptCeiling(t *testing.T) {
	api := &scriptedAPI{}
	sched := &fakeScheduler{}
	out := &outcome{}
	c := newCoordinator(api, sched, out)

	require.True(t, c.Initiate(context.Background(), "0712345678", amount, "order-1"))
	for i := 0; i < DefaultMaxAttempts; i++ {
		sched.fireNext(t)
	}
	assert.Len(t, api.queries, DefaultMaxAttempts)
	snap := c.Snapshot()
	assert.Equal(t, StateTimeout, snap.State)
	assert.Equal(t, verificationTimedOut, snap.Message)
	assert.Equal(t, []string{"Payment verification timed out"}, out.errors)
	assert.Empty(t, sched.live())
}

func TestCoordinator_QueryErrorsRetryUntilCeiling(t *testing.T) {
	api := &scriptedAPI{queryErr: errors.New("connection refused")}
	sched := &fakeScheduler{}
	out := &outcome{}
	c := New(api, Options{
		Scheduler:   sched,
		MaxAttempts: 3,
		OnError:     func(msg string) { out.errors = append(out.errors, msg) },
	})

	require.True(t, c.Initiate(context.Background(), "0712345678", amount, "order-1"))
	for i := 0; i < 3; i++ {
		sched.fireNext(t)
	}
	assert.Len(t, api.queries, 3)
	assert.Equal(t, StateTimeout, c.Snapshot().State)
	assert.Len(t, out.errors, 1)
}

func TestCoordinator_PushFailure(t *testing.T) {
	api := &scriptedAPI{pushErr: &APIError{StatusCode: 400, Message: "Invalid phone number format"}}
	sched := &fakeScheduler{}
	out := &outcome{}
	c := newCoordinator(api, sched, out)

	assert.False(t, c.Initiate(context.Background(), "07", amount, "order-1"))
	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "Invalid phone number format", snap.Message)
	assert.Equal(t, []string{"Invalid phone number format"}, out.errors)
	assert.Empty(t, sched.timers)
}

func TestCoordinator_ResetMakesScheduledPollNoOp(t *testing.T) {
	api := &scriptedAPI{}
	sched := &fakeScheduler{}
	c := newCoordinator(api, sched, &outcome{})

	require.True(t, c.Initiate(context.Background(), "0712345678", amount, "order-1"))
	stale := sched.timers[0]
	c.Reset()
	assert.True(t, stale.stopped)

	// A timer that already fired past Stop still runs its func.
	stale.f()
	assert.Empty(t, api.queries)
	assert.Equal(t, StateIdle, c.Snapshot().State)
}

func TestCoordinator_RetryKeepsOneTimerChain(t *testing.T) {
	api := &scriptedAPI{}
	sched := &fakeScheduler{}
	out := &outcome{}
	c := newCoordinator(api, sched, out)

	require.True(t, c.Initiate(context.Background(), "0712345678", amount, "order-1"))
	first := sched.timers[0]
	c.Reset()
	require.True(t, c.Initiate(context.Background(), "0712345678", amount, "order-1"))

	require.Len(t, sched.live(), 1)
	first.f()
	assert.Empty(t, api.queries)

	api.statuses = []payment.Status{payment.StatusSuccess}
	sched.fireNext(t)
	assert.Equal(t, []string{"ws_CO_2"}, api.queries)
	assert.Equal(t, []string{"ws_CO_2"}, out.successes)
}

func TestCoordinator_CloseStopsPolling(t *testing.T) {
	api := &scriptedAPI{}
	sched := &fakeScheduler{}
	c := newCoordinator(api, sched, &outcome{})

	require.True(t, c.Initiate(context.Background(), "0712345678", amount, "order-1"))
	c.Close()
	assert.Empty(t, sched.live())
	sched.timers[0].f()
	assert.Empty(t, api.queries)
}
