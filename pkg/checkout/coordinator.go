// Package checkout drives one customer's M-Pesa payment from the client side:
// it sends the STK push and then polls the storefront until the push settles.
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"salonshop/pkg/payment"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateIdle          State = "idle"
	StateInitiating    State = "initiating"
	StateWaitingForPIN State = "waiting_for_pin"
	StateProcessing    State = "processing"
	StateSuccess       State = "success"
	StateFailed        State = "failed"
	StateCancelled     State = "cancelled"
	StateTimeout       State = "timeout"
	StateError         State = "error"
)

// Terminal reports whether the state ends an attempt.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateCancelled, StateTimeout, StateError:
		return true
	}
	return false
}

// InProgress is true while a push is being sent or polled.
func (s State) InProgress() bool {
	return s == StateInitiating || s == StateWaitingForPIN || s == StateProcessing
}

const (
	DefaultFirstPollDelay = 8 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultMaxAttempts    = 24
)

const verificationTimedOut = "Payment verification timed out. Please check your M-Pesa messages."

// Timer is a scheduled poll that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on another goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Options struct {
	FirstPollDelay time.Duration
	PollInterval   time.Duration
	MaxAttempts    int

	// OnSuccess receives the CheckoutRequestID of the settled push.
	OnSuccess func(checkoutRequestID string)
	OnError   func(message string)
	// OnChange observes every state change.
	OnChange func(Snapshot)

	Scheduler Scheduler
}

// Snapshot is a copy of the coordinator's state for display.
type Snapshot struct {
	State             State
	Message           string
	CheckoutRequestID string
	Attempts          int
}

// Coordinator is the payment state machine of a single checkout session. At most
// one poll timer is live; every Reset or new Initiate bumps the generation so
// timers and requests started before it are ignored.
type Coordinator struct {
	api  API
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	message    string
	checkoutID string
	attempts   int
	generation uint64
	timer      Timer
}

func New(api API, opts Options) *Coordinator {
	if opts.FirstPollDelay <= 0 {
		opts.FirstPollDelay = DefaultFirstPollDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{api: api, opts: opts, ctx: ctx, cancel: cancel, state: StateIdle}
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, Message: c.message, CheckoutRequestID: c.checkoutID, Attempts: c.attempts}
}

// Reset cancels any scheduled poll and returns to idle.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.resetLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)
}

func (c *Coordinator) resetLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.state = StateIdle
	c.message = ""
	c.checkoutID = ""
	c.attempts = 0
}

// Close stops polling for good and aborts requests in flight.
func (c *Coordinator) Close() {
	c.Reset()
	c.cancel()
}

// Initiate resets the session and sends a new STK push for orderID. It reports
// whether the push was accepted; polling then continues in the background.
func (c *Coordinator) Initiate(ctx context.Context, phone string, amount decimal.Decimal, orderID string) bool {
	c.mu.Lock()
	c.resetLocked()
	gen := c.generation
	c.state = StateInitiating
	c.message = "Initiating M-Pesa payment..."
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)

	res, err := c.api.Push(ctx, PushParams{
		Phone:            phone,
		Amount:           amount,
		OrderID:          orderID,
		AccountReference: payment.DefaultAccountReference(orderID),
	})

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	if err != nil {
		msg := pushErrorMessage(err)
		log.Warn().Err(err).Str("order_id", orderID).Msg("[CHECKOUT] STK push failed")
		c.state = StateError
		c.message = msg
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.changed(snap)
		c.failed(msg)
		return false
	}
	c.checkoutID = res.CheckoutRequestID
	c.state = StateWaitingForPIN
	c.message = "Please check your phone and enter your M-Pesa PIN"
	c.scheduleLocked(gen, c.opts.FirstPollDelay)
	snap = c.snapshotLocked()
	c.mu.Unlock()

	log.Info().Str("order_id", orderID).Str("checkout_request_id", res.CheckoutRequestID).Msg("[CHECKOUT] STK push sent, polling")
	c.changed(snap)
	return true
}

// scheduleLocked replaces the live timer with one that polls for generation gen.
func (c *Coordinator) scheduleLocked(gen uint64, d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.opts.Scheduler.AfterFunc(d, func() { c.poll(gen) })
}

func (c *Coordinator) poll(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || !c.state.InProgress() {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.attempts++
	attempt, id := c.attempts, c.checkoutID
	c.mu.Unlock()

	log.Debug().Int("attempt", attempt).Int("max", c.opts.MaxAttempts).Str("checkout_request_id", id).Msg("[CHECKOUT] polling")
	res, err := c.api.Query(c.ctx, id)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	var (
		onSuccess bool
		errMsg    string
	)
	switch {
	case err != nil:
		log.Warn().Err(err).Int("attempt", attempt).Msg("[CHECKOUT] status query failed")
		if attempt < c.opts.MaxAttempts {
			c.scheduleLocked(gen, c.opts.PollInterval)
		} else {
			c.state, c.message = StateTimeout, verificationTimedOut
			errMsg = "Payment verification timed out"
		}
	case res.Status == payment.StatusSuccess:
		c.state, c.message = StateSuccess, orDefault(res.Message, "Payment successful!")
		onSuccess = true
	case res.Status == payment.StatusCancelled:
		c.state, c.message = StateCancelled, orDefault(res.Message, "Payment was cancelled")
		errMsg = "Payment cancelled by user"
	case res.Status == payment.StatusFailed:
		c.state, c.message = StateFailed, orDefault(res.Message, "Payment failed")
		errMsg = c.message
	case res.Status == payment.StatusTimeout:
		c.state, c.message = StateTimeout, orDefault(res.Message, "Payment request timed out")
		errMsg = "Payment request timed out"
	default:
		// pending, and error answers from a gateway that could not be reached
		c.state, c.message = StateProcessing, orDefault(res.Message, "Processing payment...")
		if attempt < c.opts.MaxAttempts {
			c.scheduleLocked(gen, c.opts.PollInterval)
		} else {
			c.state, c.message = StateTimeout, verificationTimedOut
			errMsg = "Payment verification timed out"
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	switch {
	case onSuccess:
		if c.opts.OnSuccess != nil {
			c.opts.OnSuccess(snap.CheckoutRequestID)
		}
	case errMsg != "":
		c.failed(errMsg)
	}
}

func (c *Coordinator) changed(s Snapshot) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

func (c *Coordinator) failed(msg string) {
	if c.opts.OnError != nil {
		c.opts.OnError(msg)
	}
}

func pushErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to initiate payment"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
