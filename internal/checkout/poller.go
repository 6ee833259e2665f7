package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"

	"go.uber.org/zap"
)

// Recorder records the sale of a confirmed payment.
type Recorder interface {
	Record(ctx context.Context, in SaleInput) (*models.Sale, error)
}

// Order is what a poll session records once its payment completes.
type Order struct {
	CustomerEmail string
	PaperIDs      []uint
	TotalAmount   int64
	UserID        *uint
}

type PollerConfig struct {
	Interval       time.Duration
	MaxAttempts    int
	AttemptTimeout time.Duration

	// Retention is how long finished sessions stay queryable.
	Retention time.Duration
}

// Outcome is a snapshot of a poll session.
type Outcome struct {
	CheckoutRequestID string   `json:"checkoutRequestId"`
	State             State    `json:"state"`
	Attempts          int      `json:"attempts"`
	ResultCode        string   `json:"resultCode,omitempty"`
	ResultDesc        string   `json:"resultDesc,omitempty"`
	Failure           *Failure `json:"failure,omitempty"`
	SaleID            *uint    `json:"saleId,omitempty"`
	SaleError         string   `json:"saleError,omitempty"`
}

var ErrMissingCheckoutID = errors.New("checkout request id is required")

// Poller drives one state machine per CheckoutRequestID. Attempts are scheduled
// through the Scheduler; nothing blocks between them.
type Poller struct {
	checker  *StatusChecker
	recorder Recorder
	sched    Scheduler
	cfg      PollerConfig
	log      *zap.Logger

	base context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	sessions  map[string]*Session
	observers []func(Outcome)
}

func NewPoller(checker *StatusChecker, recorder Recorder, sched Scheduler, cfg PollerConfig, log *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 30
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 15 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 15 * time.Minute
	}
	base, stop := context.WithCancel(context.Background())
	return &Poller{
		checker:  checker,
		recorder: recorder,
		sched:    sched,
		cfg:      cfg,
		log:      log,
		base:     base,
		stop:     stop,
		sessions: make(map[string]*Session),
	}
}

// Subscribe registers fn to receive the outcome of every session that reaches a terminal state.
func (p *Poller) Subscribe(fn func(Outcome)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Start begins polling checkoutRequestID. order may be nil when the caller records
// the sale itself. Starting a token that already has a session returns that session.
func (p *Poller) Start(checkoutRequestID string, order *Order) (*Session, error) {
	if checkoutRequestID == "" {
		return nil, ErrMissingCheckoutID
	}
	p.mu.Lock()
	p.pruneLocked(time.Now())
	if s, ok := p.sessions[checkoutRequestID]; ok {
		p.mu.Unlock()
		return s, nil
	}
	ctx, cancel := context.WithCancel(p.base)
	s := &Session{
		id:     checkoutRequestID,
		order:  order,
		poller: p,
		ctx:    ctx,
		cancel: cancel,
		state:  StatePending,
		done:   make(chan struct{}),
	}
	p.sessions[checkoutRequestID] = s
	s.mu.Lock()
	s.timer = p.sched.AfterFunc(0, s.attempt)
	s.mu.Unlock()
	p.mu.Unlock()

	p.log.Info("mpesa polling started",
		zap.String("checkout_request_id", checkoutRequestID),
		zap.Bool("records_sale", order != nil))
	return s, nil
}

func (p *Poller) Session(checkoutRequestID string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[checkoutRequestID]
	return s, ok
}

// Shutdown abandons every pending session.
func (p *Poller) Shutdown() {
	p.stop()
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()
	for _, s := range sessions {
		s.Cancel()
	}
}

func (p *Poller) pruneLocked(now time.Time) {
	for id, s := range p.sessions {
		if s.expired(now, p.cfg.Retention) {
			delete(p.sessions, id)
		}
	}
}

func (p *Poller) forget(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions[s.id] == s {
		delete(p.sessions, s.id)
	}
}

func (p *Poller) notify(o Outcome) {
	p.mu.Lock()
	observers := append([]func(Outcome){}, p.observers...)
	p.mu.Unlock()
	for _, fn := range observers {
		fn(o)
	}
}

// Session is the polling state machine of one CheckoutRequestID.
type Session struct {
	id     string
	order  *Order
	poller *Poller
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	attempts   int
	resultCode string
	resultDesc string
	failure    *Failure
	saleID     *uint
	saleErr    string
	timer      Timer
	abandoned  bool
	finishedAt time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

func (s *Session) ID() string { return s.id }

// Done is closed when the session reaches a terminal state or is cancelled.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomeLocked()
}

func (s *Session) outcomeLocked() Outcome {
	return Outcome{
		CheckoutRequestID: s.id,
		State:             s.state,
		Attempts:          s.attempts,
		ResultCode:        s.resultCode,
		ResultDesc:        s.resultDesc,
		Failure:           s.failure,
		SaleID:            s.saleID,
		SaleError:         s.saleErr,
	}
}

// Cancel abandons a pending session. No call is made to the gateway; the
// prompt simply expires on the customer's phone.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state.Terminal() || s.abandoned {
		s.mu.Unlock()
		return
	}
	s.abandoned = true
	s.finishedAt = time.Now()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	s.mu.Unlock()

	s.poller.forget(s)
	s.closeDone()
	s.poller.log.Info("mpesa polling abandoned", zap.String("checkout_request_id", s.id))
}

func (s *Session) closeDone() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) expired(now time.Time, retention time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.state.Terminal() || s.abandoned) && now.Sub(s.finishedAt) > retention
}

func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StatePending && !s.abandoned
}

func (s *Session) attempt() {
	if !s.active() {
		return
	}
	p := s.poller
	ctx, cancel := context.WithTimeout(s.ctx, p.cfg.AttemptTimeout)
	res, err := p.checker.Check(ctx, s.id)
	cancel()

	s.mu.Lock()
	if s.state != StatePending || s.abandoned {
		s.mu.Unlock()
		return
	}
	s.attempts++
	switch {
	case err != nil:
		p.log.Warn("mpesa status query failed",
			zap.String("checkout_request_id", s.id),
			zap.Int("attempt", s.attempts),
			zap.Error(err))
	case res.State == StateCompleted:
		s.state = StateCompleted
	case res.State == StateFailed:
		s.state = StateFailed
		s.failure = &Failure{Kind: PollingFailure, Code: res.ResultCode, Message: res.ResultDesc}
	case res.State == StateTimeout:
		s.state = StateTimeout
		s.failure = timeoutFailure()
	}
	if res != nil {
		s.resultCode, s.resultDesc = res.ResultCode, res.ResultDesc
	}

	if s.state == StatePending {
		if s.attempts < p.cfg.MaxAttempts {
			s.timer = p.sched.AfterFunc(p.cfg.Interval, s.attempt)
			s.mu.Unlock()
			return
		}
		s.state = StateTimeout
		s.failure = timeoutFailure()
		s.mu.Unlock()
		s.finish(true)
		return
	}
	s.mu.Unlock()
	s.finish(false)
}

// finish runs the side effects of the single transition out of pending.
func (s *Session) finish(timedOut bool) {
	p := s.poller
	// Side effects must outlive a shutdown: the customer has already paid.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), p.cfg.AttemptTimeout)
	defer cancel()

	s.mu.Lock()
	state, code, desc := s.state, s.resultCode, s.resultDesc
	s.mu.Unlock()

	if timedOut {
		p.checker.MarkTimeout(ctx, s.id, code, desc)
	}
	if state == StateCompleted && s.order != nil {
		sale, err := p.recorder.Record(ctx, SaleInput{
			CustomerEmail:     s.order.CustomerEmail,
			PaperIDs:          s.order.PaperIDs,
			TotalAmount:       s.order.TotalAmount,
			PaymentMethod:     domain.PaymentMethodMpesa,
			UserID:            s.order.UserID,
			CheckoutRequestID: s.id,
		})
		s.mu.Lock()
		if err != nil {
			s.saleErr = "payment received but the sale could not be recorded"
			p.log.Error("record sale after mpesa payment", zap.String("checkout_request_id", s.id), zap.Error(err))
		} else {
			id := sale.ID
			s.saleID = &id
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.finishedAt = time.Now()
	out := s.outcomeLocked()
	s.mu.Unlock()

	s.cancel()
	s.closeDone()
	p.log.Info("mpesa polling finished",
		zap.String("checkout_request_id", s.id),
		zap.String("state", string(out.State)),
		zap.Int("attempts", out.Attempts))
	p.notify(out)
}

func timeoutFailure() *Failure {
	return &Failure{Kind: PollingTimeout, Message: "Payment was not confirmed in time. Please try again."}
}
