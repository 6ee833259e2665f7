package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"
	"pastpapers/pkg/mpesa"

	"gorm.io/gorm"
)

type queryStep func() (*mpesa.QueryResponse, error)

func pendingStep() (*mpesa.QueryResponse, error) {
	return &mpesa.QueryResponse{ResultCode: mpesa.ResultCodePending, ResultDesc: "The transaction is being processed"}, nil
}

func successStep() (*mpesa.QueryResponse, error) {
	return &mpesa.QueryResponse{ResultCode: mpesa.ResultCodeSuccess, ResultDesc: "The service request is processed successfully."}, nil
}

func failureStep(code, desc string) queryStep {
	return func() (*mpesa.QueryResponse, error) {
		return &mpesa.QueryResponse{ResultCode: mpesa.Code(code), ResultDesc: desc}, nil
	}
}

func errorStep() (*mpesa.QueryResponse, error) {
	return nil, errors.New("dial tcp: connection refused")
}

// scriptedGateway answers STK pushes with pushResp/pushErr and status queries with
// steps in order, repeating the last step once the script runs out.
type scriptedGateway struct {
	mu         sync.Mutex
	pushResp   *mpesa.STKPushResponse
	pushErr    error
	pushCalls  int
	lastPush   mpesa.STKPushRequest
	steps      []queryStep
	queryCalls int
}

func (g *scriptedGateway) STKPush(_ context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushCalls++
	g.lastPush = req
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	return g.pushResp, nil
}

func (g *scriptedGateway) QueryStatus(_ context.Context, _ string) (*mpesa.QueryResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryCalls++
	i := g.queryCalls - 1
	if i >= len(g.steps) {
		i = len(g.steps) - 1
	}
	return g.steps[i]()
}

func (g *scriptedGateway) queries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryCalls
}

type memPayments struct {
	mu        sync.Mutex
	rows      map[string]models.MpesaPayment
	createErr error
}

func newMemPayments() *memPayments {
	return &memPayments{rows: make(map[string]models.MpesaPayment)}
}

func (m *memPayments) Create(_ context.Context, p *models.MpesaPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.rows[p.CheckoutRequestID] = *p
	return nil
}

func (m *memPayments) GetByCheckoutRequestID(_ context.Context, id string) (*models.MpesaPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (m *memPayments) Resolve(_ context.Context, id string, res repository.Resolution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.Status != domain.MpesaStatusPending {
		return false, nil
	}
	now := time.Now()
	p.Status, p.ResultCode, p.ResultDesc, p.ResolvedAt = res.Status, res.ResultCode, res.ResultDesc, &now
	if res.ReceiptNumber != "" {
		p.ReceiptNumber = res.ReceiptNumber
	}
	m.rows[id] = p
	return true, nil
}

func (m *memPayments) pending(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = models.MpesaPayment{CheckoutRequestID: id, PhoneNumber: "254712345678", Amount: 120, Status: domain.MpesaStatusPending}
}

func (m *memPayments) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

type memSales struct {
	mu          sync.Mutex
	sales       []models.Sale
	purchases   []models.UserPurchase
	createErr   error
	purchaseErr error
}

func (m *memSales) Create(_ context.Context, s *models.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if s.CheckoutRequestID != nil {
		for _, existing := range m.sales {
			if existing.CheckoutRequestID != nil && *existing.CheckoutRequestID == *s.CheckoutRequestID {
				return errors.New("UNIQUE constraint failed: sales.checkout_request_id")
			}
		}
	}
	s.ID = uint(len(m.sales) + 1)
	s.CreatedAt = time.Now()
	m.sales = append(m.sales, *s)
	return nil
}

func (m *memSales) GetByCheckoutRequestID(_ context.Context, id string) (*models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if s.CheckoutRequestID != nil && *s.CheckoutRequestID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memSales) AddPurchases(_ context.Context, userID, saleID uint, paperIDs []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.purchaseErr != nil {
		return m.purchaseErr
	}
	for _, pid := range paperIDs {
		dup := false
		for _, p := range m.purchases {
			if p.SaleID == saleID && p.PaperID == pid {
				dup = true
				break
			}
		}
		if !dup {
			m.purchases = append(m.purchases, models.UserPurchase{UserID: userID, SaleID: saleID, PaperID: pid})
		}
	}
	return nil
}

func (m *memSales) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *countingNotifier) SaleRecorded(context.Context, *models.Sale) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

// manualScheduler queues scheduled calls until the test runs them.
type manualScheduler struct {
	mu     sync.Mutex
	queue  []*manualTimer
	delays []time.Duration
}

type manualTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.queue = append(s.queue, t)
	s.delays = append(s.delays, d)
	return t
}

// RunNext fires the oldest live timer. It reports false when nothing is queued.
func (s *manualScheduler) RunNext() bool {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return false
		}
		t := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			continue
		}
		t.fired = true
		t.mu.Unlock()
		t.f()
		return true
	}
}

// Drain runs timers until none are left, up to limit.
func (s *manualScheduler) Drain(limit int) int {
	n := 0
	for n < limit && s.RunNext() {
		n++
	}
	return n
}

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.queue {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			n++
		}
		t.mu.Unlock()
	}
	return n
}
