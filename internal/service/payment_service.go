package service

import (
	"context"
	"errors"
	"sync"

	"pastpapers/internal/checkout"
	"pastpapers/internal/domain"
	"pastpapers/internal/repository"
	"pastpapers/pkg/mpesa"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentStatus is the server-side view of one STK attempt.
type PaymentStatus struct {
	CheckoutRequestID string            `json:"checkoutRequestId"`
	Status            string            `json:"status"`
	ResultCode        string            `json:"resultCode,omitempty"`
	ResultDesc        string            `json:"resultDesc,omitempty"`
	ReceiptNumber     string            `json:"receiptNumber,omitempty"`
	Amount            int64             `json:"amount,omitempty"`
	Attempts          int               `json:"attempts,omitempty"`
	SaleID            *uint             `json:"saleId,omitempty"`
	Failure           *checkout.Failure `json:"failure,omitempty"`
}

type PaymentService struct {
	payments *repository.MpesaPaymentRepository
	checker  *checkout.StatusChecker
	poller   *checkout.Poller
	audit    *AuditService
	log      *zap.Logger

	mu        sync.Mutex
	observers []func(checkout.Outcome)
}

func NewPaymentService(
	payments *repository.MpesaPaymentRepository,
	checker *checkout.StatusChecker,
	poller *checkout.Poller,
	audit *AuditService,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{payments: payments, checker: checker, poller: poller, audit: audit, log: log}
}

// Subscribe registers fn for attempts settled by a callback while no poll
// session tracks them. Tracked attempts are announced by the poller.
func (s *PaymentService) Subscribe(fn func(checkout.Outcome)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// HandleCallback reacts to the result Daraja pushed for an attempt. The body
// arrives unauthenticated, so the attempt is settled from a status query and
// not from the pushed result code. It reports whether this callback settled
// the payment; a payment already settled keeps its first outcome.
func (s *PaymentService) HandleCallback(ctx context.Context, cb *mpesa.STKCallback) (bool, error) {
	res, ok, err := s.checker.Confirm(ctx, cb.CheckoutRequestID, cb.Receipt())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn("mpesa callback for unknown attempt", zap.String("checkout_request_id", cb.CheckoutRequestID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if res.ResultCode != string(cb.ResultCode) {
		s.log.Warn("mpesa callback disagrees with status query",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.String("callback_code", string(cb.ResultCode)),
			zap.String("query_code", res.ResultCode))
	}
	s.log.Info("mpesa callback received",
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.String("result_code", string(cb.ResultCode)),
		zap.String("state", string(res.State)),
		zap.Bool("resolved", ok))
	s.audit.Record(ctx, AuditEntry{
		Action:     domain.AuditMpesaCallback,
		Resource:   "mpesa_payment",
		ResourceID: cb.CheckoutRequestID,
		Metadata: map[string]any{
			"resultCode":  string(cb.ResultCode),
			"confirmedAs": string(res.State),
			"resolved":    ok,
		},
	})
	if ok {
		if _, tracked := s.session(cb.CheckoutRequestID); !tracked {
			s.notify(checkout.Outcome{
				CheckoutRequestID: cb.CheckoutRequestID,
				State:             res.State,
				ResultCode:        res.ResultCode,
				ResultDesc:        res.ResultDesc,
			})
		}
	}
	return ok, nil
}

// Owner returns the account that started an attempt, nil for guest checkouts.
func (s *PaymentService) Owner(ctx context.Context, checkoutRequestID string) (*uint, error) {
	p, err := s.payments.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p.UserID, nil
}

func (s *PaymentService) notify(o checkout.Outcome) {
	s.mu.Lock()
	observers := append([]func(checkout.Outcome){}, s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(o)
	}
}

// Status merges the live poll session (if any) with the stored payment.
func (s *PaymentService) Status(ctx context.Context, checkoutRequestID string) (*PaymentStatus, error) {
	st := &PaymentStatus{CheckoutRequestID: checkoutRequestID}
	found := false

	p, err := s.payments.GetByCheckoutRequestID(ctx, checkoutRequestID)
	switch {
	case err == nil:
		found = true
		st.Status, st.ResultCode, st.ResultDesc = p.Status, p.ResultCode, p.ResultDesc
		st.ReceiptNumber, st.Amount = p.ReceiptNumber, p.Amount
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if sess, ok := s.session(checkoutRequestID); ok {
		found = true
		out := sess.Outcome()
		st.Attempts, st.SaleID, st.Failure = out.Attempts, out.SaleID, out.Failure
		if st.Status == "" || st.Status == domain.MpesaStatusPending {
			st.Status = string(out.State)
		}
		if st.ResultCode == "" {
			st.ResultCode, st.ResultDesc = out.ResultCode, out.ResultDesc
		}
	}
	if !found {
		return nil, ErrPaymentNotFound
	}
	return st, nil
}

func (s *PaymentService) session(checkoutRequestID string) (*checkout.Session, bool) {
	if s.poller == nil {
		return nil, false
	}
	return s.poller.Session(checkoutRequestID)
}
