package checkout

import (
	"context"
	"errors"

	"pastpapers/internal/models"
	"pastpapers/internal/repository"
	"pastpapers/pkg/mpesa"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatusResult is the state of an STK attempt as seen by one status check.
type StatusResult struct {
	State      State
	ResultCode string
	ResultDesc string
	// Stored is set when the answer came from the local record, without a gateway call.
	Stored bool
}

// StatusChecker answers status queries. Once an attempt is terminal locally the
// stored outcome is returned and the gateway is not asked again.
type StatusChecker struct {
	gateway  Gateway
	payments PaymentStore
	log      *zap.Logger
}

func NewStatusChecker(gateway Gateway, payments PaymentStore, log *zap.Logger) *StatusChecker {
	return &StatusChecker{gateway: gateway, payments: payments, log: log}
}

func (c *StatusChecker) Check(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	payment, err := c.payments.GetByCheckoutRequestID(ctx, checkoutRequestID)
	switch {
	case err == nil && payment.Terminal():
		return storedResult(payment), nil
	case err != nil:
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.log.Warn("load mpesa payment", zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
		}
		payment = nil
	}

	resp, err := c.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	res := classify(resp)
	if !res.State.Terminal() || payment == nil {
		return res, nil
	}

	ok, err := c.payments.Resolve(ctx, checkoutRequestID, repository.Resolution{
		Status:     string(res.State),
		ResultCode: res.ResultCode,
		ResultDesc: res.ResultDesc,
	})
	if err != nil {
		c.log.Error("resolve mpesa payment", zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
		return res, nil
	}
	if !ok {
		// Resolved concurrently, usually by the gateway callback; its outcome stands.
		if stored, err := c.payments.GetByCheckoutRequestID(ctx, checkoutRequestID); err == nil && stored.Terminal() {
			return storedResult(stored), nil
		}
	}
	return res, nil
}

// Confirm settles an attempt the gateway pushed a result for. The pushed result
// is only a hint: the attempt is resolved from a fresh status query, and the
// receipt is kept only when that query confirms payment. It reports whether
// this call settled the attempt; a query that is still pending settles nothing.
func (c *StatusChecker) Confirm(ctx context.Context, checkoutRequestID, receipt string) (*StatusResult, bool, error) {
	payment, err := c.payments.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, false, err
	}
	if payment.Terminal() {
		return storedResult(payment), false, nil
	}

	resp, err := c.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return nil, false, err
	}
	res := classify(resp)
	if !res.State.Terminal() {
		return res, false, nil
	}
	resolution := repository.Resolution{
		Status:     string(res.State),
		ResultCode: res.ResultCode,
		ResultDesc: res.ResultDesc,
	}
	if res.State == StateCompleted {
		resolution.ReceiptNumber = receipt
	}
	ok, err := c.payments.Resolve(ctx, checkoutRequestID, resolution)
	if err != nil {
		return nil, false, err
	}
	return res, ok, nil
}

// MarkTimeout records that polling gave up on a still-pending attempt.
func (c *StatusChecker) MarkTimeout(ctx context.Context, checkoutRequestID, lastCode, lastDesc string) {
	desc := "payment not confirmed before the polling deadline"
	if lastDesc != "" {
		desc = lastDesc
	}
	_, err := c.payments.Resolve(ctx, checkoutRequestID, repository.Resolution{
		Status:     string(StateTimeout),
		ResultCode: lastCode,
		ResultDesc: desc,
	})
	if err != nil {
		c.log.Error("mark mpesa payment timed out", zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
	}
}

func classify(resp *mpesa.QueryResponse) *StatusResult {
	res := &StatusResult{ResultCode: string(resp.ResultCode), ResultDesc: resp.ResultDesc}
	switch {
	case resp.Succeeded():
		res.State = StateCompleted
	case resp.Pending():
		res.State = StatePending
	default:
		res.State = StateFailed
	}
	return res
}

func storedResult(p *models.MpesaPayment) *StatusResult {
	return &StatusResult{
		State:      State(p.Status),
		ResultCode: p.ResultCode,
		ResultDesc: p.ResultDesc,
		Stored:     true,
	}
}
