package checkout

import (
	"context"
	"errors"
	"strconv"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/pkg/mpesa"

	"go.uber.org/zap"
)

type PaymentRequest struct {
	PhoneNumber string
	Amount      int64 // whole KSh
	UserID      *uint
}

// InitiateResult is the tagged outcome of Initiate. Exactly one of the success
// fields or Failure is meaningful, selected by Success.
type InitiateResult struct {
	Success             bool
	CheckoutRequestID   string
	MerchantRequestID   string
	CustomerMessage     string
	ResponseDescription string
	PhoneNumber         string
	Failure             *Failure
}

func failed(kind FailureKind, code, msg string) *InitiateResult {
	return &InitiateResult{Failure: &Failure{Kind: kind, Code: code, Message: msg}}
}

type InitiatorConfig struct {
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

type Initiator struct {
	gateway  Gateway
	payments PaymentStore
	cfg      InitiatorConfig
	log      *zap.Logger
}

func NewInitiator(gateway Gateway, payments PaymentStore, cfg InitiatorConfig, log *zap.Logger) *Initiator {
	return &Initiator{gateway: gateway, payments: payments, cfg: cfg, log: log}
}

// Initiate sends the STK prompt. It never returns an error: every failure is
// reported through InitiateResult.Failure.
func (i *Initiator) Initiate(ctx context.Context, req PaymentRequest) *InitiateResult {
	if req.Amount < 1 {
		return failed(InvalidAmount, "", "Amount must be at least 1 KSh")
	}
	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return failed(InvalidPhoneFormat, "", "Invalid phone number format. Use 07XXXXXXXX or 2547XXXXXXXX")
	}

	resp, err := i.gateway.STKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      phone,
		Amount:           req.Amount,
		AccountReference: i.cfg.AccountReference,
		TransactionDesc:  i.cfg.TransactionDesc,
		CallbackURL:      i.cfg.CallbackURL,
	})
	if err != nil {
		f := gatewayFailure(err)
		i.log.Warn("stk push failed",
			zap.String("kind", string(f.Kind)),
			zap.String("code", f.Code),
			zap.Error(err))
		return &InitiateResult{Failure: f, PhoneNumber: phone}
	}

	payment := &models.MpesaPayment{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		PhoneNumber:       phone,
		Amount:            req.Amount,
		UserID:            req.UserID,
		Status:            domain.MpesaStatusPending,
	}
	if err := i.payments.Create(ctx, payment); err != nil {
		// The prompt is already on the customer's phone; status queries still reach the gateway.
		i.log.Error("persist mpesa payment", zap.String("checkout_request_id", resp.CheckoutRequestID), zap.Error(err))
	}

	return &InitiateResult{
		Success:             true,
		CheckoutRequestID:   resp.CheckoutRequestID,
		MerchantRequestID:   resp.MerchantRequestID,
		CustomerMessage:     resp.CustomerMessage,
		ResponseDescription: resp.ResponseDescription,
		PhoneNumber:         phone,
	}
}

func gatewayFailure(err error) *Failure {
	var authErr *mpesa.AuthError
	var apiErr *mpesa.APIError
	switch {
	case errors.As(err, &authErr):
		code := ""
		if authErr.StatusCode != 0 {
			code = strconv.Itoa(authErr.StatusCode)
		}
		return &Failure{Kind: GatewayAuthError, Code: code, Message: "Could not authenticate with M-Pesa. Please try again later."}
	case errors.As(err, &apiErr):
		return &Failure{Kind: GatewayRejected, Code: apiErr.Code, Message: apiErr.Message}
	case errors.Is(err, mpesa.ErrInvalidPhoneFormat):
		return &Failure{Kind: InvalidPhoneFormat, Message: "Invalid phone number format. Use 07XXXXXXXX or 2547XXXXXXXX"}
	default:
		return &Failure{Kind: GatewayUnavailable, Message: "M-Pesa could not be reached. Please try again."}
	}
}
