// Package checkout runs the M-Pesa STK push checkout: initiating the prompt,
// polling the gateway until the payment settles, and recording the sale once.
package checkout

import (
	"context"
	"fmt"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"
	"pastpapers/pkg/mpesa"
)

// Gateway is the subset of the Daraja client used by checkout.
type Gateway interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
}

// PaymentStore persists STK attempts. Lookups of unknown tokens return gorm.ErrRecordNotFound.
type PaymentStore interface {
	Create(ctx context.Context, p *models.MpesaPayment) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.MpesaPayment, error)
	Resolve(ctx context.Context, checkoutRequestID string, res repository.Resolution) (bool, error)
}

// SaleStore persists sales and purchase links. Lookups of unknown tokens return gorm.ErrRecordNotFound.
type SaleStore interface {
	Create(ctx context.Context, s *models.Sale) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Sale, error)
	AddPurchases(ctx context.Context, userID, saleID uint, paperIDs []uint) error
}

// Notifier is told about every newly recorded sale.
type Notifier interface {
	SaleRecorded(ctx context.Context, sale *models.Sale) error
}

// State of one STK attempt. Everything except StatePending is terminal.
type State string

const (
	StatePending   State = domain.MpesaStatusPending
	StateCompleted State = domain.MpesaStatusCompleted
	StateFailed    State = domain.MpesaStatusFailed
	StateTimeout   State = domain.MpesaStatusTimeout
)

func (s State) Terminal() bool { return s != StatePending }

type FailureKind string

const (
	InvalidPhoneFormat FailureKind = "InvalidPhoneFormat"
	InvalidAmount      FailureKind = "InvalidAmount"
	GatewayAuthError   FailureKind = "GatewayAuthError"
	GatewayRejected    FailureKind = "GatewayRejected"
	GatewayUnavailable FailureKind = "GatewayUnavailable"
	PollingTimeout     FailureKind = "PollingTimeout"
	PollingFailure     FailureKind = "PollingFailure"
)

// Failure is a checkout failure safe to show to the customer. Code and Message
// carry the gateway's own values for GatewayRejected and PollingFailure.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("%s (%s): %s", f.Kind, f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}
