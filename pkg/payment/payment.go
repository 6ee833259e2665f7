package payment

import (
	"context"
	"errors"
)

var (
	ErrInvalidCardNumber = errors.New("invalid card number")
	ErrInvalidCVV        = errors.New("invalid cvv")
	ErrInvalidExpiry     = errors.New("expiryDate must be MM/YY")
	ErrCardExpired       = errors.New("card has expired")
	ErrInvalidAmount     = errors.New("amount must be at least 1")
)

// CardCharge is a one-off card payment. Amount is in whole KSh.
type CardCharge struct {
	Number string
	Expiry string // MM/YY
	CVV    string
	Amount int64
}

type ChargeResult struct {
	TransactionID string
	Message       string
}

// CardProvider charges cards. Validation failures are returned as the Err* values above.
type CardProvider interface {
	Charge(ctx context.Context, req CardCharge) (*ChargeResult, error)
}

// IsValidation reports whether err is a rejection of the card details.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidCardNumber) || errors.Is(err, ErrInvalidCVV) ||
		errors.Is(err, ErrInvalidExpiry) || errors.Is(err, ErrCardExpired) ||
		errors.Is(err, ErrInvalidAmount)
}
