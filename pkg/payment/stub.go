package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StubProvider accepts any well-formed card without contacting a card network.
type StubProvider struct {
	now func() time.Time
}

func NewStubProvider() *StubProvider {
	return &StubProvider{now: time.Now}
}

func (s *StubProvider) Charge(_ context.Context, req CardCharge) (*ChargeResult, error) {
	if err := validate(req, s.now()); err != nil {
		return nil, err
	}
	return &ChargeResult{
		TransactionID: "VISA" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		Message:       "Payment processed successfully via Visa",
	}, nil
}

func validate(req CardCharge, now time.Time) error {
	if req.Amount < 1 {
		return ErrInvalidAmount
	}
	number := strings.NewReplacer(" ", "", "-", "").Replace(req.Number)
	if len(number) < 13 || len(number) > 19 || !allDigits(number) || !luhn(number) {
		return ErrInvalidCardNumber
	}
	if (len(req.CVV) != 3 && len(req.CVV) != 4) || !allDigits(req.CVV) {
		return ErrInvalidCVV
	}
	exp, err := time.Parse("01/06", strings.TrimSpace(req.Expiry))
	if err != nil {
		return ErrInvalidExpiry
	}
	// Cards are valid through the last day of the expiry month.
	if !now.Before(exp.AddDate(0, 1, 0)) {
		return ErrCardExpired
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
