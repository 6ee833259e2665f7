package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubProvider_Charge(t *testing.T) {
	p := &StubProvider{now: func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }}

	tests := []struct {
		name    string
		req     CardCharge
		wantErr error
	}{
		{"valid", CardCharge{Number: "4242 4242 4242 4242", Expiry: "12/27", CVV: "123", Amount: 120}, nil},
		{"dashes", CardCharge{Number: "4242-4242-4242-4242", Expiry: "12/27", CVV: "1234", Amount: 120}, nil},
		{"expiry month still valid", CardCharge{Number: "4242424242424242", Expiry: "03/26", CVV: "123", Amount: 120}, nil},
		{"expired", CardCharge{Number: "4242424242424242", Expiry: "02/26", CVV: "123", Amount: 120}, ErrCardExpired},
		{"luhn failure", CardCharge{Number: "4242424242424241", Expiry: "12/27", CVV: "123", Amount: 120}, ErrInvalidCardNumber},
		{"too short", CardCharge{Number: "424242424242", Expiry: "12/27", CVV: "123", Amount: 120}, ErrInvalidCardNumber},
		{"letters", CardCharge{Number: "4242abcd42424242", Expiry: "12/27", CVV: "123", Amount: 120}, ErrInvalidCardNumber},
		{"short cvv", CardCharge{Number: "4242424242424242", Expiry: "12/27", CVV: "12", Amount: 120}, ErrInvalidCVV},
		{"bad expiry", CardCharge{Number: "4242424242424242", Expiry: "2027-12", CVV: "123", Amount: 120}, ErrInvalidExpiry},
		{"zero amount", CardCharge{Number: "4242424242424242", Expiry: "12/27", CVV: "123"}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Charge(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, `^VISA[0-9A-F]{12}$`, res.TransactionID)
		})
	}
}
