package checkout

import (
	"context"
	"errors"
	"net/mail"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEmptyPaperIDs        = errors.New("paperIds must not be empty")
	ErrInvalidEmail         = errors.New("customerEmail is not a valid email address")
	ErrInvalidPaymentMethod = errors.New("paymentMethod must be mpesa or visa")
	ErrInvalidTotal         = errors.New("totalAmount must be positive")
)

type SaleInput struct {
	CustomerEmail string
	PaperIDs      []uint
	TotalAmount   int64
	PaymentMethod string
	// UserID is set for signed-in buyers; their purchases are linked to the account.
	UserID *uint
	// CheckoutRequestID ties the sale to an M-Pesa attempt; at most one sale exists per token.
	CheckoutRequestID string
}

func (in SaleInput) Validate() error {
	if len(in.PaperIDs) == 0 {
		return ErrEmptyPaperIDs
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return ErrInvalidEmail
	}
	if in.TotalAmount <= 0 {
		return ErrInvalidTotal
	}
	if !domain.ValidPaymentMethod(in.PaymentMethod) {
		return ErrInvalidPaymentMethod
	}
	return nil
}

type SaleRecorder struct {
	sales    SaleStore
	notifier Notifier
	log      *zap.Logger
}

func NewSaleRecorder(sales SaleStore, notifier Notifier, log *zap.Logger) *SaleRecorder {
	return &SaleRecorder{sales: sales, notifier: notifier, log: log}
}

// Record stores a completed sale. Purchase links and the notification are best
// effort: once the sale row exists their failures are logged, not returned.
// Recording the same CheckoutRequestID again returns the existing sale.
func (r *SaleRecorder) Record(ctx context.Context, in SaleInput) (*models.Sale, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.CheckoutRequestID != "" {
		existing, err := r.sales.GetByCheckoutRequestID(ctx, in.CheckoutRequestID)
		if err == nil {
			r.linkPurchases(ctx, existing)
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	sale := &models.Sale{
		CustomerEmail: in.CustomerEmail,
		PaperIDs:      models.PaperIDs(append([]uint(nil), in.PaperIDs...)),
		TotalAmount:   in.TotalAmount,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.SaleStatusCompleted,
		UserID:        in.UserID,
	}
	if in.CheckoutRequestID != "" {
		token := in.CheckoutRequestID
		sale.CheckoutRequestID = &token
	}
	if err := r.sales.Create(ctx, sale); err != nil {
		if in.CheckoutRequestID != "" {
			if existing, lookupErr := r.sales.GetByCheckoutRequestID(ctx, in.CheckoutRequestID); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	r.log.Info("sale recorded",
		zap.Uint("sale_id", sale.ID),
		zap.String("payment_method", sale.PaymentMethod),
		zap.Int64("total_amount", sale.TotalAmount),
		zap.Int("papers", len(sale.PaperIDs)))

	r.linkPurchases(ctx, sale)
	if r.notifier != nil {
		if err := r.notifier.SaleRecorded(ctx, sale); err != nil {
			r.log.Warn("sale notification failed", zap.Uint("sale_id", sale.ID), zap.Error(err))
		}
	}
	return sale, nil
}

func (r *SaleRecorder) linkPurchases(ctx context.Context, sale *models.Sale) {
	if sale.UserID == nil {
		return
	}
	if err := r.sales.AddPurchases(ctx, *sale.UserID, sale.ID, uniqueIDs(sale.PaperIDs)); err != nil {
		r.log.Error("link purchases to user",
			zap.Uint("sale_id", sale.ID),
			zap.Uint("user_id", *sale.UserID),
			zap.Error(err))
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
