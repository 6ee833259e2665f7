package service

import (
	"context"
	"errors"
	"strconv"

	"pastpapers/internal/checkout"
	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound     = errors.New("no M-Pesa payment found for this checkoutRequestId")
	ErrPaymentNotCompleted = errors.New("M-Pesa payment is not completed")
	ErrAmountMismatch      = errors.New("totalAmount does not match the amount paid")
)

type SaleService struct {
	recorder checkout.Recorder
	sales    *repository.SaleRepository
	payments checkout.PaymentStore
	audit    *AuditService
}

func NewSaleService(recorder checkout.Recorder, sales *repository.SaleRepository, payments checkout.PaymentStore, audit *AuditService) *SaleService {
	return &SaleService{recorder: recorder, sales: sales, payments: payments, audit: audit}
}

// Create records a sale submitted by the client. A sale that names an M-Pesa
// checkoutRequestId is only accepted once that payment has completed for the
// same amount; repeated submissions return the sale already recorded for it.
func (s *SaleService) Create(ctx context.Context, in checkout.SaleInput, meta AuditEntry) (*models.Sale, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.CheckoutRequestID != "" {
		if in.PaymentMethod != domain.PaymentMethodMpesa {
			return nil, checkout.ErrInvalidPaymentMethod
		}
		p, err := s.payments.GetByCheckoutRequestID(ctx, in.CheckoutRequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, err
		}
		if p.Status != domain.MpesaStatusCompleted {
			return nil, ErrPaymentNotCompleted
		}
		if p.Amount != in.TotalAmount {
			return nil, ErrAmountMismatch
		}
	}

	sale, err := s.recorder.Record(ctx, in)
	if err != nil {
		return nil, err
	}
	meta.UserID = in.UserID
	meta.Action = domain.AuditSaleRecorded
	meta.Resource = "sale"
	meta.ResourceID = strconv.FormatUint(uint64(sale.ID), 10)
	meta.Metadata = map[string]any{"paymentMethod": sale.PaymentMethod, "totalAmount": sale.TotalAmount}
	s.audit.Record(ctx, meta)
	return sale, nil
}

func (s *SaleService) List(ctx context.Context, limit, offset int) ([]models.Sale, int64, error) {
	return s.sales.List(ctx, limit, offset)
}

func (s *SaleService) Purchases(ctx context.Context, userID uint) ([]models.PurchasedPaper, error) {
	return s.sales.PurchasedPapers(ctx, userID)
}
