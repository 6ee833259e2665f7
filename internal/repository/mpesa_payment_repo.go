package repository

import (
	"context"
	"time"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"

	"gorm.io/gorm"
)

type MpesaPaymentRepository struct {
	db *gorm.DB
}

func NewMpesaPaymentRepository(db *gorm.DB) *MpesaPaymentRepository {
	return &MpesaPaymentRepository{db: db}
}

func (r *MpesaPaymentRepository) Create(ctx context.Context, p *models.MpesaPayment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *MpesaPaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.MpesaPayment, error) {
	var p models.MpesaPayment
	err := r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Resolution is the terminal outcome written to a pending payment.
type Resolution struct {
	Status        string
	ResultCode    string
	ResultDesc    string
	ReceiptNumber string
}

// Resolve moves a pending payment to a terminal status. It reports false when the
// payment was already terminal (or does not exist), so the first writer wins.
func (r *MpesaPaymentRepository) Resolve(ctx context.Context, checkoutRequestID string, res Resolution) (bool, error) {
	now := time.Now()
	updates := map[string]any{
		"status":      res.Status,
		"result_code": res.ResultCode,
		"result_desc": truncate(res.ResultDesc, 255),
		"resolved_at": &now,
	}
	if res.ReceiptNumber != "" {
		updates["receipt_number"] = res.ReceiptNumber
	}
	tx := r.db.WithContext(ctx).Model(&models.MpesaPayment{}).
		Where("checkout_request_id = ? AND status = ?", checkoutRequestID, domain.MpesaStatusPending).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// CountByStatus returns payment counts keyed by status.
func (r *MpesaPaymentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.MpesaPayment{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
