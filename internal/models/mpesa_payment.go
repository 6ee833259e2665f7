package models

import (
	"time"

	"pastpapers/internal/domain"
)

// MpesaPayment tracks one STK push attempt, keyed by the gateway CheckoutRequestID.
// Status leaves pending at most once.
type MpesaPayment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CheckoutRequestID string     `gorm:"size:100;uniqueIndex;not null" json:"checkoutRequestId"`
	MerchantRequestID string     `gorm:"size:100" json:"merchantRequestId"`
	PhoneNumber       string     `gorm:"size:20;not null" json:"phoneNumber"`
	Amount            int64      `gorm:"not null" json:"amount"`
	UserID            *uint      `gorm:"index" json:"userId,omitempty"`
	Status            string     `gorm:"size:20;not null;index" json:"status"`
	ResultCode        string     `gorm:"size:20" json:"resultCode"`
	ResultDesc        string     `gorm:"size:255" json:"resultDesc"`
	ReceiptNumber     string     `gorm:"size:50" json:"receiptNumber,omitempty"`
	ResolvedAt        *time.Time `json:"resolvedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (MpesaPayment) TableName() string {
	return "mpesa_payments"
}

func (p *MpesaPayment) Terminal() bool {
	return p.Status != domain.MpesaStatusPending
}
