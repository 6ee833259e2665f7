package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PaperIDs is the ordered list of papers in a sale, stored as a JSON array.
type PaperIDs []uint

func (p PaperIDs) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PaperIDs) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("paper ids: unsupported type %T", src)
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("paper ids: %w", err)
	}
	*p = ids
	return nil
}

func (PaperIDs) GormDataType() string { return "json" }

// Sale is an immutable record of a paid checkout.
type Sale struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CustomerEmail     string    `gorm:"size:255;not null;index" json:"customerEmail"`
	PaperIDs          PaperIDs  `gorm:"column:paper_ids;not null" json:"paperIds"`
	TotalAmount       int64     `gorm:"not null" json:"totalAmount"`
	PaymentMethod     string    `gorm:"size:20;not null" json:"paymentMethod"`
	Status            string    `gorm:"size:20;not null;default:'completed';index" json:"status"`
	CheckoutRequestID *string   `gorm:"size:100;uniqueIndex" json:"checkoutRequestId,omitempty"`
	UserID            *uint     `gorm:"index" json:"userId,omitempty"`
	CreatedAt         time.Time `gorm:"index" json:"createdAt"`
}

func (Sale) TableName() string {
	return "sales"
}
