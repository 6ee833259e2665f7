package models

import "time"

// UserPurchase links one paper of a sale to the buyer's account.
// (SaleID, PaperID) is unique so recording a sale twice cannot duplicate rows.
type UserPurchase struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"userId"`
	SaleID      uint      `gorm:"not null;uniqueIndex:idx_user_purchases_sale_paper,priority:1" json:"saleId"`
	PaperID     uint      `gorm:"not null;uniqueIndex:idx_user_purchases_sale_paper,priority:2" json:"paperId"`
	PurchasedAt time.Time `gorm:"autoCreateTime" json:"purchasedAt"`
}

func (UserPurchase) TableName() string {
	return "user_purchases"
}

// PurchasedPaper is a purchase joined with its paper, for purchase history.
type PurchasedPaper struct {
	PurchaseID  uint      `json:"purchaseId"`
	SaleID      uint      `json:"saleId"`
	PurchasedAt time.Time `json:"purchasedAt"`
	PaperID     uint      `json:"paperId"`
	Title       string    `json:"title"`
	Grade       string    `json:"grade"`
	Subject     string    `json:"subject"`
	Price       int64     `json:"price"`
	FileURL     string    `json:"fileUrl"`
	FileName    string    `json:"fileName"`
}
