package repository

import (
	"context"
	"time"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"

	"gorm.io/gorm"
)

type SalesTotals struct {
	TotalSales      int64 `json:"totalSales"` // KSh across completed sales
	TotalPapersSold int64 `json:"totalPapersSold"`
	SaleCount       int64 `json:"saleCount"`
}

type RevenuePoint struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// SalesTotals sums revenue and papers sold over completed sales.
func (r *AnalyticsRepository) SalesTotals(ctx context.Context) (*SalesTotals, error) {
	var sales []models.Sale
	err := r.db.WithContext(ctx).
		Select("id", "total_amount", "paper_ids").
		Where("status = ?", domain.SaleStatusCompleted).
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	t := &SalesTotals{SaleCount: int64(len(sales))}
	for _, s := range sales {
		t.TotalSales += s.TotalAmount
		t.TotalPapersSold += int64(len(s.PaperIDs))
	}
	return t, nil
}

// RevenueByDay returns daily completed sale revenue for the last N days.
func (r *AnalyticsRepository) RevenueByDay(ctx context.Context, days int) ([]RevenuePoint, error) {
	since := time.Now().AddDate(0, 0, -days)
	points := []RevenuePoint{}
	err := r.db.WithContext(ctx).Model(&models.Sale{}).
		Select("DATE(created_at) AS date, COALESCE(SUM(total_amount), 0) AS amount").
		Where("status = ? AND created_at >= ?", domain.SaleStatusCompleted, since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}
