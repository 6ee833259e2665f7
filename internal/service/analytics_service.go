package service

import (
	"context"
	"math"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"
)

type Analytics struct {
	TotalSales       int64                     `json:"totalSales"`
	TotalPapersSold  int64                     `json:"totalPapersSold"`
	SaleCount        int64                     `json:"saleCount"`
	RecentSales      []models.Sale             `json:"recentSales"`
	RegisteredUsers  int64                     `json:"registeredUsers"`
	MpesaPayments    map[string]int64          `json:"mpesaPayments"`
	MpesaSuccessRate float64                   `json:"mpesaSuccessRate"`
	RevenueByDay     []repository.RevenuePoint `json:"revenueByDay"`
}

const (
	recentSalesLimit = 5
	revenueDays      = 30
)

type AnalyticsService struct {
	analytics *repository.AnalyticsRepository
	sales     *repository.SaleRepository
	users     *repository.UserRepository
	payments  *repository.MpesaPaymentRepository
}

func NewAnalyticsService(analytics *repository.AnalyticsRepository, sales *repository.SaleRepository, users *repository.UserRepository, payments *repository.MpesaPaymentRepository) *AnalyticsService {
	return &AnalyticsService{analytics: analytics, sales: sales, users: users, payments: payments}
}

func (s *AnalyticsService) Summary(ctx context.Context) (*Analytics, error) {
	totals, err := s.analytics.SalesTotals(ctx)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.sales.List(ctx, recentSalesLimit, 0)
	if err != nil {
		return nil, err
	}
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.payments.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.analytics.RevenueByDay(ctx, revenueDays)
	if err != nil {
		return nil, err
	}
	return &Analytics{
		TotalSales:       totals.TotalSales,
		TotalPapersSold:  totals.TotalPapersSold,
		SaleCount:        totals.SaleCount,
		RecentSales:      recent,
		RegisteredUsers:  users,
		MpesaPayments:    counts,
		MpesaSuccessRate: successRate(counts),
		RevenueByDay:     revenue,
	}, nil
}

// successRate is the share of settled STK attempts that completed, in percent.
func successRate(counts map[string]int64) float64 {
	completed := counts[domain.MpesaStatusCompleted]
	settled := completed + counts[domain.MpesaStatusFailed] + counts[domain.MpesaStatusTimeout]
	if settled == 0 {
		return 0
	}
	return math.Round(float64(completed)*1000/float64(settled)) / 10
}
