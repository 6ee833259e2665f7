package repository

import (
	"context"

	"pastpapers/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

func (r *SaleRepository) Create(ctx context.Context, s *models.Sale) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SaleRepository) GetByID(ctx context.Context, id uint) (*models.Sale, error) {
	var s models.Sale
	err := r.db.WithContext(ctx).First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SaleRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Sale, error) {
	var s models.Sale
	err := r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns sales newest first. limit <= 0 means no limit.
func (r *SaleRepository) List(ctx context.Context, limit, offset int) ([]models.Sale, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Sale{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	list := []models.Sale{}
	err := q.Find(&list).Error
	return list, total, err
}

// AddPurchases links papers of a sale to a user. Rows that already exist for
// (sale_id, paper_id) are left untouched, so the call can be repeated safely.
func (r *SaleRepository) AddPurchases(ctx context.Context, userID, saleID uint, paperIDs []uint) error {
	if len(paperIDs) == 0 {
		return nil
	}
	rows := make([]models.UserPurchase, 0, len(paperIDs))
	for _, pid := range paperIDs {
		rows = append(rows, models.UserPurchase{UserID: userID, SaleID: saleID, PaperID: pid})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sale_id"}, {Name: "paper_id"}}, DoNothing: true}).
		Create(&rows).Error
}

func (r *SaleRepository) PurchasesBySale(ctx context.Context, saleID uint) ([]models.UserPurchase, error) {
	var list []models.UserPurchase
	err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).Order("id ASC").Find(&list).Error
	return list, err
}

// PurchasedPapers returns the user's purchases joined with paper details, newest first.
func (r *SaleRepository) PurchasedPapers(ctx context.Context, userID uint) ([]models.PurchasedPaper, error) {
	list := []models.PurchasedPaper{}
	err := r.db.WithContext(ctx).
		Table("user_purchases AS up").
		Select(`up.id AS purchase_id, up.sale_id, up.purchased_at, p.id AS paper_id,
			p.title, p.grade, p.subject, p.price, p.file_url, p.file_name`).
		Joins("JOIN past_papers AS p ON p.id = up.paper_id").
		Where("up.user_id = ?", userID).
		Order("up.purchased_at DESC, up.id DESC").
		Scan(&list).Error
	return list, err
}

// HasPurchased reports whether the user owns the paper.
func (r *SaleRepository) HasPurchased(ctx context.Context, userID, paperID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserPurchase{}).
		Where("user_id = ? AND paper_id = ?", userID, paperID).Count(&n).Error
	return n > 0, err
}
