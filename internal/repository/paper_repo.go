package repository

import (
	"context"

	"pastpapers/internal/models"

	"gorm.io/gorm"
)

type PaperFilter struct {
	Grade   string
	Subject string
}

type PaperRepository struct {
	db *gorm.DB
}

func NewPaperRepository(db *gorm.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

func (r *PaperRepository) List(ctx context.Context, f PaperFilter) ([]models.PastPaper, error) {
	q := r.db.WithContext(ctx).Model(&models.PastPaper{})
	if f.Grade != "" {
		q = q.Where("grade = ?", f.Grade)
	}
	if f.Subject != "" {
		q = q.Where("subject = ?", f.Subject)
	}
	list := []models.PastPaper{}
	err := q.Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *PaperRepository) GetByID(ctx context.Context, id uint) (*models.PastPaper, error) {
	var p models.PastPaper
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns the papers that exist among ids.
func (r *PaperRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.PastPaper, error) {
	var list []models.PastPaper
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *PaperRepository) Create(ctx context.Context, p *models.PastPaper) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaperRepository) Update(ctx context.Context, p *models.PastPaper) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// Delete removes a paper. It returns gorm.ErrRecordNotFound when nothing was deleted.
func (r *PaperRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.PastPaper{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
