package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"pastpapers/internal/cache"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPaperNotFound = errors.New("paper not found")
	ErrInvalidPaper  = errors.New("title, grade, subject and a positive price are required")
)

const catalogKeyPrefix = "papers:"

// PaperInput carries the editable fields of a paper.
type PaperInput struct {
	Title       string
	Description string
	Grade       string
	Subject     string
	Price       int64
}

func (in PaperInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Grade) == "" ||
		strings.TrimSpace(in.Subject) == "" || in.Price <= 0 {
		return ErrInvalidPaper
	}
	return nil
}

// Upload is a paper file received from an admin.
type Upload struct {
	FileName string
	Content  io.Reader
}

type PaperService struct {
	repo  *repository.PaperRepository
	cache *cache.Cache
	files FileStore
	log   *zap.Logger
}

func NewPaperService(repo *repository.PaperRepository, c *cache.Cache, files FileStore, log *zap.Logger) *PaperService {
	return &PaperService{repo: repo, cache: c, files: files, log: log}
}

func (s *PaperService) List(ctx context.Context, f repository.PaperFilter) ([]models.PastPaper, error) {
	key := fmt.Sprintf("%slist:%s:%s", catalogKeyPrefix, f.Grade, f.Subject)
	return cache.GetOrSet(ctx, s.cache, key, func() ([]models.PastPaper, error) {
		return s.repo.List(ctx, f)
	})
}

func (s *PaperService) Get(ctx context.Context, id uint) (*models.PastPaper, error) {
	key := fmt.Sprintf("%sid:%d", catalogKeyPrefix, id)
	p, err := cache.GetOrSet(ctx, s.cache, key, func() (*models.PastPaper, error) {
		return s.repo.GetByID(ctx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaperNotFound
	}
	return p, err
}

// Create stores the file (when given) and the paper row.
func (s *PaperService) Create(ctx context.Context, in PaperInput, file *Upload) (*models.PastPaper, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &models.PastPaper{
		Title:       in.Title,
		Description: in.Description,
		Grade:       in.Grade,
		Subject:     in.Subject,
		Price:       in.Price,
	}
	if file != nil {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(file.FileName))
		url, err := s.files.Save(ctx, name, file.Content)
		if err != nil {
			return nil, err
		}
		p.FileURL = url
		p.FileName = file.FileName
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if p.FileURL != "" {
			if rmErr := s.files.Remove(ctx, p.FileURL); rmErr != nil {
				s.log.Warn("remove orphaned upload", zap.String("url", p.FileURL), zap.Error(rmErr))
			}
		}
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *PaperService) Update(ctx context.Context, id uint, in PaperInput) (*models.PastPaper, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaperNotFound
		}
		return nil, err
	}
	p.Title, p.Description, p.Grade, p.Subject, p.Price = in.Title, in.Description, in.Grade, in.Subject, in.Price
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *PaperService) Delete(ctx context.Context, id uint) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaperNotFound
		}
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaperNotFound
		}
		return err
	}
	s.invalidate(ctx)
	if p.FileURL != "" {
		if err := s.files.Remove(ctx, p.FileURL); err != nil {
			s.log.Warn("remove paper file", zap.Uint("paper_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *PaperService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, catalogKeyPrefix+"*"); err != nil {
		s.log.Warn("invalidate catalog cache", zap.Error(err))
	}
}
