package service

import (
	"context"
	"encoding/json"

	"pastpapers/internal/models"
	"pastpapers/internal/repository"

	"go.uber.org/zap"
)

type AuditEntry struct {
	UserID     *uint
	Action     string
	Resource   string
	ResourceID string
	IP         string
	UserAgent  string
	Metadata   map[string]any
}

// AuditService writes the audit trail. Write failures are logged and never
// surface to the request that caused them.
type AuditService struct {
	repo *repository.AuditLogRepository
	log  *zap.Logger
}

func NewAuditService(repo *repository.AuditLogRepository, log *zap.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	if s == nil {
		return
	}
	var meta string
	if len(e.Metadata) > 0 {
		b, _ := json.Marshal(e.Metadata)
		meta = string(b)
	}
	err := s.repo.Create(ctx, &models.AuditLog{
		UserID:     e.UserID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		IP:         e.IP,
		UserAgent:  e.UserAgent,
		Metadata:   meta,
	})
	if err != nil {
		s.log.Warn("write audit log", zap.String("action", e.Action), zap.Error(err))
	}
}
