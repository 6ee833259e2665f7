package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"

	"go.uber.org/zap"
)

// Pusher delivers a push notification to one device.
type Pusher interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// NotificationService tells buyers about their purchases: an email receipt to the
// customer address, plus an in-app notification and push for signed-in buyers.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	papers   *repository.PaperRepository
	email    *EmailService
	push     Pusher
	log      *zap.Logger
}

func NewNotificationService(
	repo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	papers *repository.PaperRepository,
	email *EmailService,
	push Pusher,
	log *zap.Logger,
) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, papers: papers, email: email, push: push, log: log}
}

func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, title, body string, data map[string]string) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(ctx, &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	return s.sendPush(ctx, userID, notifType, title, body, data)
}

// sendPush reports delivery failures; the stored notification is kept either way.
func (s *NotificationService) sendPush(ctx context.Context, userID uint, notifType, title, body string, data map[string]string) error {
	if s.push == nil {
		return nil
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load push token: %w", err)
	}
	if u.FCMToken == "" {
		return nil
	}
	payload := map[string]string{"type": notifType}
	for k, v := range data {
		payload[k] = v
	}
	if err := s.push.Send(ctx, u.FCMToken, title, body, payload); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// SaleRecorded sends the purchase confirmation for a new sale.
func (s *NotificationService) SaleRecorded(ctx context.Context, sale *models.Sale) error {
	titles := s.titles(ctx, sale.PaperIDs)
	var errs []error

	if s.email.Enabled() {
		if err := s.email.Send(ctx, sale.CustomerEmail, receiptSubject(sale), receiptBody(sale, titles)); err != nil {
			errs = append(errs, err)
		}
	}
	if sale.UserID != nil {
		body := fmt.Sprintf("Your purchase of %d paper(s) for KSh %d is confirmed.", len(sale.PaperIDs), sale.TotalAmount)
		data := map[string]string{"saleId": strconv.FormatUint(uint64(sale.ID), 10)}
		if err := s.Notify(ctx, *sale.UserID, domain.NotificationPurchaseConfirmed, "Purchase confirmed", body, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) titles(ctx context.Context, ids []uint) map[uint]string {
	papers, err := s.papers.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("load papers for receipt", zap.Error(err))
		return nil
	}
	out := make(map[uint]string, len(papers))
	for _, p := range papers {
		out[p.ID] = p.Title
	}
	return out
}

func receiptSubject(sale *models.Sale) string {
	return fmt.Sprintf("Your past papers receipt #%d", sale.ID)
}

func receiptBody(sale *models.Sale, titles map[uint]string) string {
	var b strings.Builder
	b.WriteString("Thank you for your purchase.\n\n")
	for _, id := range sale.PaperIDs {
		title, ok := titles[id]
		if !ok {
			title = fmt.Sprintf("Paper #%d", id)
		}
		fmt.Fprintf(&b, "- %s\n", title)
	}
	fmt.Fprintf(&b, "\nTotal paid: KSh %d via %s\n", sale.TotalAmount, sale.PaymentMethod)
	if sale.CheckoutRequestID != nil {
		fmt.Fprintf(&b, "Reference: %s\n", *sale.CheckoutRequestID)
	}
	b.WriteString("\nSign in to download your papers at any time.\n")
	return b.String()
}
