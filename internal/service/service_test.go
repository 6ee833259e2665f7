package service

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pastpapers/config"
	"pastpapers/internal/auth"
	"pastpapers/internal/checkout"
	"pastpapers/internal/database/databasetest"
	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"
	"pastpapers/pkg/mpesa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testJWT = &config.JWTConfig{
	AccessSecret:  "access",
	RefreshSecret: "refresh",
	AccessExpiry:  time.Minute,
	RefreshExpiry: time.Hour,
	Issuer:        "test",
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	db := databasetest.New(t)
	svc := NewAuthService(testJWT, repository.NewUserRepository(db))
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, RegisterInput{Username: "wanjiku", Email: "Wanjiku@Example.com", Password: "s3cret!", FirstName: "Wanjiku"})
	require.NoError(t, err)
	assert.Equal(t, "wanjiku@example.com", u.Email)
	assert.Equal(t, domain.RoleCustomer, u.Role)
	assert.NotEqual(t, "s3cret!", u.PasswordHash)
	require.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.Register(ctx, RegisterInput{Username: "other", Email: "wanjiku@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrEmailExists)
	_, _, err = svc.Register(ctx, RegisterInput{Username: "wanjiku", Email: "new@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrUsernameExists)

	for _, id := range []string{"wanjiku", "wanjiku@example.com"} {
		got, _, err := svc.Login(ctx, id, "s3cret!")
		require.NoError(t, err, id)
		assert.Equal(t, u.ID, got.ID)
	}
	_, _, err = svc.Login(ctx, "wanjiku", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, _, err = svc.Login(ctx, "nobody", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCreds)

	_, _, err = svc.AdminLogin(ctx, "wanjiku", "s3cret!")
	assert.ErrorIs(t, err, ErrNotAdmin)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	claims, err := auth.ParseAccessToken(testJWT, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

type saleFixture struct {
	svc      *SaleService
	sales    *repository.SaleRepository
	payments *repository.MpesaPaymentRepository
}

func newSaleFixture(t *testing.T) *saleFixture {
	db := databasetest.New(t)
	sales := repository.NewSaleRepository(db)
	payments := repository.NewMpesaPaymentRepository(db)
	audit := NewAuditService(repository.NewAuditLogRepository(db), zap.NewNop())
	recorder := checkout.NewSaleRecorder(sales, nil, zap.NewNop())
	return &saleFixture{svc: NewSaleService(recorder, sales, payments, audit), sales: sales, payments: payments}
}

func (f *saleFixture) payment(t *testing.T, token, status string, amount int64) {
	t.Helper()
	require.NoError(t, f.payments.Create(context.Background(), &models.MpesaPayment{
		CheckoutRequestID: token, PhoneNumber: "254712345678", Amount: amount, Status: status,
	}))
}

func mpesaSale(token string, total int64) checkout.SaleInput {
	return checkout.SaleInput{
		CustomerEmail:     "parent@example.com",
		PaperIDs:          []uint{1, 2},
		TotalAmount:       total,
		PaymentMethod:     domain.PaymentMethodMpesa,
		CheckoutRequestID: token,
	}
}

func TestSaleService_RequiresCompletedPayment(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()
	f.payment(t, "ws_pending", domain.MpesaStatusPending, 240)
	f.payment(t, "ws_done", domain.MpesaStatusCompleted, 240)

	_, err := f.svc.Create(ctx, mpesaSale("ws_missing", 240), AuditEntry{})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	_, err = f.svc.Create(ctx, mpesaSale("ws_pending", 240), AuditEntry{})
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)
	_, err = f.svc.Create(ctx, mpesaSale("ws_done", 100), AuditEntry{})
	assert.ErrorIs(t, err, ErrAmountMismatch)

	first, err := f.svc.Create(ctx, mpesaSale("ws_done", 240), AuditEntry{IP: "10.0.0.1"})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, mpesaSale("ws_done", 240), AuditEntry{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, total, err := f.svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSaleService_CardSaleWithoutToken(t *testing.T) {
	f := newSaleFixture(t)
	in := mpesaSale("", 240)
	in.PaymentMethod = domain.PaymentMethodVisa

	sale, err := f.svc.Create(context.Background(), in, AuditEntry{})
	require.NoError(t, err)
	assert.Nil(t, sale.CheckoutRequestID)
	assert.Equal(t, domain.PaymentMethodVisa, sale.PaymentMethod)
}

// queryGateway answers every status query with code.
type queryGateway struct {
	code    mpesa.Code
	queries int
}

func (g *queryGateway) STKPush(context.Context, mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	return nil, errors.New("not used")
}

func (g *queryGateway) QueryStatus(_ context.Context, id string) (*mpesa.QueryResponse, error) {
	g.queries++
	return &mpesa.QueryResponse{CheckoutRequestID: id, ResultCode: g.code, ResultDesc: "queried"}, nil
}

type paymentFixture struct {
	db        *gorm.DB
	gw        *queryGateway
	payments  *repository.MpesaPaymentRepository
	svc       *PaymentService
	published []checkout.Outcome
}

func newPaymentFixture(t *testing.T, code mpesa.Code) *paymentFixture {
	t.Helper()
	db := databasetest.New(t)
	f := &paymentFixture{db: db, gw: &queryGateway{code: code}, payments: repository.NewMpesaPaymentRepository(db)}
	audit := NewAuditService(repository.NewAuditLogRepository(db), zap.NewNop())
	checker := checkout.NewStatusChecker(f.gw, f.payments, zap.NewNop())
	f.svc = NewPaymentService(f.payments, checker, nil, audit, zap.NewNop())
	f.svc.Subscribe(func(o checkout.Outcome) { f.published = append(f.published, o) })
	return f
}

func (f *paymentFixture) pending(t *testing.T, id string, userID *uint) {
	t.Helper()
	require.NoError(t, f.payments.Create(context.Background(), &models.MpesaPayment{
		CheckoutRequestID: id, PhoneNumber: "254712345678", Amount: 120, Status: domain.MpesaStatusPending, UserID: userID,
	}))
}

func paidCallback(id string) *mpesa.STKCallback {
	return &mpesa.STKCallback{
		CheckoutRequestID: id,
		ResultCode:        "0",
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &mpesa.CallbackMetadata{Item: []mpesa.CallbackItem{
			{Name: "Amount", Value: 120.0},
			{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
		}},
	}
}

func TestPaymentService_CallbackFirstWriterWins(t *testing.T) {
	f := newPaymentFixture(t, mpesa.ResultCodeSuccess)
	ctx := context.Background()
	f.pending(t, "ws_CO_1", nil)

	ok, err := f.svc.HandleCallback(ctx, paidCallback("ws_CO_1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.HandleCallback(ctx, &mpesa.STKCallback{CheckoutRequestID: "ws_CO_1", ResultCode: "1032", ResultDesc: "Request cancelled by user"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.gw.queries)

	st, err := f.svc.Status(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, domain.MpesaStatusCompleted, st.Status)
	assert.Equal(t, "NLJ7RT61SV", st.ReceiptNumber)
	assert.Equal(t, "0", st.ResultCode)

	_, err = f.svc.Status(ctx, "ws_unknown")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	require.Len(t, f.published, 1)
	assert.Equal(t, checkout.StateCompleted, f.published[0].State)
	assert.Equal(t, "ws_CO_1", f.published[0].CheckoutRequestID)

	logs, err := repository.NewAuditLogRepository(f.db).ListByAction(ctx, domain.AuditMpesaCallback, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestPaymentService_CallbackNeedsConfirmation(t *testing.T) {
	f := newPaymentFixture(t, mpesa.ResultCodePending)
	ctx := context.Background()
	f.pending(t, "ws_CO_1", nil)

	ok, err := f.svc.HandleCallback(ctx, paidCallback("ws_CO_1"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.published)

	p, err := f.payments.GetByCheckoutRequestID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, domain.MpesaStatusPending, p.Status)
	assert.Empty(t, p.ReceiptNumber)

	ok, err = f.svc.HandleCallback(ctx, paidCallback("ws_CO_unknown"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentService_Owner(t *testing.T) {
	f := newPaymentFixture(t, mpesa.ResultCodePending)
	ctx := context.Background()
	userID := uint(7)
	f.pending(t, "ws_CO_user", &userID)
	f.pending(t, "ws_CO_guest", nil)

	owner, err := f.svc.Owner(ctx, "ws_CO_user")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, userID, *owner)

	owner, err = f.svc.Owner(ctx, "ws_CO_guest")
	require.NoError(t, err)
	assert.Nil(t, owner)

	_, err = f.svc.Owner(ctx, "ws_CO_missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestNotificationService_SaleRecorded(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db)
	papers := repository.NewPaperRepository(db)
	notifications := repository.NewNotificationRepository(db)

	paper := &models.PastPaper{Title: "Grade 3 Mathematics Term 2 2023", Grade: "Grade 3", Subject: "Mathematics", Price: 120}
	require.NoError(t, papers.Create(ctx, paper))
	user := &models.User{Username: "buyer", Email: "buyer@example.com", Role: domain.RoleCustomer}
	require.NoError(t, users.Create(ctx, user))

	var sentTo []string
	var sentMsg string
	email := NewEmailService(config.SMTPConfig{Host: "smtp.example.com", Port: "587", From: "shop@example.com"})
	email.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		assert.Equal(t, "shop@example.com", from)
		sentTo = to
		sentMsg = string(msg)
		return nil
	}
	svc := NewNotificationService(notifications, users, papers, email, nil, zap.NewNop())

	token := "ws_CO_9"
	sale := &models.Sale{ID: 7, CustomerEmail: "buyer@example.com", PaperIDs: models.PaperIDs{paper.ID, 99},
		TotalAmount: 240, PaymentMethod: domain.PaymentMethodMpesa, UserID: &user.ID, CheckoutRequestID: &token}
	require.NoError(t, svc.SaleRecorded(ctx, sale))

	assert.Equal(t, []string{"buyer@example.com"}, sentTo)
	assert.Contains(t, sentMsg, "Subject: Your past papers receipt #7")
	assert.Contains(t, sentMsg, "Grade 3 Mathematics Term 2 2023")
	assert.Contains(t, sentMsg, "Paper #99")
	assert.Contains(t, sentMsg, "Reference: ws_CO_9")

	list, err := svc.List(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationPurchaseConfirmed, list[0].Type)
	assert.JSONEq(t, `{"saleId":"7"}`, list[0].Data)

	require.NoError(t, svc.MarkRead(ctx, list[0].ID, user.ID))
	assert.ErrorIs(t, svc.MarkRead(ctx, list[0].ID, user.ID+1), gorm.ErrRecordNotFound)
}

func TestNotificationService_GuestWithoutSMTP(t *testing.T) {
	db := databasetest.New(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), repository.NewUserRepository(db),
		repository.NewPaperRepository(db), NewEmailService(config.SMTPConfig{}), nil, zap.NewNop())

	err := svc.SaleRecorded(context.Background(), &models.Sale{ID: 1, CustomerEmail: "guest@example.com", PaperIDs: models.PaperIDs{1}, TotalAmount: 50})
	assert.NoError(t, err)
}

type fakePusher struct {
	err   error
	token string
	data  map[string]string
}

func (p *fakePusher) Send(_ context.Context, token, _, _ string, data map[string]string) error {
	p.token, p.data = token, data
	return p.err
}

func TestNotificationService_PushFailureReported(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db)
	user := &models.User{Username: "buyer", Email: "buyer@example.com", Role: domain.RoleCustomer, FCMToken: "device-1"}
	require.NoError(t, users.Create(ctx, user))
	push := &fakePusher{err: errors.New("registration token not registered")}
	svc := NewNotificationService(repository.NewNotificationRepository(db), users,
		repository.NewPaperRepository(db), NewEmailService(config.SMTPConfig{}), push, zap.NewNop())

	err := svc.SaleRecorded(ctx, &models.Sale{ID: 3, CustomerEmail: "buyer@example.com", PaperIDs: models.PaperIDs{1}, TotalAmount: 50, UserID: &user.ID})

	require.Error(t, err)
	assert.ErrorIs(t, err, push.err)
	assert.Equal(t, "device-1", push.token)
	assert.Equal(t, domain.NotificationPurchaseConfirmed, push.data["type"])
	assert.Equal(t, "3", push.data["saleId"])

	// The in-app notification is stored even though the push failed.
	list, err := svc.List(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPaperService_LocalFileLifecycle(t *testing.T) {
	db := databasetest.New(t)
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads")
	require.NoError(t, err)
	svc := NewPaperService(repository.NewPaperRepository(db), nil, store, zap.NewNop())
	ctx := context.Background()

	_, err = svc.Create(ctx, PaperInput{Title: "", Grade: "Grade 4", Subject: "English", Price: 100}, nil)
	assert.ErrorIs(t, err, ErrInvalidPaper)

	p, err := svc.Create(ctx, PaperInput{Title: "Grade 4 English", Grade: "Grade 4", Subject: "English", Price: 100},
		&Upload{FileName: "english.PDF", Content: strings.NewReader("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "english.PDF", p.FileName)
	require.True(t, strings.HasPrefix(p.FileURL, "/uploads/"))
	assert.True(t, strings.HasSuffix(p.FileURL, ".pdf"))
	stored := filepath.Join(dir, filepath.Base(p.FileURL))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	list, err := svc.List(ctx, repository.PaperFilter{Grade: "Grade 4"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	updated, err := svc.Update(ctx, p.ID, PaperInput{Title: "Grade 4 English 2024", Grade: "Grade 4", Subject: "English", Price: 150})
	require.NoError(t, err)
	assert.Equal(t, int64(150), updated.Price)
	assert.Equal(t, p.FileURL, updated.FileURL)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPaperNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), ErrPaperNotFound)
}

func TestAnalytics_SuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, successRate(map[string]int64{domain.MpesaStatusPending: 3}))
	assert.Equal(t, 66.7, successRate(map[string]int64{
		domain.MpesaStatusCompleted: 2,
		domain.MpesaStatusFailed:    1,
		domain.MpesaStatusPending:   5,
	}))
	assert.Equal(t, 50.0, successRate(map[string]int64{
		domain.MpesaStatusCompleted: 1,
		domain.MpesaStatusTimeout:   1,
	}))
}

func TestAnalyticsService_Summary(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	sales := repository.NewSaleRepository(db)
	users := repository.NewUserRepository(db)
	payments := repository.NewMpesaPaymentRepository(db)
	svc := NewAnalyticsService(repository.NewAnalyticsRepository(db), sales, users, payments)

	for i := 0; i < 6; i++ {
		require.NoError(t, sales.Create(ctx, &models.Sale{CustomerEmail: "a@b.co", PaperIDs: models.PaperIDs{1, 2},
			TotalAmount: 100, PaymentMethod: domain.PaymentMethodVisa, Status: domain.SaleStatusCompleted}))
	}
	require.NoError(t, users.Create(ctx, &models.User{Username: "u", Email: "u@b.co", Role: domain.RoleCustomer}))

	got, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(600), got.TotalSales)
	assert.Equal(t, int64(12), got.TotalPapersSold)
	assert.Len(t, got.RecentSales, 5)
	assert.Equal(t, int64(1), got.RegisteredUsers)
	assert.Equal(t, 0.0, got.MpesaSuccessRate)
}
