package router

import (
	"net/http"
	"time"

	"pastpapers/config"
	"pastpapers/internal/cache"
	"pastpapers/internal/checkout"
	"pastpapers/internal/handler"
	"pastpapers/internal/logger"
	"pastpapers/internal/middleware"
	"pastpapers/internal/repository"
	"pastpapers/internal/service"
	"pastpapers/internal/ws"
	"pastpapers/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the external collaborators built by main.
type Deps struct {
	Gateway checkout.Gateway
	Cache   *cache.Cache
	Files   service.FileStore
	FCM     *service.FCMService
	Log     *zap.Logger

	// Scheduler drives the payment poller; nil means checkout.SystemScheduler.
	Scheduler checkout.Scheduler
}

// Server is the wired HTTP engine plus the background work main must stop.
type Server struct {
	Engine *gin.Engine
	Poller *checkout.Poller
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	sched := deps.Scheduler
	if sched == nil {
		sched = checkout.SystemScheduler
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	paymentRepo := repository.NewMpesaPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	hub := ws.NewHub()

	// Services
	auditSvc := service.NewAuditService(auditRepo, log)
	authSvc := service.NewAuthService(&cfg.JWT, userRepo)
	emailSvc := service.NewEmailService(cfg.SMTP)
	if !emailSvc.Enabled() {
		log.Info("email receipts disabled: set SMTP_HOST and SMTP_FROM to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, paperRepo, emailSvc, pusher(deps.FCM), log)
	paperSvc := service.NewPaperService(paperRepo, deps.Cache, deps.Files, log)

	initiator := checkout.NewInitiator(deps.Gateway, paymentRepo, checkout.InitiatorConfig{
		CallbackURL:      cfg.Mpesa.CallbackURL,
		AccountReference: cfg.Mpesa.AccountReference,
		TransactionDesc:  cfg.Mpesa.TransactionDesc,
	}, log)
	checker := checkout.NewStatusChecker(deps.Gateway, paymentRepo, log)
	recorder := checkout.NewSaleRecorder(saleRepo, notifSvc, log)
	poller := checkout.NewPoller(checker, recorder, sched, checkout.PollerConfig{
		Interval:    cfg.Mpesa.PollInterval,
		MaxAttempts: cfg.Mpesa.PollMaxAttempts,
	}, log)
	poller.Subscribe(hub.PublishOutcome)

	paymentSvc := service.NewPaymentService(paymentRepo, checker, poller, auditSvc, log)
	paymentSvc.Subscribe(hub.PublishOutcome)
	saleSvc := service.NewSaleService(recorder, saleRepo, paymentRepo, auditSvc)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, saleRepo, userRepo, paymentRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, auditSvc)
	meHandler := handler.NewMeHandler(authSvc, saleSvc, userRepo)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	paperHandler := handler.NewPaperHandler(paperSvc, auditSvc, cfg.Upload.MaxBytes)
	saleHandler := handler.NewSaleHandler(saleSvc)
	mpesaHandler := handler.NewMpesaHandler(initiator, checker, poller, paymentSvc, auditSvc)
	mpesaWebhookHandler := handler.NewMpesaWebhookHandler(paymentSvc)
	cardHandler := handler.NewCardHandler(payment.NewStubProvider())
	adminHandler := handler.NewAdminHandler(analyticsSvc)

	authMw := middleware.AuthRequired(&cfg.JWT)
	optionalAuth := middleware.OptionalAuth(&cfg.JWT)
	adminMw := middleware.AdminRequired()
	paymentLimit := middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.PaymentsPerMinute))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.Static("/uploads", cfg.Upload.Dir)
	r.GET("/ws/payments/:checkoutRequestId", ws.UpgradePaymentWS(hub, paymentSvc, log))

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		user := api.Group("/user")
		user.Use(authMw)
		{
			user.GET("", meHandler.Me)
			user.GET("/purchases", meHandler.Purchases)
			user.POST("/fcm-token", meHandler.UpdateFCMToken)
			user.GET("/notifications", notificationHandler.List)
			user.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		}

		papers := api.Group("/past-papers")
		{
			papers.GET("", paperHandler.List)
			papers.GET("/:id", paperHandler.Get)
			papers.POST("", authMw, adminMw, paperHandler.Create)
			papers.PUT("/:id", authMw, adminMw, paperHandler.Update)
			papers.DELETE("/:id", authMw, adminMw, paperHandler.Delete)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/mpesa", paymentLimit, optionalAuth, mpesaHandler.Initiate)
			payments.POST("/mpesa/query", mpesaHandler.Query)
			payments.POST("/mpesa/callback", mpesaWebhookHandler.Callback)
			payments.GET("/mpesa/:checkoutRequestId", mpesaHandler.Status)
			payments.DELETE("/mpesa/:checkoutRequestId", optionalAuth, mpesaHandler.Cancel)
			payments.POST("/visa", paymentLimit, cardHandler.Pay)
		}

		api.POST("/sales", optionalAuth, saleHandler.Create)
		api.GET("/sales", authMw, adminMw, saleHandler.List)

		api.POST("/admin/login", authHandler.AdminLogin)
		api.GET("/analytics", authMw, adminMw, adminHandler.Analytics)
	}

	return &Server{Engine: r, Poller: poller}
}

// pusher keeps a disabled FCM service out of the interface so push stays off.
func pusher(fcm *service.FCMService) service.Pusher {
	if fcm == nil {
		return nil
	}
	return fcm
}
