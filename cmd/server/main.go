package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pastpapers/config"
	"pastpapers/internal/cache"
	"pastpapers/internal/database"
	"pastpapers/internal/logger"
	"pastpapers/internal/router"
	"pastpapers/internal/service"
	"pastpapers/pkg/cloudinary"
	"pastpapers/pkg/mpesa"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.Initialize(cfg.Server.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}
	if err := database.SeedAdmin(db, &cfg.Admin, zl); err != nil {
		zl.Error("seed admin", zap.Error(err))
	}
	if err := database.SeedPapers(db, zl); err != nil {
		zl.Error("seed papers", zap.Error(err))
	}

	ctx := context.Background()

	var catalogCache *cache.Cache
	if cfg.Redis.URL != "" {
		catalogCache, err = cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.CatalogTTL, zl)
		if err != nil {
			zl.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		}
	}
	defer func() { _ = catalogCache.Close() }()

	files, err := fileStore(cfg)
	if err != nil {
		zl.Fatal("file store", zap.Error(err))
	}

	fcm := service.NewFCMService(ctx, cfg.Firebase.ServiceAccountPath, zl)
	if fcm == nil {
		zl.Info("push notifications disabled")
	}

	gateway := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.BusinessShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		Timeout:        cfg.Mpesa.HTTPTimeout,
	}, zl)

	app := router.Setup(cfg, db, router.Deps{
		Gateway: gateway,
		Cache:   catalogCache,
		Files:   files,
		FCM:     fcm,
		Log:     zl,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		zl.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("mpesa_environment", cfg.Mpesa.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
	app.Poller.Shutdown()
	zl.Info("server stopped")
}

// fileStore picks Cloudinary when it is configured and local disk otherwise.
func fileStore(cfg *config.Config) (service.FileStore, error) {
	if cfg.Cloudinary.Enabled() {
		client, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			return nil, err
		}
		return service.NewCloudinaryStore(client, cfg.Cloudinary.Folder), nil
	}
	return service.NewLocalStore(cfg.Upload.Dir, "/uploads")
}
