// Command jobpilot-server starts the JobPilot HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jobpilot/jobpilot/internal/config"
	"github.com/jobpilot/jobpilot/internal/crypto"
	"github.com/jobpilot/jobpilot/internal/gmail"
	"github.com/jobpilot/jobpilot/internal/googleauth"
	"github.com/jobpilot/jobpilot/internal/migrate"
	"github.com/jobpilot/jobpilot/internal/optimizer"
	"github.com/jobpilot/jobpilot/internal/repository/postgres"
	httpserver "github.com/jobpilot/jobpilot/internal/server/http"
	"github.com/jobpilot/jobpilot/internal/service"
	"github.com/jobpilot/jobpilot/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, wires dependencies and serves
// HTTP until SIGINT/SIGTERM.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	credRepo := postgres.NewCredentialRepo(db)
	cvRepo := postgres.NewCVRepo(db)
	appRepo := postgres.NewApplicationRepo(db)

	cipher, err := crypto.NewFromBase64(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("encryption key", zap.Error(err))
	}

	blobs, err := storage.NewDisk(cfg.StorageDir)
	if err != nil {
		logger.Fatal("storage dir", zap.Error(err))
	}
	signer := storage.NewURLSigner(cfg.SignSecret, cfg.PublicBaseURL, cfg.SignedURLTTL)

	// Services
	provider := googleauth.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.ProviderTimeout)
	tokenSvc := service.NewTokenService(credRepo, cipher, provider, logger)
	sender := gmail.NewSender(tokenSvc)
	cvSvc := service.NewCVService(cvRepo, blobs, signer, logger)
	appSvc := service.NewApplicationService(appRepo, cvRepo, signer,
		optimizer.New(cfg.OptimizerURL, cfg.OptimizerTimeout), sender, logger)

	ready := func(ctx context.Context) error {
		_, err := db.Pool.Exec(ctx, "select 1")
		return err
	}

	app := httpserver.New(tokenSvc, cvSvc, appSvc, sender, blobs, signer,
		[]byte(cfg.JWTSecret), ready, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
