package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/avdev42/bankcards/internal/auth"
	"github.com/avdev42/bankcards/internal/config"
	"github.com/avdev42/bankcards/internal/handler"
	"github.com/avdev42/bankcards/internal/integrations/cbr"
	"github.com/avdev42/bankcards/internal/jobs"
	"github.com/avdev42/bankcards/internal/repository"
	"github.com/avdev42/bankcards/internal/service"
	"github.com/avdev42/bankcards/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	tokens := auth.NewManager(cfg.JWTSecret, 24*time.Hour)

	var notifier service.Notifier
	if cfg.SMTPEnabled() {
		notifier = email.NewSender(cfg, logger)
	}

	owners := service.NewOwnerService(repo, logger, tokens, cfg.AdminPromoteCode, notifier)
	cards := service.NewCardService(repo, logger, cfg.CardBin, cfg.CardCurrency, cfg.EncryptionKey, notifier)
	rates := cbr.NewClient(cfg.CBRURL, logger)
	h := handler.NewHandler(owners, cards, rates, logger)

	// Card expiry sweep
	sweeper := jobs.NewExpirySweeper(repo, logger)
	scheduler := cron.New()
	if _, err := scheduler.AddJob(cfg.ExpiryCron, sweeper); err != nil {
		logger.Fatalf("Failed to schedule expiry sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	sweeper.Run() // catch up on startup

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Routes(tokens),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
