package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/brightsend/crm/internal/api"
	"github.com/brightsend/crm/internal/config"
	"github.com/brightsend/crm/internal/pkg/distlock"
	"github.com/brightsend/crm/internal/pkg/logger"
	"github.com/brightsend/crm/internal/repository/postgres"
	"github.com/brightsend/crm/internal/service/campaign"
	"github.com/brightsend/crm/internal/service/client"
	"github.com/brightsend/crm/internal/service/sending"
	"github.com/brightsend/crm/internal/service/tracking"
	"github.com/brightsend/crm/internal/templates"
	"github.com/brightsend/crm/internal/transport/smtp"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	if cfg.Database.URL == "" {
		logger.Error("database url is required (config database.url or DATABASE_URL)")
		os.Exit(1)
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		logger.Error("ping database", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// Redis is optional: without it, send locks fall back to Postgres
	// advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, using postgres advisory locks", "err", err)
			redisClient = nil
		} else {
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	campaignRepo := postgres.NewCampaignRepo(db)
	clientRepo := postgres.NewClientRepo(db)
	clientDir := postgres.NewClientDirectory(clientRepo)
	subRepo := postgres.NewSubscriptionRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	eventRepo := postgres.NewEventRepo(db)

	campaignSvc := campaign.NewService(campaignRepo, jobRepo, clientDir, subRepo)
	clientSvc := client.NewService(clientRepo, subRepo)
	trackingSvc := tracking.NewService(jobRepo, subRepo, eventRepo)

	rewriter := tracking.NewRewriter(cfg.Tracking.BaseURL)
	engine := templates.NewEngine()
	transport := smtp.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	lockFactory := distlock.NewFactory(redisClient, db, cfg.Sending.LockTTL())

	executor := sending.NewExecutor(
		campaignRepo, jobRepo, subRepo, clientDir,
		transport, rewriter, engine,
		cfg.Sending.BatchSize, lockFactory,
	)

	handlers := api.NewHandlers(campaignSvc, clientSvc, trackingSvc, executor, eventRepo)
	router := api.SetupRoutes(handlers, cfg.CORS.AllowedOrigins)
	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, router,
		cfg.Server.ReadTimeout(), cfg.Server.WriteTimeout())

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("server stopped")
}
