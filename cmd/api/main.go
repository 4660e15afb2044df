package main

import (
	"os"
	"time"

	"go.uber.org/zap"

	"newsletter/internal/api"
	"newsletter/internal/config"
	"newsletter/internal/db"
	"newsletter/internal/mailer"
	"newsletter/internal/mq"
	redisclient "newsletter/internal/redis"
	"newsletter/internal/repository"
	"newsletter/internal/service"
	"newsletter/internal/util"
)

func main() {
	logger := util.NewLogger()
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Init RabbitMQ Producer
	producer, err := mq.NewProducer(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("RabbitMQ initialization failed", zap.Error(err))
	}
	defer producer.Close()

	// Init Repositories
	subscriberRepo := repository.NewSubscriberRepository(dbConn)
	tokenRepo := repository.NewTokenRepository(dbConn)

	// Init Email Client
	emailClient := mailer.NewClient(cfg.Email, logger)

	// Init Services
	guard := util.NewResendGuard(rdb, 10*time.Minute, logger)
	subscriptionService := service.NewSubscriptionService(
		dbConn, subscriberRepo, tokenRepo, emailClient, guard, producer, cfg.Server.BaseURL, logger,
	)
	confirmationService := service.NewConfirmationService(
		dbConn, tokenRepo, subscriberRepo, producer, logger,
	)

	// Init Handlers + Router
	subscriptionHandler := api.NewSubscriptionHandler(subscriptionService, confirmationService, logger)
	router := api.NewRouter(subscriptionHandler)

	if err := router.Run(cfg.Server.Port); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}
}
