package main

import (
	"log"
	"time"

	"go.uber.org/zap"

	"crmsync/internal/config"
	"crmsync/internal/handler"
	"crmsync/internal/httpserver"
	"crmsync/internal/repository"
	"crmsync/internal/service/sync"
	"crmsync/pkg/circuitbreaker"
	"crmsync/pkg/db"
	"crmsync/pkg/logger"
	"crmsync/pkg/mq"
	"crmsync/pkg/redis"
	"crmsync/pkg/secrets"
	"crmsync/pkg/util"
)

func main() {
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	sealer, err := secrets.NewSealer(cfg.Secrets.CredentialKey)
	if err != nil {
		logger.Fatal("Credential key invalid", zap.Error(err))
	}

	accountRepo := repository.NewAccountRepository(dbConn)
	messageRepo := repository.NewMessageRepository(dbConn)
	channelRepo := repository.NewChannelRepository(dbConn)

	connectTimeout := time.Duration(cfg.Sync.ConnectTimeoutSec) * time.Second
	opTimeout := time.Duration(cfg.Sync.OpTimeoutSec) * time.Second

	dialer := &sync.IMAPDialer{
		Logger:   logger,
		Breakers: circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()),
	}
	normalizer := sync.NewNormalizer(messageRepo)
	orchestrator := sync.NewOrchestrator(
		accountRepo, messageRepo, normalizer,
		dialer, sealer, publisher,
		logger, connectTimeout, opTimeout,
	)

	lease := util.NewSyncLease(rdb, time.Duration(cfg.Sync.LeaseTTLSec)*time.Second, logger)
	coordinator := sync.NewCoordinator(accountRepo, orchestrator, lease, logger, cfg.Sync.MaxConcurrent)
	channelSyncer := sync.NewChannelSyncer(channelRepo, normalizer, dialer, logger, connectTimeout, opTimeout)

	syncHandler := handler.NewSyncHandler(orchestrator, coordinator, channelSyncer, dialer, logger)

	router := httpserver.NewRouter(syncHandler, cfg.JWT.Secret, dbConn, publisher)

	logger.Info("Starting mail sync service", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
