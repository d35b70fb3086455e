package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"crmsync/internal/config"
	"crmsync/internal/mqhandler"
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

	logger.Info("Starting mail sync worker...")

	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Publisher init failed", zap.Error(err))
	}
	defer publisher.Close()

	if err := publisher.SetupDLQ(mqhandler.RoutingKeySyncRequested); err != nil {
		logger.Fatal("DLQ setup failed", zap.Error(err))
	}

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

	syncHandler := mqhandler.NewSyncRequestHandler(
		orchestrator, coordinator, channelSyncer,
		retryCounter, publisher, logger,
	)

	logger.Info("Init consumer: email.sync.requested.q")
	consumer, err := mq.NewConsumer(
		cfg.MQ.URL,
		"email.sync.requested.q",
		mqhandler.RoutingKeySyncRequested,
		logger,
	)
	if err != nil {
		logger.Fatal("Consumer init failed", zap.Error(err))
	}
	consumer.SetHandler(syncHandler.Handle)
	defer consumer.Close()

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			logger.Fatal("Consumer crashed", zap.Error(err))
		}
	}()

	scheduleInterval := time.Duration(cfg.Sync.ScheduleIntervalSec) * time.Second
	scheduler := sync.NewScheduler(coordinator, scheduleInterval, logger)
	go scheduler.Run(context.Background())

	logger.Info("Worker running")
	select {}
}
