package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/afrisend/comms-gateway/internal/config"
	"github.com/afrisend/comms-gateway/internal/handlers"
	"github.com/afrisend/comms-gateway/internal/pricing"
	"github.com/afrisend/comms-gateway/internal/queue"
	"github.com/afrisend/comms-gateway/internal/repository"
	"github.com/afrisend/comms-gateway/internal/routing"
	"github.com/afrisend/comms-gateway/internal/services"
	xhttp "github.com/afrisend/comms-gateway/pkg/http"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"github.com/afrisend/comms-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.Name = config.Get().AppName
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	if config.Get().RateLimitEnable {
		limiter := redis.NewRateLimiter(redisAdap, "", config.Get().RateLimitWindow, config.Get().RateLimitMax)
		s.Use(xhttp.RateLimitMiddleware(limiter))
	}

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	senderRepo := repository.NewSenderRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	rateRepo := repository.NewRateRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	reportRepo := repository.NewDeliveryReportRepository(db)

	router := routing.NewRouter(providerRepo, routing.DefaultUnhealthyThreshold)
	resolver := pricing.NewResolver(rateRepo)

	// services
	dispatchService := services.NewDispatchService(messageRepo, accountRepo, transactionRepo, senderRepo, router, resolver, q).
		WithOTPSender(config.Get().OTPBrandSender)
	otpService := services.NewOTPService(otpRepo, dispatchService).
		WithCooldown(config.Get().OTPCooldown)
	deliveryService := services.NewDeliveryService(messageRepo, reportRepo)
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	messageHandler := handlers.NewMessageHandler(dispatchService)
	otpHandler := handlers.NewOTPHandler(otpService)
	webhookHandler := handlers.NewWebhookHandler(deliveryService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterMessageRoutes(g, messageHandler)
	handlers.RegisterOTPRoutes(g, otpHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
