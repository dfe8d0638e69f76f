package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/afrisend/comms-gateway/internal/config"
	gateway "github.com/afrisend/comms-gateway/internal/gateways"
	"github.com/afrisend/comms-gateway/internal/processor"
	"github.com/afrisend/comms-gateway/internal/queue"
	"github.com/afrisend/comms-gateway/internal/repository"
	"github.com/afrisend/comms-gateway/internal/routing"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"github.com/afrisend/comms-gateway/pkg/prom"
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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)
	cfg := &gateway.Config{
		Providers: []gateway.ProviderConfig{
			{Name: config.Get().ProviderPrimaryName, URL: config.Get().ProviderPrimaryUrl, Weight: 100},
			{Name: config.Get().ProviderSecondaryName, URL: config.Get().ProviderSecondaryUrl, Weight: 80},
			{Name: config.Get().ProviderBackupName, URL: config.Get().ProviderBackupUrl, Weight: 60},
		},
		Timeout:                 time.Second * 5,
		MaxRetries:              3,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		ReadBufferSize:          1024 * 4,
		WriteBufferSize:         1024 * 4,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
	client, err := gateway.NewClient(cfg)
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	deliveryReportRepo := repository.NewDeliveryReportRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	otpRepo := repository.NewOTPRepository(db)

	// Send outcomes feed the same provider rows the API routes on.
	feedback := routerFeedback{router: routing.NewRouter(providerRepo, routing.DefaultUnhealthyThreshold)}

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	service, err := processor.NewProcessorService(redisAdap)
	if err != nil {
		logger.Error("failed to run the processor", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewMessageProcessor(client, messageRepo, deliveryReportRepo, feedback, idempotencyService))

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

	sweeper := processor.NewSweeper(messageRepo, otpRepo, q, config.Get().SweepInterval)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	sweeper.Start()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start processor", "error", err)
		}
	}()

	select {
	case <-c:
		sweeper.Stop()
		service.Stop()
	}
}

// routerFeedback bridges routing outcome recording into the processor.
// A failed stats write is logged and dropped; it must never fail a send.
type routerFeedback struct {
	router *routing.Router
}

func (f routerFeedback) RecordOutcome(ctx context.Context, provider string, success bool, latencyMs int64) {
	if err := f.router.RecordOutcome(ctx, provider, success, latencyMs); err != nil {
		logger.Error("failed to record provider outcome", "provider", provider, "error", err)
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
