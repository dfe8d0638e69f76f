package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/afrisend/comms-gateway/internal/config"
	"github.com/afrisend/comms-gateway/internal/queue"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/redis"
	"github.com/afrisend/comms-gateway/pkg/worker"
)

const (
	ProcessingTimeout = 5 * time.Second
	HealthInterval    = 30 * time.Second
	ShutdownTimeout   = time.Minute

	consumerInstances = 10
	workerQueueSize   = 10_000
	workerCount       = 100
	pendingLagAlert   = 10_000
)

// Processor handles one queue message. Returning nil acknowledges the
// message; an error leaves it for redelivery.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// ProcessorService fans queue consumers into a shared worker pool. The
// consumers block per message until a worker reports the outcome, so
// ack and nack decisions stay with the queue.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

func NewProcessorService(redis redis.RedisAdapter) (*ProcessorService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter: redis,
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(workerQueueSize, workerCount, nil),
	}, nil
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("registered processor", "type", processor.GetType())
}

func (s *ProcessorService) Start() error {
	s.worker.SetWorker(s.runJob)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	cfg := config.Get()
	for i := 0; i < consumerInstances; i++ {
		q, err := queue.NewQueue(s.adapter, queue.QueueConfig{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", cfg.QueueConsumerName, i),
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		})
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}
		if err := q.Consume(s.enqueueJob); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("processor service started", "consumers", len(s.queues), "workers", workerCount)
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("dispatch metrics",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("queue stats", "queue", i, "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkHealth()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) checkHealth() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "queue", i, "error", err)
			continue
		}
		if stats.PendingMessages > pendingLagAlert {
			logger.Warn("health check: queue lag high", "queue", i, "pending_messages", stats.PendingMessages)
		}
	}
}

// Stop drains the consumers, then the worker pool, then the reporters.
func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")

	s.cancel()

	stopped := make(chan bool, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping queue", "queue", index, "error", err)
			}
			stopped <- true
		}(i, q)
	}
	for range s.queues {
		select {
		case <-stopped:
		case <-time.After(ShutdownTimeout + 5*time.Second):
			logger.Warn("timeout waiting for queues to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("processor service stopped")
}

type dispatchJob struct {
	msg    *queue.Message
	result chan error
	ctx    context.Context
}

// enqueueJob hands the message to the worker pool and waits for the
// outcome, so the queue's ack decision reflects the real processing
// result.
func (s *ProcessorService) enqueueJob(ctx context.Context, msg *queue.Message) error {
	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	job := &dispatchJob{
		msg:    msg,
		result: make(chan error, 1),
		ctx:    jobCtx,
	}
	s.worker.Enqueue(job)

	select {
	case err := <-job.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process message: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) runJob(workerIndex int, raw interface{}) {
	job, ok := raw.(*dispatchJob)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-job.ctx.Done():
		// The consumer gave up waiting; redelivery will retry.
		return
	default:
	}

	var resultErr error
	start := time.Now()

	switch {
	case s.processor == nil:
		// Ack: there is nothing that could succeed on retry.
		s.metrics.RecordFailure()
		logger.Warn("no processor registered, dropping message", "worker", workerIndex, "id", job.msg.ID)
	default:
		if err := s.processor.Process(job.ctx, job.msg); err != nil {
			s.metrics.RecordFailure()
			logger.Error("failed to process message", "worker", workerIndex, "error", err)
			resultErr = err
		} else {
			s.metrics.RecordSuccess(time.Since(start))
		}
	}

	select {
	case job.result <- resultErr:
	case <-job.ctx.Done():
		// The consumer already timed out; nothing reads the result.
	}
}
