package processor

import (
	"context"
	"sync"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/logger"
)

const SweepBatchSize = 200

// StaleQueuedAfter is how long a QUEUED row may sit unchanged before
// the sweeper assumes its post-commit publish failed and re-publishes
// it. Long enough that a healthy consumer group drains first.
const StaleQueuedAfter = 5 * time.Minute

type ScheduledMessageRepository interface {
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Message, error)
	ListStaleQueued(ctx context.Context, cutoff time.Time, limit int) ([]*model.Message, error)
	TouchQueued(ctx context.Context, id int64, cutoff time.Time) error
	UpdateStatus(ctx context.Context, id int64, to model.MessageStatus, failureReason string) error
}

type OTPExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type QueuePublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// Sweeper runs the time-driven transitions no request triggers: due
// scheduled messages get promoted to the queue, queued rows stranded by
// a failed publish get re-published, and pending OTP codes past their
// expiry get closed out. Every sweep is a conditional update at the
// store, so several instances can run it concurrently.
type Sweeper struct {
	messages ScheduledMessageRepository
	otps     OTPExpirer
	queue    QueuePublisher
	interval time.Duration
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSweeper(messages ScheduledMessageRepository, otps OTPExpirer, queue QueuePublisher, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Sweeper{
		messages: messages,
		otps:     otps,
		queue:    queue,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("Sweeper started", "interval", s.interval)
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	logger.Info("Sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			s.Sweep(ctx)
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one pass of every sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.promoteScheduled(ctx)
	s.republishStale(ctx)
	s.expireOTPs(ctx)
}

func (s *Sweeper) promoteScheduled(ctx context.Context) {
	now := s.now()
	due, err := s.messages.ListDueScheduled(ctx, now, SweepBatchSize)
	if err != nil {
		logger.Error("Failed to list due scheduled messages", "error", err)
		return
	}

	for _, msg := range due {
		// The conditional update is the claim: if another instance got
		// here first the transition fails and we skip the publish.
		if err := s.messages.UpdateStatus(ctx, msg.ID, model.MessageStatusQueued, ""); err != nil {
			logger.Debug("Scheduled message already claimed", "message_id", msg.ID, "error", err)
			continue
		}
		msg.Status = model.MessageStatusQueued

		if _, err := s.queue.PublishJSON(ctx, msg, nil); err != nil {
			// Row stays queued; the stale-queued sweep re-publishes it
			// once StaleQueuedAfter has passed.
			logger.Error("Failed to queue scheduled message", "message_id", msg.ID, "error", err)
			continue
		}

		logger.Info("Scheduled message promoted", "message_id", msg.ID, "scheduled_at", msg.ScheduledAt)
	}
}

// republishStale re-publishes QUEUED rows that have sat unchanged past
// the stale window. A charged, committed row strands here when its
// post-commit publish failed. The touch is the claim; a duplicate for a
// row whose first publish did land is dropped by the processed marker
// on the consumer side.
func (s *Sweeper) republishStale(ctx context.Context) {
	cutoff := s.now().Add(-StaleQueuedAfter)
	stale, err := s.messages.ListStaleQueued(ctx, cutoff, SweepBatchSize)
	if err != nil {
		logger.Error("Failed to list stale queued messages", "error", err)
		return
	}

	for _, msg := range stale {
		if err := s.messages.TouchQueued(ctx, msg.ID, cutoff); err != nil {
			logger.Debug("Stale queued message already claimed", "message_id", msg.ID, "error", err)
			continue
		}

		if _, err := s.queue.PublishJSON(ctx, msg, nil); err != nil {
			// Touch already moved it out of the stale window; the retry
			// happens one threshold later.
			logger.Error("Failed to re-publish stale queued message", "message_id", msg.ID, "error", err)
			continue
		}

		logger.Info("Stale queued message re-published", "message_id", msg.ID)
	}
}

func (s *Sweeper) expireOTPs(ctx context.Context) {
	expired, err := s.otps.ExpireOverdue(ctx, s.now())
	if err != nil {
		logger.Error("Failed to expire overdue verification codes", "error", err)
		return
	}
	if expired > 0 {
		logger.Info("Expired overdue verification codes", "count", expired)
	}
}
