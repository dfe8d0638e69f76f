package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("message already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// IdempotencyConfig tunes the three redis keys that guard a message:
// a short lock held while a consumer works on it, a retry counter that
// survives across redeliveries, and a long-lived processed marker.
type IdempotencyConfig struct {
	LockTTL            time.Duration
	ProcessedTTL       time.Duration
	MaxRetries         int
	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "retry:",
		LockKeyPrefix:      "lock:",
		ProcessedKeyPrefix: "processed:",
	}
}

type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{redis: redisAdapter, config: config}
}

// ProcessingContext is the claim a consumer holds on one message
// between AcquireProcessingLock and MarkSuccess or MarkFailure.
type ProcessingContext struct {
	MessageID    string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

func (s *IdempotencyService) lockKey(id string) string      { return s.config.LockKeyPrefix + id }
func (s *IdempotencyService) retryKey(id string) string     { return s.config.RetryKeyPrefix + id }
func (s *IdempotencyService) processedKey(id string) string { return s.config.ProcessedKeyPrefix + id }

// AcquireProcessingLock claims the message for this consumer. It
// returns ErrAlreadyProcessed for settled messages,
// ErrMaxRetriesExceeded when the retry counter is spent, and
// ErrLockAcquireFailed when another consumer holds the lock.
func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, messageID string) (*ProcessingContext, error) {
	exists, err := s.redis.Exist(s.processedKey(messageID))
	if err != nil {
		// A duplicate send beats a stalled pipeline; keep going.
		logger.Warn("failed to check processed marker", "message_id", messageID, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, messageID)
	if err != nil {
		logger.Warn("failed to read retry counter", "message_id", messageID, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		logger.Error("max retries exceeded", "message_id", messageID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: message_id=%s, retries=%d", ErrMaxRetriesExceeded, messageID, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(s.lockKey(messageID), lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("failed to acquire lock", "message_id", messageID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "message_id", messageID, "retry_count", retryCount)

	return &ProcessingContext{
		MessageID:    messageID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

// MarkSuccess writes the processed marker and drops the lock and retry
// counter. Redeliveries of this message will be skipped for
// ProcessedTTL.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(s.processedKey(pc.MessageID), []byte("1"), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to write processed marker", "message_id", pc.MessageID, "error", err)
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	s.cleanup(pc)
	return nil
}

// MarkFailure bumps the retry counter and releases the lock so a
// redelivery can claim the message again.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	next := pc.RetryCount + 1
	if err := s.redis.Set(s.retryKey(pc.MessageID), []byte(strconv.Itoa(next)), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to increment retry counter", "message_id", pc.MessageID, "error", err)
	}

	if err := s.redis.Del(s.lockKey(pc.MessageID)); err != nil {
		logger.Warn("failed to remove lock", "message_id", pc.MessageID, "error", err)
	}

	logger.Warn("message processing failed, will retry",
		"message_id", pc.MessageID,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

// ReleaseLock gives up the claim without touching the retry counter.
// Used when processing is abandoned rather than failed.
func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	if err := s.redis.Del(s.lockKey(pc.MessageID)); err != nil {
		logger.Warn("failed to release lock", "message_id", pc.MessageID, "error", err)
		return err
	}

	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) cleanup(pc *ProcessingContext) {
	if err := s.redis.Del(s.lockKey(pc.MessageID)); err != nil {
		logger.Warn("failed to cleanup lock", "message_id", pc.MessageID, "error", err)
	}
	if err := s.redis.Del(s.retryKey(pc.MessageID)); err != nil {
		logger.Warn("failed to cleanup retry counter", "message_id", pc.MessageID, "error", err)
	}
	pc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, messageID string) (int, error) {
	raw, err := s.redis.Get(s.retryKey(messageID))
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	count, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return count, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	exists, err := s.redis.Exist(s.processedKey(messageID))
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
