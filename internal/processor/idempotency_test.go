package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/afrisend/comms-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRedisAdapter backs the idempotency keys with a plain map so lock
// semantics can be tested without a redis instance.
type mockRedisAdapter struct {
	data map[string][]byte
	ttls map[string]time.Time
}

func newMockRedisAdapter() *mockRedisAdapter {
	return &mockRedisAdapter{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Time),
	}
}

func (m *mockRedisAdapter) expire(key string) bool {
	if ttl, ok := m.ttls[key]; ok && time.Now().After(ttl) {
		delete(m.data, key)
		delete(m.ttls, key)
		return true
	}
	return false
}

func (m *mockRedisAdapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	return true, m.Set(key, value, ttl)
}

func (m *mockRedisAdapter) Set(key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = time.Now().Add(ttl)
	}
	return nil
}

func (m *mockRedisAdapter) Get(key string) ([]byte, error) {
	if m.expire(key) {
		return nil, redis.NilError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, redis.NilError
}

func (m *mockRedisAdapter) Del(key string) error {
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *mockRedisAdapter) Exist(key string) (int64, error) {
	if m.expire(key) {
		return 0, nil
	}
	if _, ok := m.data[key]; ok {
		return 1, nil
	}
	return 0, nil
}

// Stream and client methods are not exercised by the idempotency paths.
func (m *mockRedisAdapter) Client() goredis.UniversalClient { return nil }
func (m *mockRedisAdapter) XAdd(key string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XAddWithID(key string, id string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XReadGroup(group, consumer, key, id string, count int64) ([]redis.StreamMessage, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XAck(key, group string, ids ...string) error           { return nil }
func (m *mockRedisAdapter) XGroupCreateMkStream(key, group, start string) error   { return nil }
func (m *mockRedisAdapter) XLen(key string) (int64, error)                        { return 0, nil }
func (m *mockRedisAdapter) XTrimApprox(key string, maxLen int64) error            { return nil }
func (m *mockRedisAdapter) XPending(key, group string) (*goredis.XPending, error) { return nil, nil }
func (m *mockRedisAdapter) XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]redis.StreamMessage, error) {
	return nil, nil
}

func newIdempotencyService(maxRetries int) *IdempotencyService {
	config := DefaultIdempotencyConfig()
	if maxRetries > 0 {
		config.MaxRetries = maxRetries
	}
	return NewIdempotencyService(newMockRedisAdapter(), config)
}

func TestIdempotencyService_FirstClaim(t *testing.T) {
	service := newIdempotencyService(0)
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, pc)

	assert.Equal(t, "msg-1", pc.MessageID)
	assert.Equal(t, 0, pc.RetryCount)
	assert.False(t, pc.IsRetry)
	assert.True(t, pc.lockAcquired)
}

func TestIdempotencyService_ConcurrentClaimRejected(t *testing.T) {
	service := newIdempotencyService(0)
	ctx := context.Background()

	first, err := service.AcquireProcessingLock(ctx, "msg-2")
	require.NoError(t, err)

	second, err := service.AcquireProcessingLock(ctx, "msg-2")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
	assert.Nil(t, second)

	assert.True(t, first.lockAcquired)
}

func TestIdempotencyService_MarkSuccessSettlesMessage(t *testing.T) {
	service := newIdempotencyService(0)
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "msg-3")
	require.NoError(t, err)
	require.NoError(t, service.MarkSuccess(ctx, pc))

	processed, err := service.IsProcessed(ctx, "msg-3")
	require.NoError(t, err)
	assert.True(t, processed)

	// Redeliveries of a settled message are skipped, not re-sent.
	again, err := service.AcquireProcessingLock(ctx, "msg-3")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Nil(t, again)
}

func TestIdempotencyService_MarkFailureCountsRetry(t *testing.T) {
	service := newIdempotencyService(3)
	ctx := context.Background()

	first, err := service.AcquireProcessingLock(ctx, "msg-4")
	require.NoError(t, err)
	assert.Equal(t, 0, first.RetryCount)

	require.NoError(t, service.MarkFailure(ctx, first, errors.New("provider timeout")))

	retry, err := service.AcquireProcessingLock(ctx, "msg-4")
	require.NoError(t, err)
	assert.Equal(t, 1, retry.RetryCount)
	assert.True(t, retry.IsRetry)
}

func TestIdempotencyService_MaxRetriesExceeded(t *testing.T) {
	service := newIdempotencyService(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		pc, err := service.AcquireProcessingLock(ctx, "msg-5")
		require.NoError(t, err)
		require.NoError(t, service.MarkFailure(ctx, pc, errors.New("provider timeout")))
	}

	pc, err := service.AcquireProcessingLock(ctx, "msg-5")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Nil(t, pc)
}

func TestIdempotencyService_ReleaseLockAllowsReclaim(t *testing.T) {
	service := newIdempotencyService(0)
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "msg-6")
	require.NoError(t, err)

	require.NoError(t, service.ReleaseLock(ctx, pc))
	assert.False(t, pc.lockAcquired)

	// Releasing without failing keeps the retry count at zero.
	again, err := service.AcquireProcessingLock(ctx, "msg-6")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 0, again.RetryCount)
}

func TestIdempotencyService_GetRetryCount(t *testing.T) {
	service := newIdempotencyService(0)
	ctx := context.Background()

	count, err := service.GetRetryCount(ctx, "msg-7")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	pc, err := service.AcquireProcessingLock(ctx, "msg-7")
	require.NoError(t, err)
	require.NoError(t, service.MarkFailure(ctx, pc, errors.New("provider timeout")))

	count, err = service.GetRetryCount(ctx, "msg-7")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
