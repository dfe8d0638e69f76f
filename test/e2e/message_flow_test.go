package e2e

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gateway "github.com/afrisend/comms-gateway/internal/gateways"
	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/internal/pricing"
	"github.com/afrisend/comms-gateway/internal/processor"
	"github.com/afrisend/comms-gateway/internal/queue"
	"github.com/afrisend/comms-gateway/internal/repository"
	"github.com/afrisend/comms-gateway/internal/routing"
	"github.com/afrisend/comms-gateway/internal/services"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"github.com/afrisend/comms-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrisend/comms-gateway/test/fixtures"
	"github.com/afrisend/comms-gateway/test/helpers"
)

// fakeProviderClient stands in for the upstream carrier fleet. Each send
// answers with whatever the test configured.
type fakeProviderClient struct {
	respond func(preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error)
}

func (f *fakeProviderClient) Send(ctx context.Context, preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error) {
	return f.respond(preferred, req)
}

type routerFeedback struct {
	router *routing.Router
}

func (f routerFeedback) RecordOutcome(ctx context.Context, provider string, success bool, latencyMs int64) {
	_ = f.router.RecordOutcome(ctx, provider, success, latencyMs)
}

type TestEnvironment struct {
	DB           *pg.DB
	Redis        *miniredis.Miniredis
	RedisAdapter redis.RedisAdapter
	Queue        *queue.Queue

	AccountRepo  *repository.AccountRepository
	MessageRepo  *repository.MessageRepository
	ProviderRepo *repository.ProviderRepository
	ReportRepo   *repository.DeliveryReportRepository

	Dispatch *services.DispatchService
	OTP      *services.OTPService
	Delivery *services.DeliveryService

	Carrier *fakeProviderClient
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, redisAdapter := helpers.SetupTestRedis(t)

	queueConfig := queue.QueueConfig{
		Name:              "test:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := queue.NewQueue(redisAdapter, queueConfig)
	require.NoError(t, err)

	accountRepo := repository.NewAccountRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	senderRepo := repository.NewSenderRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	rateRepo := repository.NewRateRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	reportRepo := repository.NewDeliveryReportRepository(db)

	router := routing.NewRouter(providerRepo, routing.DefaultUnhealthyThreshold)
	resolver := pricing.NewResolver(rateRepo)

	dispatch := services.NewDispatchService(messageRepo, accountRepo, transactionRepo, senderRepo, router, resolver, q)
	otp := services.NewOTPService(otpRepo, dispatch)
	delivery := services.NewDeliveryService(messageRepo, reportRepo)

	return &TestEnvironment{
		DB:           db,
		Redis:        mr,
		RedisAdapter: redisAdapter,
		Queue:        q,
		AccountRepo:  accountRepo,
		MessageRepo:  messageRepo,
		ProviderRepo: providerRepo,
		ReportRepo:   reportRepo,
		Dispatch:     dispatch,
		OTP:          otp,
		Delivery:     delivery,
	}
}

func (env *TestEnvironment) Cleanup() {
	// Stop queue first (gracefully drain messages)
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	time.Sleep(100 * time.Millisecond)
	if env.Redis != nil {
		env.Redis.Close()
	}
}

// StartProcessor wires the queue into a message processor backed by the
// fake carrier, the same shape the processor binary runs with.
func (env *TestEnvironment) StartProcessor(t *testing.T, respond func(preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error)) {
	env.Carrier = &fakeProviderClient{respond: respond}

	feedback := routerFeedback{router: routing.NewRouter(env.ProviderRepo, routing.DefaultUnhealthyThreshold)}
	idempotency := processor.NewIdempotencyService(env.RedisAdapter, processor.DefaultIdempotencyConfig())
	proc := processor.NewMessageProcessor(env.Carrier, env.MessageRepo, env.ReportRepo, feedback, idempotency)

	require.NoError(t, env.Queue.Consume(proc.Process))
}

// seedSendReady provisions everything one account needs to send: funds,
// an approved sender identity, a routable provider and a price.
func seedSendReady(t *testing.T, env *TestEnvironment, account model.Account) *model.Account {
	account.APIKey = helpers.RandomAPIKey()
	created := helpers.CreateTestAccount(t, env.DB, account)
	helpers.CreateTestSender(t, env.DB, fixtures.NewTestSender(created.ID, "AcmeShop"))
	helpers.CreateTestProvider(t, env.DB, fixtures.TestProviderAtlas)
	helpers.CreateTestRate(t, env.DB, fixtures.NewTestRate("GH", "mtn-gh", model.ServiceTypeSMS, model.MessageTypeSingle, 0.05))
	helpers.CreateTestRate(t, env.DB, fixtures.NewTestRate("GH", "mtn-gh", model.ServiceTypeOTP, model.MessageTypeOTP, 0.03))
	return created
}

func TestE2E_SendAndEnqueue(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountFunded)

	msg, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("+233244123456", "E2E test message"))
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, model.MessageStatusQueued, msg.Status)
	assert.Equal(t, "atlas", msg.Provider)
	assert.Equal(t, "AcmeShop", msg.Sender)
	assert.Equal(t, 1, msg.Units)
	assert.InDelta(t, 0.05, msg.TotalCost, 1e-9)

	balance, err := env.AccountRepo.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.InDelta(t, 999.95, balance.Wallet, 1e-9)

	var txn repository.TransactionEntity
	err = env.DB.Read(ctx).Where("account_id = ? AND type = ?", account.ID, "debit").First(&txn).Error
	require.NoError(t, err)
	assert.InDelta(t, 0.05, txn.Amount, 1e-9)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
}

func TestE2E_InsufficientBalance(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountZeroBalance)

	msg, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("+233244123456", "Test message"))
	require.Error(t, err)
	assert.Nil(t, msg)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "insufficient balance")

	var count int64
	env.DB.Read(ctx).Model(&repository.MessageEntity{}).Where("account_id = ?", account.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestE2E_RejectedSendLeavesBalanceIntact(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountSecondary)

	_, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("not-a-number", "Test message"))
	require.Error(t, err)

	balance, err := env.AccountRepo.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.InDelta(t, fixtures.TestAccountSecondary.Balance, balance.Wallet, 1e-9)

	var count int64
	env.DB.Read(ctx).Model(&repository.MessageEntity{}).Where("account_id = ?", account.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestE2E_QueueConsumption(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountFunded)

	msg, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("+233244123456", "Consumer test message"))
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, qMsg *queue.Message) error {
		var data map[string]interface{}
		err := json.Unmarshal(qMsg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, float64(msg.ID), data["id"])
		assert.Equal(t, "+233244123456", data["recipient"])
		received <- true
		return nil
	}

	err = env.Queue.Consume(handler)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("message not consumed within timeout")
	}
}

func TestE2E_ProcessorMarksSent(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountFunded)

	env.StartProcessor(t, func(preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error) {
		return &gateway.SendResponse{
			MessageID:    req.MessageID,
			Status:       gateway.StatusSent,
			Provider:     preferred,
			ProviderCode: "ACCEPTD",
			ProcessedAt:  time.Now(),
		}, nil
	})

	msg, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("+233244123456", "Processor test message"))
	require.NoError(t, err)

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		current, err := env.MessageRepo.GetByID(ctx, msg.ID)
		return err == nil && current.Status == model.MessageStatusSent
	}, "message never reached sent status")

	reports, err := env.ReportRepo.ListByMessageID(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "sent", reports[0].Status)
	assert.Equal(t, "ACCEPTD", reports[0].ProviderCode)

	// The routing stats absorbed the outcome.
	provider, err := env.ProviderRepo.GetByName(ctx, "atlas")
	require.NoError(t, err)
	assert.Equal(t, int64(1), provider.SuccessCount)
	assert.Equal(t, 0, provider.ErrorStreak)
}

func TestE2E_ProcessorSettlesRejection(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountFunded)

	env.StartProcessor(t, func(preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error) {
		return &gateway.SendResponse{
			MessageID:    req.MessageID,
			Status:       gateway.StatusFailed,
			Provider:     preferred,
			ProviderCode: "UNDELIV",
			ErrorMsg:     "invalid destination",
		}, nil
	})

	msg, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("+233244123456", "Rejection test"))
	require.NoError(t, err)

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		current, err := env.MessageRepo.GetByID(ctx, msg.ID)
		return err == nil && current.Status == model.MessageStatusFailed
	}, "message never settled as failed")

	current, err := env.MessageRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "invalid destination", current.FailureReason)

	provider, err := env.ProviderRepo.GetByName(ctx, "atlas")
	require.NoError(t, err)
	assert.Equal(t, int64(1), provider.FailureCount)
}

func TestE2E_DeliveryCallback(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountFunded)

	env.StartProcessor(t, func(preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error) {
		return &gateway.SendResponse{MessageID: req.MessageID, Status: gateway.StatusSent, Provider: preferred}, nil
	})

	msg, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("+233244123456", "Callback test"))
	require.NoError(t, err)

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		current, err := env.MessageRepo.GetByID(ctx, msg.ID)
		return err == nil && current.Status == model.MessageStatusSent
	}, "message never reached sent status")

	err = env.Delivery.Apply(ctx, msg.ID, "delivered", "DELIVRD", "")
	require.NoError(t, err)

	current, err := env.MessageRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, current.Status)

	reports, err := env.ReportRepo.ListByMessageID(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// A second delivered callback is out of order against the state machine.
	err = env.Delivery.Apply(ctx, msg.ID, "delivered", "DELIVRD", "")
	var conflict *model.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "delivered", conflict.Current)
}

func TestE2E_ListMessages(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountFunded)

	for i := 0; i < 5; i++ {
		_, err := env.Dispatch.SendSingle(ctx, account.ID, fixtures.NewTestSendRequest("+233244123456", "Listed message"))
		require.NoError(t, err)
	}

	messages, total, err := env.Dispatch.List(ctx, fixtures.MessageFilterByAccount(account.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, messages, 5)
}

func TestE2E_OTPRequestAndCooldown(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	account := seedSendReady(t, env, fixtures.TestAccountFunded)

	record, err := env.OTP.Request(ctx, account.ID, fixtures.NewTestOTPRequest("+233244123456"))
	require.NoError(t, err)
	assert.Equal(t, model.OTPStatusPending, record.Status)
	assert.NotEmpty(t, record.CodeHash)

	// The OTP rode the normal dispatch pipeline and was priced off the
	// OTP rate table.
	var otpMsg repository.MessageEntity
	err = env.DB.Read(ctx).Where("account_id = ? AND type = ?", account.ID, string(model.MessageTypeOTP)).First(&otpMsg).Error
	require.NoError(t, err)
	assert.InDelta(t, 0.03, otpMsg.TotalCost, 1e-9)

	// Asking again inside the cooldown window is throttled.
	_, err = env.OTP.Request(ctx, account.ID, fixtures.NewTestOTPRequest("+233244123456"))
	var rl *model.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))
}
