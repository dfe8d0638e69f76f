package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gateway "github.com/afrisend/comms-gateway/internal/gateways"
	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/internal/queue"
)

type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) Send(ctx context.Context, preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error) {
	args := m.Called(ctx, preferred, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendResponse), args.Error(1)
}

type MockMessageStatusRepository struct {
	mock.Mock
}

func (m *MockMessageStatusRepository) UpdateStatus(ctx context.Context, id int64, to model.MessageStatus, failureReason string) error {
	args := m.Called(ctx, id, to, failureReason)
	return args.Error(0)
}

type MockDeliveryReportRepository struct {
	mock.Mock
}

func (m *MockDeliveryReportRepository) Create(ctx context.Context, dr *model.DeliveryReport) (*model.DeliveryReport, error) {
	args := m.Called(ctx, dr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryReport), args.Error(1)
}

type MockProviderFeedback struct {
	mock.Mock
}

func (m *MockProviderFeedback) RecordOutcome(ctx context.Context, provider string, success bool, latencyMs int64) {
	m.Called(ctx, provider, success, latencyMs)
}

func newTestProcessor() (*MessageProcessor, *MockProviderClient, *MockMessageStatusRepository, *MockDeliveryReportRepository, *MockProviderFeedback) {
	client := new(MockProviderClient)
	messages := new(MockMessageStatusRepository)
	reports := new(MockDeliveryReportRepository)
	feedback := new(MockProviderFeedback)
	idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	p := NewMessageProcessor(client, messages, reports, feedback, idem)
	return p, client, messages, reports, feedback
}

func queuedMessage(t *testing.T, msg model.Message) *queue.Message {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data, Timestamp: time.Now()}
}

func TestMessageProcessor_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("sent response moves message forward", func(t *testing.T) {
		p, client, messages, reports, feedback := newTestProcessor()

		msg := model.Message{ID: 42, Recipient: "+233244123456", Sender: "AcmeShop", Content: "hello", Provider: "atlas", Type: model.MessageTypeSingle, CreatedAt: time.Now()}

		client.On("Send", mock.Anything, "atlas", mock.MatchedBy(func(r *gateway.SendRequest) bool {
			return r.MessageID == "42" && r.Recipient == "+233244123456" && r.Sender == "AcmeShop"
		})).Return(&gateway.SendResponse{MessageID: "42", Status: gateway.StatusSent, Provider: "atlas", ProviderCode: "ACCEPTD"}, nil)
		feedback.On("RecordOutcome", mock.Anything, "atlas", true, mock.Anything).Return()
		messages.On("UpdateStatus", mock.Anything, int64(42), model.MessageStatusSent, "").Return(nil)
		reports.On("Create", mock.Anything, mock.MatchedBy(func(dr *model.DeliveryReport) bool {
			return dr.MessageID == 42 && dr.Status == "sent" && dr.ProviderCode == "ACCEPTD"
		})).Return(&model.DeliveryReport{ID: 1}, nil)

		err := p.Process(ctx, queuedMessage(t, msg))
		require.NoError(t, err)

		client.AssertExpectations(t)
		messages.AssertExpectations(t)
		reports.AssertExpectations(t)
		feedback.AssertExpectations(t)
	})

	t.Run("synchronous delivery confirmation", func(t *testing.T) {
		p, client, messages, reports, feedback := newTestProcessor()

		deliveredAt := time.Now()
		msg := model.Message{ID: 43, Recipient: "+233244123456", Provider: "atlas", Type: model.MessageTypeOTP, CreatedAt: time.Now()}

		client.On("Send", mock.Anything, "atlas", mock.Anything).
			Return(&gateway.SendResponse{Status: gateway.StatusDelivered, Provider: "atlas", DeliveredAt: &deliveredAt}, nil)
		feedback.On("RecordOutcome", mock.Anything, "atlas", true, mock.Anything).Return()
		messages.On("UpdateStatus", mock.Anything, int64(43), model.MessageStatusSent, "").Return(nil)
		messages.On("UpdateStatus", mock.Anything, int64(43), model.MessageStatusDelivered, "").Return(nil)
		reports.On("Create", mock.Anything, mock.MatchedBy(func(dr *model.DeliveryReport) bool {
			return dr.Status == "sent"
		})).Return(&model.DeliveryReport{ID: 1}, nil)
		reports.On("Create", mock.Anything, mock.MatchedBy(func(dr *model.DeliveryReport) bool {
			return dr.Status == "delivered" && dr.DeliveredAt != nil
		})).Return(&model.DeliveryReport{ID: 2}, nil)

		err := p.Process(ctx, queuedMessage(t, msg))
		require.NoError(t, err)

		messages.AssertExpectations(t)
		reports.AssertExpectations(t)
	})

	t.Run("fallback carrier gets the credit", func(t *testing.T) {
		p, client, messages, reports, feedback := newTestProcessor()

		msg := model.Message{ID: 44, Recipient: "+233244123456", Provider: "atlas", Type: model.MessageTypeSingle, CreatedAt: time.Now()}

		client.On("Send", mock.Anything, "atlas", mock.Anything).
			Return(&gateway.SendResponse{Status: gateway.StatusSent, Provider: "baobab"}, nil)
		feedback.On("RecordOutcome", mock.Anything, "baobab", true, mock.Anything).Return()
		messages.On("UpdateStatus", mock.Anything, int64(44), model.MessageStatusSent, "").Return(nil)
		reports.On("Create", mock.Anything, mock.Anything).Return(&model.DeliveryReport{ID: 1}, nil)

		err := p.Process(ctx, queuedMessage(t, msg))
		require.NoError(t, err)

		feedback.AssertExpectations(t)
	})

	t.Run("transport failure is retried via NACK", func(t *testing.T) {
		p, client, messages, reports, feedback := newTestProcessor()

		msg := model.Message{ID: 45, Recipient: "+233244123456", Provider: "atlas", Type: model.MessageTypeSingle}

		client.On("Send", mock.Anything, "atlas", mock.Anything).
			Return(nil, errors.New("connection refused"))
		feedback.On("RecordOutcome", mock.Anything, "atlas", false, mock.Anything).Return()

		err := p.Process(ctx, queuedMessage(t, msg))
		require.Error(t, err)

		messages.AssertNotCalled(t, "UpdateStatus")
		reports.AssertNotCalled(t, "Create")
	})

	t.Run("provider rejection settles the message as failed", func(t *testing.T) {
		p, client, messages, reports, feedback := newTestProcessor()

		msg := model.Message{ID: 46, Recipient: "+233244123456", Provider: "atlas", Type: model.MessageTypeSingle}

		client.On("Send", mock.Anything, "atlas", mock.Anything).
			Return(&gateway.SendResponse{Status: gateway.StatusFailed, Provider: "atlas", ProviderCode: "UNDELIV", ErrorMsg: "invalid destination"}, nil)
		feedback.On("RecordOutcome", mock.Anything, "atlas", false, mock.Anything).Return()
		messages.On("UpdateStatus", mock.Anything, int64(46), model.MessageStatusFailed, "invalid destination").Return(nil)
		reports.On("Create", mock.Anything, mock.MatchedBy(func(dr *model.DeliveryReport) bool {
			return dr.Status == "failed" && dr.ErrorMessage == "invalid destination"
		})).Return(&model.DeliveryReport{ID: 1}, nil)

		err := p.Process(ctx, queuedMessage(t, msg))
		require.NoError(t, err) // ACK, the verdict is final

		messages.AssertExpectations(t)
		reports.AssertExpectations(t)
	})

	t.Run("second pass after success is a no-op", func(t *testing.T) {
		p, client, messages, reports, feedback := newTestProcessor()

		msg := model.Message{ID: 47, Recipient: "+233244123456", Provider: "atlas", Type: model.MessageTypeSingle, CreatedAt: time.Now()}

		client.On("Send", mock.Anything, "atlas", mock.Anything).
			Return(&gateway.SendResponse{Status: gateway.StatusSent, Provider: "atlas"}, nil).Once()
		feedback.On("RecordOutcome", mock.Anything, "atlas", true, mock.Anything).Return().Once()
		messages.On("UpdateStatus", mock.Anything, int64(47), model.MessageStatusSent, "").Return(nil).Once()
		reports.On("Create", mock.Anything, mock.Anything).Return(&model.DeliveryReport{ID: 1}, nil).Once()

		qm := queuedMessage(t, msg)
		require.NoError(t, p.Process(ctx, qm))
		require.NoError(t, p.Process(ctx, qm))

		client.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("malformed payload goes to the DLQ", func(t *testing.T) {
		p, client, _, _, _ := newTestProcessor()

		err := p.Process(ctx, &queue.Message{ID: "1-0", Data: []byte("not json")})
		require.Error(t, err)

		client.AssertNotCalled(t, "Send")
	})

	t.Run("exhausted retries settle as failed and ACK", func(t *testing.T) {
		client := new(MockProviderClient)
		messages := new(MockMessageStatusRepository)
		reports := new(MockDeliveryReportRepository)
		feedback := new(MockProviderFeedback)

		rds := newMockRedisAdapter()
		cfg := DefaultIdempotencyConfig()
		idem := NewIdempotencyService(rds, cfg)
		p := NewMessageProcessor(client, messages, reports, feedback, idem)

		// Pre-load the retry counter past the cap.
		require.NoError(t, rds.Set(cfg.RetryKeyPrefix+"48", []byte("3"), time.Hour))

		msg := model.Message{ID: 48, Recipient: "+233244123456", Provider: "atlas", Type: model.MessageTypeSingle}

		messages.On("UpdateStatus", mock.Anything, int64(48), model.MessageStatusFailed, "maximum delivery attempts exceeded").Return(nil)
		reports.On("Create", mock.Anything, mock.MatchedBy(func(dr *model.DeliveryReport) bool {
			return dr.Status == "failed"
		})).Return(&model.DeliveryReport{ID: 1}, nil)

		err := p.Process(context.Background(), queuedMessage(t, msg))
		require.NoError(t, err)

		client.AssertNotCalled(t, "Send")
		messages.AssertExpectations(t)
		reports.AssertExpectations(t)
	})
}

func TestMessageProcessor_GetType(t *testing.T) {
	p, _, _, _, _ := newTestProcessor()
	assert.Equal(t, "message", p.GetType())
}
