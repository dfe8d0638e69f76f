package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/afrisend/comms-gateway/internal/model"
	xhttp "github.com/afrisend/comms-gateway/pkg/http"
)

type MockDispatchService struct {
	mock.Mock
}

func (m *MockDispatchService) SendSingle(ctx context.Context, accountID int64, req model.SendRequest) (*model.Message, error) {
	args := m.Called(ctx, accountID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockDispatchService) SendBulk(ctx context.Context, accountID int64, req model.BulkSendRequest) (*model.BulkSendResult, error) {
	args := m.Called(ctx, accountID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BulkSendResult), args.Error(1)
}

func (m *MockDispatchService) Cancel(ctx context.Context, accountID, messageID int64) error {
	args := m.Called(ctx, accountID, messageID)
	return args.Error(0)
}

func (m *MockDispatchService) Get(ctx context.Context, accountID, messageID int64) (*model.Message, error) {
	args := m.Called(ctx, accountID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockDispatchService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

func (m *MockDispatchService) GetMessagesWithDeliveryReports(ctx context.Context, f model.MessageFilter) ([]*model.MessageWithDeliveryReports, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.MessageWithDeliveryReports), args.Get(1).(int64), args.Error(2)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestMessageHandler_SendMessage(t *testing.T) {
	t.Run("successful send", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		reqBody := sendMessageRequest{
			AccountID: 1,
			Recipient: "+233244123456",
			Content:   "Test message",
			Sender:    "AcmeShop",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		expectedMsg := &model.Message{
			ID:        123,
			AccountID: 1,
			Recipient: "+233244123456",
			Content:   "Test message",
			Status:    model.MessageStatusQueued,
		}

		svc.On("SendSingle", mock.Anything, int64(1), mock.MatchedBy(func(r model.SendRequest) bool {
			return r.Recipient == "+233244123456" && r.Sender == "AcmeShop"
		})).Return(expectedMsg, nil)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Message
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(123), response.ID)
		assert.Equal(t, model.MessageStatusQueued, response.Status)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("POST", "/messages", []byte("invalid json"))
		handler.SendMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Contains(t, response["error"], "invalid JSON")
	})

	t.Run("missing account id", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		bodyBytes, _ := json.Marshal(sendMessageRequest{Recipient: "+233244123456", Content: "hi"})
		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "SendSingle")
	})

	t.Run("validation error maps to 422", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		bodyBytes, _ := json.Marshal(sendMessageRequest{AccountID: 1, Recipient: "nope", Content: "hi"})

		svc.On("SendSingle", mock.Anything, int64(1), mock.Anything).
			Return(nil, model.NewValidationError("recipient is not a valid phone number"))

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())

		var response errorResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Contains(t, response.Fields, "recipient is not a valid phone number")

		svc.AssertExpectations(t)
	})

	t.Run("no provider maps to 404", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		bodyBytes, _ := json.Marshal(sendMessageRequest{AccountID: 1, Recipient: "+995599123456", Content: "hi"})

		svc.On("SendSingle", mock.Anything, int64(1), mock.Anything).
			Return(nil, &model.NotFoundError{Resource: "delivery provider for destination"})

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("routing outage maps to 503", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		bodyBytes, _ := json.Marshal(sendMessageRequest{AccountID: 1, Recipient: "+233244123456", Content: "hi"})

		svc.On("SendSingle", mock.Anything, int64(1), mock.Anything).
			Return(nil, &model.DependencyError{Dependency: "provider routing", Err: errors.New("db down")})

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 503, ctx.Response.StatusCode())

		var response errorResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.NotContains(t, response.Error, "db down")

		svc.AssertExpectations(t)
	})

	t.Run("unexpected error maps to 500", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		bodyBytes, _ := json.Marshal(sendMessageRequest{AccountID: 1, Recipient: "+233244123456", Content: "hi"})

		svc.On("SendSingle", mock.Anything, int64(1), mock.Anything).
			Return(nil, errors.New("boom"))

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestMessageHandler_SendBulk(t *testing.T) {
	t.Run("partial success is still 200", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		reqBody := sendBulkRequest{
			AccountID:  1,
			Recipients: []string{"+233244123456", "garbage"},
			Content:    "Flash sale",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		result := &model.BulkSendResult{
			BatchID:  "batch-1",
			Accepted: 1,
			Rejected: 1,
			Outcomes: []model.RecipientOutcome{
				{Recipient: "+233244123456", Accepted: true, MessageID: 10},
				{Recipient: "garbage", Accepted: false, Errors: []string{"recipient is not a valid phone number"}},
			},
		}

		svc.On("SendBulk", mock.Anything, int64(1), mock.MatchedBy(func(r model.BulkSendRequest) bool {
			return len(r.Recipients) == 2 && r.Content == "Flash sale"
		})).Return(result, nil)

		ctx := setupTestContext("POST", "/messages/bulk", bodyBytes)
		handler.SendBulk(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.BulkSendResult
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, 1, response.Accepted)
		assert.Equal(t, 1, response.Rejected)
		assert.Len(t, response.Outcomes, 2)

		svc.AssertExpectations(t)
	})

	t.Run("empty batch rejected with 422", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		bodyBytes, _ := json.Marshal(sendBulkRequest{AccountID: 1, Content: "hi"})

		svc.On("SendBulk", mock.Anything, int64(1), mock.Anything).
			Return(nil, model.NewValidationError("recipients are required"))

		ctx := setupTestContext("POST", "/messages/bulk", bodyBytes)
		handler.SendBulk(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestMessageHandler_CancelMessage(t *testing.T) {
	t.Run("successful cancel", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("Cancel", mock.Anything, int64(1), int64(42)).Return(nil)

		bodyBytes, _ := json.Marshal(map[string]int64{"account_id": 1})
		ctx := setupTestContext("POST", "/messages/42/cancel", bodyBytes)
		ctx.SetUserValue("id", "42")
		handler.CancelMessage(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "cancelled", response["status"])

		svc.AssertExpectations(t)
	})

	t.Run("too late maps to 409", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("Cancel", mock.Anything, int64(1), int64(42)).
			Return(&model.StateConflictError{Current: "sent", Reason: "too late to cancel"})

		bodyBytes, _ := json.Marshal(map[string]int64{"account_id": 1})
		ctx := setupTestContext("POST", "/messages/42/cancel", bodyBytes)
		ctx.SetUserValue("id", "42")
		handler.CancelMessage(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())

		var response errorResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "sent", response.State)

		svc.AssertExpectations(t)
	})

	t.Run("bad path id", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("POST", "/messages/abc/cancel", nil)
		ctx.SetUserValue("id", "abc")
		handler.CancelMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Cancel")
	})
}

func TestMessageHandler_GetMessage(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("Get", mock.Anything, int64(1), int64(7)).
			Return(&model.Message{ID: 7, AccountID: 1, Status: model.MessageStatusDelivered}, nil)

		ctx := setupTestContext("GET", "/messages/7?account_id=1", nil)
		ctx.SetUserValue("id", "7")
		handler.GetMessage(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.Message
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(7), response.ID)

		svc.AssertExpectations(t)
	})

	t.Run("other account's message is 404", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("Get", mock.Anything, int64(2), int64(7)).
			Return(nil, &model.NotFoundError{Resource: "message"})

		ctx := setupTestContext("GET", "/messages/7?account_id=2", nil)
		ctx.SetUserValue("id", "7")
		handler.GetMessage(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestMessageHandler_ListMessages(t *testing.T) {
	t.Run("successful list", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		expectedMessages := []*model.Message{
			{ID: 1, AccountID: 1, Recipient: "+233244123456", Content: "Test 1"},
			{ID: 2, AccountID: 1, Recipient: "+233244123456", Content: "Test 2"},
		}

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return f.AccountID != nil && *f.AccountID == 1 && f.Limit == 10
		})).Return(expectedMessages, int64(2), nil)

		ctx := setupTestContext("GET", "/messages?account_id=1&limit=10&offset=0", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response listResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(2), response.Total)
		assert.Len(t, response.Items, 2)

		svc.AssertExpectations(t)
	})

	t.Run("filters by batch and status", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return f.BatchID != nil && *f.BatchID == "b-9" &&
				len(f.Statuses) == 2 && f.Statuses[0] == model.MessageStatusSent
		})).Return([]*model.Message{}, int64(0), nil)

		ctx := setupTestContext("GET", "/messages?batch_id=b-9&status=sent,delivered", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("list with desc order", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return f.Desc == true
		})).Return([]*model.Message{}, int64(0), nil)

		ctx := setupTestContext("GET", "/messages?order=desc", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.Anything).
			Return(nil, int64(0), errors.New("database error"))

		ctx := setupTestContext("GET", "/messages", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestMessageHandler_ListMessagesWithDeliveryReports(t *testing.T) {
	t.Run("successful list with delivery reports", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		deliveredAt := time.Now()
		expectedMessages := []*model.MessageWithDeliveryReports{
			{
				Message: model.Message{ID: 1, AccountID: 1, Recipient: "+233244123456", Content: "Test"},
				DeliveryReports: []model.DeliveryReport{
					{ID: 1, MessageID: 1, Status: "delivered", DeliveredAt: &deliveredAt},
				},
			},
		}

		svc.On("GetMessagesWithDeliveryReports", mock.Anything, mock.AnythingOfType("model.MessageFilter")).
			Return(expectedMessages, int64(1), nil)

		ctx := setupTestContext("GET", "/messages/delivery-reports?account_id=1", nil)
		handler.ListMessagesWithDeliveryReports(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response listWithReportResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(1), response.Total)
		assert.Len(t, response.Items, 1)
		assert.Len(t, response.Items[0].DeliveryReports, 1)

		svc.AssertExpectations(t)
	})

	t.Run("list with time range", func(t *testing.T) {
		svc := new(MockDispatchService)
		handler := NewMessageHandler(svc)

		svc.On("GetMessagesWithDeliveryReports", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return f.From != nil && f.To != nil
		})).Return([]*model.MessageWithDeliveryReports{}, int64(0), nil)

		ctx := setupTestContext("GET", "/messages/delivery-reports?from=2026-01-01&to=2026-12-31", nil)
		handler.ListMessagesWithDeliveryReports(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestHelperFunctions(t *testing.T) {
	t.Run("readJSON", func(t *testing.T) {
		data := map[string]string{"key": "value"}
		bodyBytes, _ := json.Marshal(data)
		ctx := setupTestContext("POST", "/", bodyBytes)

		var result map[string]string
		err := readJSON(ctx, &result)
		require.NoError(t, err)
		assert.Equal(t, "value", result["key"])
	})

	t.Run("writeJSON", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		data := map[string]string{"message": "test"}

		writeJSON(ctx, 200, data)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "application/json")

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "test", result["message"])
	})

	t.Run("writeError", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		writeError(ctx, 404, "not found")

		assert.Equal(t, 404, ctx.Response.StatusCode())

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "not found", result["error"])
	})

	t.Run("parseTime RFC3339", func(t *testing.T) {
		parsed, err := parseTime("2026-01-01T12:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.Year())
	})

	t.Run("parseTime date only", func(t *testing.T) {
		parsed, err := parseTime("2026-01-01")
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.Year())
		assert.Equal(t, time.Month(1), parsed.Month())
		assert.Equal(t, 1, parsed.Day())
	})

	t.Run("parseTime invalid", func(t *testing.T) {
		_, err := parseTime("invalid")
		assert.Error(t, err)
	})
}
