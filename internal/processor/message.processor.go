package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gateway "github.com/afrisend/comms-gateway/internal/gateways"
	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/internal/queue"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/prom"
)

type DeliveryReportRepository interface {
	Create(ctx context.Context, dr *model.DeliveryReport) (*model.DeliveryReport, error)
}

type MessageStatusRepository interface {
	UpdateStatus(ctx context.Context, id int64, to model.MessageStatus, failureReason string) error
}

// ProviderFeedback feeds delivery outcomes back into the routing stats
// so future selections prefer providers that are actually delivering.
type ProviderFeedback interface {
	RecordOutcome(ctx context.Context, provider string, success bool, latencyMs int64)
}

type ProviderClient interface {
	Send(ctx context.Context, preferred string, req *gateway.SendRequest) (*gateway.SendResponse, error)
}

// MessageProcessor drains the dispatch queue: each queued message goes
// to its routed provider, the row moves queued -> sent or failed, and a
// delivery report records what the provider said.
type MessageProcessor struct {
	client      ProviderClient
	messageRepo MessageStatusRepository
	reportRepo  DeliveryReportRepository
	feedback    ProviderFeedback
	idempotency *IdempotencyService
}

func NewMessageProcessor(client ProviderClient, messageRepo MessageStatusRepository, reportRepo DeliveryReportRepository, feedback ProviderFeedback, idempotency *IdempotencyService) *MessageProcessor {
	return &MessageProcessor{
		client:      client,
		messageRepo: messageRepo,
		reportRepo:  reportRepo,
		feedback:    feedback,
		idempotency: idempotency,
	}
}

func (p *MessageProcessor) GetType() string {
	return "message"
}

// Process sends one queued message with idempotency guarantees.
func (p *MessageProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var message model.Message
	if err := json.Unmarshal(queueMessage.Data, &message); err != nil {
		logger.Error("Failed to unmarshal message", "error", err)
		return err // move to DLQ, a malformed payload never parses on retry
	}

	messageID := strconv.FormatInt(message.ID, 10)

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Info("Message already processed, skipping", "message_id", messageID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Max retries exceeded", "message_id", messageID)
			p.settleFailed(ctx, &message, "", "maximum delivery attempts exceeded")
			return nil // ACK, retrying forever helps nobody
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			logger.Info("Lock held by another consumer, will retry", "message_id", messageID)
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "message_id", messageID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Processing message",
		"message_id", messageID,
		"recipient", message.Recipient,
		"provider", message.Provider,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	req := &gateway.SendRequest{
		MessageID: messageID,
		Recipient: message.Recipient,
		Sender:    message.Sender,
		Content:   message.Content,
		Priority:  string(message.Type),
	}

	startTime := time.Now()
	res, err := p.client.Send(ctx, message.Provider, req)
	latency := time.Since(startTime).Milliseconds()

	if err != nil {
		logger.Error("Failed to send message", "message_id", messageID, "error", err)
		p.feedback.RecordOutcome(ctx, message.Provider, false, latency)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "message_id", messageID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	carrier := res.Provider
	if carrier == "" {
		carrier = message.Provider
	}

	switch res.Status {
	case gateway.StatusSent, gateway.StatusDelivered:
		p.feedback.RecordOutcome(ctx, carrier, true, latency)
		prom.AddMessageDispatchDuration(time.Since(message.CreatedAt).Seconds(), carrier, string(message.Type))
		prom.IncMessageDispatched(carrier, string(res.Status))

		if err := p.messageRepo.UpdateStatus(ctx, message.ID, model.MessageStatusSent, ""); err != nil {
			logger.Error("Failed to mark message sent", "message_id", messageID, "error", err)
		}

		report := &model.DeliveryReport{
			MessageID:    message.ID,
			Status:       string(model.MessageStatusSent),
			ProviderCode: res.ProviderCode,
		}
		if _, err := p.reportRepo.Create(ctx, report); err != nil {
			logger.Error("Failed to save delivery report", "message_id", messageID, "error", err)
			// Not worth a retry, the message already left the building.
		}

		// Some providers confirm delivery synchronously.
		if res.Status == gateway.StatusDelivered {
			if err := p.messageRepo.UpdateStatus(ctx, message.ID, model.MessageStatusDelivered, ""); err != nil {
				logger.Error("Failed to mark message delivered", "message_id", messageID, "error", err)
			}
			report := &model.DeliveryReport{
				MessageID:    message.ID,
				Status:       string(model.MessageStatusDelivered),
				ProviderCode: res.ProviderCode,
				DeliveredAt:  res.DeliveredAt,
			}
			if _, err := p.reportRepo.Create(ctx, report); err != nil {
				logger.Error("Failed to save delivery report", "message_id", messageID, "error", err)
			}
		}

		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("Failed to mark success", "message_id", messageID, "error", markErr)
		}

		logger.Info("Message handed to provider",
			"message_id", messageID,
			"provider", carrier,
			"status", string(res.Status),
			"latency_ms", latency)

		return nil // ACK

	default:
		// The provider answered and said no. That verdict is final, so
		// the message fails now instead of cycling through the queue.
		logger.Warn("Provider rejected message", "message_id", messageID, "provider", carrier, "status", string(res.Status), "error", res.ErrorMsg)
		p.feedback.RecordOutcome(ctx, carrier, false, latency)
		prom.IncMessageDispatched(carrier, string(model.MessageStatusFailed))
		p.settleFailed(ctx, &message, res.ProviderCode, res.ErrorMsg)

		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("Failed to mark success", "message_id", messageID, "error", markErr)
		}
		return nil // ACK, the outcome is recorded
	}
}

func (p *MessageProcessor) settleFailed(ctx context.Context, message *model.Message, providerCode, reason string) {
	if reason == "" {
		reason = "delivery failed"
	}
	if err := p.messageRepo.UpdateStatus(ctx, message.ID, model.MessageStatusFailed, reason); err != nil {
		logger.Error("Failed to mark message failed", "message_id", message.ID, "error", err)
	}
	report := &model.DeliveryReport{
		MessageID:    message.ID,
		Status:       string(model.MessageStatusFailed),
		ProviderCode: providerCode,
		ErrorMessage: reason,
	}
	if _, err := p.reportRepo.Create(ctx, report); err != nil {
		logger.Error("Failed to save delivery report", "message_id", message.ID, "error", err)
	}
}
