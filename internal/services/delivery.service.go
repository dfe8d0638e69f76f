package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/internal/repository"
	"github.com/afrisend/comms-gateway/pkg/logger"
)

type DeliveryReportRepository interface {
	Create(ctx context.Context, report *model.DeliveryReport) (*model.DeliveryReport, error)
}

// DeliveryService applies provider delivery callbacks: one report row
// per event plus the monotonic message status transition. Duplicate or
// out-of-order callbacks are rejected, never applied backwards.
type DeliveryService struct {
	messageRepo MessageRepository
	reportRepo  DeliveryReportRepository
	now         func() time.Time
}

func NewDeliveryService(messageRepo MessageRepository, reportRepo DeliveryReportRepository) *DeliveryService {
	return &DeliveryService{
		messageRepo: messageRepo,
		reportRepo:  reportRepo,
		now:         time.Now,
	}
}

// Apply records the callback and moves the message forward. The status
// update is conditional at the store, so two instances applying the
// same callback settle on exactly one transition.
func (s *DeliveryService) Apply(ctx context.Context, messageID int64, status, providerCode, errorMessage string) error {
	target, ok := callbackStatus(status)
	if !ok {
		return model.NewValidationError("unknown delivery status")
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &model.NotFoundError{Resource: "message"}
		}
		return err
	}

	if err := s.messageRepo.UpdateStatus(ctx, messageID, target, errorMessage); err != nil {
		if errors.Is(err, repository.ErrIllegalTransition) {
			return &model.StateConflictError{
				Current: string(msg.Status),
				Reason:  "delivery update arrived out of order",
			}
		}
		return err
	}

	now := s.now()
	report := &model.DeliveryReport{
		MessageID:    messageID,
		Status:       string(target),
		ProviderCode: providerCode,
		ErrorMessage: errorMessage,
	}
	if target == model.MessageStatusDelivered {
		report.DeliveredAt = &now
	}
	if _, err := s.reportRepo.Create(ctx, report); err != nil {
		// The transition already landed; a missing report row is log-worthy
		// but not worth failing the callback over.
		logger.Error("delivery report insert failed", "message_id", messageID, "error", err)
	}
	return nil
}

func callbackStatus(s string) (model.MessageStatus, bool) {
	switch model.MessageStatus(strings.ToLower(strings.TrimSpace(s))) {
	case model.MessageStatusSent:
		return model.MessageStatusSent, true
	case model.MessageStatusDelivered:
		return model.MessageStatusDelivered, true
	case model.MessageStatusFailed:
		return model.MessageStatusFailed, true
	case model.MessageStatusExpired:
		return model.MessageStatusExpired, true
	}
	return "", false
}
