package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/internal/phone"
	"github.com/afrisend/comms-gateway/internal/repository"
	"github.com/afrisend/comms-gateway/internal/segment"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/google/uuid"
)

// MaxBulkRecipients caps one bulk request. Larger batches are rejected
// wholesale before any per-recipient work happens.
const MaxBulkRecipients = 10000

// DefaultOTPSender brands OTP traffic for accounts that have no
// approved sender identity of their own.
const DefaultOTPSender = "AfriSend"

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	UpdateStatus(ctx context.Context, id int64, to model.MessageStatus, failureReason string) error
	CancelScheduled(ctx context.Context, accountID, id int64, reason string) error
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
	GetMessagesWithDeliveryReports(ctx context.Context, f model.MessageFilter) ([]*model.MessageWithDeliveryReports, int64, error)
}

type AccountRepository interface {
	Debit(ctx context.Context, accountID int64, amount float64) error
	GetBalance(ctx context.Context, accountID int64) (*model.BalanceInfo, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
}

type SenderRepository interface {
	Find(ctx context.Context, accountID int64, name string) (*model.SenderIdentity, error)
	FindDefault(ctx context.Context, accountID int64) (*model.SenderIdentity, error)
	FindAnyApproved(ctx context.Context, accountID int64) (*model.SenderIdentity, error)
}

type ProviderRouter interface {
	Select(ctx context.Context, country, network, hint string) (*model.Provider, error)
}

type PriceResolver interface {
	Resolve(ctx context.Context, country, network string, serviceType model.ServiceType, messageType model.MessageType, units int) model.Rate
}

type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// DispatchService runs the single/bulk send pipeline: classify the
// destination, count billing units, pick a sender and provider, price
// the send, then debit and persist atomically before queueing.
type DispatchService struct {
	messageRepo     MessageRepository
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	senderRepo      SenderRepository
	router          ProviderRouter
	pricer          PriceResolver
	queue           Publisher
	otpSender       string
	now             func() time.Time
}

func NewDispatchService(
	messageRepo MessageRepository,
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	senderRepo SenderRepository,
	router ProviderRouter,
	pricer PriceResolver,
	q Publisher,
) *DispatchService {
	return &DispatchService{
		messageRepo:     messageRepo,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		senderRepo:      senderRepo,
		router:          router,
		pricer:          pricer,
		queue:           q,
		otpSender:       DefaultOTPSender,
		now:             time.Now,
	}
}

// WithOTPSender overrides the brand name used when OTP traffic has no
// account sender identity to fall back on.
func (s *DispatchService) WithOTPSender(name string) *DispatchService {
	if name != "" {
		s.otpSender = name
	}
	return s
}

// SendSingle validates, prices, debits and enqueues one message. The
// debit, the message row and the ledger entry commit in one database
// transaction; queue publication happens after commit so a queue outage
// can never charge without a persisted message.
func (s *DispatchService) SendSingle(ctx context.Context, accountID int64, req model.SendRequest) (*model.Message, error) {
	return s.send(ctx, accountID, req, nil, model.MessageTypeSingle, model.ServiceTypeSMS)
}

// SendOTP delivers a verification code through the same pipeline, priced
// against the OTP rate table.
func (s *DispatchService) SendOTP(ctx context.Context, accountID int64, req model.SendRequest) (*model.Message, error) {
	return s.send(ctx, accountID, req, nil, model.MessageTypeOTP, model.ServiceTypeOTP)
}

func (s *DispatchService) send(ctx context.Context, accountID int64, req model.SendRequest, batchID *string, msgType model.MessageType, serviceType model.ServiceType) (*model.Message, error) {
	req.Recipient = strings.TrimSpace(req.Recipient)
	req.Content = strings.TrimSpace(req.Content)
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	cls := phone.Classify(req.Recipient)
	if !cls.Valid {
		return nil, model.NewValidationError(append([]string{"recipient is not a valid phone number"}, cls.Errors...)...)
	}
	for _, w := range cls.Warnings {
		logger.Debug("recipient classification warning", "recipient", cls.Normalized, "warning", w)
	}

	if req.ScheduledAt != nil && req.ScheduledAt.Before(s.now()) {
		return nil, model.NewValidationError("scheduled_at must be in the future")
	}

	seg := segment.Calculate(req.Content)

	senderName, err := s.senderName(ctx, accountID, req.Sender, serviceType)
	if err != nil {
		return nil, err
	}

	provider, err := s.router.Select(ctx, cls.Country, cls.Network, req.Priority)
	if err != nil {
		return nil, &model.DependencyError{Dependency: "provider routing", Err: err}
	}
	if provider == nil {
		return nil, &model.NotFoundError{Resource: "delivery provider for destination"}
	}

	rate := s.pricer.Resolve(ctx, cls.Country, cls.Network, serviceType, msgType, seg.Units)

	status := model.MessageStatusQueued
	if req.ScheduledAt != nil {
		status = model.MessageStatusPending
	}

	msg := &model.Message{
		AccountID:        accountID,
		Recipient:        cls.Normalized,
		RecipientCountry: cls.Country,
		RecipientNetwork: cls.Network,
		Content:          req.Content,
		Type:             msgType,
		Sender:           senderName,
		Status:           status,
		Provider:         provider.Name,
		Units:            seg.Units,
		UnitPrice:        rate.RatePerUnit,
		TotalCost:        rate.TotalCost,
		Currency:         rate.Currency,
		BatchID:          batchID,
		ScheduledAt:      req.ScheduledAt,
		Metadata:         req.Metadata,
		Tags:             req.Tags,
	}

	created, err := s.persistCharged(ctx, msg)
	if err != nil {
		return nil, err
	}
	// Advisories ride on the response so the caller sees them; they are
	// never a reason to reject the send.
	created.Warnings = cls.Warnings

	if created.Status == model.MessageStatusQueued {
		if _, err := s.queue.PublishJSON(ctx, created, nil); err != nil {
			// The charged row stays queued; the sweeper's stale-queued
			// pass re-publishes it. The caller still gets the message.
			logger.Error("queue publish failed after commit", "message_id", created.ID, "error", err)
		}
	}
	return created, nil
}

// SendBulk fans one body out to many recipients under a shared batch
// id. Recipients fail independently; only an oversized batch or a
// request-level problem rejects the whole call.
func (s *DispatchService) SendBulk(ctx context.Context, accountID int64, req model.BulkSendRequest) (*model.BulkSendResult, error) {
	if len(req.Recipients) == 0 {
		return nil, model.NewValidationError("recipients are required")
	}
	if len(req.Recipients) > MaxBulkRecipients {
		return nil, model.NewValidationError(fmt.Sprintf("too many recipients, maximum is %d", MaxBulkRecipients))
	}

	batchID := uuid.NewString()
	result := &model.BulkSendResult{
		BatchID:  batchID,
		Outcomes: make([]model.RecipientOutcome, 0, len(req.Recipients)),
	}

	for _, recipient := range req.Recipients {
		single := model.SendRequest{
			Recipient:   recipient,
			Content:     req.Content,
			Sender:      req.Sender,
			Priority:    req.Priority,
			ScheduledAt: req.ScheduledAt,
			Metadata:    req.Metadata,
			Tags:        req.Tags,
		}

		msg, err := s.send(ctx, accountID, single, &batchID, model.MessageTypeBulk, model.ServiceTypeSMS)
		if err != nil {
			result.Rejected++
			result.Outcomes = append(result.Outcomes, model.RecipientOutcome{
				Recipient: recipient,
				Accepted:  false,
				Errors:    []string{err.Error()},
			})
			continue
		}

		result.Accepted++
		result.Outcomes = append(result.Outcomes, model.RecipientOutcome{
			Recipient: recipient,
			Accepted:  true,
			MessageID: msg.ID,
			Warnings:  msg.Warnings,
		})
	}
	return result, nil
}

// Cancel aborts a scheduled message that has not been queued yet.
func (s *DispatchService) Cancel(ctx context.Context, accountID, messageID int64) error {
	err := s.messageRepo.CancelScheduled(ctx, accountID, messageID, "cancelled by user")
	if err != nil {
		if errors.Is(err, repository.ErrIllegalTransition) {
			msg, gerr := s.messageRepo.GetByID(ctx, messageID)
			if gerr != nil || msg.AccountID != accountID {
				return &model.NotFoundError{Resource: "message"}
			}
			return &model.StateConflictError{
				Current: string(msg.Status),
				Reason:  "too late to cancel",
			}
		}
		return err
	}
	return nil
}

func (s *DispatchService) Get(ctx context.Context, accountID, messageID int64) (*model.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &model.NotFoundError{Resource: "message"}
		}
		return nil, err
	}
	if msg.AccountID != accountID {
		return nil, &model.NotFoundError{Resource: "message"}
	}
	return msg, nil
}

func (s *DispatchService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	return s.messageRepo.List(ctx, f)
}

func (s *DispatchService) GetMessagesWithDeliveryReports(ctx context.Context, f model.MessageFilter) ([]*model.MessageWithDeliveryReports, int64, error) {
	return s.messageRepo.GetMessagesWithDeliveryReports(ctx, f)
}

// senderName resolves the display name for outbound traffic. OTP sends
// fall back to the platform brand when the account has no approved
// identity; everything else requires one.
func (s *DispatchService) senderName(ctx context.Context, accountID int64, requested string, serviceType model.ServiceType) (string, error) {
	identity, err := s.resolveSender(ctx, accountID, requested)
	if err != nil {
		var nf *model.NotFoundError
		if serviceType == model.ServiceTypeOTP && requested == "" && errors.As(err, &nf) {
			return s.otpSender, nil
		}
		return "", err
	}
	return identity.Name, nil
}

// resolveSender walks the sender fallback chain: the explicitly named
// identity (which must be usable and owned by the account), then the
// account default, then any approved identity.
func (s *DispatchService) resolveSender(ctx context.Context, accountID int64, name string) (*model.SenderIdentity, error) {
	if name != "" {
		identity, err := s.senderRepo.Find(ctx, accountID, name)
		if err != nil {
			if errors.Is(err, repository.ErrSenderNotFound) {
				return nil, &model.NotFoundError{Resource: "sender identity"}
			}
			return nil, err
		}
		if !identity.Usable() {
			return nil, model.NewValidationError("sender identity is not approved")
		}
		return identity, nil
	}

	identity, err := s.senderRepo.FindDefault(ctx, accountID)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, repository.ErrSenderNotFound) {
		return nil, err
	}

	identity, err = s.senderRepo.FindAnyApproved(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrSenderNotFound) {
			return nil, &model.NotFoundError{Resource: "approved sender identity"}
		}
		return nil, err
	}
	return identity, nil
}

// persistCharged commits the debit, the message row and the ledger
// entry atomically. Any failure inside rolls the whole charge back.
func (s *DispatchService) persistCharged(ctx context.Context, msg *model.Message) (*model.Message, error) {
	var created *model.Message
	err := s.accountRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.accountRepo.Debit(ctx, msg.AccountID, msg.TotalCost); err != nil {
			switch {
			case errors.Is(err, repository.ErrInsufficientBalance):
				return model.NewValidationError("insufficient balance")
			case errors.Is(err, repository.ErrInactiveAccount):
				return model.NewValidationError("account is not active")
			case errors.Is(err, repository.ErrAccountNotFound):
				return &model.NotFoundError{Resource: "account"}
			}
			return fmt.Errorf("debit balance: %w", err)
		}

		var err error
		created, err = s.messageRepo.Create(ctx, msg)
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}

		serviceType := model.ServiceTypeSMS
		if msg.Type == model.MessageTypeOTP {
			serviceType = model.ServiceTypeOTP
		}
		_, err = s.transactionRepo.Create(ctx, &model.Transaction{
			AccountID:   msg.AccountID,
			Amount:      msg.TotalCost,
			Currency:    msg.Currency,
			Type:        "debit",
			ServiceType: serviceType,
			MessageID:   &created.ID,
		})
		if err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
