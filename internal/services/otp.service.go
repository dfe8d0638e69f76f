package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/internal/phone"
	"github.com/afrisend/comms-gateway/internal/repository"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/prom"
	"golang.org/x/crypto/bcrypt"
)

// Tunables of the OTP lifecycle. Request parameters outside the
// allowed ranges are clamped or rejected, never silently trusted.
const (
	DefaultOTPLength   = 6
	MinOTPLength       = 4
	MaxOTPLength       = 10
	DefaultOTPExpiry   = 5 * time.Minute
	MinOTPExpiry       = time.Minute
	MaxOTPExpiry       = 24 * time.Hour
	DefaultMaxAttempts = 3
	DefaultOTPCooldown = 30 * time.Second

	// DefaultOTPTemplate is used when the request carries no template.
	DefaultOTPTemplate = "Your verification code is {code}. It expires in {duration} minutes."
)

type OTPRepository interface {
	Create(ctx context.Context, record *model.OTPRecord) (*model.OTPRecord, error)
	GetActive(ctx context.Context, accountID int64, recipient string) (*model.OTPRecord, error)
	GetLatest(ctx context.Context, accountID int64, recipient string) (*model.OTPRecord, error)
	ExpireActive(ctx context.Context, accountID int64, recipient string) (int64, error)
	IncrementAttempts(ctx context.Context, id int64) error
	MarkVerified(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64) error
	MarkExpired(ctx context.Context, id int64) error
}

type OTPDeliverer interface {
	SendOTP(ctx context.Context, accountID int64, req model.SendRequest) (*model.Message, error)
}

// OTPService owns the code lifecycle: request, verify, resend. At most
// one pending code exists per (account, recipient) pair; creating a new
// one supersedes whatever was pending.
type OTPService struct {
	otpRepo   OTPRepository
	deliverer OTPDeliverer
	cooldown  time.Duration
	now       func() time.Time
	randInt   func(max int) (int, error)
}

func NewOTPService(otpRepo OTPRepository, deliverer OTPDeliverer) *OTPService {
	return &OTPService{
		otpRepo:   otpRepo,
		deliverer: deliverer,
		cooldown:  DefaultOTPCooldown,
		now:       time.Now,
		randInt:   cryptoRandInt,
	}
}

// WithCooldown overrides the minimum gap between codes for a pair.
func (s *OTPService) WithCooldown(d time.Duration) *OTPService {
	if d > 0 {
		s.cooldown = d
	}
	return s
}

// Request issues a fresh code for the recipient and delivers it by SMS.
// A previous pending code for the same pair is expired first, so the
// newest code is always the only valid one.
func (s *OTPService) Request(ctx context.Context, accountID int64, req model.OTPRequest) (*model.OTPRecord, error) {
	cls := phone.Classify(strings.TrimSpace(req.Recipient))
	if !cls.Valid {
		return nil, model.NewValidationError(append([]string{"recipient is not a valid phone number"}, cls.Errors...)...)
	}
	recipient := cls.Normalized

	length, pinType, expiry, maxAttempts, verr := s.normalizeParams(req)
	if verr != nil {
		return nil, verr
	}

	if err := s.checkCooldown(ctx, accountID, recipient); err != nil {
		return nil, err
	}

	code, err := s.generateCode(length, pinType)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	if n, err := s.otpRepo.ExpireActive(ctx, accountID, recipient); err != nil {
		return nil, err
	} else if n > 0 {
		logger.Debug("superseded pending otp", "account_id", accountID, "recipient", recipient)
	}

	// The amount lives under a metadata key so the stored record (and a
	// later resend) carries it without a dedicated column.
	metadata := req.Metadata
	if req.Amount != "" {
		metadata = make(map[string]string, len(req.Metadata)+1)
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		metadata["amount"] = req.Amount
	}

	now := s.now()
	record, err := s.otpRepo.Create(ctx, &model.OTPRecord{
		AccountID:   accountID,
		Recipient:   recipient,
		CodeHash:    string(hash),
		CodeLength:  length,
		PinType:     pinType,
		Status:      model.OTPStatusPending,
		ExpiresAt:   now.Add(expiry),
		MaxAttempts: maxAttempts,
		Sender:      req.Sender,
		Metadata:    metadata,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	content := renderTemplate(req.Template, code, expiry, metadata)
	msg, err := s.deliverer.SendOTP(ctx, accountID, model.SendRequest{
		Recipient: recipient,
		Content:   content,
		Sender:    req.Sender,
		Metadata:  metadata,
	})
	if err != nil {
		// The code is unusable if it never went out.
		if ferr := s.otpRepo.MarkFailed(ctx, record.ID); ferr != nil {
			logger.Error("failed to mark undeliverable otp", "otp_id", record.ID, "error", ferr)
		}
		prom.IncOTPRequest(string(model.OTPStatusFailed))
		return nil, err
	}

	prom.IncOTPRequest(string(model.OTPStatusPending))
	logger.Info("otp issued", "account_id", accountID, "recipient", recipient, "message_id", msg.ID)
	return record, nil
}

// Verify checks a submitted code against the pending record. Every
// submission burns one attempt; the record fails permanently when the
// cap is reached and expires lazily when its deadline has passed.
func (s *OTPService) Verify(ctx context.Context, accountID int64, recipient, code string) (*model.OTPVerifyResult, error) {
	cls := phone.Classify(strings.TrimSpace(recipient))
	if !cls.Valid {
		return nil, model.NewValidationError("recipient is not a valid phone number")
	}
	if code == "" {
		return nil, model.NewValidationError("code is required")
	}

	record, err := s.otpRepo.GetActive(ctx, accountID, cls.Normalized)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, &model.NotFoundError{Resource: "active verification code"}
		}
		return nil, err
	}

	now := s.now()
	if !now.Before(record.ExpiresAt) {
		if err := s.otpRepo.MarkExpired(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrOTPConflict) {
			return nil, err
		}
		return nil, &model.StateConflictError{
			Current: string(model.OTPStatusExpired),
			Reason:  "verification code has expired",
		}
	}

	if err := s.otpRepo.IncrementAttempts(ctx, record.ID); err != nil {
		if errors.Is(err, repository.ErrOTPConflict) {
			// Cap already consumed, or another instance finished first.
			if ferr := s.otpRepo.MarkFailed(ctx, record.ID); ferr != nil && !errors.Is(ferr, repository.ErrOTPConflict) {
				return nil, ferr
			}
			return nil, &model.StateConflictError{
				Current: string(model.OTPStatusFailed),
				Reason:  "maximum verification attempts exceeded",
			}
		}
		return nil, err
	}
	attempts := record.Attempts + 1

	if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)) != nil {
		if attempts >= record.MaxAttempts {
			if err := s.otpRepo.MarkFailed(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrOTPConflict) {
				return nil, err
			}
			return nil, &model.StateConflictError{
				Current: string(model.OTPStatusFailed),
				Reason:  "maximum verification attempts exceeded",
			}
		}
		return nil, &model.CodeMismatchError{Remaining: record.MaxAttempts - attempts}
	}

	if err := s.otpRepo.MarkVerified(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrOTPConflict) {
			return nil, &model.StateConflictError{
				Current: string(record.Status),
				Reason:  "verification already settled",
			}
		}
		return nil, err
	}

	return &model.OTPVerifyResult{
		Verified:   true,
		VerifiedAt: now,
		Metadata:   record.Metadata,
	}, nil
}

// Resend reissues a code for the pair using the previous request's
// configuration. The cooldown applies the same as for a fresh request.
func (s *OTPService) Resend(ctx context.Context, accountID int64, recipient string) (*model.OTPRecord, error) {
	cls := phone.Classify(strings.TrimSpace(recipient))
	if !cls.Valid {
		return nil, model.NewValidationError("recipient is not a valid phone number")
	}

	prev, err := s.otpRepo.GetLatest(ctx, accountID, cls.Normalized)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, &model.NotFoundError{Resource: "previous verification request"}
		}
		return nil, err
	}

	return s.Request(ctx, accountID, model.OTPRequest{
		Recipient:   cls.Normalized,
		CodeLength:  prev.CodeLength,
		PinType:     prev.PinType,
		Expiry:      prev.ExpiresAt.Sub(prev.CreatedAt),
		MaxAttempts: prev.MaxAttempts,
		Sender:      prev.Sender,
		Metadata:    prev.Metadata,
	})
}

func (s *OTPService) checkCooldown(ctx context.Context, accountID int64, recipient string) error {
	latest, err := s.otpRepo.GetLatest(ctx, accountID, recipient)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil
		}
		return err
	}
	elapsed := s.now().Sub(latest.CreatedAt)
	if elapsed < s.cooldown {
		return &model.RateLimitError{RetryAfter: s.cooldown - elapsed}
	}
	return nil
}

func (s *OTPService) normalizeParams(req model.OTPRequest) (int, model.PinType, time.Duration, int, *model.ValidationError) {
	length := req.CodeLength
	if length == 0 {
		length = DefaultOTPLength
	}
	if length < MinOTPLength || length > MaxOTPLength {
		return 0, "", 0, 0, model.NewValidationError(
			fmt.Sprintf("code length must be between %d and %d", MinOTPLength, MaxOTPLength))
	}

	pinType := req.PinType
	if pinType == "" {
		pinType = model.PinTypeNumeric
	}
	switch pinType {
	case model.PinTypeNumeric, model.PinTypeAlphanumeric, model.PinTypeAlphabetic:
	default:
		return 0, "", 0, 0, model.NewValidationError("unknown pin type")
	}

	expiry := req.Expiry
	if expiry == 0 {
		expiry = DefaultOTPExpiry
	}
	if expiry < MinOTPExpiry || expiry > MaxOTPExpiry {
		return 0, "", 0, 0, model.NewValidationError("expiry must be between 1 minute and 24 hours")
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return length, pinType, expiry, maxAttempts, nil
}

const (
	numericAlphabet      = "0123456789"
	alphabeticAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// generateCode draws each position independently and uniformly from the
// alphabet using the crypto RNG.
func (s *OTPService) generateCode(length int, pinType model.PinType) (string, error) {
	alphabet := numericAlphabet
	switch pinType {
	case model.PinTypeAlphabetic:
		alphabet = alphabeticAlphabet
	case model.PinTypeAlphanumeric:
		alphabet = alphanumericAlphabet
	}

	code := make([]byte, length)
	for i := range code {
		n, err := s.randInt(len(alphabet))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n]
	}
	return string(code), nil
}

func cryptoRandInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// renderTemplate substitutes the supported placeholders. {code},
// {duration} and {amount} are built in; {amount} draws from the
// "amount" metadata key, where Request folds the Amount parameter. Any
// other {key} resolves from the request metadata and is left as-is
// when absent.
func renderTemplate(template, code string, expiry time.Duration, metadata map[string]string) string {
	if template == "" {
		template = DefaultOTPTemplate
	}

	out := strings.ReplaceAll(template, "{code}", code)
	out = strings.ReplaceAll(out, "{duration}", strconv.Itoa(int(expiry.Minutes())))
	for k, v := range metadata {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
