package repository

import (
	"context"
	"errors"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrOTPNotFound = errors.New("otp not found")
	// ErrOTPConflict is returned when a conditional update matched no
	// rows, meaning another instance already moved the record on.
	ErrOTPConflict = errors.New("otp state conflict")
)

type OTPRepository struct {
	*pg.DB
}

func NewOTPRepository(db *pg.DB) *OTPRepository {
	return &OTPRepository{
		db,
	}
}

func (r *OTPRepository) Create(ctx context.Context, record *model.OTPRecord) (*model.OTPRecord, error) {
	entity := toOTPEntity(record)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toOTPModel(entity), nil
}

// GetActive returns the single pending OTP for an account/recipient
// pair, if one exists.
func (r *OTPRepository) GetActive(ctx context.Context, accountID int64, recipient string) (*model.OTPRecord, error) {
	var entity OTPEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("account_id = ? AND recipient = ? AND status = ?", accountID, recipient, string(model.OTPStatusPending)).
		Order("created_at DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}
	return toOTPModel(&entity), nil
}

// GetLatest returns the most recent OTP for an account/recipient pair
// regardless of status. Used for the resend cooldown check.
func (r *OTPRepository) GetLatest(ctx context.Context, accountID int64, recipient string) (*model.OTPRecord, error) {
	var entity OTPEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("account_id = ? AND recipient = ?", accountID, recipient).
		Order("created_at DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}
	return toOTPModel(&entity), nil
}

// ExpireActive marks any pending OTP for the pair as expired. Creating
// a new OTP after this keeps at most one pending per pair even when two
// instances race: the conditional update is atomic at the store.
func (r *OTPRepository) ExpireActive(ctx context.Context, accountID int64, recipient string) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OTPEntity{}).
		Where("account_id = ? AND recipient = ? AND status = ?", accountID, recipient, string(model.OTPStatusPending)).
		Update("status", string(model.OTPStatusExpired))

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IncrementAttempts bumps the attempt counter only while the record is
// pending and under its cap. Zero rows affected means another instance
// consumed the remaining attempt.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OTPEntity{}).
		Where("id = ? AND status = ? AND attempts < max_attempts", id, string(model.OTPStatusPending)).
		Update("attempts", gorm.Expr("attempts + 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOTPConflict
	}
	return nil
}

// MarkVerified flips a pending record to verified exactly once.
func (r *OTPRepository) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OTPEntity{}).
		Where("id = ? AND status = ?", id, string(model.OTPStatusPending)).
		Updates(map[string]interface{}{
			"status":      string(model.OTPStatusVerified),
			"verified_at": at,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOTPConflict
	}
	return nil
}

// MarkFailed terminates a pending record after its attempts ran out or
// its delivery message could not be sent.
func (r *OTPRepository) MarkFailed(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OTPEntity{}).
		Where("id = ? AND status = ?", id, string(model.OTPStatusPending)).
		Update("status", string(model.OTPStatusFailed))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOTPConflict
	}
	return nil
}

// MarkExpired lazily expires a pending record whose deadline passed.
func (r *OTPRepository) MarkExpired(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OTPEntity{}).
		Where("id = ? AND status = ?", id, string(model.OTPStatusPending)).
		Update("status", string(model.OTPStatusExpired))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOTPConflict
	}
	return nil
}

// ExpireOverdue is the sweeper's bulk pass over pending records whose
// expiry is behind the given time.
func (r *OTPRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OTPEntity{}).
		Where("status = ? AND expires_at <= ?", string(model.OTPStatusPending), now).
		Update("status", string(model.OTPStatusExpired))

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
