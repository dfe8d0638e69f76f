package repository

import (
	"context"
	"errors"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrSenderNotFound = errors.New("sender identity not found")

type SenderRepository struct {
	*pg.DB
}

func NewSenderRepository(db *pg.DB) *SenderRepository {
	return &SenderRepository{
		db,
	}
}

// Find returns the account's identity with the given display name,
// approved or not. Callers decide whether pending/rejected is an error.
func (r *SenderRepository) Find(ctx context.Context, accountID int64, name string) (*model.SenderIdentity, error) {
	var entity SenderIdentityEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("account_id = ? AND name = ?", accountID, name).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}
	return toSenderModel(&entity), nil
}

// FindDefault returns the account's default usable identity.
func (r *SenderRepository) FindDefault(ctx context.Context, accountID int64) (*model.SenderIdentity, error) {
	var entity SenderIdentityEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("account_id = ? AND is_default = ? AND status = ? AND active = ?",
			accountID, true, string(model.SenderIdentityApproved), true).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}
	return toSenderModel(&entity), nil
}

// FindAnyApproved returns any usable identity for the account, oldest
// first so the pick is stable.
func (r *SenderRepository) FindAnyApproved(ctx context.Context, accountID int64) (*model.SenderIdentity, error) {
	var entity SenderIdentityEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("account_id = ? AND status = ? AND active = ?",
			accountID, string(model.SenderIdentityApproved), true).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}
	return toSenderModel(&entity), nil
}

func (r *SenderRepository) Create(ctx context.Context, sender *model.SenderIdentity) (*model.SenderIdentity, error) {
	entity := toSenderEntity(sender)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toSenderModel(entity), nil
}
