package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInactiveAccount     = errors.New("account is not active")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
)

type AccountRepository struct {
	*pg.DB
}

func NewAccountRepository(db *pg.DB) *AccountRepository {
	return &AccountRepository{
		db,
	}
}

// Debit performs an atomic balance deduction with automatic retry.
// The wallet plus post-paid credit must cover the amount.
func (r *AccountRepository) Debit(ctx context.Context, accountID int64, amount float64) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.debitAttempt(ctx, accountID, amount)

		if err == nil {
			return nil
		}

		// Don't retry on permanent errors
		if errors.Is(err, ErrAccountNotFound) ||
			errors.Is(err, ErrInsufficientBalance) ||
			errors.Is(err, ErrInactiveAccount) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt) // 2ms, 4ms, 8ms
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *AccountRepository) debitAttempt(ctx context.Context, accountID int64, amount float64) error {
	var entity AccountEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if !entity.Active {
		return ErrInactiveAccount
	}
	if entity.Balance+entity.Credit < amount {
		return ErrInsufficientBalance
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", accountID).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// Credit performs an atomic balance addition (top-up or refund).
func (r *AccountRepository) Credit(ctx context.Context, accountID int64, amount float64) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.creditAttempt(ctx, accountID, amount)

		if err == nil {
			return nil
		}

		if errors.Is(err, ErrAccountNotFound) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *AccountRepository) creditAttempt(ctx context.Context, accountID int64, amount float64) error {
	var entity AccountEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// GetBalance returns the account's wallet/credit projection.
func (r *AccountRepository) GetBalance(ctx context.Context, accountID int64) (*model.BalanceInfo, error) {
	var entity AccountEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("balance", "credit", "currency").
		Where("id = ?", accountID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return &model.BalanceInfo{
		Wallet:   entity.Balance,
		Credit:   entity.Credit,
		Currency: entity.Currency,
	}, nil
}

func (r *AccountRepository) GetByAPIKey(ctx context.Context, apiKey string) (*model.Account, error) {
	var entity AccountEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("api_key = ?", apiKey).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return toAccountModel(&entity), nil
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) (*model.Account, error) {
	entity := toAccountEntity(account)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toAccountModel(entity), nil
}
