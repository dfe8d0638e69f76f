package repository

import (
	"context"
	"errors"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrProviderNotFound = errors.New("provider not found")

type ProviderRepository struct {
	*pg.DB
}

func NewProviderRepository(db *pg.DB) *ProviderRepository {
	return &ProviderRepository{
		db,
	}
}

// ListActiveByCountry returns active providers covering the country.
// Coverage lists are stored as JSON text, so the country filter runs in
// Go after fetching the (small) active set.
func (r *ProviderRepository) ListActiveByCountry(ctx context.Context, country string) ([]*model.Provider, error) {
	var entities []*ProviderEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(model.ProviderStatusActive)).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	providers := make([]*model.Provider, 0, len(entities))
	for _, e := range entities {
		p := toProviderModel(e)
		if p.SupportsCountry(country) {
			providers = append(providers, p)
		}
	}
	return providers, nil
}

func (r *ProviderRepository) GetByName(ctx context.Context, name string) (*model.Provider, error) {
	var entity ProviderEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("name = ?", name).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return toProviderModel(&entity), nil
}

// RecordSuccess folds one delivery into the provider's rolling stats.
// The latency average is recomputed in SQL so concurrent dispatchers
// don't lose updates.
func (r *ProviderRepository) RecordSuccess(ctx context.Context, name string, latencyMs int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ProviderEntity{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"avg_latency_ms": gorm.Expr("(avg_latency_ms * success_count + ?) / (success_count + 1)", latencyMs),
			"success_count":  gorm.Expr("success_count + 1"),
			"error_streak":   0,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (r *ProviderRepository) RecordFailure(ctx context.Context, name string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ProviderEntity{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"failure_count": gorm.Expr("failure_count + 1"),
			"error_streak":  gorm.Expr("error_streak + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (r *ProviderRepository) Create(ctx context.Context, provider *model.Provider) (*model.Provider, error) {
	entity := toProviderEntity(provider)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toProviderModel(entity), nil
}
