package repository

import (
	"context"
	"errors"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

type RateRepository struct {
	*pg.DB
}

func NewRateRepository(db *pg.DB) *RateRepository {
	return &RateRepository{
		db,
	}
}

// FindCurrent returns the rate effective at the given time for the
// exact (country, network, service type, message type) tuple, or nil
// when none matches. Overlapping windows resolve to the most recently
// effective row.
func (r *RateRepository) FindCurrent(ctx context.Context, country, network string, serviceType model.ServiceType, messageType model.MessageType, at time.Time) (*model.PricingRate, error) {
	var entity RateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("country = ? AND network = ? AND service_type = ? AND message_type = ?",
			country, network, string(serviceType), string(messageType)).
		Where("effective_from <= ?", at).
		Where("effective_to IS NULL OR effective_to > ?", at).
		Order("effective_from DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toRateModel(&entity), nil
}

func (r *RateRepository) Create(ctx context.Context, rate *model.PricingRate) (*model.PricingRate, error) {
	entity := toRateEntity(rate)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRateModel(entity), nil
}
