package repository

import (
	"context"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/pg"
)

type DeliveryReportRepository struct {
	*pg.DB
}

func NewDeliveryReportRepository(db *pg.DB) *DeliveryReportRepository {
	return &DeliveryReportRepository{
		db,
	}
}

func (r *DeliveryReportRepository) Create(ctx context.Context, report *model.DeliveryReport) (*model.DeliveryReport, error) {
	entity := toDeliveryReportEntity(report)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDeliveryReportModel(entity), nil
}

func (r *DeliveryReportRepository) ListByMessageID(ctx context.Context, messageID int64) ([]*model.DeliveryReport, error) {
	var entities []*DeliveryReportEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	reports := make([]*model.DeliveryReport, len(entities))
	for i, e := range entities {
		reports[i] = toDeliveryReportModel(e)
	}
	return reports, nil
}
