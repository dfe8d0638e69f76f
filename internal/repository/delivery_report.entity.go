package repository

import (
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
)

type DeliveryReportEntity struct {
	ID           int64      `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	MessageID    int64      `db:"message_id"    gorm:"column:message_id;not null;index"`
	Status       string     `db:"status"        gorm:"column:status;not null"`
	ProviderCode string     `db:"provider_code" gorm:"column:provider_code"`
	ErrorMessage string     `db:"error_message" gorm:"column:error_message"`
	DeliveredAt  *time.Time `db:"delivered_at"  gorm:"column:delivered_at"`
}

func (DeliveryReportEntity) TableName() string {
	return "delivery_reports"
}

func toDeliveryReportEntity(m *model.DeliveryReport) *DeliveryReportEntity {
	if m == nil {
		return nil
	}
	return &DeliveryReportEntity{
		ID:           m.ID,
		MessageID:    m.MessageID,
		Status:       m.Status,
		ProviderCode: m.ProviderCode,
		ErrorMessage: m.ErrorMessage,
		DeliveredAt:  m.DeliveredAt,
	}
}

func toDeliveryReportModel(e *DeliveryReportEntity) *model.DeliveryReport {
	if e == nil {
		return nil
	}
	return &model.DeliveryReport{
		ID:           e.ID,
		MessageID:    e.MessageID,
		Status:       e.Status,
		ProviderCode: e.ProviderCode,
		ErrorMessage: e.ErrorMessage,
		DeliveredAt:  e.DeliveredAt,
	}
}
