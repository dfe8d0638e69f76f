package repository

import (
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
)

type RateEntity struct {
	ID            int64      `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Country       string     `db:"country"        gorm:"column:country;not null;index:idx_rates_lookup"`
	Network       string     `db:"network"        gorm:"column:network;index:idx_rates_lookup"` // "" = country default
	ServiceType   string     `db:"service_type"   gorm:"column:service_type;not null;index:idx_rates_lookup"`
	MessageType   string     `db:"message_type"   gorm:"column:message_type;not null;index:idx_rates_lookup"`
	RatePerUnit   float64    `db:"rate_per_unit"  gorm:"column:rate_per_unit;not null"`
	Currency      string     `db:"currency"       gorm:"column:currency;not null"`
	EffectiveFrom time.Time  `db:"effective_from" gorm:"column:effective_from;not null"`
	EffectiveTo   *time.Time `db:"effective_to"   gorm:"column:effective_to"`
}

func (RateEntity) TableName() string {
	return "pricing_rates"
}

func toRateEntity(m *model.PricingRate) *RateEntity {
	if m == nil {
		return nil
	}
	return &RateEntity{
		ID:            m.ID,
		Country:       m.Country,
		Network:       m.Network,
		ServiceType:   string(m.ServiceType),
		MessageType:   string(m.MessageType),
		RatePerUnit:   m.RatePerUnit,
		Currency:      m.Currency,
		EffectiveFrom: m.EffectiveFrom,
		EffectiveTo:   m.EffectiveTo,
	}
}

func toRateModel(e *RateEntity) *model.PricingRate {
	if e == nil {
		return nil
	}
	return &model.PricingRate{
		ID:            e.ID,
		Country:       e.Country,
		Network:       e.Network,
		ServiceType:   model.ServiceType(e.ServiceType),
		MessageType:   model.MessageType(e.MessageType),
		RatePerUnit:   e.RatePerUnit,
		Currency:      e.Currency,
		EffectiveFrom: e.EffectiveFrom,
		EffectiveTo:   e.EffectiveTo,
	}
}
