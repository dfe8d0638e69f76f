package repository

import (
	"github.com/afrisend/comms-gateway/internal/model"
)

type ProviderEntity struct {
	ID                 int64  `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	Name               string `db:"name"                gorm:"column:name;not null;unique"`
	Endpoint           string `db:"endpoint"            gorm:"column:endpoint"`
	SupportedCountries string `db:"supported_countries" gorm:"column:supported_countries"` // JSON array
	SupportedNetworks  string `db:"supported_networks"  gorm:"column:supported_networks"`  // JSON array
	Status             string `db:"status"              gorm:"column:status;not null;index"`
	Priority           int    `db:"priority"            gorm:"column:priority;not null;default:0"`
	SuccessCount       int64  `db:"success_count"       gorm:"column:success_count;not null;default:0"`
	FailureCount       int64  `db:"failure_count"       gorm:"column:failure_count;not null;default:0"`
	AvgLatencyMs       int64  `db:"avg_latency_ms"      gorm:"column:avg_latency_ms;not null;default:0"`
	ErrorStreak        int    `db:"error_streak"        gorm:"column:error_streak;not null;default:0"`
}

func (ProviderEntity) TableName() string {
	return "providers"
}

func toProviderEntity(m *model.Provider) *ProviderEntity {
	if m == nil {
		return nil
	}
	return &ProviderEntity{
		ID:                 m.ID,
		Name:               m.Name,
		Endpoint:           m.Endpoint,
		SupportedCountries: marshalSlice(m.SupportedCountries),
		SupportedNetworks:  marshalSlice(m.SupportedNetworks),
		Status:             string(m.Status),
		Priority:           m.Priority,
		SuccessCount:       m.SuccessCount,
		FailureCount:       m.FailureCount,
		AvgLatencyMs:       m.AvgLatencyMs,
		ErrorStreak:        m.ErrorStreak,
	}
}

func toProviderModel(e *ProviderEntity) *model.Provider {
	if e == nil {
		return nil
	}
	return &model.Provider{
		ID:                 e.ID,
		Name:               e.Name,
		Endpoint:           e.Endpoint,
		SupportedCountries: unmarshalSlice(e.SupportedCountries),
		SupportedNetworks:  unmarshalSlice(e.SupportedNetworks),
		Status:             model.ProviderStatus(e.Status),
		Priority:           e.Priority,
		SuccessCount:       e.SuccessCount,
		FailureCount:       e.FailureCount,
		AvgLatencyMs:       e.AvgLatencyMs,
		ErrorStreak:        e.ErrorStreak,
	}
}

func toProviderModels(entities []*ProviderEntity) []*model.Provider {
	if entities == nil {
		return nil
	}
	models := make([]*model.Provider, len(entities))
	for i, e := range entities {
		models[i] = toProviderModel(e)
	}
	return models
}
