package repository

import (
	"encoding/json"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
)

type MessageEntity struct {
	ID               int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	AccountID        int64      `db:"account_id"        gorm:"column:account_id;not null;index"`
	Recipient        string     `db:"recipient"         gorm:"column:recipient;not null;index"`
	RecipientCountry string     `db:"recipient_country" gorm:"column:recipient_country"`
	RecipientNetwork string     `db:"recipient_network" gorm:"column:recipient_network"`
	Content          string     `db:"content"           gorm:"column:content;not null"`
	Type             string     `db:"type"              gorm:"column:type;not null"`
	Sender           string     `db:"sender"            gorm:"column:sender"`
	Status           string     `db:"status"            gorm:"column:status;not null;index"`
	Provider         string     `db:"provider"          gorm:"column:provider"`
	Units            int        `db:"units"             gorm:"column:units;not null;default:0"`
	UnitPrice        float64    `db:"unit_price"        gorm:"column:unit_price;not null;default:0"`
	TotalCost        float64    `db:"total_cost"        gorm:"column:total_cost;not null;default:0"`
	Currency         string     `db:"currency"          gorm:"column:currency"`
	BatchID          *string    `db:"batch_id"          gorm:"column:batch_id;index"`
	ScheduledAt      *time.Time `db:"scheduled_at"      gorm:"column:scheduled_at;index"`
	FailureReason    string     `db:"failure_reason"    gorm:"column:failure_reason"`
	Metadata         string     `db:"metadata"          gorm:"column:metadata"` // JSON object
	Tags             string     `db:"tags"              gorm:"column:tags"`     // JSON array
	CreatedAt        time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:               m.ID,
		AccountID:        m.AccountID,
		Recipient:        m.Recipient,
		RecipientCountry: m.RecipientCountry,
		RecipientNetwork: m.RecipientNetwork,
		Content:          m.Content,
		Type:             string(m.Type),
		Sender:           m.Sender,
		Status:           string(m.Status),
		Provider:         m.Provider,
		Units:            m.Units,
		UnitPrice:        m.UnitPrice,
		TotalCost:        m.TotalCost,
		Currency:         m.Currency,
		BatchID:          m.BatchID,
		ScheduledAt:      m.ScheduledAt,
		FailureReason:    m.FailureReason,
		Metadata:         marshalMap(m.Metadata),
		Tags:             marshalSlice(m.Tags),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:               e.ID,
		AccountID:        e.AccountID,
		Recipient:        e.Recipient,
		RecipientCountry: e.RecipientCountry,
		RecipientNetwork: e.RecipientNetwork,
		Content:          e.Content,
		Type:             model.MessageType(e.Type),
		Sender:           e.Sender,
		Status:           model.MessageStatus(e.Status),
		Provider:         e.Provider,
		Units:            e.Units,
		UnitPrice:        e.UnitPrice,
		TotalCost:        e.TotalCost,
		Currency:         e.Currency,
		BatchID:          e.BatchID,
		ScheduledAt:      e.ScheduledAt,
		FailureReason:    e.FailureReason,
		Metadata:         unmarshalMap(e.Metadata),
		Tags:             unmarshalSlice(e.Tags),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}

// Metadata and tags are stored as JSON text so the same entities work on
// postgres in production and sqlite in tests.

func marshalMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalMap(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

func marshalSlice(s []string) string {
	if len(s) == 0 {
		return ""
	}
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalSlice(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
