package repository

import (
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
)

type TransactionEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	AccountID   int64     `db:"account_id"   gorm:"column:account_id;not null;index"`
	Amount      float64   `db:"amount"       gorm:"column:amount;not null"`
	Currency    string    `db:"currency"     gorm:"column:currency;not null"`
	Type        string    `db:"type"         gorm:"column:type;not null"`
	ServiceType string    `db:"service_type" gorm:"column:service_type;not null"`
	MessageID   *int64    `db:"message_id"   gorm:"column:message_id;index"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Amount:      m.Amount,
		Currency:    m.Currency,
		Type:        m.Type,
		ServiceType: string(m.ServiceType),
		MessageID:   m.MessageID,
		CreatedAt:   m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Amount:      e.Amount,
		Currency:    e.Currency,
		Type:        e.Type,
		ServiceType: model.ServiceType(e.ServiceType),
		MessageID:   e.MessageID,
		CreatedAt:   e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
