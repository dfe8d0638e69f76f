package model

import "time"

type Transaction struct {
	ID          int64       `json:"id"`
	AccountID   int64       `json:"account_id"`
	Amount      float64     `json:"amount"`
	Currency    string      `json:"currency"`
	Type        string      `json:"type"` // "debit" | "credit"
	ServiceType ServiceType `json:"service_type"`
	MessageID   *int64      `json:"message_id,omitempty"` // nullable (ON DELETE SET NULL)
	CreatedAt   time.Time   `json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }
