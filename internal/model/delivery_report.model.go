package model

import "time"

// DeliveryReport is one status event reported for a message, either by
// the dispatch processor or by the inbound delivery webhook.
type DeliveryReport struct {
	ID           int64      `json:"id"`
	MessageID    int64      `json:"message_id"`
	Status       string     `json:"status"`
	ProviderCode string     `json:"provider_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"` // nullable
}

func (DeliveryReport) TableName() string { return "delivery_reports" }

// MessageWithDeliveryReports joins a message with its report history for
// the reporting endpoint.
type MessageWithDeliveryReports struct {
	Message
	DeliveryReports []DeliveryReport `json:"delivery_reports"`
}
