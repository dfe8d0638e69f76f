package model

import (
	"time"
)

// MessageStatus is the lifecycle state of a message.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending" // scheduled, not yet queued
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusExpired   MessageStatus = "expired"
)

// MessageType distinguishes how a message entered the pipeline.
type MessageType string

const (
	MessageTypeSingle MessageType = "single"
	MessageTypeBulk   MessageType = "bulk"
	MessageTypeOTP    MessageType = "otp"
)

// ServiceType selects the rate table used for pricing and the ledger
// bucket used for debits.
type ServiceType string

const (
	ServiceTypeSMS ServiceType = "sms"
	ServiceTypeOTP ServiceType = "otp"
)

// messageTransitions defines the legal forward edges of the message state
// machine. Statuses are monotonic; there is no way back to an earlier one.
var messageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusPending:   {MessageStatusQueued, MessageStatusFailed},
	MessageStatusQueued:    {MessageStatusSent, MessageStatusFailed, MessageStatusExpired},
	MessageStatusSent:      {MessageStatusDelivered, MessageStatusFailed, MessageStatusExpired},
	MessageStatusDelivered: {},
	MessageStatusFailed:    {},
	MessageStatusExpired:   {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to MessageStatus) bool {
	for _, next := range messageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources lists the statuses that may legally move to target.
// Repositories use it to build conditional updates so illegal
// transitions fail at the store, not just in process.
func TransitionSources(target MessageStatus) []MessageStatus {
	var sources []MessageStatus
	for from, nexts := range messageTransitions {
		for _, next := range nexts {
			if next == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

type Message struct {
	ID               int64             `json:"id"`
	AccountID        int64             `json:"account_id"`
	Recipient        string            `json:"recipient"` // E.164
	RecipientCountry string            `json:"recipient_country"`
	RecipientNetwork string            `json:"recipient_network,omitempty"`
	Content          string            `json:"content"`
	Type             MessageType       `json:"type"`
	Sender           string            `json:"sender"`
	Status           MessageStatus     `json:"status"`
	Provider         string            `json:"provider,omitempty"`
	Units            int               `json:"units"`
	UnitPrice        float64           `json:"unit_price"`
	TotalCost        float64           `json:"total_cost"`
	Currency         string            `json:"currency"`
	BatchID          *string           `json:"batch_id,omitempty"` // shared across one bulk request
	ScheduledAt      *time.Time        `json:"scheduled_at,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"` // classification advisories, not persisted
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (Message) TableName() string { return "messages" }

// SendRequest is the input for a single send.
type SendRequest struct {
	Recipient   string
	Content     string
	Sender      string
	Priority    string // routing hint: "", "speed", "reliability"
	ScheduledAt *time.Time
	Metadata    map[string]string
	Tags        []string
}

// MaxContentLength bounds message bodies. 1600 characters covers ten
// concatenated GSM-7 units.
const MaxContentLength = 1600

func (r SendRequest) Validate() *ValidationError {
	var fields []string
	if r.Recipient == "" {
		fields = append(fields, "recipient is required")
	}
	if r.Content == "" {
		fields = append(fields, "content is required")
	}
	if len([]rune(r.Content)) > MaxContentLength {
		fields = append(fields, "content exceeds maximum length")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// BulkSendRequest fans one body out to many recipients under a shared
// batch id.
type BulkSendRequest struct {
	Recipients  []string
	Content     string
	Sender      string
	Priority    string
	ScheduledAt *time.Time
	Metadata    map[string]string
	Tags        []string
}

// RecipientOutcome is one line item of a bulk send result. Failures are
// data here, never errors; partial success is the expected outcome.
type RecipientOutcome struct {
	Recipient string   `json:"recipient"`
	Accepted  bool     `json:"accepted"`
	MessageID int64    `json:"message_id,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

type BulkSendResult struct {
	BatchID  string             `json:"batch_id"`
	Accepted int                `json:"accepted"`
	Rejected int                `json:"rejected"`
	Outcomes []RecipientOutcome `json:"outcomes"`
}

// MessageFilter controls List queries.
type MessageFilter struct {
	AccountID *int64
	BatchID   *string
	Statuses  []MessageStatus
	Recipient *string // normalized form
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	Desc      bool
}
