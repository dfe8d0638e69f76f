package model

import "time"

// OTPStatus is the lifecycle state of an OTP record. Everything except
// PENDING is terminal.
type OTPStatus string

const (
	OTPStatusPending  OTPStatus = "pending"
	OTPStatusVerified OTPStatus = "verified"
	OTPStatusFailed   OTPStatus = "failed"
	OTPStatusExpired  OTPStatus = "expired"
)

// PinType selects the alphabet used for code generation.
type PinType string

const (
	PinTypeNumeric      PinType = "numeric"
	PinTypeAlphanumeric PinType = "alphanumeric"
	PinTypeAlphabetic   PinType = "alphabetic"
)

type OTPRecord struct {
	ID          int64             `json:"id"`
	AccountID   int64             `json:"account_id"`
	Recipient   string            `json:"recipient"` // E.164
	CodeHash    string            `json:"-"`         // one-way, never exposed
	CodeLength  int               `json:"code_length"`
	PinType     PinType           `json:"pin_type"`
	Status      OTPStatus         `json:"status"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	Sender      string            `json:"sender"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	VerifiedAt  *time.Time        `json:"verified_at,omitempty"`
}

func (OTPRecord) TableName() string { return "otp_records" }

// OTPRequest carries the caller-tunable parameters of a code request.
// Zero values fall back to engine defaults. Amount feeds the {amount}
// template placeholder for transaction-confirmation codes.
type OTPRequest struct {
	Recipient   string
	CodeLength  int
	PinType     PinType
	Expiry      time.Duration
	MaxAttempts int
	Sender      string
	Template    string
	Amount      string
	Metadata    map[string]string
}

// OTPVerifyResult is returned on a successful verification.
type OTPVerifyResult struct {
	Verified   bool              `json:"verified"`
	VerifiedAt time.Time         `json:"verified_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
