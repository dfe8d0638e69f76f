package repository

import (
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
)

type OTPEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	AccountID   int64      `db:"account_id"   gorm:"column:account_id;not null;index:idx_otp_account_recipient"`
	Recipient   string     `db:"recipient"    gorm:"column:recipient;not null;index:idx_otp_account_recipient"`
	CodeHash    string     `db:"code_hash"    gorm:"column:code_hash;not null"`
	CodeLength  int        `db:"code_length"  gorm:"column:code_length;not null"`
	PinType     string     `db:"pin_type"     gorm:"column:pin_type;not null"`
	Status      string     `db:"status"       gorm:"column:status;not null;index"`
	ExpiresAt   time.Time  `db:"expires_at"   gorm:"column:expires_at;not null;index"`
	Attempts    int        `db:"attempts"     gorm:"column:attempts;not null;default:0"`
	MaxAttempts int        `db:"max_attempts" gorm:"column:max_attempts;not null"`
	Sender      string     `db:"sender"       gorm:"column:sender"`
	Metadata    string     `db:"metadata"     gorm:"column:metadata"` // JSON object
	CreatedAt   time.Time  `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	VerifiedAt  *time.Time `db:"verified_at"  gorm:"column:verified_at"`
}

func (OTPEntity) TableName() string {
	return "otp_records"
}

func toOTPEntity(m *model.OTPRecord) *OTPEntity {
	if m == nil {
		return nil
	}
	return &OTPEntity{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Recipient:   m.Recipient,
		CodeHash:    m.CodeHash,
		CodeLength:  m.CodeLength,
		PinType:     string(m.PinType),
		Status:      string(m.Status),
		ExpiresAt:   m.ExpiresAt,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		Sender:      m.Sender,
		Metadata:    marshalMap(m.Metadata),
		CreatedAt:   m.CreatedAt,
		VerifiedAt:  m.VerifiedAt,
	}
}

func toOTPModel(e *OTPEntity) *model.OTPRecord {
	if e == nil {
		return nil
	}
	return &model.OTPRecord{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Recipient:   e.Recipient,
		CodeHash:    e.CodeHash,
		CodeLength:  e.CodeLength,
		PinType:     model.PinType(e.PinType),
		Status:      model.OTPStatus(e.Status),
		ExpiresAt:   e.ExpiresAt,
		Attempts:    e.Attempts,
		MaxAttempts: e.MaxAttempts,
		Sender:      e.Sender,
		Metadata:    unmarshalMap(e.Metadata),
		CreatedAt:   e.CreatedAt,
		VerifiedAt:  e.VerifiedAt,
	}
}
