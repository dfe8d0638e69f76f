package repository

import (
	"github.com/afrisend/comms-gateway/internal/model"
)

type SenderIdentityEntity struct {
	ID        int64  `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	AccountID int64  `db:"account_id" gorm:"column:account_id;not null;index"`
	Name      string `db:"name"       gorm:"column:name;not null"`
	Status    string `db:"status"     gorm:"column:status;not null"`
	Active    bool   `db:"active"     gorm:"column:active;not null;default:true"`
	IsDefault bool   `db:"is_default" gorm:"column:is_default;not null;default:false"`
}

func (SenderIdentityEntity) TableName() string {
	return "sender_identities"
}

func toSenderEntity(m *model.SenderIdentity) *SenderIdentityEntity {
	if m == nil {
		return nil
	}
	return &SenderIdentityEntity{
		ID:        m.ID,
		AccountID: m.AccountID,
		Name:      m.Name,
		Status:    string(m.Status),
		Active:    m.Active,
		IsDefault: m.IsDefault,
	}
}

func toSenderModel(e *SenderIdentityEntity) *model.SenderIdentity {
	if e == nil {
		return nil
	}
	return &model.SenderIdentity{
		ID:        e.ID,
		AccountID: e.AccountID,
		Name:      e.Name,
		Status:    model.SenderIdentityStatus(e.Status),
		Active:    e.Active,
		IsDefault: e.IsDefault,
	}
}
