package repository

import (
	"github.com/afrisend/comms-gateway/internal/model"
)

type AccountEntity struct {
	ID        int64   `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	APIKey    string  `db:"api_key"    gorm:"column:api_key;not null;unique"`
	Balance   float64 `db:"balance"    gorm:"column:balance;not null;default:0"`
	Credit    float64 `db:"credit"     gorm:"column:credit;not null;default:0"`
	Currency  string  `db:"currency"   gorm:"column:currency;not null;default:USD"`
	Active    bool    `db:"active"     gorm:"column:active;not null;default:true"`
	RateLimit int     `db:"rate_limit" gorm:"column:rate_limit;not null;default:0"`
}

func (AccountEntity) TableName() string {
	return "accounts"
}

func toAccountEntity(m *model.Account) *AccountEntity {
	if m == nil {
		return nil
	}
	return &AccountEntity{
		ID:        m.ID,
		APIKey:    m.APIKey,
		Balance:   m.Balance,
		Credit:    m.Credit,
		Currency:  m.Currency,
		Active:    m.Active,
		RateLimit: m.RateLimit,
	}
}

func toAccountModel(e *AccountEntity) *model.Account {
	if e == nil {
		return nil
	}
	return &model.Account{
		ID:        e.ID,
		APIKey:    e.APIKey,
		Balance:   e.Balance,
		Credit:    e.Credit,
		Currency:  e.Currency,
		Active:    e.Active,
		RateLimit: e.RateLimit,
	}
}
