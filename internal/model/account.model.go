package model

type Account struct {
	ID        int64   `json:"id"`
	APIKey    string  `json:"api_key"`
	Balance   float64 `json:"balance"`
	Credit    float64 `json:"credit"` // post-paid allowance on top of the wallet
	Currency  string  `json:"currency"`
	Active    bool    `json:"active"`
	RateLimit int     `json:"rate_limit"` // requests per window, 0 = unlimited
}

func (Account) TableName() string { return "accounts" }

// BalanceInfo is the projection the balance endpoint returns.
type BalanceInfo struct {
	Wallet   float64 `json:"wallet"`
	Credit   float64 `json:"credit"`
	Currency string  `json:"currency"`
}
