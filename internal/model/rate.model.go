package model

import "time"

// PricingRate is one row of the rate table. Network == "" means the
// country-wide default. At most one rate should be currently effective
// per (country, network, service type, message type) tuple; when the data
// violates that, the most recently effective row wins.
type PricingRate struct {
	ID            int64       `json:"id"`
	Country       string      `json:"country"` // ISO alpha-2
	Network       string      `json:"network,omitempty"`
	ServiceType   ServiceType `json:"service_type"`
	MessageType   MessageType `json:"message_type"`
	RatePerUnit   float64     `json:"rate_per_unit"`
	Currency      string      `json:"currency"`
	EffectiveFrom time.Time   `json:"effective_from"`
	EffectiveTo   *time.Time  `json:"effective_to,omitempty"` // nil = open-ended
}

func (PricingRate) TableName() string { return "pricing_rates" }

// EffectiveAt reports whether the rate's window contains t.
func (r *PricingRate) EffectiveAt(t time.Time) bool {
	if t.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && !t.Before(*r.EffectiveTo) {
		return false
	}
	return true
}

// Rate is a resolved price for a concrete send.
type Rate struct {
	RatePerUnit float64 `json:"rate_per_unit"`
	Currency    string  `json:"currency"`
	TotalCost   float64 `json:"total_cost"`
	Fallback    bool    `json:"fallback"` // true when the system default was used
}
