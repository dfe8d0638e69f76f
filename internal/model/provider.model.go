package model

// ProviderStatus is set administratively; health is tracked separately
// through the error streak.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "active"
	ProviderStatusInactive ProviderStatus = "inactive"
)

type Provider struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	Endpoint          string         `json:"endpoint"`
	SupportedCountries []string      `json:"supported_countries"` // ISO alpha-2
	SupportedNetworks []string       `json:"supported_networks"`  // carrier codes, e.g. "mtn-ng"
	Status            ProviderStatus `json:"status"`
	Priority          int            `json:"priority"` // higher wins
	SuccessCount      int64          `json:"success_count"`
	FailureCount      int64          `json:"failure_count"`
	AvgLatencyMs      int64          `json:"avg_latency_ms"`
	ErrorStreak       int            `json:"error_streak"` // consecutive failures, reset on success
}

// SuccessRate returns the rolling success ratio. A provider with no
// history is treated as perfect so new providers get traffic.
func (p *Provider) SuccessRate() float64 {
	total := p.SuccessCount + p.FailureCount
	if total == 0 {
		return 1.0
	}
	return float64(p.SuccessCount) / float64(total)
}

func (p *Provider) SupportsCountry(country string) bool {
	for _, c := range p.SupportedCountries {
		if c == country {
			return true
		}
	}
	return false
}

func (p *Provider) SupportsNetwork(network string) bool {
	for _, n := range p.SupportedNetworks {
		if n == network {
			return true
		}
	}
	return false
}
