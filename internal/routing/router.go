// Package routing picks a delivery provider for a destination and feeds
// real send outcomes back into the selection data. Provider rows are the
// shared state; selection itself is a pure ordering over a snapshot.
package routing

import (
	"context"
	"sort"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/logger"
)

// Routing hints accepted by Select.
const (
	HintDefault     = ""
	HintSpeed       = "speed"
	HintReliability = "reliability"
)

// DefaultUnhealthyThreshold is how many consecutive failures make a
// provider ineligible even while administratively active.
const DefaultUnhealthyThreshold = 5

type ProviderRepository interface {
	ListActiveByCountry(ctx context.Context, country string) ([]*model.Provider, error)
	RecordSuccess(ctx context.Context, name string, latencyMs int64) error
	RecordFailure(ctx context.Context, name string) error
}

type Router struct {
	providers          ProviderRepository
	unhealthyThreshold int
}

func NewRouter(providers ProviderRepository, unhealthyThreshold int) *Router {
	if unhealthyThreshold <= 0 {
		unhealthyThreshold = DefaultUnhealthyThreshold
	}
	return &Router{providers: providers, unhealthyThreshold: unhealthyThreshold}
}

// Select returns the best provider for the destination, or nil when none
// qualifies. A nil result is an expected outcome, not an error; callers
// turn it into a user-facing "no provider available" condition.
func (r *Router) Select(ctx context.Context, country, network string, hint string) (*model.Provider, error) {
	all, err := r.providers.ListActiveByCountry(ctx, country)
	if err != nil {
		return nil, err
	}

	candidates := make([]*model.Provider, 0, len(all))
	for _, p := range all {
		if p.ErrorStreak >= r.unhealthyThreshold {
			logger.Debug("skipping unhealthy provider", "provider", p.Name, "error_streak", p.ErrorStreak)
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Network-specific providers are a refinement, not a requirement:
	// fall back to the country-wide set when the subset is empty.
	if network != "" {
		narrowed := make([]*model.Provider, 0, len(candidates))
		for _, p := range candidates {
			if p.SupportsNetwork(network) {
				narrowed = append(narrowed, p)
			}
		}
		if len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	orderCandidates(candidates, hint)
	return candidates[0], nil
}

func orderCandidates(providers []*model.Provider, hint string) {
	switch hint {
	case HintSpeed:
		sort.SliceStable(providers, func(i, j int) bool {
			return providers[i].AvgLatencyMs < providers[j].AvgLatencyMs
		})
	case HintReliability:
		sort.SliceStable(providers, func(i, j int) bool {
			return providers[i].SuccessRate() > providers[j].SuccessRate()
		})
	default:
		sort.SliceStable(providers, func(i, j int) bool {
			if providers[i].Priority != providers[j].Priority {
				return providers[i].Priority > providers[j].Priority
			}
			return providers[i].SuccessRate() > providers[j].SuccessRate()
		})
	}
}

// RecordOutcome feeds a real send attempt back into the provider row:
// successes reset the error streak, failures grow it and degrade future
// selection once the streak crosses the unhealthy threshold.
func (r *Router) RecordOutcome(ctx context.Context, provider string, success bool, latencyMs int64) error {
	if success {
		return r.providers.RecordSuccess(ctx, provider, latencyMs)
	}
	return r.providers.RecordFailure(ctx, provider)
}
