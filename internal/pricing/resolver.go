// Package pricing resolves a unit rate for a destination. Lookups
// degrade gracefully: a missing rate never blocks a send, it falls back
// to the system default and leaves a warning in the logs so pricing
// gaps stay observable.
package pricing

import (
	"context"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/logger"
)

// System fallback applied when no configured rate matches.
const (
	FallbackRatePerUnit = 0.035
	FallbackCurrency    = "USD"
)

type RateRepository interface {
	// FindCurrent returns the most recently effective rate whose window
	// contains at, or nil when none matches.
	FindCurrent(ctx context.Context, country, network string, serviceType model.ServiceType, messageType model.MessageType, at time.Time) (*model.PricingRate, error)
}

type Resolver struct {
	rates RateRepository
	now   func() time.Time
}

func NewResolver(rates RateRepository) *Resolver {
	return &Resolver{rates: rates, now: time.Now}
}

// Resolve prices units for a destination. Lookup order: network-specific
// current rate, then the country-wide default, then the system fallback.
func (r *Resolver) Resolve(ctx context.Context, country, network string, serviceType model.ServiceType, messageType model.MessageType, units int) model.Rate {
	at := r.now()

	if network != "" {
		if rate := r.find(ctx, country, network, serviceType, messageType, at); rate != nil {
			return priced(rate.RatePerUnit, rate.Currency, units, false)
		}
	}
	if rate := r.find(ctx, country, "", serviceType, messageType, at); rate != nil {
		return priced(rate.RatePerUnit, rate.Currency, units, false)
	}

	logger.Warn("no pricing rate configured, using system fallback",
		"country", country, "network", network,
		"service_type", string(serviceType), "message_type", string(messageType))
	return priced(FallbackRatePerUnit, FallbackCurrency, units, true)
}

func (r *Resolver) find(ctx context.Context, country, network string, serviceType model.ServiceType, messageType model.MessageType, at time.Time) *model.PricingRate {
	rate, err := r.rates.FindCurrent(ctx, country, network, serviceType, messageType, at)
	if err != nil {
		logger.Warn("rate lookup failed, continuing with fallback chain",
			"country", country, "network", network, "error", err)
		return nil
	}
	return rate
}

func priced(ratePerUnit float64, currency string, units int, fallback bool) model.Rate {
	return model.Rate{
		RatePerUnit: ratePerUnit,
		Currency:    currency,
		TotalCost:   ratePerUnit * float64(units),
		Fallback:    fallback,
	}
}
