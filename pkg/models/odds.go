package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Provider describes one upstream odds source. Providers are registered at
// startup from configuration and are never removed during the process
// lifetime; disabling is the only deactivation path.
type Provider struct {
	ID           string
	Name         string
	BaseEndpoint string
	APIKey       string
	Weight       float64 // [0,1], advisory only
	Enabled      bool
}

// ProviderStatus holds live health counters for one provider.
// One-to-one with Provider, mutated after every fetch attempt.
type ProviderStatus struct {
	ProviderID      string    `json:"provider_id"`
	IsActive        bool      `json:"is_active"`
	LastSuccessTime time.Time `json:"last_success_time"` // zero until the first successful call
	TotalCalls      int64     `json:"total_calls"`
	SuccessCalls    int64     `json:"success_calls"`
	FailedCalls     int64     `json:"failed_calls"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"` // running mean over successful calls only
}

// RawOdds is a single price quote as reported by one provider, before
// aggregation. A provider's raw odds are replaced wholesale on every
// refresh cycle.
type RawOdds struct {
	ProviderID string
	EventID    string
	MarketID   string
	OutcomeID  string
	Price      decimal.Decimal // decimal odds, e.g. 2.35
	ObservedAt time.Time
}

// Key returns the composite lookup key for this quote's outcome.
func (r RawOdds) Key() string {
	return OutcomeKey(r.EventID, r.MarketID, r.OutcomeID)
}

// NormalizedOdds is the aggregated best-price view for one outcome,
// rebuilt in full on every aggregation pass. Price is always the maximum
// price among the contributing providers' quotes.
type NormalizedOdds struct {
	EventID                 string          `json:"event_id"`
	MarketID                string          `json:"market_id"`
	OutcomeID               string          `json:"outcome_id"`
	Price                   decimal.Decimal `json:"price"`
	ContributingProviderIDs []string        `json:"contributing_provider_ids"`
	WinningProviderID       string          `json:"winning_provider_id"`
	ComputedAt              time.Time       `json:"computed_at"`
}

// Key returns the composite lookup key for this outcome.
func (n NormalizedOdds) Key() string {
	return OutcomeKey(n.EventID, n.MarketID, n.OutcomeID)
}

// OutcomeKey builds the canonical event:market:outcome composite key.
func OutcomeKey(eventID, marketID, outcomeID string) string {
	return fmt.Sprintf("%s:%s:%s", eventID, marketID, outcomeID)
}
