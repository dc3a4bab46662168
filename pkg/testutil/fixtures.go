package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierBriggs/Argus/pkg/models"
)

// NewTestProvider creates an enabled test provider.
func NewTestProvider(id string, weight float64) models.Provider {
	return models.Provider{
		ID:           id,
		Name:         id,
		BaseEndpoint: "https://" + id + ".example.com/odds",
		Weight:       weight,
		Enabled:      true,
	}
}

// NewTestQuote creates a raw odds quote for the given outcome.
func NewTestQuote(providerID, eventID, marketID, outcomeID string, price float64) models.RawOdds {
	return models.RawOdds{
		ProviderID: providerID,
		EventID:    eventID,
		MarketID:   marketID,
		OutcomeID:  outcomeID,
		Price:      decimal.NewFromFloat(price),
		ObservedAt: time.Now(),
	}
}

// TwoProviderFixture is the canonical aggregation scenario: provider A
// quotes 2.10 and provider B quotes 2.35 for the same outcome, so B's
// price wins while both contribute.
type TwoProviderFixture struct {
	ProviderA     models.Provider
	ProviderB     models.Provider
	QuoteA        models.RawOdds
	QuoteB        models.RawOdds
	ExpectedPrice decimal.Decimal
}

// NewTwoProviderFixture builds the canonical scenario for E1/M1/O1.
func NewTwoProviderFixture() TwoProviderFixture {
	return TwoProviderFixture{
		ProviderA:     NewTestProvider("A", 1.0),
		ProviderB:     NewTestProvider("B", 0.8),
		QuoteA:        NewTestQuote("A", "E1", "M1", "O1", 2.10),
		QuoteB:        NewTestQuote("B", "E1", "M1", "O1", 2.35),
		ExpectedPrice: decimal.NewFromFloat(2.35),
	}
}
