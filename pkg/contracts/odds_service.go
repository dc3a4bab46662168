package contracts

import (
	"time"

	"github.com/XavierBriggs/Argus/pkg/models"
)

// OddsReader is the read surface consumed by route handlers and the
// per-sport API wrappers. Implementations must never let readers observe a
// partially rebuilt table.
type OddsReader interface {
	// BestOddsForEvent returns the best-price view for every outcome of an event.
	BestOddsForEvent(eventID string) []models.NormalizedOdds

	// BestOddsForMarket returns the best-price view for every outcome of a market.
	BestOddsForMarket(marketID string) []models.NormalizedOdds

	// BestOddsForOutcome returns the best-price view for one outcome, if present.
	BestOddsForOutcome(eventID, marketID, outcomeID string) (models.NormalizedOdds, bool)

	// ProvidersStatus returns every provider's live health counters.
	ProvidersStatus() []models.ProviderStatus
}

// OddsAdmin is the administrative surface for managing providers and the
// refresh cycle at runtime.
type OddsAdmin interface {
	// AddProvider registers a new provider and its parser by provider id.
	AddProvider(provider models.Provider) error

	// SetProviderEnabled toggles a provider. Returns false if id is unknown.
	SetProviderEnabled(id string, enabled bool) bool

	// SetProviderWeight updates a provider's weight. Returns false if id is unknown.
	SetProviderWeight(id string, weight float64) bool

	// StartRefresh begins recurring fetch-and-aggregate cycles.
	StartRefresh(interval time.Duration) error

	// StopRefresh cancels the recurring cycle, letting any in-flight
	// cycle finish.
	StopRefresh()
}
