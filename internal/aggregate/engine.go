// Package aggregate computes the best available price per market outcome
// across all enabled providers' most recent quotes.
package aggregate

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/pkg/models"
)

// Engine owns the per-provider raw-odds slots and the normalized
// best-price table. The normalized table is rebuilt in full on every
// recompute and swapped as one reference, so readers always observe
// either the prior fully consistent table or the new one.
type Engine struct {
	slotsMu sync.RWMutex
	slots   map[string][]models.RawOdds

	tableMu sync.RWMutex
	table   map[string]models.NormalizedOdds

	logger *logrus.Logger
}

// NewEngine creates an empty aggregation engine.
func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{
		slots:  make(map[string][]models.RawOdds),
		table:  make(map[string]models.NormalizedOdds),
		logger: logger,
	}
}

// ReplaceProviderOdds overwrites one provider's raw-odds slot wholesale.
// There is no incremental merge: the slot is exactly what the provider
// reported on its last successful fetch.
func (e *Engine) ReplaceProviderOdds(providerID string, odds []models.RawOdds) {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	e.slots[providerID] = odds
}

// ProviderOdds returns a copy of one provider's current raw-odds slot.
func (e *Engine) ProviderOdds(providerID string) []models.RawOdds {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()

	slot := e.slots[providerID]
	out := make([]models.RawOdds, len(slot))
	copy(out, slot)
	return out
}

// Recompute rebuilds the normalized table from the raw-odds slots of the
// given providers, in the given order. The order is the registry's
// registration order, which makes the equal-price tie-break deterministic:
// the first provider encountered with the maximum price wins. Slots of
// providers not listed (disabled ones included) do not contribute even if
// they still hold data. Returns the entries that are new or changed since
// the previous table, for downstream publishing.
func (e *Engine) Recompute(orderedProviderIDs []string) []models.NormalizedOdds {
	computedAt := time.Now()

	e.slotsMu.RLock()
	fresh := make(map[string]models.NormalizedOdds)
	for _, providerID := range orderedProviderIDs {
		for _, quote := range e.slots[providerID] {
			key := quote.Key()
			existing, seen := fresh[key]
			if !seen {
				fresh[key] = models.NormalizedOdds{
					EventID:                 quote.EventID,
					MarketID:                quote.MarketID,
					OutcomeID:               quote.OutcomeID,
					Price:                   quote.Price,
					ContributingProviderIDs: []string{quote.ProviderID},
					WinningProviderID:       quote.ProviderID,
					ComputedAt:              computedAt,
				}
				continue
			}

			existing.ContributingProviderIDs = appendUnique(existing.ContributingProviderIDs, quote.ProviderID)
			// Strictly greater only: on a tie the earlier provider keeps the win.
			if quote.Price.GreaterThan(existing.Price) {
				existing.Price = quote.Price
				existing.WinningProviderID = quote.ProviderID
			}
			fresh[key] = existing
		}
	}
	e.slotsMu.RUnlock()

	e.tableMu.Lock()
	previous := e.table
	e.table = fresh
	e.tableMu.Unlock()

	changed := diffTables(previous, fresh)

	e.logger.WithFields(logrus.Fields{
		"outcomes": len(fresh),
		"changed":  len(changed),
	}).Debug("normalized odds table rebuilt")

	return changed
}

// BestPriceFor returns the normalized best price for one outcome.
func (e *Engine) BestPriceFor(eventID, marketID, outcomeID string) (models.NormalizedOdds, bool) {
	table := e.currentTable()
	odds, ok := table[models.OutcomeKey(eventID, marketID, outcomeID)]
	return odds, ok
}

// BestPricesForEvent returns the normalized best prices for every outcome
// of an event.
func (e *Engine) BestPricesForEvent(eventID string) []models.NormalizedOdds {
	table := e.currentTable()
	out := make([]models.NormalizedOdds, 0)
	for _, odds := range table {
		if odds.EventID == eventID {
			out = append(out, odds)
		}
	}
	return out
}

// BestPricesForMarket returns the normalized best prices for every outcome
// of a market across events.
func (e *Engine) BestPricesForMarket(marketID string) []models.NormalizedOdds {
	table := e.currentTable()
	out := make([]models.NormalizedOdds, 0)
	for _, odds := range table {
		if odds.MarketID == marketID {
			out = append(out, odds)
		}
	}
	return out
}

// Size returns the number of outcomes in the normalized table.
func (e *Engine) Size() int {
	return len(e.currentTable())
}

// currentTable grabs the current table reference. The table itself is
// never mutated after the swap, so holding the reference without the lock
// is safe.
func (e *Engine) currentTable() map[string]models.NormalizedOdds {
	e.tableMu.RLock()
	defer e.tableMu.RUnlock()
	return e.table
}

// diffTables returns entries of fresh that are absent from previous or
// differ in price or winning provider.
func diffTables(previous, fresh map[string]models.NormalizedOdds) []models.NormalizedOdds {
	changed := make([]models.NormalizedOdds, 0)
	for key, odds := range fresh {
		old, ok := previous[key]
		if !ok || !old.Price.Equal(odds.Price) || old.WinningProviderID != odds.WinningProviderID {
			changed = append(changed, odds)
		}
	}
	return changed
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
