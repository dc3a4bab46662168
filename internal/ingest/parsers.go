package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierBriggs/Argus/pkg/contracts"
	"github.com/XavierBriggs/Argus/pkg/models"
)

// builtinParsers returns the parser map for the upstream providers Argus
// ships with. New providers register theirs through RegisterParser.
func builtinParsers() map[string]contracts.OddsParser {
	return map[string]contracts.OddsParser{
		"wurlus": contracts.ParserFunc(parseWurlus),
		"walapp": contracts.ParserFunc(parseWalapp),
	}
}

// ParserByName returns a built-in parser by payload shape name, for
// wiring providers from configuration.
func ParserByName(name string) (contracts.OddsParser, bool) {
	switch name {
	case "wurlus":
		return contracts.ParserFunc(parseWurlus), true
	case "walapp":
		return contracts.ParserFunc(parseWalapp), true
	case "canonical", "":
		return contracts.ParserFunc(parseCanonical), true
	default:
		return nil, false
	}
}

// wurlus nests outcomes under events and markets.
type wurlusPayload struct {
	Events []struct {
		ID      string `json:"id"`
		Markets []struct {
			ID       string `json:"id"`
			Outcomes []struct {
				ID    string  `json:"id"`
				Price float64 `json:"price"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"events"`
}

func parseWurlus(providerID string, payload []byte, observedAt time.Time) ([]models.RawOdds, error) {
	var resp wurlusPayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode wurlus payload: %w", err)
	}

	quotes := make([]models.RawOdds, 0)
	for _, event := range resp.Events {
		for _, market := range event.Markets {
			for _, outcome := range market.Outcomes {
				quotes = append(quotes, models.RawOdds{
					ProviderID: providerID,
					EventID:    event.ID,
					MarketID:   market.ID,
					OutcomeID:  outcome.ID,
					Price:      decimal.NewFromFloat(outcome.Price),
					ObservedAt: observedAt,
				})
			}
		}
	}
	return quotes, nil
}

// walapp sends a flat list with string-typed odds.
type walappEntry struct {
	Event   string `json:"event"`
	Market  string `json:"market"`
	Outcome string `json:"outcome"`
	Odds    string `json:"odds"`
}

func parseWalapp(providerID string, payload []byte, observedAt time.Time) ([]models.RawOdds, error) {
	var entries []walappEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("decode walapp payload: %w", err)
	}

	quotes := make([]models.RawOdds, 0, len(entries))
	for _, entry := range entries {
		price, err := decimal.NewFromString(entry.Odds)
		if err != nil {
			return nil, fmt.Errorf("walapp odds %q for %s/%s/%s: %w",
				entry.Odds, entry.Event, entry.Market, entry.Outcome, err)
		}
		quotes = append(quotes, models.RawOdds{
			ProviderID: providerID,
			EventID:    entry.Event,
			MarketID:   entry.Market,
			OutcomeID:  entry.Outcome,
			Price:      price,
			ObservedAt: observedAt,
		})
	}
	return quotes, nil
}

// canonicalPayload is the shape well-behaved providers send; it is also
// the fallback for provider ids with no registered parser.
type canonicalPayload struct {
	Odds []struct {
		EventID   string  `json:"event_id"`
		MarketID  string  `json:"market_id"`
		OutcomeID string  `json:"outcome_id"`
		Price     float64 `json:"price"`
	} `json:"odds"`
}

func parseCanonical(providerID string, payload []byte, observedAt time.Time) ([]models.RawOdds, error) {
	var resp canonicalPayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode odds payload: %w", err)
	}

	quotes := make([]models.RawOdds, 0, len(resp.Odds))
	for _, odd := range resp.Odds {
		quotes = append(quotes, models.RawOdds{
			ProviderID: providerID,
			EventID:    odd.EventID,
			MarketID:   odd.MarketID,
			OutcomeID:  odd.OutcomeID,
			Price:      decimal.NewFromFloat(odd.Price),
			ObservedAt: observedAt,
		})
	}
	return quotes, nil
}
