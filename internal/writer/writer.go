// Package writer persists the aggregated best-price view to Postgres and
// publishes change records to a Redis stream for downstream consumers.
// Both sinks are optional and never fatal to a refresh cycle: the
// in-memory table remains the read path's source of truth.
package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/pkg/models"
)

const (
	bestOddsStream = "odds.best"
	// Keep the stream bounded; consumers that lag too far re-read the table.
	streamMaxLen = 10000
)

// Writer writes normalized odds snapshots. Either sink may be nil.
type Writer struct {
	db     *sql.DB
	redis  *redis.Client
	logger *logrus.Logger
}

// NewWriter creates a writer over the given sinks.
func NewWriter(db *sql.DB, redisClient *redis.Client, logger *logrus.Logger) *Writer {
	return &Writer{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}
}

// PersistSnapshot upserts changed normalized odds into odds_best. Rows are
// keyed by (event_id, market_id, outcome_id), matching the in-memory
// composite key.
func (w *Writer) PersistSnapshot(ctx context.Context, odds []models.NormalizedOdds) error {
	if w.db == nil || len(odds) == 0 {
		return nil
	}

	eventIDs := make([]string, len(odds))
	marketIDs := make([]string, len(odds))
	outcomeIDs := make([]string, len(odds))
	prices := make([]string, len(odds))
	winners := make([]string, len(odds))
	contributors := make([]string, len(odds))
	computedAts := make([]time.Time, len(odds))

	for i, odd := range odds {
		eventIDs[i] = odd.EventID
		marketIDs[i] = odd.MarketID
		outcomeIDs[i] = odd.OutcomeID
		prices[i] = odd.Price.String()
		winners[i] = odd.WinningProviderID
		// Array-in-array via UNNEST is awkward; store contributors as CSV.
		contributors[i] = joinIDs(odd.ContributingProviderIDs)
		computedAts[i] = odd.ComputedAt
	}

	query := `
		INSERT INTO odds_best (event_id, market_id, outcome_id, price, winning_provider_id, contributing_providers, computed_at)
		SELECT UNNEST($1::text[]), UNNEST($2::text[]), UNNEST($3::text[]), UNNEST($4::numeric[]), UNNEST($5::text[]), UNNEST($6::text[]), UNNEST($7::timestamptz[])
		ON CONFLICT (event_id, market_id, outcome_id) DO UPDATE SET
			price = EXCLUDED.price,
			winning_provider_id = EXCLUDED.winning_provider_id,
			contributing_providers = EXCLUDED.contributing_providers,
			computed_at = EXCLUDED.computed_at
	`

	if _, err := w.db.ExecContext(ctx, query,
		pq.Array(eventIDs),
		pq.Array(marketIDs),
		pq.Array(outcomeIDs),
		pq.Array(prices),
		pq.Array(winners),
		pq.Array(contributors),
		pq.Array(computedAts),
	); err != nil {
		return fmt.Errorf("upsert odds_best: %w", err)
	}
	return nil
}

// PublishChanges appends each changed record to the best-odds Redis stream
// tagged with the cycle id that produced it.
func (w *Writer) PublishChanges(ctx context.Context, cycleID string, odds []models.NormalizedOdds) error {
	if w.redis == nil || len(odds) == 0 {
		return nil
	}

	pipe := w.redis.Pipeline()
	for _, odd := range odds {
		payload, err := json.Marshal(odd)
		if err != nil {
			return fmt.Errorf("marshal normalized odds: %w", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: bestOddsStream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"cycle_id": cycleID,
				"key":      odd.Key(),
				"data":     payload,
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to stream %s: %w", bestOddsStream, err)
	}

	w.logger.WithFields(logrus.Fields{
		"cycle":   cycleID,
		"records": len(odds),
	}).Debug("published best-odds changes")
	return nil
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
