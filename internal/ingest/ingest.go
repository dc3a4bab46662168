// Package ingest fetches raw odds from individual providers through the
// resilient executor and maps provider-specific payloads into canonical
// quotes via registered parsers.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/internal/aggregate"
	"github.com/XavierBriggs/Argus/internal/fetch"
	"github.com/XavierBriggs/Argus/internal/registry"
	"github.com/XavierBriggs/Argus/pkg/contracts"
	"github.com/XavierBriggs/Argus/pkg/models"
)

// Ingestor performs per-provider odds fetches. Failures are isolated: a
// provider whose fetch or parse fails keeps its previous raw-odds slot and
// only its own status counters are touched.
type Ingestor struct {
	executor *fetch.Executor
	registry *registry.ProviderRegistry
	engine   *aggregate.Engine
	cacheTTL time.Duration
	logger   *logrus.Logger

	parsersMu sync.RWMutex
	parsers   map[string]contracts.OddsParser
}

// NewIngestor creates an ingestor wired to the executor, registry and engine.
func NewIngestor(
	executor *fetch.Executor,
	reg *registry.ProviderRegistry,
	engine *aggregate.Engine,
	cacheTTL time.Duration,
	logger *logrus.Logger,
) *Ingestor {
	return &Ingestor{
		executor: executor,
		registry: reg,
		engine:   engine,
		cacheTTL: cacheTTL,
		logger:   logger,
		parsers:  builtinParsers(),
	}
}

// RegisterParser installs the parser for a provider id, replacing any
// previous registration.
func (i *Ingestor) RegisterParser(providerID string, parser contracts.OddsParser) {
	i.parsersMu.Lock()
	defer i.parsersMu.Unlock()
	i.parsers[providerID] = parser
}

// HasParser reports whether a parser is registered for the provider id.
// Unknown ids fall back to the canonical parser at fetch time.
func (i *Ingestor) HasParser(providerID string) bool {
	i.parsersMu.RLock()
	defer i.parsersMu.RUnlock()
	_, ok := i.parsers[providerID]
	return ok
}

// FetchProvider fetches the provider's odds endpoint, parses the payload
// and replaces that provider's raw-odds slot wholesale. On any failure the
// prior slot is left untouched and the failure is recorded against the
// provider's status.
func (i *Ingestor) FetchProvider(ctx context.Context, provider models.Provider) error {
	start := time.Now()

	header := http.Header{}
	if provider.APIKey != "" {
		header.Set("Authorization", "Bearer "+provider.APIKey)
	}

	body, err := i.executor.Execute(ctx, fetch.Request{
		URL:    provider.BaseEndpoint,
		Method: http.MethodGet,
		Header: header,
	}, "odds:"+provider.ID, i.cacheTTL)
	if err != nil {
		i.registry.RecordAttempt(provider.ID, false, time.Since(start))
		return fmt.Errorf("fetch provider %s: %w", provider.ID, err)
	}

	observedAt := time.Now()
	quotes, err := i.parserFor(provider.ID).Parse(provider.ID, body, observedAt)
	if err != nil {
		i.registry.RecordAttempt(provider.ID, false, time.Since(start))
		return fmt.Errorf("parse provider %s payload: %w", provider.ID, err)
	}

	// An empty parse result is "no data", not a failure: the provider's
	// slot is replaced with the empty set it reported.
	i.engine.ReplaceProviderOdds(provider.ID, quotes)
	i.registry.RecordAttempt(provider.ID, true, time.Since(start))

	i.logger.WithFields(logrus.Fields{
		"provider": provider.ID,
		"quotes":   len(quotes),
		"took":     time.Since(start),
	}).Debug("provider odds ingested")

	return nil
}

func (i *Ingestor) parserFor(providerID string) contracts.OddsParser {
	i.parsersMu.RLock()
	defer i.parsersMu.RUnlock()

	if parser, ok := i.parsers[providerID]; ok {
		return parser
	}
	return contracts.ParserFunc(parseCanonical)
}
