// Package service wires the registry, ingestion, aggregation and
// scheduling components into the single object handed to route handlers.
// Everything is explicit instance state; there are no package-level
// singletons.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/internal/aggregate"
	"github.com/XavierBriggs/Argus/internal/cache"
	"github.com/XavierBriggs/Argus/internal/fetch"
	"github.com/XavierBriggs/Argus/internal/ingest"
	"github.com/XavierBriggs/Argus/internal/registry"
	"github.com/XavierBriggs/Argus/internal/scheduler"
	"github.com/XavierBriggs/Argus/internal/writer"
	"github.com/XavierBriggs/Argus/pkg/contracts"
	"github.com/XavierBriggs/Argus/pkg/models"
)

// Service is the aggregator façade. It implements contracts.OddsReader
// and contracts.OddsAdmin.
type Service struct {
	ctx       context.Context
	store     *cache.Store[[]byte]
	registry  *registry.ProviderRegistry
	engine    *aggregate.Engine
	ingestor  *ingest.Ingestor
	scheduler *scheduler.Scheduler
	logger    *logrus.Logger
}

var (
	_ contracts.OddsReader = (*Service)(nil)
	_ contracts.OddsAdmin  = (*Service)(nil)
)

// Options configures service construction.
type Options struct {
	Fetch          fetch.Config
	CacheTTL       time.Duration
	CacheMaxSize   int
	CacheJanitor   time.Duration
	SnapshotWriter *writer.Writer // optional
}

// New builds the full component graph. ctx bounds the lifetime of all
// background work started by the service.
func New(ctx context.Context, opts Options, logger *logrus.Logger) *Service {
	store := cache.NewStore[[]byte](opts.CacheMaxSize)
	if opts.CacheJanitor > 0 {
		store.StartJanitor(opts.CacheJanitor)
	}

	executor := fetch.NewExecutor(opts.Fetch, store, logger)
	reg := registry.NewProviderRegistry()
	engine := aggregate.NewEngine(logger)
	ingestor := ingest.NewIngestor(executor, reg, engine, opts.CacheTTL, logger)
	sched := scheduler.NewScheduler(reg, ingestor, engine, opts.SnapshotWriter, logger)

	return &Service{
		ctx:       ctx,
		store:     store,
		registry:  reg,
		engine:    engine,
		ingestor:  ingestor,
		scheduler: sched,
		logger:    logger,
	}
}

// AddProvider registers a provider. Providers without a registered parser
// are parsed with the canonical shape.
func (s *Service) AddProvider(provider models.Provider) error {
	return s.registry.Add(provider)
}

// RegisterParser installs the payload parser for a provider id.
func (s *Service) RegisterParser(providerID string, parser contracts.OddsParser) {
	s.ingestor.RegisterParser(providerID, parser)
}

// SetProviderEnabled toggles a provider. Returns false if id is unknown.
func (s *Service) SetProviderEnabled(id string, enabled bool) bool {
	return s.registry.SetEnabled(id, enabled)
}

// SetProviderWeight updates a provider's weight. Returns false if id is unknown.
func (s *Service) SetProviderWeight(id string, weight float64) bool {
	return s.registry.SetWeight(id, weight)
}

// StartRefresh begins recurring fetch-and-aggregate cycles.
func (s *Service) StartRefresh(interval time.Duration) error {
	return s.scheduler.Start(s.ctx, interval)
}

// StopRefresh stops the recurring cycle. In-flight fetches finish and
// their results are applied.
func (s *Service) StopRefresh() {
	s.scheduler.Stop()
}

// RefreshRunning reports whether the refresh loop is active.
func (s *Service) RefreshRunning() bool {
	return s.scheduler.Running()
}

// BestOddsForEvent returns the best-price view for every outcome of an event.
func (s *Service) BestOddsForEvent(eventID string) []models.NormalizedOdds {
	return s.engine.BestPricesForEvent(eventID)
}

// BestOddsForMarket returns the best-price view for every outcome of a market.
func (s *Service) BestOddsForMarket(marketID string) []models.NormalizedOdds {
	return s.engine.BestPricesForMarket(marketID)
}

// BestOddsForOutcome returns the best-price view for one outcome, if present.
func (s *Service) BestOddsForOutcome(eventID, marketID, outcomeID string) (models.NormalizedOdds, bool) {
	return s.engine.BestPriceFor(eventID, marketID, outcomeID)
}

// ProvidersStatus returns every provider's live health counters.
func (s *Service) ProvidersStatus() []models.ProviderStatus {
	return s.registry.Statuses()
}

// Providers returns every registered provider.
func (s *Service) Providers() []models.Provider {
	return s.registry.ListAll()
}

// Close stops the scheduler and the cache janitor.
func (s *Service) Close() {
	s.scheduler.Stop()
	s.store.Stop()
}
