// Package scheduler drives the recurring fetch-and-aggregate refresh cycle.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/internal/aggregate"
	"github.com/XavierBriggs/Argus/internal/ingest"
	"github.com/XavierBriggs/Argus/internal/registry"
	"github.com/XavierBriggs/Argus/internal/writer"
	"github.com/XavierBriggs/Argus/pkg/models"
)

// Scheduler runs non-overlapping refresh cycles on a fixed interval. Each
// cycle fetches every enabled provider concurrently, waits for all of them
// to settle regardless of individual failures, then triggers exactly one
// aggregation pass. Cycle N+1 never starts before cycle N's aggregate step
// completes.
type Scheduler struct {
	registry *registry.ProviderRegistry
	ingestor *ingest.Ingestor
	engine   *aggregate.Engine
	writer   *writer.Writer // optional, nil disables persistence/publish
	logger   *logrus.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler over the given components.
func NewScheduler(
	reg *registry.ProviderRegistry,
	ingestor *ingest.Ingestor,
	engine *aggregate.Engine,
	snapshotWriter *writer.Writer,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		registry: reg,
		ingestor: ingestor,
		engine:   engine,
		writer:   snapshotWriter,
		logger:   logger,
	}
}

// Start begins the refresh loop with the given interval. The first cycle
// runs immediately. Returns an error if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx, interval, stopChan)
	}()

	s.logger.WithField("interval", interval).Info("refresh scheduler started")
	return nil
}

// Stop cancels the recurring timer and waits for the in-flight cycle to
// finish. Individual fetches are not cancelled mid-flight; their results
// are still applied. The scheduler can be started again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("refresh scheduler stopped")
}

// Running reports whether the refresh loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context, interval time.Duration, stopChan chan struct{}) {
	s.runCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// The cycle runs synchronously here, so a slow cycle delays
			// the next tick's work instead of overlapping it.
			s.runCycle(ctx)
		case <-stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle executes one full refresh: concurrent per-provider ingestion
// joined without short-circuiting, then a single recompute, then the
// optional snapshot write and change publish.
func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	cycleID := uuid.NewString()
	providers := s.registry.ListEnabled()

	log := s.logger.WithField("cycle", cycleID)

	var wg sync.WaitGroup
	var failed int64
	var failedMu sync.Mutex

	for _, provider := range providers {
		wg.Add(1)
		go func(provider models.Provider) {
			defer wg.Done()
			if err := s.ingestor.FetchProvider(ctx, provider); err != nil {
				failedMu.Lock()
				failed++
				failedMu.Unlock()
				log.WithField("provider", provider.ID).WithError(err).Warn("provider ingestion failed")
			}
		}(provider)
	}
	wg.Wait()

	orderedIDs := make([]string, len(providers))
	for i, provider := range providers {
		orderedIDs[i] = provider.ID
	}
	changed := s.engine.Recompute(orderedIDs)

	if s.writer != nil {
		if err := s.writer.PersistSnapshot(ctx, changed); err != nil {
			log.WithError(err).Warn("snapshot persist failed")
		}
		if err := s.writer.PublishChanges(ctx, cycleID, changed); err != nil {
			log.WithError(err).Warn("change publish failed")
		}
	}

	log.WithFields(logrus.Fields{
		"providers": len(providers),
		"failed":    failed,
		"outcomes":  s.engine.Size(),
		"changed":   len(changed),
		"took":      time.Since(start),
	}).Info("refresh cycle complete")
}
