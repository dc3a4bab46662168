package scheduler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Argus/internal/aggregate"
	"github.com/XavierBriggs/Argus/internal/cache"
	"github.com/XavierBriggs/Argus/internal/fetch"
	"github.com/XavierBriggs/Argus/internal/ingest"
	"github.com/XavierBriggs/Argus/internal/registry"
	"github.com/XavierBriggs/Argus/pkg/models"
)

type schedulerHarness struct {
	scheduler *Scheduler
	registry  *registry.ProviderRegistry
	engine    *aggregate.Engine
}

func newSchedulerHarness(t *testing.T) *schedulerHarness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := cache.NewStore[[]byte](0)
	executor := fetch.NewExecutor(fetch.Config{
		MaxAttempts: 1,
		BackoffBase: time.Millisecond,
	}, store, logger)
	reg := registry.NewProviderRegistry()
	engine := aggregate.NewEngine(logger)
	ingestor := ingest.NewIngestor(executor, reg, engine, time.Nanosecond, logger)

	return &schedulerHarness{
		scheduler: NewScheduler(reg, ingestor, engine, nil, logger),
		registry:  reg,
		engine:    engine,
	}
}

func addProvider(t *testing.T, h *schedulerHarness, id, endpoint string) {
	t.Helper()
	require.NoError(t, h.registry.Add(models.Provider{
		ID:           id,
		Name:         id,
		BaseEndpoint: endpoint,
		Weight:       1.0,
		Enabled:      true,
	}))
}

func TestRunCycleAggregatesAllProviders(t *testing.T) {
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"odds":[{"event_id":"E1","market_id":"M1","outcome_id":"O1","price":2.10}]}`))
	}))
	defer serverA.Close()
	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"odds":[{"event_id":"E1","market_id":"M1","outcome_id":"O1","price":2.35}]}`))
	}))
	defer serverB.Close()

	h := newSchedulerHarness(t)
	addProvider(t, h, "A", serverA.URL)
	addProvider(t, h, "B", serverB.URL)

	h.scheduler.runCycle(context.Background())

	odds, ok := h.engine.BestPriceFor("E1", "M1", "O1")
	require.True(t, ok)
	assert.True(t, decimal.NewFromFloat(2.35).Equal(odds.Price))
	assert.Equal(t, "B", odds.WinningProviderID)
	assert.Equal(t, []string{"A", "B"}, odds.ContributingProviderIDs)
}

func TestRunCycleIsolatesFailingProvider(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"odds":[{"event_id":"E1","market_id":"M1","outcome_id":"O1","price":1.90}]}`))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	h := newSchedulerHarness(t)
	addProvider(t, h, "good", good.URL)
	addProvider(t, h, "bad", bad.URL)

	h.scheduler.runCycle(context.Background())

	// The failing provider neither blocks the cycle nor the recompute.
	odds, ok := h.engine.BestPriceFor("E1", "M1", "O1")
	require.True(t, ok)
	assert.Equal(t, "good", odds.WinningProviderID)

	for _, status := range h.registry.Statuses() {
		switch status.ProviderID {
		case "good":
			assert.Equal(t, int64(1), status.SuccessCalls)
		case "bad":
			assert.Equal(t, int64(1), status.FailedCalls)
			assert.True(t, status.IsActive)
		}
	}
}

func TestRunCycleSkipsDisabledProviders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"odds":[{"event_id":"E1","market_id":"M1","outcome_id":"O1","price":2.35}]}`))
	}))
	defer server.Close()

	h := newSchedulerHarness(t)
	addProvider(t, h, "A", server.URL)
	h.scheduler.runCycle(context.Background())
	require.Equal(t, 1, h.engine.Size())

	// Disable after a successful cycle: the stale slot must stop contributing.
	require.True(t, h.registry.SetEnabled("A", false))
	h.scheduler.runCycle(context.Background())

	assert.Equal(t, 0, h.engine.Size())
	// No fetch was attempted while disabled.
	assert.Equal(t, int64(1), h.registry.Statuses()[0].TotalCalls)
}

func TestStartStopRestart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"odds":[{"event_id":"E1","market_id":"M1","outcome_id":"O1","price":2.00}]}`))
	}))
	defer server.Close()

	h := newSchedulerHarness(t)
	addProvider(t, h, "A", server.URL)

	ctx := context.Background()
	require.NoError(t, h.scheduler.Start(ctx, 10*time.Millisecond))
	assert.Error(t, h.scheduler.Start(ctx, 10*time.Millisecond), "double start must fail")

	assert.Eventually(t, func() bool {
		_, ok := h.engine.BestPriceFor("E1", "M1", "O1")
		return ok
	}, time.Second, 5*time.Millisecond)

	h.scheduler.Stop()
	assert.False(t, h.scheduler.Running())
	h.scheduler.Stop() // idempotent

	require.NoError(t, h.scheduler.Start(ctx, 10*time.Millisecond))
	assert.True(t, h.scheduler.Running())
	h.scheduler.Stop()
}

func TestStartRejectsBadInterval(t *testing.T) {
	h := newSchedulerHarness(t)
	assert.Error(t, h.scheduler.Start(context.Background(), 0))
}
