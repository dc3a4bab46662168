package service

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

	"github.com/XavierBriggs/Argus/internal/fetch"
	"github.com/XavierBriggs/Argus/internal/ingest"
	"github.com/XavierBriggs/Argus/pkg/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := New(context.Background(), Options{
		Fetch:    fetch.Config{MaxAttempts: 1, BackoffBase: time.Millisecond},
		CacheTTL: time.Nanosecond,
	}, logger)
	t.Cleanup(svc.Close)
	return svc
}

// End-to-end: two providers with different payload shapes, one refresh
// loop, best price resolved through the read surface.
func TestBestPriceEndToEnd(t *testing.T) {
	wurlus := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events":[{"id":"E1","markets":[{"id":"M1","outcomes":[{"id":"O1","price":2.10}]}]}]}`))
	}))
	defer wurlus.Close()
	walapp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"event":"E1","market":"M1","outcome":"O1","odds":"2.35"}]`))
	}))
	defer walapp.Close()

	svc := newTestService(t)

	require.NoError(t, svc.AddProvider(models.Provider{
		ID: "wurlus", BaseEndpoint: wurlus.URL, Weight: 1.0, Enabled: true,
	}))
	require.NoError(t, svc.AddProvider(models.Provider{
		ID: "walapp", BaseEndpoint: walapp.URL, Weight: 0.8, Enabled: true,
	}))

	require.NoError(t, svc.StartRefresh(10*time.Millisecond))
	defer svc.StopRefresh()

	require.Eventually(t, func() bool {
		_, ok := svc.BestOddsForOutcome("E1", "M1", "O1")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	odds, ok := svc.BestOddsForOutcome("E1", "M1", "O1")
	require.True(t, ok)
	assert.True(t, decimal.NewFromFloat(2.35).Equal(odds.Price))
	assert.Equal(t, "walapp", odds.WinningProviderID)
	assert.Equal(t, []string{"wurlus", "walapp"}, odds.ContributingProviderIDs)

	assert.Len(t, svc.BestOddsForEvent("E1"), 1)
	assert.Len(t, svc.BestOddsForMarket("M1"), 1)
}

// A provider that times out repeatedly with no cache yields no entries for
// its outcomes and a rising failure counter, while remaining active.
func TestTimeoutsLeaveNoGhostEntries(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer down.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := New(context.Background(), Options{
		Fetch: fetch.Config{
			MaxAttempts:    1,
			BackoffBase:    time.Millisecond,
			DefaultTimeout: 10 * time.Millisecond,
		},
		CacheTTL: time.Nanosecond,
	}, logger)
	t.Cleanup(svc.Close)

	require.NoError(t, svc.AddProvider(models.Provider{
		ID: "down", BaseEndpoint: down.URL, Weight: 1.0, Enabled: true,
	}))

	require.NoError(t, svc.StartRefresh(20*time.Millisecond))

	require.Eventually(t, func() bool {
		return svc.ProvidersStatus()[0].FailedCalls >= 3
	}, 3*time.Second, 10*time.Millisecond)
	svc.StopRefresh()

	status := svc.ProvidersStatus()[0]
	assert.True(t, status.IsActive, "failures must not deactivate a provider")
	assert.Zero(t, status.SuccessCalls)
	assert.Empty(t, svc.BestOddsForEvent("E1"))
}

func TestRegisterParserOverridesDefault(t *testing.T) {
	svc := newTestService(t)

	parser, ok := ingest.ParserByName("walapp")
	require.True(t, ok)
	svc.RegisterParser("custom", parser)

	require.NoError(t, svc.AddProvider(models.Provider{
		ID: "custom", BaseEndpoint: "https://custom.example.com", Enabled: true,
	}))
	assert.Len(t, svc.Providers(), 1)
}

func TestAdminSurface(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.AddProvider(models.Provider{ID: "a", BaseEndpoint: "https://a.example.com", Enabled: true}))
	assert.True(t, svc.SetProviderWeight("a", 0.5))
	assert.True(t, svc.SetProviderEnabled("a", false))
	assert.False(t, svc.SetProviderEnabled("missing", true))
	assert.False(t, svc.SetProviderWeight("missing", 0.5))
}
