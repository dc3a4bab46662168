package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Argus/pkg/testutil"
)

func TestAddRejectsDuplicateID(t *testing.T) {
	reg := NewProviderRegistry()
	require.NoError(t, reg.Add(testutil.NewTestProvider("wurlus", 1.0)))
	assert.Error(t, reg.Add(testutil.NewTestProvider("wurlus", 0.5)))
	assert.Equal(t, 1, reg.Count())
}

func TestAddZeroInitializesStatus(t *testing.T) {
	reg := NewProviderRegistry()
	require.NoError(t, reg.Add(testutil.NewTestProvider("wurlus", 1.0)))

	statuses := reg.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "wurlus", statuses[0].ProviderID)
	assert.True(t, statuses[0].IsActive)
	assert.Zero(t, statuses[0].TotalCalls)
	assert.True(t, statuses[0].LastSuccessTime.IsZero())
}

func TestSetEnabledUnknownProvider(t *testing.T) {
	reg := NewProviderRegistry()
	assert.False(t, reg.SetEnabled("ghost", true))
	assert.False(t, reg.SetWeight("ghost", 0.5))
}

func TestListEnabledPreservesRegistrationOrder(t *testing.T) {
	reg := NewProviderRegistry()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Add(testutil.NewTestProvider(id, 1.0)))
	}
	require.True(t, reg.SetEnabled("a", false))

	enabled := reg.ListEnabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "c", enabled[0].ID)
	assert.Equal(t, "b", enabled[1].ID)
}

func TestDisableThenReenable(t *testing.T) {
	reg := NewProviderRegistry()
	require.NoError(t, reg.Add(testutil.NewTestProvider("wurlus", 1.0)))

	require.True(t, reg.SetEnabled("wurlus", false))
	assert.Empty(t, reg.ListEnabled())
	assert.False(t, reg.Statuses()[0].IsActive)

	require.True(t, reg.SetEnabled("wurlus", true))
	assert.Len(t, reg.ListEnabled(), 1)
}

func TestRecordAttemptCounters(t *testing.T) {
	reg := NewProviderRegistry()
	require.NoError(t, reg.Add(testutil.NewTestProvider("wurlus", 1.0)))

	require.True(t, reg.RecordAttempt("wurlus", true, 100*time.Millisecond))
	require.True(t, reg.RecordAttempt("wurlus", false, time.Second))
	require.True(t, reg.RecordAttempt("wurlus", true, 300*time.Millisecond))

	status := reg.Statuses()[0]
	assert.Equal(t, int64(3), status.TotalCalls)
	assert.Equal(t, int64(2), status.SuccessCalls)
	assert.Equal(t, int64(1), status.FailedCalls)
	// Failed call latency must not pollute the mean: (100+300)/2.
	assert.InDelta(t, 200.0, status.AvgLatencyMs, 0.001)
	assert.False(t, status.LastSuccessTime.IsZero())
}

func TestRecordAttemptUnknownProvider(t *testing.T) {
	reg := NewProviderRegistry()
	assert.False(t, reg.RecordAttempt("ghost", true, time.Millisecond))
}

func TestSetWeight(t *testing.T) {
	reg := NewProviderRegistry()
	require.NoError(t, reg.Add(testutil.NewTestProvider("wurlus", 1.0)))
	require.True(t, reg.SetWeight("wurlus", 0.3))

	provider, ok := reg.Get("wurlus")
	require.True(t, ok)
	assert.Equal(t, 0.3, provider.Weight)
}
