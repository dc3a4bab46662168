package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/Argus/pkg/models"
)

// ProviderRegistry manages registered odds providers and their live status
// counters. Providers are never removed; disabling is the only
// deactivation path. Registration order is preserved because it defines
// the deterministic tie-break order during aggregation: when two providers
// report the same best price, the first-registered one wins.
type ProviderRegistry struct {
	providers map[string]*models.Provider
	statuses  map[string]*models.ProviderStatus
	order     []string
	mu        sync.RWMutex
}

// NewProviderRegistry creates an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]*models.Provider),
		statuses:  make(map[string]*models.ProviderStatus),
	}
}

// Add registers a provider and zero-initializes its status.
func (r *ProviderRegistry) Add(provider models.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[provider.ID]; exists {
		return fmt.Errorf("provider %s is already registered", provider.ID)
	}

	p := provider
	r.providers[provider.ID] = &p
	r.statuses[provider.ID] = &models.ProviderStatus{
		ProviderID: provider.ID,
		IsActive:   provider.Enabled,
	}
	r.order = append(r.order, provider.ID)
	return nil
}

// Get retrieves a provider by id.
func (r *ProviderRegistry) Get(id string) (models.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[id]
	if !exists {
		return models.Provider{}, false
	}
	return *provider, true
}

// SetEnabled toggles a provider on or off. Returns false if id is unknown.
func (r *ProviderRegistry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[id]
	if !exists {
		return false
	}
	provider.Enabled = enabled
	r.statuses[id].IsActive = enabled
	return true
}

// SetWeight updates a provider's weight. Returns false if id is unknown.
func (r *ProviderRegistry) SetWeight(id string, weight float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[id]
	if !exists {
		return false
	}
	provider.Weight = weight
	return true
}

// ListEnabled returns enabled providers in registration order. The refresh
// cycle uses this both to pick fetch targets and as the aggregation
// iteration order.
func (r *ProviderRegistry) ListEnabled() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]models.Provider, 0, len(r.order))
	for _, id := range r.order {
		if p := r.providers[id]; p.Enabled {
			providers = append(providers, *p)
		}
	}
	return providers
}

// ListAll returns every registered provider in registration order.
func (r *ProviderRegistry) ListAll() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]models.Provider, 0, len(r.order))
	for _, id := range r.order {
		providers = append(providers, *r.providers[id])
	}
	return providers
}

// Statuses returns a snapshot of every provider's status in registration order.
func (r *ProviderRegistry) Statuses() []models.ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]models.ProviderStatus, 0, len(r.order))
	for _, id := range r.order {
		statuses = append(statuses, *r.statuses[id])
	}
	return statuses
}

// Count returns the number of registered providers.
func (r *ProviderRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// RecordAttempt updates a provider's counters after a fetch attempt.
// Average latency is a running mean over successful calls only.
func (r *ProviderRegistry) RecordAttempt(id string, success bool, latency time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, exists := r.statuses[id]
	if !exists {
		return false
	}

	status.TotalCalls++
	if success {
		status.SuccessCalls++
		status.LastSuccessTime = time.Now()

		latencyMs := float64(latency.Milliseconds())
		n := float64(status.SuccessCalls)
		status.AvgLatencyMs += (latencyMs - status.AvgLatencyMs) / n
	} else {
		status.FailedCalls++
	}
	return true
}
