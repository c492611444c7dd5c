package anomaly

import (
	"context"
	"sync"
	"time"
)

// MemoryHistory is an in-process HistoryStore used in tests and
// single-tenant deployments without Redis.
type MemoryHistory struct {
	mu           sync.RWMutex
	observations map[string][]Observation
	lastIBAN     map[string]string
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		observations: make(map[string][]Observation),
		lastIBAN:     make(map[string]string),
	}
}

// Recent returns the counterparty's observations at or after since.
func (h *MemoryHistory) Recent(_ context.Context, counterpartyID string, since time.Time) ([]Observation, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var recent []Observation
	for _, obs := range h.observations[counterpartyID] {
		if !obs.At.Before(since) {
			recent = append(recent, obs)
		}
	}
	return recent, nil
}

// LastIBAN returns the last recorded bank account for the counterparty.
func (h *MemoryHistory) LastIBAN(_ context.Context, counterpartyID string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastIBAN[counterpartyID], nil
}

// Record appends an observation and updates the last known bank account.
func (h *MemoryHistory) Record(_ context.Context, obs Observation) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observations[obs.CounterpartyID] = append(h.observations[obs.CounterpartyID], obs)
	if obs.IBAN != "" {
		h.lastIBAN[obs.CounterpartyID] = obs.IBAN
	}
	return nil
}
