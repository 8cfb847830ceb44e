// Package rules provides the deterministic layer of the audit pipeline: a set
// of per-record arithmetic and business-logic checks, a registry for selecting
// them by ID, and an engine that runs the registered checks over a dataset.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// Check is a single deterministic rule evaluated against one shipment record.
// Checks are pure: the same record always yields the same anomalies, and no
// check mutates the record. A record may trip several checks; each produces
// its own AnomalyRecord and deduplication is left to the aggregator.
type Check interface {
	// ID returns the stable check identifier, e.g. "R2".
	ID() string
	// Evaluate returns zero or more anomalies for the given record. A record
	// missing the fields a check needs is simply skipped by that check.
	Evaluate(rec domain.ShipmentRecord) []domain.AnomalyRecord
}

// Registry holds named rule checks for selection by config.
type Registry struct {
	checks map[string]Check
	mu     sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add checks.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// Register adds a check under its own ID.
func (r *Registry) Register(c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[c.ID()] = c
}

// Get returns the check by ID, or an error if not found.
func (r *Registry) Get(id string) (Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checks[id]
	if !ok {
		return nil, fmt.Errorf("rule check %q not found", id)
	}
	return c, nil
}

// List returns all registered check IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.checks))
	for id := range r.checks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the registered checks ordered by ID, so engine output is
// deterministic across runs.
func (r *Registry) All() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.checks))
	for id := range r.checks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Check, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.checks[id])
	}
	return out
}
