// Package universe loads the tracked contract universe from the relational
// store and caches it in memory between refreshes.
package universe

import (
	"context"
	"sync"
	"time"

	"tqbridge/internal/core"
)

// Loader caches the universe symbol list. A failed refresh falls back to
// the previous list so a transient database outage does not empty the
// reconciler's working set.
type Loader struct {
	store        core.IOrderStore
	refreshEvery time.Duration
	logger       core.ILogger

	mu          sync.Mutex
	cached      []string
	lastRefresh time.Time

	now func() time.Time
}

// NewLoader builds a loader that refreshes at most once per refreshEvery.
func NewLoader(store core.IOrderStore, refreshEvery time.Duration, logger core.ILogger) *Loader {
	return &Loader{
		store:        store,
		refreshEvery: refreshEvery,
		logger:       logger.WithField("component", "universe_loader"),
		now:          time.Now,
	}
}

// Load returns the current universe symbols, querying the store only when
// the cache is stale.
func (l *Loader) Load(ctx context.Context) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.lastRefresh.IsZero() && now.Sub(l.lastRefresh) < l.refreshEvery {
		return l.cached
	}

	symbols, err := l.store.UniverseSymbols(ctx)
	if err != nil {
		l.logger.Error("universe refresh failed, keeping cached list",
			"cached", len(l.cached), "error", err)
		return l.cached
	}

	l.cached = symbols
	l.lastRefresh = now
	l.logger.Info("universe refreshed", "symbols", len(symbols))
	return l.cached
}

// ForceRefresh invalidates the cache so the next Load queries the store.
func (l *Loader) ForceRefresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRefresh = time.Time{}
}
