package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// GuardedStore wraps any DurableStore with the quota-recovery policy:
// on ErrQuotaExceeded it runs one best-effort cleanup pass (oldest heatmap,
// overlay, and visitor entries first, then guest records inactive beyond the
// eviction window) and retries the write once. A write that still fails is
// reported to the caller, who drops the record and logs; it never
// propagates past the tracking layer.
type GuardedStore struct {
	inner  DurableStore
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewGuardedStore wraps the inner store.
func NewGuardedStore(inner DurableStore, logger *logging.ChanneledLogger) *GuardedStore {
	return &GuardedStore{inner: inner, logger: logger, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (g *GuardedStore) WithClock(now func() time.Time) *GuardedStore {
	g.now = now
	return g
}

// Get delegates to the inner store.
func (g *GuardedStore) Get(key string) (string, bool, error) { return g.inner.Get(key) }

// Remove delegates to the inner store.
func (g *GuardedStore) Remove(key string) error { return g.inner.Remove(key) }

// KeysWithPrefix delegates to the inner store.
func (g *GuardedStore) KeysWithPrefix(prefix string) ([]string, error) {
	return g.inner.KeysWithPrefix(prefix)
}

// Close delegates to the inner store.
func (g *GuardedStore) Close() error { return g.inner.Close() }

// Set writes the value, recovering from quota exhaustion with one cleanup
// pass and one retry.
func (g *GuardedStore) Set(key, value string) error {
	err := g.inner.Set(key, value)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	g.logger.Storage().Warn("Store quota exceeded, running cleanup pass", "key", key)
	evicted := g.cleanup()
	g.logger.Storage().Info("Cleanup pass finished", "evicted", evicted)

	if err := g.inner.Set(key, value); err != nil {
		g.logger.Storage().Warn("Write still failing after cleanup, dropping record", "key", key, "error", err.Error())
		return err
	}
	return nil
}

// cleanup evicts the oldest half of the heatmap and visitor entries and any
// guest record inactive longer than the eviction window. Errors inside the
// pass are swallowed; cleanup is best-effort by definition.
func (g *GuardedStore) cleanup() int {
	evicted := 0
	evicted += g.evictOldestHalf(PrefixHeatmap)
	evicted += g.evictOldestHalf(PrefixLiveOverlay)
	evicted += g.evictOldestHalf(PrefixVisitor)
	evicted += g.evictInactiveGuests()
	return evicted
}

func (g *GuardedStore) evictOldestHalf(prefix string) int {
	keys, err := g.inner.KeysWithPrefix(prefix)
	if err != nil || len(keys) == 0 {
		return 0
	}
	// KeysWithPrefix returns oldest first.
	n := len(keys) / 2
	if n == 0 {
		n = 1
	}
	evicted := 0
	for _, key := range keys[:n] {
		if g.inner.Remove(key) == nil {
			evicted++
		}
	}
	return evicted
}

func (g *GuardedStore) evictInactiveGuests() int {
	keys, err := g.inner.KeysWithPrefix(PrefixGuestRecord)
	if err != nil {
		return 0
	}
	cutoff := g.now().Add(-config.GuestInactiveEvict)
	evicted := 0
	for _, key := range keys {
		value, ok, err := g.inner.Get(key)
		if err != nil || !ok {
			continue
		}
		var probe struct {
			LastInteraction time.Time `json:"lastInteraction"`
		}
		if json.Unmarshal([]byte(value), &probe) != nil {
			continue
		}
		if !probe.LastInteraction.IsZero() && probe.LastInteraction.Before(cutoff) {
			if g.inner.Remove(key) == nil {
				evicted++
			}
		}
	}
	return evicted
}
