// Package store provides the durable key-value store the tracking engine
// persists guest identities, page buffers, and the pending-delivery queue
// into. The interface is deliberately small so the quota/cleanup logic and
// every consumer can be exercised against the in-memory implementation.
package store

import "errors"

// Well-known keys and prefixes. Every durable record the engine owns lives
// under one of these.
const (
	// KeyDeviceGuestID holds the persistent guest ID for this device.
	KeyDeviceGuestID = "device:guestId"

	// PrefixGuestRecord + fingerprint hash holds the serialized guest record.
	PrefixGuestRecord = "guest:"

	// PrefixHeatmap + page path holds a legacy per-page point buffer written
	// before the collector backend existed. The migration pass drains and
	// clears these keys; nothing writes them anymore.
	PrefixHeatmap = "heatmap:"

	// PrefixLiveOverlay + page path mirrors the collector's bounded in-memory
	// point buffer, with the capture surface it was recorded against. Serves
	// the heatmap read path when the collector is unreachable. Kept apart
	// from PrefixHeatmap so already-delivered points are never re-shipped by
	// the migration pass.
	PrefixLiveOverlay = "overlay:"

	// PrefixVisitor + session ID holds a fallback visitor record captured
	// while the collector was unreachable.
	PrefixVisitor = "visitor:"

	// KeyPendingQueue holds the bounded pending-delivery queue.
	KeyPendingQueue = "delivery:pending"
)

// ErrQuotaExceeded is returned by Set when the store is out of space. The
// guarded wrapper reacts by running a cleanup pass and retrying once.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// DurableStore is the persistence contract. Implementations must treat Get
// of a missing key as (value="", ok=false, err=nil), not an error.
type DurableStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	KeysWithPrefix(prefix string) ([]string, error)
	Close() error
}
