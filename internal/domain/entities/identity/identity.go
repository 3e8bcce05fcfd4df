// Package identity provides domain entities for device fingerprinting and
// persistent guest identity. A fingerprint is a derived value recomputed on
// every resolution; the guest identity it mints is frozen in durable storage
// so minor fingerprint drift never re-keys a returning visitor.
package identity

import "time"

// GuestIDPrefix is prepended to the fingerprint hash when a guest is minted.
const GuestIDPrefix = "guest_"

// EnvironmentSnapshot captures the stable device and browser properties a
// fingerprint is derived from. Volatile runtime values (timestamps, random
// IDs) must never appear here.
type EnvironmentSnapshot struct {
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
	ColorDepth   int    `json:"colorDepth"`
	Timezone     string `json:"timezone"`
	Language     string `json:"language"`
	Platform     string `json:"platform"`
	UserAgent    string `json:"userAgent"`
}

// Fingerprint is the result of resolving an environment snapshot.
type Fingerprint struct {
	Hash    string            `json:"hash"`
	Details map[string]string `json:"details"`
}

// VisitSummary is a closed visit appended to a guest's return-visit history.
type VisitSummary struct {
	VisitNumber       int       `json:"visitNumber"`
	StartedAt         time.Time `json:"startedAt"`
	EndedAt           time.Time `json:"endedAt"`
	DurationMs        int64     `json:"durationMs"`
	TotalInteractions int       `json:"totalInteractions"`
	PagesVisited      []string  `json:"pagesVisited"`
}

// GuestIdentity is the persistent pseudo-identity for an unauthenticated
// visitor. It is created on the first-ever interaction from a device and
// mutated only by the visit segmenter.
type GuestIdentity struct {
	GuestID          string         `json:"guestId"`
	FingerprintHash  string         `json:"fingerprintHash"`
	FirstVisitAt     time.Time      `json:"firstVisitAt"`
	VisitCount       int            `json:"visitCount"`
	LastInteraction  time.Time      `json:"lastInteraction"`
	TotalTimeSpentMs int64          `json:"totalTimeSpentMs"`
	ReturnVisits     []VisitSummary `json:"returnVisits"`
}

// NewGuestIdentity mints a fresh identity from a fingerprint hash with the
// first visit already counted.
func NewGuestIdentity(fingerprintHash string, now time.Time) *GuestIdentity {
	return &GuestIdentity{
		GuestID:         GuestIDPrefix + fingerprintHash,
		FingerprintHash: fingerprintHash,
		FirstVisitAt:    now,
		VisitCount:      1,
		LastInteraction: now,
		ReturnVisits:    []VisitSummary{},
	}
}

// Identity is the tagged variant consumed by everything downstream of the
// resolver: either a recognized authenticated user or a fingerprint-derived
// guest. The unexported method seals the variant set.
type Identity interface {
	identityTag()
	// Key returns the stable identifier events are attributed to.
	Key() string
}

// Authenticated is an identity backed by a signed-in user account.
type Authenticated struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

func (Authenticated) identityTag() {}

// Key returns the user ID.
func (a Authenticated) Key() string { return a.UserID }

// Guest is an identity backed by a persistent guest record.
type Guest struct {
	Record *GuestIdentity `json:"record"`
}

func (Guest) identityTag() {}

// Key returns the guest ID.
func (g Guest) Key() string { return g.Record.GuestID }
