// Package collectorapi defines the wire contract between the tracking
// engine and the collector API, plus the HTTP client the delivery pipeline
// uses. The collector handlers consume the same types so both sides of the
// wire stay in lockstep.
package collectorapi

import (
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/identity"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/session"
)

// InteractionPayload is the body of POST /interactions: one interaction
// event plus the identity and session metadata it is attributed to.
type InteractionPayload struct {
	Event           session.InteractionEvent `json:"event"`
	GuestID         string                   `json:"guestId"`
	FingerprintHash string                   `json:"fingerprintHash"`
	SessionID       string                   `json:"sessionId"`
	VisitNumber     int                      `json:"visitNumber"`
}

// VisitReason distinguishes why a visit summary was posted.
type VisitReason string

const (
	VisitOpened VisitReason = "opened"
	VisitClosed VisitReason = "closed"
)

// VisitPayload is the body of POST /visits: a session summary and a
// snapshot of the guest identity at the time of posting.
type VisitPayload struct {
	Reason            VisitReason             `json:"reason"`
	SessionID         string                  `json:"sessionId"`
	VisitNumber       int                     `json:"visitNumber"`
	StartedAt         time.Time               `json:"startedAt"`
	EndedAt           *time.Time              `json:"endedAt,omitempty"`
	DurationMs        int64                   `json:"durationMs,omitempty"`
	ClickCount        int                     `json:"clickCount"`
	MoveCount         int                     `json:"moveCount"`
	ScrollCount       int                     `json:"scrollCount"`
	TotalInteractions int                     `json:"totalInteractions"`
	PagesVisited      []string                `json:"pagesVisited"`
	Guest             *identity.GuestIdentity `json:"guest"`
}

// VisitorRecord is a fallback visitor record captured locally while the
// collector was unreachable, shipped later by the migration pass.
type VisitorRecord struct {
	GuestID     string    `json:"guestId"`
	SessionID   string    `json:"sessionId"`
	VisitNumber int       `json:"visitNumber"`
	Page        string    `json:"page"`
	RecordedAt  time.Time `json:"recordedAt"`
	ClickCount  int       `json:"clickCount"`
	MoveCount   int       `json:"moveCount"`
	ScrollCount int       `json:"scrollCount"`
}

// MigrateBatchRequest is the body of POST /migrate-batch.
type MigrateBatchRequest struct {
	HeatmapData    map[string][]heatmap.Point `json:"heatmapData"`
	VisitorRecords []VisitorRecord            `json:"visitorRecords"`
}

// IsEmpty reports whether the batch carries nothing to migrate.
func (r *MigrateBatchRequest) IsEmpty() bool {
	return len(r.HeatmapData) == 0 && len(r.VisitorRecords) == 0
}

// MigrateBatchResponse is the collector's answer to a migration batch.
type MigrateBatchResponse struct {
	Success       bool `json:"success"`
	MigratedCount int  `json:"migratedCount"`
}

// InteractionsResponse is the body of GET /interactions. The capture
// dimensions are the largest recorded surface for the page, so the renderer
// can rescale points onto its own surface.
type InteractionsResponse struct {
	Data                  []heatmap.Point `json:"data"`
	Max                   int             `json:"max"`
	CapturedViewportWidth float64         `json:"capturedViewportWidth,omitempty"`
	CapturedPageHeight    float64         `json:"capturedPageHeight,omitempty"`
	Message               string          `json:"message,omitempty"`
}
