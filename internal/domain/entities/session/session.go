// Package session provides domain entities for visit segmentation: the open
// session record, its interaction events, and the bookkeeping that happens
// when a session closes.
package session

import (
	"time"
)

// EventType classifies a recorded interaction.
type EventType string

const (
	EventClick  EventType = "click"
	EventMove   EventType = "move"
	EventScroll EventType = "scroll"
)

// TargetDescriptor identifies the DOM element a click landed on.
type TargetDescriptor struct {
	Tag     string `json:"tag"`
	ID      string `json:"id,omitempty"`
	Classes string `json:"classes,omitempty"`
	Text    string `json:"text,omitempty"`
}

// InteractionEvent is one recorded interaction. Immutable once appended to
// the open session; the Value weight is fixed by type at record time and
// preserved through every serialization.
type InteractionEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Page      string    `json:"page"`

	ViewportX int `json:"viewportX"`
	ViewportY int `json:"viewportY"`

	// PageX/PageY are document coordinates, set for click and move only.
	PageX int `json:"pageX,omitempty"`
	PageY int `json:"pageY,omitempty"`

	// Target is set for clicks only.
	Target *TargetDescriptor `json:"target,omitempty"`

	// ScrollX/ScrollY are set for scroll events only.
	ScrollX int `json:"scrollX,omitempty"`
	ScrollY int `json:"scrollY,omitempty"`

	// Capture surface dimensions, used to rescale points at render time.
	ViewportWidth int `json:"viewportWidth"`
	PageHeight    int `json:"pageHeight"`

	Value int `json:"value"`
}

// Session is a bounded span of interaction activity on one device. Exactly
// one session is open at a time per identity.
type Session struct {
	ID           string             `json:"id"`
	VisitNumber  int                `json:"visitNumber"`
	StartedAt    time.Time          `json:"startedAt"`
	EndedAt      *time.Time         `json:"endedAt,omitempty"`
	ClickCount   int                `json:"clickCount"`
	MoveCount    int                `json:"moveCount"`
	ScrollCount  int                `json:"scrollCount"`
	Interactions []InteractionEvent `json:"interactions"`
	PagesVisited []string           `json:"pagesVisited"`
}

// NewSession opens a session for the given visit number.
func NewSession(id string, visitNumber int, now time.Time) *Session {
	return &Session{
		ID:           id,
		VisitNumber:  visitNumber,
		StartedAt:    now,
		Interactions: []InteractionEvent{},
		PagesVisited: []string{},
	}
}

// IsOpen reports whether the session has not been closed yet.
func (s *Session) IsOpen() bool { return s.EndedAt == nil }

// Append records an interaction event in arrival order and bumps the
// per-type counter.
func (s *Session) Append(ev InteractionEvent) {
	s.Interactions = append(s.Interactions, ev)
	switch ev.Type {
	case EventClick:
		s.ClickCount++
	case EventMove:
		s.MoveCount++
	case EventScroll:
		s.ScrollCount++
	}
}

// AddPage appends the page to PagesVisited if it is not already present,
// preserving first-seen order.
func (s *Session) AddPage(page string) {
	if page == "" {
		return
	}
	for _, p := range s.PagesVisited {
		if p == page {
			return
		}
	}
	s.PagesVisited = append(s.PagesVisited, page)
}

// TotalInteractions is the sum of all per-type counters.
func (s *Session) TotalInteractions() int {
	return s.ClickCount + s.MoveCount + s.ScrollCount
}

// Close stamps the end time and returns the session duration.
func (s *Session) Close(now time.Time) time.Duration {
	ended := now
	s.EndedAt = &ended
	return now.Sub(s.StartedAt)
}
