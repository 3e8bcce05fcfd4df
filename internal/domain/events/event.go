// Package events provides the raw input event types fed into the collector
package events

import (
	"sync"
	"time"
)

// RawKind is the wire-level kind of an incoming pointer event.
type RawKind string

const (
	RawClick    RawKind = "click"
	RawMove     RawKind = "move"
	RawScroll   RawKind = "scroll"
	RawPageLoad RawKind = "pageload"
)

// RawTarget describes the element a raw click landed on, as reported by the
// page script.
type RawTarget struct {
	Tag     string `json:"tag"`
	ID      string `json:"id,omitempty"`
	Classes string `json:"classes,omitempty"`
	Text    string `json:"text,omitempty"`
}

// RawEvent is an unannotated pointer/scroll/load event as it arrives from
// the page, before identity and session metadata are attached.
type RawEvent struct {
	Kind       RawKind    `json:"kind"`
	Page       string     `json:"page"`
	OccurredAt time.Time  `json:"occurredAt"`
	ViewportX  int        `json:"viewportX"`
	ViewportY  int        `json:"viewportY"`
	PageX      int        `json:"pageX,omitempty"`
	PageY      int        `json:"pageY,omitempty"`
	ScrollX    int        `json:"scrollX,omitempty"`
	ScrollY    int        `json:"scrollY,omitempty"`
	Target     *RawTarget `json:"target,omitempty"`

	// Capture surface dimensions at the moment of the event.
	ViewportWidth int `json:"viewportWidth"`
	PageHeight    int `json:"pageHeight"`
}

// Source is a stream of raw events. Sources are pull-free: the collector
// subscribes and the source pushes until Close.
type Source interface {
	// Events returns the channel raw events arrive on. The channel may be
	// closed when the source shuts down, but consumers must not rely on it:
	// subscription teardown is the authoritative stop signal.
	Events() <-chan RawEvent
	// Close stops the source. Safe to call more than once.
	Close() error
}

// ChannelSource is an in-process Source backed by a buffered channel, used
// by tests and by the WebSocket ingest handler.
type ChannelSource struct {
	ch        chan RawEvent
	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannelSource creates a channel-backed source with the given buffer.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{
		ch:     make(chan RawEvent, buffer),
		closed: make(chan struct{}),
	}
}

// Events returns the event channel.
func (s *ChannelSource) Events() <-chan RawEvent { return s.ch }

// Emit pushes an event into the stream. Events emitted after Close are
// dropped.
func (s *ChannelSource) Emit(ev RawEvent) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.ch <- ev:
		return true
	default:
		// Collector is behind; drop rather than block the producer.
		return false
	}
}

// Close shuts the stream down. Safe to call more than once, and safe to call
// while another goroutine is emitting: only the closed signal is closed, the
// event channel itself stays open so a racing Emit can never send on a
// closed channel. Consumers detach via their subscription, not the channel.
func (s *ChannelSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
