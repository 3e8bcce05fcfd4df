package services

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/session"
	"github.com/badalhalder99/newVital-sub000/internal/domain/events"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// Subscription is a disposable handle on one consuming event source.
type Subscription struct {
	source events.Source
	done   chan struct{}
	once   sync.Once
}

// Dispose detaches the subscription. Idempotent.
func (sub *Subscription) Dispose() {
	sub.once.Do(func() {
		close(sub.done)
		sub.source.Close()
	})
}

// CollectorService consumes raw pointer events, applies the per-type
// sampling policy, annotates events with identity and session metadata, and
// fans them out to the session record, the per-page point buffer, and the
// delivery pipeline.
//
// Clicks are never sampled. Moves are throttled for the live overlay and
// independently sampled for persistence so volume stays bounded. Scrolls
// are throttled only.
type CollectorService struct {
	segmenter *SegmenterService
	delivery  *DeliveryService
	store     store.DurableStore
	logger    *logging.ChanneledLogger
	now       func() time.Time
	sample    func() float64

	mu              sync.Mutex
	overlay         map[string][]heatmap.Point
	captures        map[string]heatmap.Surface
	lastMoveOverlay time.Time
	lastScroll      time.Time
	subs            []*Subscription
}

// NewCollectorService creates a collector wired to the segmenter and
// delivery pipeline.
func NewCollectorService(segmenter *SegmenterService, delivery *DeliveryService, durable store.DurableStore, logger *logging.ChanneledLogger) *CollectorService {
	return &CollectorService{
		segmenter: segmenter,
		delivery:  delivery,
		store:     durable,
		logger:    logger,
		now:       time.Now,
		sample:    rand.Float64,
		overlay:   make(map[string][]heatmap.Point),
		captures:  make(map[string]heatmap.Surface),
	}
}

// WithClock overrides the wall clock, for tests.
func (c *CollectorService) WithClock(now func() time.Time) *CollectorService {
	c.now = now
	return c
}

// WithSampler overrides the move-sampling source, for tests.
func (c *CollectorService) WithSampler(sample func() float64) *CollectorService {
	c.sample = sample
	return c
}

// StartCollecting attaches the collector to a source and returns the
// disposable subscription.
func (c *CollectorService) StartCollecting(src events.Source) *Subscription {
	sub := &Subscription{source: src, done: make(chan struct{})}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case ev, ok := <-src.Events():
				if !ok {
					return
				}
				c.Handle(ev)
			}
		}
	}()

	c.logger.Collect().Info("Collector subscription started")
	return sub
}

// Stop disposes every active subscription. Safe to call when nothing was
// started, and safe to call twice.
func (c *CollectorService) Stop() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Dispose()
	}
	if len(subs) > 0 {
		c.logger.Collect().Info("Collector stopped", "subscriptions", len(subs))
	}
}

// Handle processes one raw event. Exposed so ingest handlers can feed
// events without a channel hop.
func (c *CollectorService) Handle(ev events.RawEvent) {
	switch ev.Kind {
	case events.RawPageLoad:
		if _, err := c.segmenter.RecordActivity(ev.Page, false, true); err != nil {
			c.logger.Collect().Warn("Page-load activity failed", "error", err.Error(), "page", ev.Page)
		}

	case events.RawClick:
		c.record(ev, session.EventClick, config.ClickPointWeight, true, true)

	case events.RawMove:
		now := c.now()
		c.mu.Lock()
		overlayDue := now.Sub(c.lastMoveOverlay) >= config.MoveThrottle
		if overlayDue {
			c.lastMoveOverlay = now
		}
		c.mu.Unlock()

		sampled := c.sample() < config.MoveSampleRate
		if !overlayDue && !sampled {
			return
		}
		c.record(ev, session.EventMove, config.MovePointWeight, overlayDue, sampled)

	case events.RawScroll:
		now := c.now()
		c.mu.Lock()
		due := now.Sub(c.lastScroll) >= config.ScrollThrottle
		if due {
			c.lastScroll = now
		}
		c.mu.Unlock()
		if !due {
			return
		}
		c.record(ev, session.EventScroll, config.MovePointWeight, false, true)
	}
}

// OverlayPoints returns a copy of the live overlay point cloud for a page.
func (c *CollectorService) OverlayPoints(page string) []heatmap.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	points := c.overlay[page]
	out := make([]heatmap.Point, len(points))
	copy(out, points)
	return out
}

// record annotates the event and fans it out. buffer controls the live
// overlay and durable point buffer; persist controls the session record and
// remote delivery.
func (c *CollectorService) record(ev events.RawEvent, kind session.EventType, weight int, buffer, persist bool) {
	guest, err := c.segmenter.RecordActivity(ev.Page, true, false)
	if err != nil {
		c.logger.Collect().Warn("Activity annotation failed", "error", err.Error(), "page", ev.Page)
		return
	}

	timestamp := ev.OccurredAt
	if timestamp.IsZero() {
		timestamp = c.now().UTC()
	}

	interaction := session.InteractionEvent{
		Type:          kind,
		Timestamp:     timestamp,
		Page:          ev.Page,
		ViewportX:     ev.ViewportX,
		ViewportY:     ev.ViewportY,
		ViewportWidth: ev.ViewportWidth,
		PageHeight:    ev.PageHeight,
		Value:         weight,
	}
	switch kind {
	case session.EventClick:
		interaction.PageX = ev.PageX
		interaction.PageY = ev.PageY
		if ev.Target != nil {
			interaction.Target = &session.TargetDescriptor{
				Tag:     ev.Target.Tag,
				ID:      ev.Target.ID,
				Classes: ev.Target.Classes,
				Text:    ev.Target.Text,
			}
		}
	case session.EventMove:
		interaction.PageX = ev.PageX
		interaction.PageY = ev.PageY
	case session.EventScroll:
		interaction.ScrollX = ev.ScrollX
		interaction.ScrollY = ev.ScrollY
	}

	if buffer && kind != session.EventScroll {
		c.bufferPoint(ev.Page, heatmap.Point{
			X:         float64(coalesce(ev.PageX, ev.ViewportX)),
			Y:         float64(coalesce(ev.PageY, ev.ViewportY)),
			Value:     weight,
			Timestamp: &timestamp,
		}, ev.ViewportWidth, ev.PageHeight)
	}

	if !persist {
		return
	}

	c.segmenter.AppendInteraction(interaction)

	sess := c.segmenter.CurrentSession()
	payload := &collectorapi.InteractionPayload{
		Event:           interaction,
		GuestID:         guest.GuestID,
		FingerprintHash: guest.FingerprintHash,
	}
	if sess != nil {
		payload.SessionID = sess.ID
		payload.VisitNumber = sess.VisitNumber
	}
	c.delivery.SendInteraction(payload)
}

// bufferPoint appends to the live overlay and mirrors the bounded buffer
// into the durable store so the heatmap read path has a fallback when the
// collector is unreachable. The mirror lives under its own prefix, never the
// legacy migration tier: these points already went through delivery. The
// capture surface tracks the largest dimensions seen for the page so the
// mirror stays renderable onto a different surface.
func (c *CollectorService) bufferPoint(page string, point heatmap.Point, viewportWidth, pageHeight int) {
	c.mu.Lock()
	points := append(c.overlay[page], point)
	if overflow := len(points) - config.PageBufferCap; overflow > 0 {
		points = points[overflow:]
	}
	c.overlay[page] = points

	capture := c.captures[page]
	if w := float64(viewportWidth); w > capture.Width {
		capture.Width = w
	}
	if h := float64(pageHeight); h > capture.Height {
		capture.Height = h
	}
	c.captures[page] = capture

	snapshot := make([]heatmap.Point, len(points))
	copy(snapshot, points)
	c.mu.Unlock()

	encoded, err := json.Marshal(&heatmap.Dataset{
		Page:                  page,
		Points:                snapshot,
		CapturedViewportWidth: capture.Width,
		CapturedPageHeight:    capture.Height,
	})
	if err != nil {
		c.logger.Collect().Warn("Failed to encode page buffer", "error", err.Error(), "page", page)
		return
	}
	if err := c.store.Set(store.PrefixLiveOverlay+page, string(encoded)); err != nil {
		c.logger.Collect().Debug("Page buffer write failed", "error", err.Error(), "page", page)
	}
}

func coalesce(primary, fallback int) int {
	if primary != 0 {
		return primary
	}
	return fallback
}
