package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/domain/events"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T, client *fakeClient, clock *manualClock) (*CollectorService, *SegmenterService) {
	t.Helper()
	logger := newTestLogger(t)
	mem := store.NewMemoryStore()
	identitySvc := NewIdentityService(mem, logger).WithClock(clock.Now)
	seg := NewSegmenterService(identitySvc, testEnv(), logger).WithClock(clock.Now)
	delivery := NewDeliveryService(client, mem, logger)
	collector := NewCollectorService(seg, delivery, mem, logger).WithClock(clock.Now)
	return collector, seg
}

func rawClick(page string, x, y int) events.RawEvent {
	return events.RawEvent{
		Kind: events.RawClick, Page: page,
		PageX: x, PageY: y, ViewportX: x, ViewportY: y,
		ViewportWidth: 1280, PageHeight: 4000,
	}
}

func rawMove(page string, x, y int) events.RawEvent {
	return events.RawEvent{
		Kind: events.RawMove, Page: page,
		PageX: x, PageY: y, ViewportX: x, ViewportY: y,
		ViewportWidth: 1280, PageHeight: 4000,
	}
}

func TestClicksAreNeverSampled(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	collector, seg := newTestCollector(t, client, clock)

	// Sampler that would reject everything: clicks must ignore it.
	collector.WithSampler(func() float64 { return 0.99 })

	for i := 0; i < 5; i++ {
		collector.Handle(rawClick("/", 100+i, 200))
		clock.Advance(10 * time.Millisecond)
	}

	assert.Equal(t, 5, client.interactionCount())
	assert.Equal(t, 5, seg.CurrentSession().ClickCount)
	assert.Len(t, collector.OverlayPoints("/"), 5)
}

func TestMoveThrottleAndSampleAreIndependent(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	collector, seg := newTestCollector(t, client, clock)

	// Not sampled: only the 100ms overlay throttle admits moves.
	collector.WithSampler(func() float64 { return 0.99 })
	collector.Handle(rawMove("/", 10, 10))
	assert.Len(t, collector.OverlayPoints("/"), 1)
	assert.Equal(t, 0, client.interactionCount(), "throttled moves feed the overlay, not the wire")

	// 50ms later: inside the throttle window and not sampled, fully dropped.
	clock.Advance(50 * time.Millisecond)
	collector.Handle(rawMove("/", 20, 20))
	assert.Len(t, collector.OverlayPoints("/"), 1)

	// Still inside the throttle window but sampled: persisted without
	// touching the overlay.
	collector.WithSampler(func() float64 { return 0.0 })
	collector.Handle(rawMove("/", 30, 30))
	assert.Len(t, collector.OverlayPoints("/"), 1)
	assert.Equal(t, 1, client.interactionCount())
	assert.Equal(t, 1, seg.CurrentSession().MoveCount)
}

func TestScrollThrottle(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	collector, seg := newTestCollector(t, client, clock)

	scroll := events.RawEvent{Kind: events.RawScroll, Page: "/", ScrollY: 400, ViewportWidth: 1280, PageHeight: 4000}
	collector.Handle(scroll)
	clock.Advance(200 * time.Millisecond)
	collector.Handle(scroll)
	clock.Advance(400 * time.Millisecond)
	collector.Handle(scroll)

	assert.Equal(t, 2, seg.CurrentSession().ScrollCount, "second scroll lands inside the 500ms window")
	assert.Empty(t, collector.OverlayPoints("/"), "scrolls carry no heatmap point")
}

func TestPageLoadSignalsNewVisit(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	collector, seg := newTestCollector(t, client, clock)

	collector.Handle(events.RawEvent{Kind: events.RawPageLoad, Page: "/landing"})
	sess := seg.CurrentSession()
	require.NotNil(t, sess)
	assert.Contains(t, sess.PagesVisited, "/landing")
}

func TestPageBufferIsBounded(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	collector, _ := newTestCollector(t, client, clock)

	for i := 0; i < 120; i++ {
		collector.Handle(rawClick("/", i, i))
		clock.Advance(5 * time.Millisecond)
	}

	points := collector.OverlayPoints("/")
	assert.Len(t, points, 100, "overlay buffer keeps the most recent entries")
	assert.Equal(t, float64(20), points[0].X, "oldest entries were evicted")
}

func TestOverlayMirrorRecordsCaptureSurface(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	logger := newTestLogger(t)
	mem := store.NewMemoryStore()
	client := &fakeClient{}
	identitySvc := NewIdentityService(mem, logger).WithClock(clock.Now)
	seg := NewSegmenterService(identitySvc, testEnv(), logger).WithClock(clock.Now)
	delivery := NewDeliveryService(client, mem, logger)
	collector := NewCollectorService(seg, delivery, mem, logger).WithClock(clock.Now)

	collector.Handle(rawClick("/docs", 640, 1200))

	raw, ok, err := mem.Get(store.PrefixLiveOverlay + "/docs")
	require.NoError(t, err)
	require.True(t, ok)
	var mirror heatmap.Dataset
	require.NoError(t, json.Unmarshal([]byte(raw), &mirror))
	require.Len(t, mirror.Points, 1)
	assert.Equal(t, float64(1280), mirror.CapturedViewportWidth)
	assert.Equal(t, float64(4000), mirror.CapturedPageHeight)

	keys, err := mem.KeysWithPrefix(store.PrefixHeatmap)
	require.NoError(t, err)
	assert.Empty(t, keys, "live points never land in the legacy tier")
}

func TestStartCollectingConsumesSource(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	collector, _ := newTestCollector(t, client, clock)

	source := events.NewChannelSource(8)
	sub := collector.StartCollecting(source)
	defer sub.Dispose()

	require.True(t, source.Emit(rawClick("/docs", 5, 5)))

	assert.Eventually(t, func() bool {
		return client.interactionCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	collector, _ := newTestCollector(t, client, clock)

	collector.StartCollecting(events.NewChannelSource(1))

	assert.NotPanics(t, func() {
		collector.Stop()
		collector.Stop()
	})
	assert.NotPanics(t, collector.Stop, "stopping with nothing started is safe")
}
