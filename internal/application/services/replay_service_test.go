package services

import (
	"sync"
	"testing"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimers collects scheduled reveals and fires them on demand, so
// replay tests never sleep.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (m *manualTimers) factory(delay time.Duration, fn func()) CancelTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{delay: delay, fn: fn}
	m.timers = append(m.timers, timer)
	return func() {
		m.mu.Lock()
		timer.cancelled = true
		m.mu.Unlock()
	}
}

// fire runs the nth scheduled callback unless it was cancelled.
func (m *manualTimers) fire(n int) {
	m.mu.Lock()
	timer := m.timers[n]
	m.mu.Unlock()
	if !timer.cancelled {
		timer.fn()
	}
}

func (m *manualTimers) delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.timers))
	for i, timer := range m.timers {
		out[i] = timer.delay
	}
	return out
}

// recordingSink captures engine output for assertions.
type recordingSink struct {
	mu       sync.Mutex
	frames   []RevealFrame
	instant  []heatmap.Point
	finished []bool
}

func (s *recordingSink) Reveal(frame RevealFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *recordingSink) Instant(points []heatmap.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instant = points
}

func (s *recordingSink) Finished(completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, completed)
}

func timestampedDataset(spacing time.Duration, count int) *heatmap.Dataset {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	points := make([]heatmap.Point, count)
	for i := range points {
		ts := base.Add(time.Duration(i) * spacing)
		points[i] = heatmap.Point{X: float64(i * 100), Y: float64(i * 400), Value: 1, Timestamp: &ts}
	}
	return &heatmap.Dataset{Page: "/story", Points: points}
}

func testSurface() heatmap.Surface {
	return heatmap.Surface{Width: 1280, Height: 800}
}

func TestScheduleCompressesLongSpans(t *testing.T) {
	// Points spread over 90s must fit the 30s animation budget.
	dataset := timestampedDataset(30*time.Second, 4)
	schedule := ComputeReplaySchedule(dataset.Points, 30*time.Second, 1)

	require.Len(t, schedule, 4)
	assert.Equal(t, time.Duration(0), schedule[0].Delay)
	assert.Equal(t, 10*time.Second, schedule[1].Delay)
	assert.Equal(t, 20*time.Second, schedule[2].Delay)
	assert.Equal(t, 30*time.Second, schedule[3].Delay)
}

func TestScheduleKeepsShortSpansRealTime(t *testing.T) {
	dataset := timestampedDataset(2*time.Second, 3)
	schedule := ComputeReplaySchedule(dataset.Points, 30*time.Second, 1)

	assert.Equal(t, 2*time.Second, schedule[1].Delay)
	assert.Equal(t, 4*time.Second, schedule[2].Delay)
}

func TestScheduleSpeedFactorDividesDelays(t *testing.T) {
	dataset := timestampedDataset(2*time.Second, 3)
	schedule := ComputeReplaySchedule(dataset.Points, 30*time.Second, 2)

	assert.Equal(t, time.Second, schedule[1].Delay)
	assert.Equal(t, 2*time.Second, schedule[2].Delay)
}

func TestStartWithoutTimestampsFallsBackToInstant(t *testing.T) {
	engine := NewReplayEngine(newTestLogger(t))
	sink := &recordingSink{}

	dataset := &heatmap.Dataset{Page: "/", Points: []heatmap.Point{{X: 1, Y: 2, Value: 5}}}
	require.NoError(t, engine.Start(dataset, testSurface(), sink))

	assert.Len(t, sink.instant, 1)
	assert.Equal(t, ReplayIdle, engine.State(), "instant fallback never enters the animation lifecycle")
}

func TestReplayRunsToCompletion(t *testing.T) {
	timers := &manualTimers{}
	engine := NewReplayEngine(newTestLogger(t)).WithTimerFactory(timers.factory)
	sink := &recordingSink{}

	require.NoError(t, engine.Start(timestampedDataset(time.Second, 3), testSurface(), sink))
	assert.Equal(t, ReplayScheduled, engine.State())

	for i := 0; i < 3; i++ {
		timers.fire(i)
	}

	require.Len(t, sink.frames, 3)
	assert.Equal(t, ReplayCompleted, engine.State())
	assert.InDelta(t, 100, sink.frames[2].Progress, 0.001)
	require.Len(t, sink.finished, 1)
	assert.True(t, sink.finished[0])
	assert.Len(t, engine.RevealedPoints(), 3)
	assert.Zero(t, engine.PendingReveals())
}

func TestStopCancelsPendingRevealsKeepsRevealed(t *testing.T) {
	timers := &manualTimers{}
	engine := NewReplayEngine(newTestLogger(t)).WithTimerFactory(timers.factory)
	sink := &recordingSink{}

	require.NoError(t, engine.Start(timestampedDataset(time.Second, 5), testSurface(), sink))
	timers.fire(0)
	require.Len(t, sink.frames, 1)

	engine.Stop()

	// Timers that were already scheduled fire into a stale generation.
	for i := 1; i < 5; i++ {
		timers.fire(i)
	}

	assert.Len(t, sink.frames, 1, "no reveal lands after cancellation")
	assert.Equal(t, ReplayIdle, engine.State())
	assert.Zero(t, engine.PendingReveals())
	assert.Len(t, engine.RevealedPoints(), 1, "already-revealed points stay rendered")
	require.Len(t, sink.finished, 1)
	assert.False(t, sink.finished[0])
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	timers := &manualTimers{}
	engine := NewReplayEngine(newTestLogger(t)).WithTimerFactory(timers.factory)
	sink := &recordingSink{}

	require.NoError(t, engine.Start(timestampedDataset(time.Second, 2), testSurface(), sink))
	err := engine.Start(timestampedDataset(time.Second, 2), testSurface(), sink)
	assert.ErrorIs(t, err, ErrReplayActive)
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	engine := NewReplayEngine(newTestLogger(t))
	sink := &recordingSink{}

	assert.NotPanics(t, engine.Stop)
	assert.Empty(t, sink.finished, "an idle engine has no sink to notify")
}

func TestRevealFrameHighlightAndScroll(t *testing.T) {
	timers := &manualTimers{}
	engine := NewReplayEngine(newTestLogger(t)).WithTimerFactory(timers.factory).WithTone(true)
	sink := &recordingSink{}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dataset := &heatmap.Dataset{Page: "/story", Points: []heatmap.Point{
		{X: 10, Y: 100, Value: 5, Timestamp: &ts},
		{X: 20, Y: 3000, Value: 1, Timestamp: &ts},
	}}
	require.NoError(t, engine.Start(dataset, testSurface(), sink))
	timers.fire(0)
	timers.fire(1)

	require.Len(t, sink.frames, 2)
	click, move := sink.frames[0], sink.frames[1]
	assert.Equal(t, HighlightClick, click.Highlight)
	assert.Equal(t, float64(0), click.ScrollToY, "scroll target clamps at the page top")
	assert.Equal(t, HighlightMove, move.Highlight)
	assert.Equal(t, float64(3000-400), move.ScrollToY, "point is vertically centered in the viewport")
	assert.True(t, click.Tone)
	assert.Positive(t, click.HighlightMs)
}

func TestOutOfOrderRevealsKeepPendingCountAccurate(t *testing.T) {
	timers := &manualTimers{}
	engine := NewReplayEngine(newTestLogger(t)).WithTimerFactory(timers.factory)
	sink := &recordingSink{}

	require.NoError(t, engine.Start(timestampedDataset(time.Second, 5), testSurface(), sink))

	// time.AfterFunc gives no ordering guarantee for near-equal deadlines,
	// so reveals may land out of schedule order.
	timers.fire(3)
	timers.fire(1)

	assert.Equal(t, 3, engine.PendingReveals())
	assert.Len(t, engine.RevealedPoints(), 2)
	assert.Equal(t, ReplayRevealing, engine.State())
}

func TestRestartAfterStop(t *testing.T) {
	timers := &manualTimers{}
	engine := NewReplayEngine(newTestLogger(t)).WithTimerFactory(timers.factory)
	sink := &recordingSink{}

	require.NoError(t, engine.Start(timestampedDataset(time.Second, 2), testSurface(), sink))
	engine.Stop()
	require.NoError(t, engine.Start(timestampedDataset(time.Second, 2), testSurface(), sink))

	assert.Equal(t, ReplayScheduled, engine.State())
	assert.Equal(t, 2, engine.PendingReveals())
	assert.Len(t, timers.delays(), 4, "a fresh schedule was laid down")
}
