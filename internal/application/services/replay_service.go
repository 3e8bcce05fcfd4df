package services

import (
	"errors"
	"sync"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// ReplayState is the replay engine's lifecycle state. Cancellation from
// Scheduled or Revealing returns the engine to Idle.
type ReplayState string

const (
	ReplayIdle      ReplayState = "idle"
	ReplayScheduled ReplayState = "scheduled"
	ReplayRevealing ReplayState = "revealing"
	ReplayCompleted ReplayState = "completed"
)

// ErrReplayActive is returned when Start is called while a replay is
// already scheduled or revealing.
var ErrReplayActive = errors.New("replay already in progress")

// Highlight colors keyed by interaction type.
const (
	HighlightClick = "#ff3b30"
	HighlightMove  = "#4f8ef7"
)

// RevealFrame is one incremental reveal pushed to the sink: the new point,
// its transient highlight, the auto-scroll target that vertically centers
// it, and overall progress.
type RevealFrame struct {
	Index       int           `json:"index"`
	Point       heatmap.Point `json:"point"`
	Highlight   string        `json:"highlight"`
	HighlightMs int64         `json:"highlightMs"`
	Progress    float64       `json:"progress"`
	ScrollToY   float64       `json:"scrollToY"`
	Tone        bool          `json:"tone"`
}

// ReplaySink receives the engine's output. Instant is the fallback path
// when no point carries a timestamp.
type ReplaySink interface {
	Reveal(frame RevealFrame)
	Instant(points []heatmap.Point)
	Finished(completed bool)
}

// CancelTimer cancels one scheduled reveal that has not fired yet.
type CancelTimer func()

// TimerFactory schedules fn after delay and returns its canceler. Tests
// substitute a manual implementation; production uses time.AfterFunc.
type TimerFactory func(delay time.Duration, fn func()) CancelTimer

func afterFuncFactory(delay time.Duration, fn func()) CancelTimer {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

// ScheduledReveal pairs a point with its compressed reveal delay.
type ScheduledReveal struct {
	Delay time.Duration
	Point heatmap.Point
}

// ComputeReplaySchedule maps timestamped points onto reveal delays. Spans
// longer than the animation budget are linearly compressed to fit; shorter
// spans play in real time. The user speed factor divides every delay, so a
// factor of 2 plays twice as fast.
func ComputeReplaySchedule(points []heatmap.Point, maxDuration time.Duration, userSpeed float64) []ScheduledReveal {
	if len(points) == 0 {
		return nil
	}
	if userSpeed <= 0 {
		userSpeed = 1
	}

	first := *points[0].Timestamp
	span := points[len(points)-1].Timestamp.Sub(first)

	compression := 1.0
	if span > maxDuration && span > 0 {
		compression = float64(maxDuration) / float64(span)
	}

	schedule := make([]ScheduledReveal, len(points))
	for i, p := range points {
		elapsed := p.Timestamp.Sub(first)
		schedule[i] = ScheduledReveal{
			Delay: time.Duration(float64(elapsed) * compression / userSpeed),
			Point: p,
		}
	}
	return schedule
}

// ReplayEngine reconstructs a recorded session as a time-scaled sequential
// animation. Cancellation is a single atomic operation: bumping the
// generation counter invalidates every scheduled reveal that has not fired,
// so no timer-handle bookkeeping races the reveals themselves.
type ReplayEngine struct {
	logger       *logging.ChanneledLogger
	timerFactory TimerFactory
	tone         bool

	mu         sync.Mutex
	state      ReplayState
	generation uint64
	cancels    []CancelTimer
	revealed   []heatmap.Point
	fired      int
	total      int
	sink       ReplaySink
	surface    heatmap.Surface
}

// NewReplayEngine creates an idle replay engine.
func NewReplayEngine(logger *logging.ChanneledLogger) *ReplayEngine {
	return &ReplayEngine{
		logger:       logger,
		timerFactory: afterFuncFactory,
		state:        ReplayIdle,
	}
}

// WithTimerFactory overrides reveal scheduling, for tests.
func (e *ReplayEngine) WithTimerFactory(factory TimerFactory) *ReplayEngine {
	e.timerFactory = factory
	return e
}

// WithTone enables the per-reveal audio cue flag on emitted frames.
func (e *ReplayEngine) WithTone(enabled bool) *ReplayEngine {
	e.tone = enabled
	return e
}

// State returns the current lifecycle state.
func (e *ReplayEngine) State() ReplayState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RevealedPoints returns the points revealed so far.
func (e *ReplayEngine) RevealedPoints() []heatmap.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]heatmap.Point, len(e.revealed))
	copy(out, e.revealed)
	return out
}

// PendingReveals returns the number of scheduled reveals that have not
// fired yet. Counted as total minus fired so out-of-order firings cannot
// skew it.
func (e *ReplayEngine) PendingReveals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != ReplayScheduled && e.state != ReplayRevealing {
		return 0
	}
	return e.total - e.fired
}

// Start schedules an animated replay of the dataset into the sink. When no
// point carries a timestamp the full set is handed to the sink's instant
// path instead and the engine stays idle.
func (e *ReplayEngine) Start(dataset *heatmap.Dataset, surface heatmap.Surface, sink ReplaySink) error {
	points := dataset.TimestampedPoints()
	if len(points) == 0 {
		e.logger.Render().Info("No timestamped points, falling back to instant render", "page", dataset.Page)
		sink.Instant(dataset.Points)
		return nil
	}

	e.mu.Lock()
	if e.state == ReplayScheduled || e.state == ReplayRevealing {
		e.mu.Unlock()
		return ErrReplayActive
	}

	schedule := ComputeReplaySchedule(points, config.MaxAnimationDuration, config.ReplaySpeedFactor)

	e.state = ReplayScheduled
	e.generation++
	gen := e.generation
	e.revealed = nil
	e.fired = 0
	e.total = len(schedule)
	e.sink = sink
	e.surface = surface
	e.cancels = make([]CancelTimer, 0, len(schedule))

	for i, sr := range schedule {
		idx, point := i, sr.Point
		e.cancels = append(e.cancels, e.timerFactory(sr.Delay, func() {
			e.fire(gen, idx, point)
		}))
	}
	e.mu.Unlock()

	e.logger.Render().Info("Replay scheduled", "page", dataset.Page, "reveals", len(schedule))
	return nil
}

// Stop cancels every reveal that has not fired and removes in-flight
// highlights. Already-revealed points stay rendered. Safe to call at any
// state, including before the first reveal and after the last.
func (e *ReplayEngine) Stop() {
	e.mu.Lock()
	if e.state != ReplayScheduled && e.state != ReplayRevealing {
		e.mu.Unlock()
		return
	}

	e.generation++
	cancels := e.cancels
	e.cancels = nil
	e.state = ReplayIdle
	sink := e.sink
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	e.logger.Render().Info("Replay cancelled", "pendingCleared", len(cancels))
	if sink != nil {
		sink.Finished(false)
	}
}

// fire reveals one point. A stale generation means the replay was cancelled
// after this timer was scheduled; the reveal is silently dropped.
func (e *ReplayEngine) fire(gen uint64, idx int, point heatmap.Point) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}

	e.state = ReplayRevealing
	e.revealed = append(e.revealed, point)
	e.fired++

	highlight := HighlightMove
	if point.Value >= config.ClickPointWeight {
		highlight = HighlightClick
	}
	scrollTo := point.Y - e.surface.Height/2
	if scrollTo < 0 {
		scrollTo = 0
	}
	frame := RevealFrame{
		Index:       idx,
		Point:       point,
		Highlight:   highlight,
		HighlightMs: config.HighlightDuration.Milliseconds(),
		Progress:    float64(len(e.revealed)) / float64(e.total) * 100,
		ScrollToY:   scrollTo,
		Tone:        e.tone,
	}

	completed := len(e.revealed) == e.total
	if completed {
		e.state = ReplayCompleted
	}
	sink := e.sink
	e.mu.Unlock()

	sink.Reveal(frame)
	if completed {
		sink.Finished(true)
	}
}
