package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/badalhalder99/newVital-sub000/internal/domain/events"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
)

// TrackerService is the explicitly constructed tracking engine: one
// instance per embedding, wired by the container and handed to consumers
// by reference. Init and Dispose bound its lifecycle; there is no shared
// module-level state.
type TrackerService struct {
	Identity  *IdentityService
	Segmenter *SegmenterService
	Collector *CollectorService
	Delivery  *DeliveryService
	Migration *MigrationService

	store  store.DurableStore
	logger *logging.ChanneledLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewTrackerService wires the engine components together. The segmenter's
// visit notifier is connected here: every opened/closed visit summary flows
// into the delivery pipeline, and closed visits that could not be delivered
// are captured as fallback visitor records for the migration pass.
func NewTrackerService(
	identitySvc *IdentityService,
	segmenter *SegmenterService,
	collector *CollectorService,
	delivery *DeliveryService,
	migration *MigrationService,
	durable store.DurableStore,
	logger *logging.ChanneledLogger,
) *TrackerService {
	t := &TrackerService{
		Identity:  identitySvc,
		Segmenter: segmenter,
		Collector: collector,
		Delivery:  delivery,
		Migration: migration,
		store:     durable,
		logger:    logger,
	}
	segmenter.SetVisitNotifier(t.onVisit)
	return t
}

// Init runs the one-shot local-to-remote migration and starts the periodic
// retry drain. Calling Init twice is a no-op.
func (t *TrackerService) Init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.started = true

	if count, err := t.Migration.Migrate(runCtx); err != nil {
		// Migration failure keeps local data intact; the next Init retries.
		t.logger.System().Warn("Startup migration failed", "error", err.Error())
	} else if count > 0 {
		t.logger.System().Info("Startup migration shipped local records", "migratedCount", count)
	}

	go t.Delivery.Run(runCtx)

	t.logger.System().Info("Tracker initialized")
	return nil
}

// StartCollecting attaches the collector to a raw event source.
func (t *TrackerService) StartCollecting(src events.Source) *Subscription {
	return t.Collector.StartCollecting(src)
}

// NotifyVisible signals that the host page regained visibility, triggering
// a retry-queue drain.
func (t *TrackerService) NotifyVisible() {
	t.Delivery.NotifyVisible()
}

// Dispose stops collection and background work. Idempotent.
func (t *TrackerService) Dispose() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.started = false
	t.mu.Unlock()

	t.Collector.Stop()
	if cancel != nil {
		cancel()
	}
	t.logger.System().Info("Tracker disposed")
}

// onVisit forwards visit summaries to the delivery pipeline. A closed
// visit that only made it to local storage is additionally recorded as a
// fallback visitor record so the migration pass can ship it later.
func (t *TrackerService) onVisit(payload *collectorapi.VisitPayload) {
	outcome := t.Delivery.SendVisit(payload)
	if outcome == OutcomeDelivered || payload.Reason != collectorapi.VisitClosed {
		return
	}

	page := ""
	if len(payload.PagesVisited) > 0 {
		page = payload.PagesVisited[0]
	}
	record := collectorapi.VisitorRecord{
		GuestID:     payload.Guest.GuestID,
		SessionID:   payload.SessionID,
		VisitNumber: payload.VisitNumber,
		Page:        page,
		RecordedAt:  payload.StartedAt,
		ClickCount:  payload.ClickCount,
		MoveCount:   payload.MoveCount,
		ScrollCount: payload.ScrollCount,
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		t.logger.Delivery().Warn("Failed to encode fallback visitor record", "error", err.Error())
		return
	}
	if err := t.store.Set(store.PrefixVisitor+payload.SessionID, string(encoded)); err != nil {
		t.logger.Delivery().Debug("Fallback visitor record write failed", "error", err.Error())
	}
}
