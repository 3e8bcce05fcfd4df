package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
	"github.com/google/uuid"
)

// DeliveryOutcome reports what happened to an event handed to Send.
type DeliveryOutcome string

const (
	OutcomeDelivered     DeliveryOutcome = "delivered"
	OutcomeStoredLocally DeliveryOutcome = "stored-locally"
)

// deliveryKind tags a pending record with its redelivery route.
type deliveryKind string

const (
	kindInteraction deliveryKind = "interaction"
	kindVisit       deliveryKind = "visit"
)

// PendingDeliveryRecord is one event waiting in the bounded retry queue.
// RetryCount counts every failed attempt and, once attempts are exhausted,
// every further drain pass that observed the record; at the observation cap
// the record is discarded, closing the forensic window.
type PendingDeliveryRecord struct {
	ID         string          `json:"id"`
	Kind       deliveryKind    `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	RetryCount int             `json:"retryCount"`
}

// DeliveryService ships interaction and visit events to the collector API.
// Send never propagates an error to the caller: a failed delivery lands in
// the durable retry queue and the host page moves on. All queue mutations
// happen under one mutex so a timer-triggered drain and an event-triggered
// enqueue cannot lose updates.
type DeliveryService struct {
	client collectorapi.Client
	store  store.DurableStore
	logger *logging.ChanneledLogger
	now    func() time.Time

	mu sync.Mutex
}

// NewDeliveryService creates a new delivery pipeline.
func NewDeliveryService(client collectorapi.Client, durable store.DurableStore, logger *logging.ChanneledLogger) *DeliveryService {
	return &DeliveryService{
		client: client,
		store:  durable,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *DeliveryService) WithClock(now func() time.Time) *DeliveryService {
	s.now = now
	return s
}

// SendInteraction attempts to deliver one interaction event.
func (s *DeliveryService) SendInteraction(payload *collectorapi.InteractionPayload) DeliveryOutcome {
	return s.send(kindInteraction, payload)
}

// SendVisit attempts to deliver one visit summary.
func (s *DeliveryService) SendVisit(payload *collectorapi.VisitPayload) DeliveryOutcome {
	return s.send(kindVisit, payload)
}

func (s *DeliveryService) send(kind deliveryKind, payload any) DeliveryOutcome {
	ctx, cancel := context.WithTimeout(context.Background(), config.SendTimeout)
	defer cancel()

	err := s.deliver(ctx, kind, payload)
	if err == nil {
		// A working network is the moment to clear the backlog.
		s.DrainRetryQueue()
		return OutcomeDelivered
	}

	s.logger.Delivery().Debug("Delivery failed, storing locally", "kind", string(kind), "error", err.Error())
	s.enqueue(kind, payload)
	return OutcomeStoredLocally
}

func (s *DeliveryService) deliver(ctx context.Context, kind deliveryKind, payload any) error {
	switch kind {
	case kindVisit:
		return s.client.PostVisit(ctx, payload.(*collectorapi.VisitPayload))
	default:
		return s.client.PostInteraction(ctx, payload.(*collectorapi.InteractionPayload))
	}
}

// enqueue appends a pending record, evicting the oldest entries beyond the
// queue cap. Failures here are logged and swallowed; the event is lost but
// the host page is unharmed.
func (s *DeliveryService) enqueue(kind deliveryKind, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.Delivery().Warn("Failed to encode payload for retry queue", "error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.loadQueue()
	queue = append(queue, PendingDeliveryRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    encoded,
		EnqueuedAt: s.now().UTC(),
	})
	if overflow := len(queue) - config.RetryQueueCap; overflow > 0 {
		queue = queue[overflow:]
	}
	s.saveQueue(queue)
}

// DrainRetryQueue walks the pending queue once: records with attempts left
// are redelivered, exhausted records age toward the observation cap.
func (s *DeliveryService) DrainRetryQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.loadQueue()
	if len(queue) == 0 {
		return
	}

	var kept []PendingDeliveryRecord
	delivered, discarded := 0, 0

	for _, rec := range queue {
		if rec.RetryCount < config.MaxRetryAttempts {
			if err := s.redeliver(rec); err == nil {
				delivered++
				continue
			}
			rec.RetryCount++
			kept = append(kept, rec)
			continue
		}

		rec.RetryCount++
		if rec.RetryCount >= config.MaxRetryObservations {
			discarded++
			continue
		}
		kept = append(kept, rec)
	}

	s.saveQueue(kept)
	if delivered > 0 || discarded > 0 {
		s.logger.Delivery().Info("Retry queue drained", "delivered", delivered, "discarded", discarded, "remaining", len(kept))
	}
}

func (s *DeliveryService) redeliver(rec PendingDeliveryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.RetrySendTimeout)
	defer cancel()

	switch rec.Kind {
	case kindVisit:
		var payload collectorapi.VisitPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return err
		}
		return s.client.PostVisit(ctx, &payload)
	default:
		var payload collectorapi.InteractionPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return err
		}
		return s.client.PostInteraction(ctx, &payload)
	}
}

// PendingRecords returns a copy of the retry queue for diagnostics.
func (s *DeliveryService) PendingRecords() []PendingDeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadQueue()
}

// Run drains the retry queue on a fixed interval until the context is
// cancelled.
func (s *DeliveryService) Run(ctx context.Context) {
	ticker := time.NewTicker(config.RetryDrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.DrainRetryQueue()
		}
	}
}

// NotifyVisible triggers a drain when the host page regains visibility.
func (s *DeliveryService) NotifyVisible() {
	s.DrainRetryQueue()
}

// loadQueue reads the queue under the caller-held mutex. A missing or
// unreadable queue is treated as empty.
func (s *DeliveryService) loadQueue() []PendingDeliveryRecord {
	raw, ok, err := s.store.Get(store.KeyPendingQueue)
	if err != nil || !ok {
		return nil
	}
	var queue []PendingDeliveryRecord
	if err := json.Unmarshal([]byte(raw), &queue); err != nil {
		s.logger.Delivery().Warn("Pending queue unreadable, resetting", "error", err.Error())
		return nil
	}
	return queue
}

func (s *DeliveryService) saveQueue(queue []PendingDeliveryRecord) {
	if len(queue) == 0 {
		if err := s.store.Remove(store.KeyPendingQueue); err != nil {
			s.logger.Delivery().Warn("Failed to clear pending queue", "error", err.Error())
		}
		return
	}
	encoded, err := json.Marshal(queue)
	if err != nil {
		s.logger.Delivery().Warn("Failed to encode pending queue", "error", err.Error())
		return
	}
	if err := s.store.Set(store.KeyPendingQueue, string(encoded)); err != nil {
		s.logger.Delivery().Warn("Failed to persist pending queue", "error", err.Error())
	}
}
