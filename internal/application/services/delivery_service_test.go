package services

import (
	"testing"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/session"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInteraction(page string) *collectorapi.InteractionPayload {
	return &collectorapi.InteractionPayload{
		Event: session.InteractionEvent{
			Type:      session.EventClick,
			Timestamp: time.Now().UTC(),
			Page:      page,
			Value:     5,
		},
		GuestID: "guest_a1b2c3d4e5f60708",
	}
}

func TestSendDeliversWhenCollectorHealthy(t *testing.T) {
	client := &fakeClient{}
	svc := NewDeliveryService(client, store.NewMemoryStore(), newTestLogger(t))

	outcome := svc.SendInteraction(testInteraction("/"))

	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Equal(t, 1, client.interactionCount())
	assert.Empty(t, svc.PendingRecords())
}

func TestSendStoresLocallyOnFailure(t *testing.T) {
	client := &fakeClient{failInteractions: true}
	svc := NewDeliveryService(client, store.NewMemoryStore(), newTestLogger(t))

	outcome := svc.SendInteraction(testInteraction("/"))

	assert.Equal(t, OutcomeStoredLocally, outcome)
	pending := svc.PendingRecords()
	require.Len(t, pending, 1)
	assert.Equal(t, 0, pending[0].RetryCount)
	assert.NotEmpty(t, pending[0].ID)
}

func TestRetryQueueEvictsOldestBeyondCap(t *testing.T) {
	client := &fakeClient{failInteractions: true}
	svc := NewDeliveryService(client, store.NewMemoryStore(), newTestLogger(t))

	for i := 0; i < 15; i++ {
		svc.SendInteraction(testInteraction("/"))
	}

	pending := svc.PendingRecords()
	assert.Len(t, pending, 10, "queue is capped")
}

func TestDrainRedeliversPendingRecords(t *testing.T) {
	client := &fakeClient{failInteractions: true, failVisits: true}
	svc := NewDeliveryService(client, store.NewMemoryStore(), newTestLogger(t))

	svc.SendInteraction(testInteraction("/a"))
	svc.SendVisit(&collectorapi.VisitPayload{Reason: collectorapi.VisitClosed, SessionID: "01HZX", VisitNumber: 2})
	require.Len(t, svc.PendingRecords(), 2)

	client.setFailing(false, false)
	svc.NotifyVisible()

	assert.Empty(t, svc.PendingRecords())
	assert.Equal(t, 1, client.interactionCount())
	assert.Equal(t, 1, client.visitCount())
}

func TestSuccessfulSendDrainsBacklog(t *testing.T) {
	client := &fakeClient{failInteractions: true}
	svc := NewDeliveryService(client, store.NewMemoryStore(), newTestLogger(t))

	svc.SendInteraction(testInteraction("/a"))
	require.Len(t, svc.PendingRecords(), 1)

	client.setFailing(false, false)
	outcome := svc.SendInteraction(testInteraction("/b"))

	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Empty(t, svc.PendingRecords(), "a working network clears the backlog")
	assert.Equal(t, 2, client.interactionCount())
}

func TestExhaustedRecordAgesOutAfterObservationCap(t *testing.T) {
	client := &fakeClient{failInteractions: true}
	svc := NewDeliveryService(client, store.NewMemoryStore(), newTestLogger(t))

	svc.SendInteraction(testInteraction("/"))

	// Three drain passes burn the redelivery attempts.
	for i := 0; i < 3; i++ {
		svc.DrainRetryQueue()
	}
	pending := svc.PendingRecords()
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].RetryCount)

	// Exhausted records stay readable while the observation window is open.
	for i := 0; i < 6; i++ {
		svc.DrainRetryQueue()
		require.Len(t, svc.PendingRecords(), 1, "record persists during the forensic window")
	}

	// The tenth observation closes the window.
	svc.DrainRetryQueue()
	assert.Empty(t, svc.PendingRecords())
}

func TestSendNeverPanicsWhenStorageAlsoFails(t *testing.T) {
	client := &fakeClient{failInteractions: true}
	mem := store.NewMemoryStore()
	mem.FailWrites = true
	svc := NewDeliveryService(client, mem, newTestLogger(t))

	assert.NotPanics(t, func() {
		outcome := svc.SendInteraction(testInteraction("/"))
		assert.Equal(t, OutcomeStoredLocally, outcome)
	})
}

func TestCorruptQueueResetsInsteadOfFailing(t *testing.T) {
	client := &fakeClient{}
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Set(store.KeyPendingQueue, "not-json"))
	svc := NewDeliveryService(client, mem, newTestLogger(t))

	assert.Empty(t, svc.PendingRecords())
	assert.NotPanics(t, svc.DrainRetryQueue)
}
