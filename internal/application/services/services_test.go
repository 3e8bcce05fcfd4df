package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/identity"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(logging.SilentLoggerConfig())
	require.NoError(t, err)
	return logger
}

func testEnv() identity.EnvironmentSnapshot {
	return identity.EnvironmentSnapshot{
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		ColorDepth:   24,
		Timezone:     "Asia/Dhaka",
		Language:     "en-US",
		Platform:     "Linux x86_64",
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0.0.0 Safari/537.36",
	}
}

// manualClock is a settable wall clock shared by the services under test.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeClient is an in-memory collector API with switchable failure modes.
type fakeClient struct {
	mu               sync.Mutex
	failInteractions bool
	failVisits       bool
	failMigrations   bool

	interactions []*collectorapi.InteractionPayload
	visits       []*collectorapi.VisitPayload
	batches      []*collectorapi.MigrateBatchRequest
	fetchDataset *heatmap.Dataset
	fetchErr     error
}

var errCollectorDown = errors.New("collector unreachable")

func (f *fakeClient) PostInteraction(ctx context.Context, payload *collectorapi.InteractionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInteractions {
		return errCollectorDown
	}
	f.interactions = append(f.interactions, payload)
	return nil
}

func (f *fakeClient) PostVisit(ctx context.Context, payload *collectorapi.VisitPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failVisits {
		return errCollectorDown
	}
	f.visits = append(f.visits, payload)
	return nil
}

func (f *fakeClient) PostMigrateBatch(ctx context.Context, batch *collectorapi.MigrateBatchRequest) (*collectorapi.MigrateBatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMigrations {
		return nil, errCollectorDown
	}
	f.batches = append(f.batches, batch)
	count := len(batch.VisitorRecords)
	for _, points := range batch.HeatmapData {
		count += len(points)
	}
	return &collectorapi.MigrateBatchResponse{Success: true, MigratedCount: count}, nil
}

func (f *fakeClient) FetchInteractions(ctx context.Context, page string, startDate, endDate *time.Time) (*heatmap.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.fetchDataset != nil {
		return f.fetchDataset, nil
	}
	return &heatmap.Dataset{Page: page, Points: []heatmap.Point{}}, nil
}

func (f *fakeClient) setFailing(interactions, visits bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failInteractions = interactions
	f.failVisits = visits
}

func (f *fakeClient) interactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.interactions)
}

func (f *fakeClient) visitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visits)
}
