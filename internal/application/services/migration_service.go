package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// MigrationService ships locally accumulated pre-backend records to the
// collector in one batch and clears them afterwards. At-least-once: keys
// are only removed after the remote write succeeded, so a failed run leaves
// everything in place for the next attempt.
type MigrationService struct {
	client collectorapi.Client
	store  store.DurableStore
	logger *logging.ChanneledLogger
}

// NewMigrationService creates a new migration service.
func NewMigrationService(client collectorapi.Client, durable store.DurableStore, logger *logging.ChanneledLogger) *MigrationService {
	return &MigrationService{client: client, store: durable, logger: logger}
}

// Migrate scans the durable store for legacy heatmap buffers and visitor
// records, uploads them as one batch, and clears the migrated keys.
// Running with nothing to migrate is a no-op returning zero.
func (s *MigrationService) Migrate(ctx context.Context) (int, error) {
	start := time.Now()

	batch := &collectorapi.MigrateBatchRequest{
		HeatmapData: make(map[string][]heatmap.Point),
	}
	var migratedKeys []string

	heatmapKeys, err := s.store.KeysWithPrefix(store.PrefixHeatmap)
	if err != nil {
		return 0, err
	}
	for _, key := range heatmapKeys {
		raw, ok, err := s.store.Get(key)
		if err != nil || !ok {
			continue
		}
		var points []heatmap.Point
		if err := json.Unmarshal([]byte(raw), &points); err != nil {
			s.logger.Storage().Warn("Skipping unreadable heatmap buffer", "key", key, "error", err.Error())
			continue
		}
		page := strings.TrimPrefix(key, store.PrefixHeatmap)
		batch.HeatmapData[page] = points
		migratedKeys = append(migratedKeys, key)
	}

	visitorKeys, err := s.store.KeysWithPrefix(store.PrefixVisitor)
	if err != nil {
		return 0, err
	}
	for _, key := range visitorKeys {
		raw, ok, err := s.store.Get(key)
		if err != nil || !ok {
			continue
		}
		var record collectorapi.VisitorRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Storage().Warn("Skipping unreadable visitor record", "key", key, "error", err.Error())
			continue
		}
		batch.VisitorRecords = append(batch.VisitorRecords, record)
		migratedKeys = append(migratedKeys, key)
	}

	if batch.IsEmpty() {
		return 0, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, config.MigrationTimeout)
	defer cancel()

	resp, err := s.client.PostMigrateBatch(reqCtx, batch)
	if err != nil {
		s.logger.Delivery().Warn("Migration batch rejected, keeping local data", "error", err.Error(), "keys", len(migratedKeys))
		return 0, err
	}

	for _, key := range migratedKeys {
		if err := s.store.Remove(key); err != nil {
			s.logger.Storage().Warn("Failed to clear migrated key", "key", key, "error", err.Error())
		}
	}

	count := resp.MigratedCount
	if count == 0 {
		count = len(migratedKeys)
	}
	s.logger.Delivery().Info("Migration completed", "migratedCount", count, "duration", time.Since(start))
	return count, nil
}
