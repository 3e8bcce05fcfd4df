// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/badalhalder99/newVital-sub000/internal/application/services"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/identity"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/messaging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/analytics"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/database"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/rendering"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies.
type Container struct {
	// Tracking engine
	Tracker *services.TrackerService
	Heatmap *services.HeatmapService

	// Collector API persistence
	InteractionRepo *analytics.SQLInteractionRepository
	VisitRepo       *analytics.SQLVisitRepository

	// Infrastructure
	Logger          *logging.ChanneledLogger
	DB              *database.DB
	Store           store.DurableStore
	CollectorClient collectorapi.Client
	Broadcaster     *messaging.ReplayBroadcaster
	Renderer        *rendering.OverlayRenderer
}

// NewContainer creates and wires all singleton services. The environment
// snapshot seeds the engine's fingerprint for this embedding.
func NewContainer(logger *logging.ChanneledLogger, db *database.DB, env identity.EnvironmentSnapshot) (*Container, error) {
	sqlStore, err := store.NewSQLStore(db, logger)
	if err != nil {
		return nil, err
	}
	durable := store.NewGuardedStore(sqlStore, logger)

	client := collectorapi.NewHTTPClient(config.CollectorBaseURL, logger)

	identitySvc := services.NewIdentityService(durable, logger)
	segmenter := services.NewSegmenterService(identitySvc, env, logger)
	delivery := services.NewDeliveryService(client, durable, logger)
	collector := services.NewCollectorService(segmenter, delivery, durable, logger)
	migration := services.NewMigrationService(client, durable, logger)
	tracker := services.NewTrackerService(identitySvc, segmenter, collector, delivery, migration, durable, logger)

	renderer := rendering.NewOverlayRenderer(rendering.DefaultOverlayConfig(), logger)
	heatmapSvc := services.NewHeatmapService(client, durable, renderer, logger)

	interactionRepo, err := analytics.NewSQLInteractionRepository(db, logger)
	if err != nil {
		return nil, err
	}
	visitRepo, err := analytics.NewSQLVisitRepository(db, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Tracker:         tracker,
		Heatmap:         heatmapSvc,
		InteractionRepo: interactionRepo,
		VisitRepo:       visitRepo,
		Logger:          logger,
		DB:              db,
		Store:           durable,
		CollectorClient: client,
		Broadcaster:     messaging.NewReplayBroadcaster(logger),
		Renderer:        renderer,
	}, nil
}
