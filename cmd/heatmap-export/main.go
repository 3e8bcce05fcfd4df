// Command heatmap-export renders a page's heatmap dataset to an overlay
// image file without running the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/application/services"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/database"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/rendering"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

func main() {
	var (
		page      = flag.String("page", "", "page path to export (required)")
		width     = flag.Float64("width", 1280, "render surface width")
		height    = flag.Float64("height", 2000, "render surface height")
		format    = flag.String("format", config.HeatmapExportFormat, "output format: webp or png")
		out       = flag.String("out", "", "output file (default heatmap.<format>)")
		startDate = flag.String("start", "", "optional RFC3339 lower bound")
		endDate   = flag.String("end", "", "optional RFC3339 upper bound")
	)
	flag.Parse()

	if *page == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *format != "webp" && *format != "png" {
		log.Fatalf("unsupported format %q", *format)
	}

	logger, err := logging.NewChanneledLogger(logging.SilentLoggerConfig())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	db, err := database.NewConnectionFromURL(config.StoreDatabaseURL, config.StoreAuthToken, logger)
	if err != nil {
		log.Fatalf("failed to open store database: %v", err)
	}
	defer db.Close()

	durable, err := store.NewSQLStore(db, logger)
	if err != nil {
		log.Fatalf("failed to open durable store: %v", err)
	}

	client := collectorapi.NewHTTPClient(config.CollectorBaseURL, logger)
	renderer := rendering.NewOverlayRenderer(rendering.DefaultOverlayConfig(), logger)
	heatmapSvc := services.NewHeatmapService(client, durable, renderer, logger)

	start, err := parseFlagTime(*startDate)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := parseFlagTime(*endDate)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	dataset := heatmapSvc.FetchDataset(context.Background(), *page, start, end)
	if dataset.IsEmpty() {
		log.Fatalf("no data recorded for page %q", *page)
	}

	surface := heatmap.Surface{Width: *width, Height: *height}
	encoded, err := heatmapSvc.ExportOverlay(dataset, surface, *format)
	if err != nil {
		log.Fatalf("failed to render overlay: %v", err)
	}

	target := *out
	if target == "" {
		target = fmt.Sprintf("heatmap.%s", *format)
	}
	if err := os.WriteFile(target, encoded, 0644); err != nil {
		log.Fatalf("failed to write %s: %v", target, err)
	}

	log.Printf("Exported %d points for %s to %s (%dx%d)", len(dataset.Points), *page, target, int(*width), int(*height))
}

func parseFlagTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
