package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/rendering"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// InstantRender is the result of a static density render: the scaled point
// set plus the render-surface state the dashboard applies. Vertical scroll
// is locked for the duration of a static display so the overlay maps onto a
// deterministic viewport.
type InstantRender struct {
	Page         string          `json:"page"`
	Points       []heatmap.Point `json:"points"`
	Max          int             `json:"max"`
	ScrollLocked bool            `json:"scrollLocked"`
	NoData       bool            `json:"noData"`
}

// HeatmapService is the read path: it materializes datasets from the
// collector API (falling back to the local page buffer when the collector
// is unreachable) and produces static renders and overlay images.
type HeatmapService struct {
	client   collectorapi.Client
	store    store.DurableStore
	renderer *rendering.OverlayRenderer
	logger   *logging.ChanneledLogger
}

// NewHeatmapService creates a new heatmap read service.
func NewHeatmapService(client collectorapi.Client, durable store.DurableStore, renderer *rendering.OverlayRenderer, logger *logging.ChanneledLogger) *HeatmapService {
	return &HeatmapService{client: client, store: durable, renderer: renderer, logger: logger}
}

// FetchDataset loads the recorded points for a page, preferring the
// collector API and falling back to the local buffer. A page with no data
// anywhere yields an empty dataset, never an error: the renderer shows its
// "no data yet" state instead.
func (s *HeatmapService) FetchDataset(ctx context.Context, page string, startDate, endDate *time.Time) *heatmap.Dataset {
	reqCtx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	dataset, err := s.client.FetchInteractions(reqCtx, page, startDate, endDate)
	if err == nil && !dataset.IsEmpty() {
		return dataset
	}
	if err != nil {
		s.logger.Render().Warn("Collector fetch failed, trying local buffer", "page", page, "error", err.Error())
	}

	if local := s.localDataset(page); !local.IsEmpty() {
		return local
	}

	return &heatmap.Dataset{Page: page, Points: []heatmap.Point{}}
}

// localDataset reads the live overlay mirror from the durable store, which
// carries the capture surface alongside the points. Legacy buffers from
// before the collector backend existed hold a bare point array; they serve
// as a last resort until the migration pass drains them.
func (s *HeatmapService) localDataset(page string) *heatmap.Dataset {
	if raw, ok, err := s.store.Get(store.PrefixLiveOverlay + page); err == nil && ok {
		var dataset heatmap.Dataset
		if err := json.Unmarshal([]byte(raw), &dataset); err == nil {
			dataset.Page = page
			return &dataset
		}
		s.logger.Render().Warn("Overlay mirror unreadable", "page", page)
	}

	raw, ok, err := s.store.Get(store.PrefixHeatmap + page)
	if err != nil || !ok {
		return &heatmap.Dataset{Page: page}
	}
	var points []heatmap.Point
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		s.logger.Render().Warn("Local page buffer unreadable", "page", page, "error", err.Error())
		return &heatmap.Dataset{Page: page}
	}
	return &heatmap.Dataset{Page: page, Points: points}
}

// ScalePoints maps points from the capture surface onto the render surface
// with independent X and Y scale factors. Unknown capture dimensions leave
// the points untouched.
func ScalePoints(dataset *heatmap.Dataset, surface heatmap.Surface) []heatmap.Point {
	scaleX, scaleY := 1.0, 1.0
	if dataset.CapturedViewportWidth > 0 && surface.Width > 0 {
		scaleX = surface.Width / dataset.CapturedViewportWidth
	}
	if dataset.CapturedPageHeight > 0 && surface.Height > 0 {
		scaleY = surface.Height / dataset.CapturedPageHeight
	}

	scaled := make([]heatmap.Point, len(dataset.Points))
	for i, p := range dataset.Points {
		scaled[i] = heatmap.Point{
			X:         p.X * scaleX,
			Y:         p.Y * scaleY,
			Value:     p.Value,
			Timestamp: p.Timestamp,
		}
	}
	return scaled
}

// RenderInstant produces a static density render of the full dataset in
// one pass.
func (s *HeatmapService) RenderInstant(dataset *heatmap.Dataset, surface heatmap.Surface) *InstantRender {
	if dataset.IsEmpty() {
		return &InstantRender{Page: dataset.Page, Points: []heatmap.Point{}, NoData: true}
	}
	return &InstantRender{
		Page:         dataset.Page,
		Points:       ScalePoints(dataset, surface),
		Max:          dataset.MaxValue(),
		ScrollLocked: true,
	}
}

// ExportOverlay renders the dataset to an encoded overlay image in the
// configured format.
func (s *HeatmapService) ExportOverlay(dataset *heatmap.Dataset, surface heatmap.Surface, format string) ([]byte, error) {
	render := s.RenderInstant(dataset, surface)
	img := s.renderer.Render(render.Points, surface, render.Max)
	return s.renderer.Encode(img, format)
}
