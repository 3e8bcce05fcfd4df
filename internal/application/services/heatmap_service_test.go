package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/rendering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHeatmap(t *testing.T, client *fakeClient, mem *store.MemoryStore) *HeatmapService {
	t.Helper()
	logger := newTestLogger(t)
	return NewHeatmapService(client, mem, rendering.NewOverlayRenderer(rendering.DefaultOverlayConfig(), logger), logger)
}

func TestScalePointsIndependentAxes(t *testing.T) {
	dataset := &heatmap.Dataset{
		Page:                  "/",
		Points:                []heatmap.Point{{X: 400, Y: 1000, Value: 5}, {X: 800, Y: 2000, Value: 1}},
		CapturedViewportWidth: 800,
		CapturedPageHeight:    2000,
	}

	scaled := ScalePoints(dataset, heatmap.Surface{Width: 400, Height: 1000})

	require.Len(t, scaled, 2)
	assert.Equal(t, float64(200), scaled[0].X)
	assert.Equal(t, float64(500), scaled[0].Y)
	assert.Equal(t, float64(400), scaled[1].X)
	assert.Equal(t, float64(1000), scaled[1].Y)
	assert.Equal(t, 5, scaled[0].Value, "weights pass through unscaled")
}

func TestScalePointsUnknownCaptureDimensions(t *testing.T) {
	dataset := &heatmap.Dataset{
		Page:   "/",
		Points: []heatmap.Point{{X: 400, Y: 1000, Value: 5}},
	}

	scaled := ScalePoints(dataset, heatmap.Surface{Width: 400, Height: 1000})

	assert.Equal(t, float64(400), scaled[0].X, "no capture width means no horizontal scaling")
	assert.Equal(t, float64(1000), scaled[0].Y)
}

func TestRenderInstantLocksScroll(t *testing.T) {
	svc := newTestHeatmap(t, &fakeClient{}, store.NewMemoryStore())

	dataset := &heatmap.Dataset{Page: "/", Points: []heatmap.Point{{X: 1, Y: 2, Value: 5}}, Max: 7}
	render := svc.RenderInstant(dataset, heatmap.Surface{Width: 1280, Height: 2000})

	assert.True(t, render.ScrollLocked)
	assert.False(t, render.NoData)
	assert.Equal(t, 7, render.Max)
	assert.Len(t, render.Points, 1)
}

func TestRenderInstantEmptyDataset(t *testing.T) {
	svc := newTestHeatmap(t, &fakeClient{}, store.NewMemoryStore())

	render := svc.RenderInstant(&heatmap.Dataset{Page: "/empty"}, heatmap.Surface{Width: 1280, Height: 2000})

	assert.True(t, render.NoData)
	assert.False(t, render.ScrollLocked)
	assert.NotNil(t, render.Points)
	assert.Empty(t, render.Points)
}

func TestFetchDatasetPrefersCollector(t *testing.T) {
	client := &fakeClient{fetchDataset: &heatmap.Dataset{
		Page:   "/docs",
		Points: []heatmap.Point{{X: 1, Y: 2, Value: 5}},
	}}
	svc := newTestHeatmap(t, client, store.NewMemoryStore())

	dataset := svc.FetchDataset(context.Background(), "/docs", nil, nil)
	require.Len(t, dataset.Points, 1)
}

func TestFetchDatasetFallsBackToOverlayMirror(t *testing.T) {
	mem := store.NewMemoryStore()
	encoded, err := json.Marshal(&heatmap.Dataset{
		Page:                  "/docs",
		Points:                []heatmap.Point{{X: 9, Y: 9, Value: 1}},
		CapturedViewportWidth: 800,
		CapturedPageHeight:    2000,
	})
	require.NoError(t, err)
	require.NoError(t, mem.Set(store.PrefixLiveOverlay+"/docs", string(encoded)))

	client := &fakeClient{fetchErr: errors.New("collector unreachable")}
	svc := newTestHeatmap(t, client, mem)

	dataset := svc.FetchDataset(context.Background(), "/docs", nil, nil)
	require.Len(t, dataset.Points, 1)
	assert.Equal(t, float64(9), dataset.Points[0].X)
	assert.Equal(t, float64(800), dataset.CapturedViewportWidth, "mirror carries its capture surface")
	assert.Equal(t, float64(2000), dataset.CapturedPageHeight)
}

func TestFetchDatasetFallsBackToLegacyBuffer(t *testing.T) {
	mem := store.NewMemoryStore()
	encoded, err := json.Marshal([]heatmap.Point{{X: 9, Y: 9, Value: 1}})
	require.NoError(t, err)
	require.NoError(t, mem.Set(store.PrefixHeatmap+"/docs", string(encoded)))

	client := &fakeClient{fetchErr: errors.New("collector unreachable")}
	svc := newTestHeatmap(t, client, mem)

	dataset := svc.FetchDataset(context.Background(), "/docs", nil, nil)
	require.Len(t, dataset.Points, 1)
	assert.Equal(t, float64(9), dataset.Points[0].X)
}

func TestRenderInstantRescalesFetchedCapture(t *testing.T) {
	client := &fakeClient{fetchDataset: &heatmap.Dataset{
		Page:                  "/pricing",
		Points:                []heatmap.Point{{X: 800, Y: 2000, Value: 5}},
		Max:                   5,
		CapturedViewportWidth: 800,
		CapturedPageHeight:    2000,
	}}
	svc := newTestHeatmap(t, client, store.NewMemoryStore())

	dataset := svc.FetchDataset(context.Background(), "/pricing", nil, nil)
	render := svc.RenderInstant(dataset, heatmap.Surface{Width: 400, Height: 1000})

	require.Len(t, render.Points, 1)
	assert.Equal(t, float64(400), render.Points[0].X, "point lands on the render surface edge, not past it")
	assert.Equal(t, float64(1000), render.Points[0].Y)
}

func TestFetchDatasetEmptyEverywhere(t *testing.T) {
	client := &fakeClient{fetchErr: errors.New("collector unreachable")}
	svc := newTestHeatmap(t, client, store.NewMemoryStore())

	dataset := svc.FetchDataset(context.Background(), "/nothing", nil, nil)
	require.NotNil(t, dataset)
	assert.True(t, dataset.IsEmpty())
	assert.NotNil(t, dataset.Points, "empty dataset still serializes as an array")
}

func TestDatasetMaxValueFallsBackToScan(t *testing.T) {
	dataset := &heatmap.Dataset{Points: []heatmap.Point{{Value: 1}, {Value: 5}, {Value: 3}}}
	assert.Equal(t, 5, dataset.MaxValue())

	dataset.Max = 12
	assert.Equal(t, 12, dataset.MaxValue())
}

func TestExportOverlayEncodesPNG(t *testing.T) {
	svc := newTestHeatmap(t, &fakeClient{}, store.NewMemoryStore())

	dataset := &heatmap.Dataset{Page: "/", Points: []heatmap.Point{{X: 100, Y: 100, Value: 5}}}
	data, err := svc.ExportOverlay(dataset, heatmap.Surface{Width: 200, Height: 200}, "png")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}
