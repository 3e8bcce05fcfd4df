// Package heatmap provides the read-side entities for density rendering and
// replay: time-ordered weighted points materialized from the collector API
// or the local fallback buffers.
package heatmap

import (
	"sort"
	"time"
)

// Point is one weighted interaction point on a page.
type Point struct {
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Value     int        `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Dataset is a read-only view of recorded interactions for one page.
type Dataset struct {
	Page   string  `json:"page"`
	Points []Point `json:"points"`
	Max    int     `json:"max"`

	// Capture surface the points were recorded against.
	CapturedViewportWidth float64 `json:"capturedViewportWidth"`
	CapturedPageHeight    float64 `json:"capturedPageHeight"`
}

// Surface is the render target the dataset is scaled onto.
type Surface struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether there is nothing to render.
func (d *Dataset) IsEmpty() bool { return d == nil || len(d.Points) == 0 }

// TimestampedPoints returns the points carrying a timestamp, sorted ascending.
// Points without timestamps cannot be replayed and are skipped.
func (d *Dataset) TimestampedPoints() []Point {
	if d == nil {
		return nil
	}
	pts := make([]Point, 0, len(d.Points))
	for _, p := range d.Points {
		if p.Timestamp != nil {
			pts = append(pts, p)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool {
		return pts[i].Timestamp.Before(*pts[j].Timestamp)
	})
	return pts
}

// MaxValue returns the declared max weight, falling back to scanning the
// points when the collector response omitted it.
func (d *Dataset) MaxValue() int {
	if d == nil {
		return 0
	}
	if d.Max > 0 {
		return d.Max
	}
	max := 0
	for _, p := range d.Points {
		if p.Value > max {
			max = p.Value
		}
	}
	return max
}
