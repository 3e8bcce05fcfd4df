// Package rendering materializes heatmap datasets as density overlay
// images: weighted radial splats on a canvas, gaussian-smoothed, encoded as
// WebP or PNG for dashboard display and export.
package rendering

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// OverlayConfig holds the tunables for density rendering.
type OverlayConfig struct {
	PointRadius float64
	MaxOpacity  float64
	BlurSigma   float64
}

// DefaultOverlayConfig derives the overlay tunables from central config.
func DefaultOverlayConfig() OverlayConfig {
	return OverlayConfig{
		PointRadius: config.HeatmapPointRadius,
		MaxOpacity:  config.HeatmapMaxOpacity,
		BlurSigma:   config.HeatmapPointRadius / 4,
	}
}

// OverlayRenderer draws weighted points into a density overlay image.
type OverlayRenderer struct {
	cfg    OverlayConfig
	logger *logging.ChanneledLogger
}

// NewOverlayRenderer creates a renderer with the given tunables.
func NewOverlayRenderer(cfg OverlayConfig, logger *logging.ChanneledLogger) *OverlayRenderer {
	return &OverlayRenderer{cfg: cfg, logger: logger}
}

// Render draws the (already scaled) points onto a transparent canvas of the
// surface dimensions. Weight drives both the splat color ramp and its
// alpha, so clicks read hotter than sampled moves.
func (r *OverlayRenderer) Render(points []heatmap.Point, surface heatmap.Surface, maxValue int) image.Image {
	width, height := int(surface.Width), int(surface.Height)
	if width <= 0 || height <= 0 {
		width, height = 1, 1
	}
	if maxValue <= 0 {
		maxValue = 1
	}

	dc := gg.NewContext(width, height)

	for _, p := range points {
		intensity := float64(p.Value) / float64(maxValue)
		if intensity > 1 {
			intensity = 1
		}
		cr, cg, cb := rampColor(intensity)
		alpha := intensity * r.cfg.MaxOpacity

		gradient := gg.NewRadialGradient(p.X, p.Y, 0, p.X, p.Y, r.cfg.PointRadius)
		gradient.AddColorStop(0, color.NRGBA{R: uint8(cr * 255), G: uint8(cg * 255), B: uint8(cb * 255), A: uint8(alpha * 255)})
		gradient.AddColorStop(1, color.NRGBA{R: uint8(cr * 255), G: uint8(cg * 255), B: uint8(cb * 255), A: 0})
		dc.SetFillStyle(gradient)
		dc.DrawCircle(p.X, p.Y, r.cfg.PointRadius)
		dc.Fill()
	}

	img := dc.Image()
	if r.cfg.BlurSigma > 0 {
		img = imaging.Blur(img, r.cfg.BlurSigma)
	}

	r.logger.Render().Debug("Overlay rendered", "points", len(points), "width", width, "height", height)
	return img
}

// Encode serializes the overlay in the requested format ("webp" or "png").
func (r *OverlayRenderer) Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode overlay as png: %w", err)
		}
	default:
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode overlay as webp: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// rampColor maps intensity onto a cold-to-hot ramp: blue through green and
// yellow into red.
func rampColor(t float64) (r, g, b float64) {
	switch {
	case t < 0.25:
		return 0, t * 4, 1
	case t < 0.5:
		return 0, 1, 1 - (t-0.25)*4
	case t < 0.75:
		return (t - 0.5) * 4, 1, 0
	default:
		return 1, 1 - (t-0.75)*4, 0
	}
}
