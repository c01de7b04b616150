package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

// MapFile is the name of the generated page inside the output directory.
const MapFile = "index.html"

// Renderer turns a mosaic grid into overlay PNGs and the Leaflet page.
type Renderer struct {
	outputDir string
	layers    []domain.Layer
	geocoder  domain.Geocoder
	logger    *slog.Logger
}

// NewRenderer creates a Renderer writing into outputDir. geocoder may be nil.
func NewRenderer(outputDir string, layers []domain.Layer, geocoder domain.Geocoder, logger *slog.Logger) *Renderer {
	if len(layers) == 0 {
		layers = domain.DefaultLayers()
	}
	return &Renderer{
		outputDir: outputDir,
		layers:    layers,
		geocoder:  geocoder,
		logger:    logger,
	}
}

// Render writes one PNG per layer and the map page. The returned result has
// per-site coordinates and labels but no scan keys; the caller owns those.
func (r *Renderer) Render(ctx context.Context, g *domain.Grid, volumes []*domain.Volume) (domain.MosaicResult, error) {
	result := domain.MosaicResult{
		MapPath:    filepath.Join(r.outputDir, MapFile),
		Overlays:   make(map[domain.Field]string, len(r.layers)),
		DataTime:   domain.DataTime(volumes),
		Bounds:     g.Bounds,
		ValidCells: make(map[domain.Field]int, len(r.layers)),
	}

	page := Page{
		Title:    "NEXRAD Radar Mosaic",
		DataTime: result.DataTime,
		Bounds:   g.Bounds,
		Zoom:     DefaultZoom,
	}

	for _, layer := range r.layers {
		if err := ctx.Err(); err != nil {
			return domain.MosaicResult{}, err
		}
		img, err := Rasterize(g, layer)
		if err != nil {
			return domain.MosaicResult{}, fmt.Errorf("rasterize %s: %w", layer.Field, err)
		}
		data, err := EncodePNG(img)
		if err != nil {
			return domain.MosaicResult{}, err
		}
		path := filepath.Join(r.outputDir, layer.File)
		if err := writeBytes(path, data); err != nil {
			return domain.MosaicResult{}, err
		}
		result.Overlays[layer.Field] = path
		result.ValidCells[layer.Field] = g.ValidCells(layer.Field)

		page.Overlays = append(page.Overlays, Overlay{
			Name:    layer.Name,
			URL:     PNGDataURL(data),
			Opacity: layer.Opacity,
			Show:    layer.Show,
		})
		r.logger.Debug("overlay written", "field", layer.Field, "path", path)
	}

	for _, v := range volumes {
		if v == nil {
			continue
		}
		label := domain.LabelSite(ctx, v, r.geocoder, r.logger)
		page.Sites = append(page.Sites, Marker{Label: label, Lat: v.Lat, Lon: v.Lon})
		result.Sites = append(result.Sites, domain.SiteScan{
			Site:      v.Site,
			Lat:       v.Lat,
			Lon:       v.Lon,
			Label:     label,
			StartTime: v.StartTime.UTC(),
		})
	}

	if err := WriteMap(result.MapPath, page); err != nil {
		return domain.MosaicResult{}, err
	}
	result.GeneratedAt = domain.Now()

	r.logger.Info("map written",
		"path", result.MapPath,
		"data_time", result.DataTime,
		"overlays", len(result.Overlays),
	)
	return result, nil
}
