package render

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

//go:embed templates/map.html.tmpl
var templateFS embed.FS

var mapTemplate = template.Must(template.ParseFS(templateFS, "templates/map.html.tmpl"))

// DefaultZoom is the initial Leaflet zoom level.
const DefaultZoom = 8

// Page is everything the map template needs.
type Page struct {
	Title    string
	DataTime time.Time
	Bounds   domain.Bounds
	Zoom     int
	Overlays []Overlay
	Sites    []Marker
}

// Overlay is one image layer. URL is usually a PNG data URL.
type Overlay struct {
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Opacity float64 `json:"opacity"`
	Show    bool    `json:"show"`
}

// Marker is a radar site marker with its popup text.
type Marker struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

type pageScript struct {
	Center   [2]float64    `json:"center"`
	Zoom     int           `json:"zoom"`
	Bounds   [2][2]float64 `json:"bounds"`
	Overlays []Overlay     `json:"overlays"`
	Sites    []Marker      `json:"sites"`
}

// PNGDataURL embeds PNG bytes in a data URL.
func PNGDataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// RenderMap executes the map template.
func RenderMap(p Page) ([]byte, error) {
	lat, lon := p.Bounds.Center()
	zoom := p.Zoom
	if zoom == 0 {
		zoom = DefaultZoom
	}
	overlays := p.Overlays
	if overlays == nil {
		overlays = []Overlay{}
	}
	sites := p.Sites
	if sites == nil {
		sites = []Marker{}
	}

	dataTime := "unknown"
	if !p.DataTime.IsZero() {
		dataTime = p.DataTime.UTC().Format("2006-01-02 15:04:05")
	}

	var buf bytes.Buffer
	err := mapTemplate.Execute(&buf, struct {
		Title    string
		DataTime string
		Page     pageScript
	}{
		Title:    p.Title,
		DataTime: dataTime,
		Page: pageScript{
			Center: [2]float64{lat, lon},
			Zoom:   zoom,
			Bounds: [2][2]float64{
				{p.Bounds.LatMin, p.Bounds.LonMin},
				{p.Bounds.LatMax, p.Bounds.LonMax},
			},
			Overlays: overlays,
			Sites:    sites,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("execute map template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMap renders the page and writes it to path atomically.
func WriteMap(path string, p Page) error {
	data, err := RenderMap(p)
	if err != nil {
		return err
	}
	return writeBytes(path, data)
}
