// Package grid merges radar volumes onto a shared latitude/longitude grid.
package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

// ErrNoVolumes is returned when there is nothing to grid.
var ErrNoVolumes = errors.New("no volumes to grid")

// Spec defines the output grid.
type Spec struct {
	Bounds      domain.Bounds
	Rows        int
	Cols        int
	MaxAltitude float64 // meters above the antenna
	Fields      []domain.Field
}

// Validate checks the grid dimensions and bounds.
func (s Spec) Validate() error {
	if err := s.Bounds.Validate(); err != nil {
		return fmt.Errorf("grid bounds: %w", err)
	}
	if s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("grid shape %dx%d must be positive", s.Rows, s.Cols)
	}
	if s.MaxAltitude <= 0 {
		return errors.New("grid max altitude must be positive")
	}
	if len(s.Fields) == 0 {
		return errors.New("grid needs at least one field")
	}
	return nil
}

// Mosaicker grids volumes using nearest-gate sampling of the lowest usable
// sweep. Where radars overlap, the valid sample with the lowest beam wins.
type Mosaicker struct {
	spec    Spec
	workers int
	logger  *slog.Logger
}

// NewMosaicker creates a Mosaicker for the given grid.
func NewMosaicker(spec Spec, logger *slog.Logger) (*Mosaicker, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Mosaicker{
		spec:    spec,
		workers: runtime.GOMAXPROCS(0),
		logger:  logger,
	}, nil
}

// Grid builds the mosaic. Rows are filled concurrently; each cell is written
// by exactly one worker so the result does not depend on scheduling.
func (m *Mosaicker) Grid(ctx context.Context, volumes []*domain.Volume) (*domain.Grid, error) {
	radars := make([]*radarIndex, 0, len(volumes))
	for _, v := range volumes {
		if v == nil {
			continue
		}
		radars = append(radars, indexVolume(v, m.spec.Fields))
	}
	if len(radars) == 0 {
		return nil, ErrNoVolumes
	}

	g := domain.NewGrid(m.spec.Bounds, m.spec.Rows, m.spec.Cols, m.spec.MaxAltitude, m.spec.Fields)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(m.workers)
	for row := 0; row < g.Rows; row++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			m.fillRow(g, radars, row)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("grid rows: %w", err)
	}

	for _, f := range m.spec.Fields {
		m.logger.Debug("field gridded", "field", f, "valid_cells", g.ValidCells(f))
	}
	return g, nil
}

func (m *Mosaicker) fillRow(g *domain.Grid, radars []*radarIndex, row int) {
	for col := 0; col < g.Cols; col++ {
		lat, lon := g.CellCenter(row, col)

		// Distance and bearing do not depend on the field.
		geo := make([][2]float64, len(radars))
		for i, r := range radars {
			d, b := groundDistance(r.lat, r.lon, lat, lon)
			geo[i] = [2]float64{d, b}
		}

		for _, f := range m.spec.Fields {
			best := float32(math.NaN())
			bestHeight := math.Inf(1)
			for i, r := range radars {
				v, h, ok := r.sample(f, geo[i][0], geo[i][1], m.spec.MaxAltitude)
				if !ok || math.IsNaN(float64(v)) {
					continue
				}
				if h < bestHeight {
					best, bestHeight = v, h
				}
			}
			g.Fields[f][row*g.Cols+col] = best
		}
	}
}

// radarIndex holds the sweeps of one volume that carry each field, lowest
// elevation first, with azimuths ready for binary search.
type radarIndex struct {
	lat, lon float64
	sweeps   map[domain.Field][]*sweepIndex
}

type sweepIndex struct {
	elevation float64
	tolerance float64
	azimuths  []float64
	radials   []domain.Radial
}

func indexVolume(v *domain.Volume, fields []domain.Field) *radarIndex {
	idx := &radarIndex{
		lat:    v.Lat,
		lon:    v.Lon,
		sweeps: make(map[domain.Field][]*sweepIndex, len(fields)),
	}

	all := make([]*sweepIndex, 0, len(v.Sweeps))
	for i := range v.Sweeps {
		s := &v.Sweeps[i]
		if len(s.Radials) == 0 {
			continue
		}
		si := &sweepIndex{
			elevation: s.Elevation,
			tolerance: s.AzimuthResolution,
			azimuths:  make([]float64, len(s.Radials)),
			radials:   s.Radials,
		}
		if si.tolerance <= 0 {
			si.tolerance = 1
		}
		for j := range s.Radials {
			si.azimuths[j] = s.Radials[j].Azimuth
		}
		all = append(all, si)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].elevation < all[j].elevation })

	for _, f := range fields {
		for _, si := range all {
			for j := range si.radials {
				if _, ok := si.radials[j].Moments[f]; ok {
					idx.sweeps[f] = append(idx.sweeps[f], si)
					break
				}
			}
		}
	}
	return idx
}

// sample looks up field f at a ground distance and bearing from the radar.
// The first sweep whose beam is within maxAltitude and covers the point
// decides the value, which may be NaN for "no echo". ok is false when no
// sweep covers the point.
func (r *radarIndex) sample(f domain.Field, ground, bearing, maxAltitude float64) (float32, float64, bool) {
	for _, s := range r.sweeps[f] {
		slant, height, ok := beamGeometry(ground, s.elevation)
		if !ok || height > maxAltitude {
			continue
		}
		rad := s.nearest(bearing)
		if rad == nil {
			continue
		}
		v, ok := rad.Moments[f].At(slant)
		if !ok {
			continue
		}
		return v, height, true
	}
	return 0, 0, false
}

// nearest returns the radial closest to bearing, or nil when the closest one
// is further away than the sweep's azimuth spacing.
func (s *sweepIndex) nearest(bearing float64) *domain.Radial {
	n := len(s.azimuths)
	i := sort.SearchFloat64s(s.azimuths, bearing)

	best := -1
	bestDiff := math.Inf(1)
	for _, j := range [2]int{i % n, (i - 1 + n) % n} {
		if d := angularDiff(s.azimuths[j], bearing); d < bestDiff {
			best, bestDiff = j, d
		}
	}
	if best < 0 || bestDiff > s.tolerance {
		return nil
	}
	return &s.radials[best]
}
