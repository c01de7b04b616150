package domain

import (
	"errors"
	"fmt"
	"math"
)

// Bounds is a latitude/longitude box in degrees.
type Bounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Validate checks that the box is non-empty and on the globe.
func (b Bounds) Validate() error {
	if b.LatMin >= b.LatMax {
		return fmt.Errorf("latitude range %g..%g is empty", b.LatMin, b.LatMax)
	}
	if b.LonMin >= b.LonMax {
		return fmt.Errorf("longitude range %g..%g is empty", b.LonMin, b.LonMax)
	}
	if b.LatMin < -90 || b.LatMax > 90 {
		return errors.New("latitude must be within -90..90")
	}
	if b.LonMin < -180 || b.LonMax > 180 {
		return errors.New("longitude must be within -180..180")
	}
	return nil
}

// Center returns the midpoint of the box.
func (b Bounds) Center() (lat, lon float64) {
	return (b.LatMin + b.LatMax) / 2, (b.LonMin + b.LonMax) / 2
}

// Grid is a single-level lat/lon mosaic. Each field is stored row-major with
// row 0 at LatMin; missing cells are NaN.
type Grid struct {
	Bounds      Bounds
	Rows        int
	Cols        int
	MaxAltitude float64
	Fields      map[Field][]float32
}

// NewGrid allocates a grid with every cell of every field set to NaN.
func NewGrid(b Bounds, rows, cols int, maxAltitude float64, fields []Field) *Grid {
	g := &Grid{
		Bounds:      b,
		Rows:        rows,
		Cols:        cols,
		MaxAltitude: maxAltitude,
		Fields:      make(map[Field][]float32, len(fields)),
	}
	nan := float32(math.NaN())
	for _, f := range fields {
		data := make([]float32, rows*cols)
		for i := range data {
			data[i] = nan
		}
		g.Fields[f] = data
	}
	return g
}

// CellCenter returns the coordinates of the centre of a cell.
func (g *Grid) CellCenter(row, col int) (lat, lon float64) {
	dLat := (g.Bounds.LatMax - g.Bounds.LatMin) / float64(g.Rows)
	dLon := (g.Bounds.LonMax - g.Bounds.LonMin) / float64(g.Cols)
	return g.Bounds.LatMin + (float64(row)+0.5)*dLat, g.Bounds.LonMin + (float64(col)+0.5)*dLon
}

// At returns the value of field f at a cell, or NaN if the field is absent.
func (g *Grid) At(f Field, row, col int) float32 {
	data, ok := g.Fields[f]
	if !ok || row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return float32(math.NaN())
	}
	return data[row*g.Cols+col]
}

// ValidCells counts the non-NaN cells of field f.
func (g *Grid) ValidCells(f Field) int {
	n := 0
	for _, v := range g.Fields[f] {
		if !math.IsNaN(float64(v)) {
			n++
		}
	}
	return n
}
