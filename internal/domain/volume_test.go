package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoment_At(t *testing.T) {
	m := &Moment{FirstGate: 2125, GateSpacing: 250, Values: []float32{1, 2, 3, 4}}

	v, ok := m.At(2125)
	require.True(t, ok)
	assert.Equal(t, float32(1), v)

	v, ok = m.At(2125 + 250*2 + 100)
	require.True(t, ok)
	assert.Equal(t, float32(3), v)

	_, ok = m.At(1000)
	assert.False(t, ok, "before first gate")

	_, ok = m.At(2125 + 250*4)
	assert.False(t, ok, "past last gate")

	assert.InDelta(t, 2875.0, m.MaxRange(), 1e-9)
}

func TestMoment_At_Degenerate(t *testing.T) {
	var nilMoment *Moment
	_, ok := nilMoment.At(100)
	assert.False(t, ok)

	_, ok = (&Moment{GateSpacing: 0, Values: []float32{1}}).At(0)
	assert.False(t, ok)
}

func TestFieldMomentNames(t *testing.T) {
	for _, f := range GridFields {
		got, ok := FieldForMoment(f.MomentName())
		require.True(t, ok)
		assert.Equal(t, f, got)
	}
	_, ok := FieldForMoment("ZDR")
	assert.False(t, ok)
}

func TestFieldLabels(t *testing.T) {
	assert.Equal(t, "Reflectivity (dBZ)", FieldReflectivity.Label())
	assert.Equal(t, "Velocity (m/s)", FieldVelocity.Label())
	assert.Equal(t, "Correlation Coefficient", FieldCrossCorrelation.Label())
	assert.Empty(t, FieldCrossCorrelation.Unit())
	assert.Equal(t, "spectrum_width", Field("spectrum_width").Label())
}

func TestSweep_HasFieldAndSort(t *testing.T) {
	s := Sweep{Radials: []Radial{
		{Azimuth: 90, Moments: map[Field]*Moment{FieldReflectivity: {}}},
		{Azimuth: 10, Moments: map[Field]*Moment{}},
	}}
	assert.True(t, s.HasField(FieldReflectivity))
	assert.False(t, s.HasField(FieldVelocity))

	s.SortRadials()
	assert.Equal(t, 10.0, s.Radials[0].Azimuth)
}

func TestGrid(t *testing.T) {
	b := Bounds{LatMin: 39, LatMax: 42, LonMin: -79, LonMax: -73}
	require.NoError(t, b.Validate())

	g := NewGrid(b, 3, 6, 2000, GridFields)
	assert.Len(t, g.Fields, 3)
	assert.Equal(t, 0, g.ValidCells(FieldReflectivity))

	lat, lon := g.CellCenter(0, 0)
	assert.InDelta(t, 39.5, lat, 1e-9)
	assert.InDelta(t, -78.5, lon, 1e-9)

	g.Fields[FieldReflectivity][1*6+2] = 42
	assert.Equal(t, float32(42), g.At(FieldReflectivity, 1, 2))
	assert.Equal(t, 1, g.ValidCells(FieldReflectivity))
	assert.True(t, math.IsNaN(float64(g.At(FieldReflectivity, 5, 5))))
	assert.True(t, math.IsNaN(float64(g.At("unknown", 0, 0))))

	clat, clon := b.Center()
	assert.InDelta(t, 40.5, clat, 1e-9)
	assert.InDelta(t, -76.0, clon, 1e-9)
}

func TestBounds_Validate(t *testing.T) {
	assert.Error(t, Bounds{LatMin: 42, LatMax: 39, LonMin: -79, LonMax: -73}.Validate())
	assert.Error(t, Bounds{LatMin: 39, LatMax: 42, LonMin: -73, LonMax: -79}.Validate())
	assert.Error(t, Bounds{LatMin: -91, LatMax: 42, LonMin: -79, LonMax: -73}.Validate())
	assert.Error(t, Bounds{LatMin: 39, LatMax: 42, LonMin: -181, LonMax: -73}.Validate())
}

func TestDefaultLayers(t *testing.T) {
	layers := DefaultLayers()
	require.Len(t, layers, 3)

	assert.Equal(t, FieldReflectivity, layers[0].Field)
	assert.True(t, layers[0].Show)
	assert.Equal(t, -10.0, layers[0].VMin)
	assert.Equal(t, 70.0, layers[0].VMax)

	assert.Equal(t, FieldVelocity, layers[1].Field)
	assert.False(t, layers[1].Show)
	assert.Equal(t, "BuDRd18", layers[1].Colormap)

	assert.Equal(t, FieldCrossCorrelation, layers[2].Field)
	assert.InDelta(t, 1.05, layers[2].VMax, 1e-9)
	for _, l := range layers {
		assert.InDelta(t, 0.8, l.Opacity, 1e-9)
	}
}

func TestDataTime(t *testing.T) {
	first := time.Date(2024, 4, 26, 15, 10, 23, 0, time.UTC)
	vols := []*Volume{nil, {StartTime: first}, {StartTime: first.Add(time.Minute)}}
	assert.Equal(t, first, DataTime(vols))
	assert.True(t, DataTime(nil).IsZero())
}
