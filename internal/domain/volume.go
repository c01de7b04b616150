package domain

import (
	"math"
	"sort"
	"time"
)

// Field identifies a gridded radar moment.
type Field string

const (
	FieldReflectivity     Field = "reflectivity"
	FieldVelocity         Field = "velocity"
	FieldCrossCorrelation Field = "cross_correlation_ratio"
)

// GridFields lists the moments carried through gridding and rendering.
var GridFields = []Field{FieldReflectivity, FieldVelocity, FieldCrossCorrelation}

var momentNames = map[Field]string{
	FieldReflectivity:     "REF",
	FieldVelocity:         "VEL",
	FieldCrossCorrelation: "RHO",
}

var fieldUnits = map[Field]string{
	FieldReflectivity:     "dBZ",
	FieldVelocity:         "m/s",
	FieldCrossCorrelation: "",
}

var fieldLabels = map[Field]string{
	FieldReflectivity:     "Reflectivity",
	FieldVelocity:         "Velocity",
	FieldCrossCorrelation: "Correlation Coefficient",
}

// Unit returns the physical unit of the field; correlation is unitless.
func (f Field) Unit() string {
	return fieldUnits[f]
}

// Label returns a display name including the unit, e.g. "Reflectivity (dBZ)".
func (f Field) Label() string {
	label, ok := fieldLabels[f]
	if !ok {
		return string(f)
	}
	if u := f.Unit(); u != "" {
		return label + " (" + u + ")"
	}
	return label
}

// MomentName returns the three-letter Message 31 block name for the field.
func (f Field) MomentName() string {
	return momentNames[f]
}

// FieldForMoment maps a Message 31 block name to a field.
func FieldForMoment(name string) (Field, bool) {
	for f, n := range momentNames {
		if n == name {
			return f, true
		}
	}
	return "", false
}

// Volume is one decoded volume scan from a single radar.
type Volume struct {
	Site      string
	Lat       float64
	Lon       float64
	Height    float64 // antenna height above mean sea level, meters
	StartTime time.Time
	VCP       int
	Sweeps    []Sweep
}

// Sweep is one elevation cut.
type Sweep struct {
	Number            int
	Elevation         float64 // mean elevation angle, degrees
	AzimuthResolution float64 // degrees between radials
	Radials           []Radial
}

// HasField reports whether any radial in the sweep carries f.
func (s *Sweep) HasField(f Field) bool {
	for i := range s.Radials {
		if _, ok := s.Radials[i].Moments[f]; ok {
			return true
		}
	}
	return false
}

// SortRadials orders radials by azimuth.
func (s *Sweep) SortRadials() {
	sort.Slice(s.Radials, func(i, j int) bool {
		return s.Radials[i].Azimuth < s.Radials[j].Azimuth
	})
}

// Radial is a single ray of gates.
type Radial struct {
	Azimuth   float64
	Elevation float64
	Time      time.Time
	Moments   map[Field]*Moment
}

// Moment holds the gate values of one field along a radial.
type Moment struct {
	FirstGate   float64 // range to the centre of the first gate, meters
	GateSpacing float64 // meters
	Values      []float32
}

// At returns the value of the gate containing rangeM. ok is false when the
// range falls outside the radial; the value itself may be NaN.
func (m *Moment) At(rangeM float64) (float32, bool) {
	if m == nil || m.GateSpacing <= 0 || len(m.Values) == 0 {
		return 0, false
	}
	idx := int(math.Floor((rangeM-m.FirstGate)/m.GateSpacing + 0.5))
	if idx < 0 || idx >= len(m.Values) {
		return 0, false
	}
	return m.Values[idx], true
}

// MaxRange returns the range to the centre of the last gate.
func (m *Moment) MaxRange() float64 {
	if m == nil || len(m.Values) == 0 {
		return 0
	}
	return m.FirstGate + float64(len(m.Values)-1)*m.GateSpacing
}
