package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

const fixture = "../../internal/level2/testdata/KTST20240426_120000_V06"

func TestRun_Fixture(t *testing.T) {
	var out bytes.Buffer
	ok, err := run(&out, fixture, true)
	require.NoError(t, err)
	assert.True(t, ok, out.String())

	s := out.String()
	assert.Contains(t, s, "KTST")
	assert.Contains(t, s, "40.5000, -77.5000")
	assert.Contains(t, s, "2024-04-26 12:00:00")
	assert.Contains(t, s, "REF,VEL,RHO")
	assert.Contains(t, s, "[PASS] sweep order")
	assert.Contains(t, s, "[PASS] gridded moments")
}

func TestRun_MissingFile(t *testing.T) {
	var out bytes.Buffer
	_, err := run(&out, "does-not-exist", false)
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestCheckVolume_Failures(t *testing.T) {
	v := &domain.Volume{
		Site: "bad",
		Sweeps: []domain.Sweep{
			{Number: 2, Radials: []domain.Radial{
				{Azimuth: 10, Moments: map[domain.Field]*domain.Moment{domain.FieldReflectivity: {GateSpacing: 250}}},
				{Azimuth: 5, Moments: map[domain.Field]*domain.Moment{domain.FieldReflectivity: {GateSpacing: 0}}},
			}},
			{Number: 1},
		},
	}

	phases := checkVolume(v)
	require.Len(t, phases, 4)
	for _, p := range phases {
		assert.False(t, p.passed(), p.name)
	}
	assert.Contains(t, phases[0].errors, `site "bad" is not an ICAO identifier`)
	assert.Contains(t, phases[1].errors, "sweep 1 follows sweep 2")
	assert.Contains(t, phases[2].errors, "sweep 2 radial 1: azimuths not sorted")
	assert.Contains(t, phases[3].errors, "no sweep carries VEL")
}

func TestCheckVolume_Passes(t *testing.T) {
	moments := map[domain.Field]*domain.Moment{
		domain.FieldReflectivity:     {GateSpacing: 250},
		domain.FieldVelocity:         {GateSpacing: 250},
		domain.FieldCrossCorrelation: {GateSpacing: 250},
	}
	v := &domain.Volume{
		Site:      "KCCX",
		Lat:       40.92,
		Lon:       -78.0,
		StartTime: time.Date(2024, 4, 26, 15, 10, 23, 0, time.UTC),
		Sweeps:    []domain.Sweep{{Number: 1, Radials: []domain.Radial{{Azimuth: 0.5, Moments: moments}}}},
	}
	for _, p := range checkVolume(v) {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestParseArgs_DocumentedUsage(t *testing.T) {
	var stderr bytes.Buffer

	check, files, err := parseArgs([]string{"radar_data/KCCX20240426_151023_V06"}, &stderr)
	require.NoError(t, err)
	assert.False(t, check)
	assert.Equal(t, []string{"radar_data/KCCX20240426_151023_V06"}, files)

	check, files, err = parseArgs([]string{"-check", "radar_data/KDIX20240426_150917_V06"}, &stderr)
	require.NoError(t, err)
	assert.True(t, check)
	assert.Equal(t, []string{"radar_data/KDIX20240426_150917_V06"}, files)
	assert.Empty(t, stderr.String())
}

func TestParseArgs_Errors(t *testing.T) {
	var stderr bytes.Buffer
	_, _, err := parseArgs([]string{"-radials", "file"}, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "usage: radarinfo")

	stderr.Reset()
	_, _, err = parseArgs(nil, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "usage: radarinfo")
}
