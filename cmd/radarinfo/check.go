package main

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

// phase tracks pass/fail for one group of checks.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func checkVolume(v *domain.Volume) []*phase {
	return []*phase{
		checkSite(v),
		checkSweeps(v),
		checkRadials(v),
		checkFields(v),
	}
}

func checkSite(v *domain.Volume) *phase {
	p := &phase{name: "site metadata"}
	if !domain.ValidSite(v.Site) {
		p.errorf("site %q is not an ICAO identifier", v.Site)
	}
	if v.Lat == 0 && v.Lon == 0 {
		p.errorf("no VOL block: site location missing")
	}
	if v.Lat < -90 || v.Lat > 90 || v.Lon < -180 || v.Lon > 180 {
		p.errorf("location %.4f, %.4f is off the globe", v.Lat, v.Lon)
	}
	if v.StartTime.IsZero() {
		p.errorf("volume start time missing")
	}
	return p
}

func checkSweeps(v *domain.Volume) *phase {
	p := &phase{name: "sweep order"}
	if len(v.Sweeps) == 0 {
		p.errorf("volume has no sweeps")
	}
	for i := 1; i < len(v.Sweeps); i++ {
		if v.Sweeps[i].Number <= v.Sweeps[i-1].Number {
			p.errorf("sweep %d follows sweep %d", v.Sweeps[i].Number, v.Sweeps[i-1].Number)
		}
	}
	return p
}

func checkRadials(v *domain.Volume) *phase {
	p := &phase{name: "radial geometry"}
	for _, s := range v.Sweeps {
		for i, r := range s.Radials {
			if r.Azimuth < 0 || r.Azimuth >= 360 || math.IsNaN(r.Azimuth) {
				p.errorf("sweep %d radial %d: azimuth %.2f out of range", s.Number, i, r.Azimuth)
			}
			if i > 0 && r.Azimuth < s.Radials[i-1].Azimuth {
				p.errorf("sweep %d radial %d: azimuths not sorted", s.Number, i)
			}
			for f, m := range r.Moments {
				if m.GateSpacing <= 0 {
					p.errorf("sweep %d radial %d: %s gate spacing %.1f", s.Number, i, f.MomentName(), m.GateSpacing)
				}
			}
		}
	}
	return p
}

func checkFields(v *domain.Volume) *phase {
	p := &phase{name: "gridded moments"}
	for _, f := range domain.GridFields {
		found := false
		for i := range v.Sweeps {
			if v.Sweeps[i].HasField(f) {
				found = true
				break
			}
		}
		if !found {
			p.errorf("no sweep carries %s", f.MomentName())
		}
	}
	return p
}
