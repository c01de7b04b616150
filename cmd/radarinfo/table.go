package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

func volumeTable(v *domain.Volume) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendRows([]table.Row{
		{"Site", v.Site},
		{"Location", fmt.Sprintf("%.4f, %.4f", v.Lat, v.Lon)},
		{"Height", fmt.Sprintf("%.0f m", v.Height)},
		{"Start", v.StartTime.UTC().Format(time.DateTime)},
		{"VCP", v.VCP},
		{"Sweeps", len(v.Sweeps)},
	})
	return tw.Render()
}

func sweepTable(v *domain.Volume) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Elev (deg)", "Radials", "Az res", "Moments", "Gates", "First gate (km)", "Spacing (m)", "Range (km)"})

	for i := range v.Sweeps {
		s := &v.Sweeps[i]
		names := make([]string, 0, 3)
		for _, f := range fieldList(s) {
			names = append(names, f.MomentName())
		}

		gates, first, spacing, maxRange := "-", "-", "-", "-"
		if m := firstMoment(s); m != nil {
			gates = fmt.Sprint(len(m.Values))
			first = fmt.Sprintf("%.2f", m.FirstGate/1000)
			spacing = fmt.Sprintf("%.0f", m.GateSpacing)
			maxRange = fmt.Sprintf("%.1f", m.MaxRange()/1000)
		}

		tw.AppendRow(table.Row{
			s.Number,
			fmt.Sprintf("%.2f", s.Elevation),
			len(s.Radials),
			fmt.Sprintf("%.1f", s.AzimuthResolution),
			strings.Join(names, ","),
			gates,
			first,
			spacing,
			maxRange,
		})
	}

	configs := make([]table.ColumnConfig, 0, 9)
	for i := 1; i <= 9; i++ {
		align := text.AlignRight
		if i == 5 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{Number: i, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// firstMoment returns the gate geometry of the first radial, preferring
// reflectivity.
func firstMoment(s *domain.Sweep) *domain.Moment {
	if len(s.Radials) == 0 {
		return nil
	}
	r := s.Radials[0]
	if m, ok := r.Moments[domain.FieldReflectivity]; ok {
		return m
	}
	for _, f := range domain.GridFields {
		if m, ok := r.Moments[f]; ok {
			return m
		}
	}
	return nil
}
