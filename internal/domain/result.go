package domain

import "time"

// SiteScan records which scan was used for a site.
type SiteScan struct {
	Site      string    `json:"site"`
	Key       string    `json:"key"`
	ScanTime  time.Time `json:"scan_time"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Label     string    `json:"label,omitempty"`
	StartTime time.Time `json:"volume_start_time"`
}

// MosaicResult summarizes one completed run.
type MosaicResult struct {
	MapPath     string           `json:"map_path"`
	Overlays    map[Field]string `json:"overlays"`
	Sites       []SiteScan       `json:"sites"`
	DataTime    time.Time        `json:"data_time"`
	Bounds      Bounds           `json:"bounds"`
	ValidCells  map[Field]int    `json:"valid_cells"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// DataTime returns the start time of the first volume, which is what the map
// annotates as the data time. It is zero when there are no volumes.
func DataTime(volumes []*Volume) time.Time {
	for _, v := range volumes {
		if v != nil {
			return v.StartTime.UTC()
		}
	}
	return time.Time{}
}
