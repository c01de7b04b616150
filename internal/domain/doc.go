// Package domain models NEXRAD WSR-88D radar scans and the products derived
// from them.
//
// # Data Source
//
// Level II volume scans are published to public cloud buckets within minutes
// of collection. The AWS bucket stores one object per volume, keyed as
//
//	YYYY/MM/DD/SITE/SITEYYYYMMDD_HHMMSS_V06
//
// e.g. "2024/04/26/KCCX/KCCX20240426_151023_V06". Objects from 2008-2015 carry
// a ".gz" suffix and are gzip-wrapped as a whole. Objects ending in "_MDM" are
// model data messages with no radials and are not scans. The Google bucket
// groups the same volumes into hourly tar bundles; members keep the AWS
// naming. Bundle members are addressed here as "<bundle key>#<member name>".
//
// # Scan Time
//
// The timestamp in the object name is the volume start time in UTC. It is
// used to select the newest scan for a site. The decoded volume carries its
// own start time from the archive header, which is the "data time" shown on
// the map.
//
// # Moments
//
// Three of the Message 31 moments are gridded:
//
//	REF  reflectivity            dBZ
//	VEL  radial velocity         m/s (positive away from the radar)
//	RHO  correlation coefficient unitless, 0..1.05
//
// Gates below the signal threshold and range-folded gates have no value and
// are stored as NaN.
//
// # Grid
//
// Volumes are merged onto a regular latitude/longitude grid. Row 0 is the
// southernmost row and column 0 the westernmost column; values are sampled at
// cell centres so the rendered raster spans the grid bounds exactly.
package domain
