package grid

import "math"

const (
	earthRadius = 6371000.0

	// effectiveRadius is the 4/3 earth radius used for standard refraction.
	effectiveRadius = earthRadius * 4 / 3
)

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// groundDistance returns the great-circle distance in meters and the initial
// bearing in degrees clockwise from north from point 1 to point 2.
func groundDistance(lat1, lon1, lat2, lon2 float64) (dist, bearing float64) {
	phi1, phi2 := toRadians(lat1), toRadians(lat2)
	dPhi := phi2 - phi1
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	dist = 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	bearing = math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
	return dist, bearing
}

// beamGeometry converts a ground distance along the earth's surface to the
// slant range and the beam height above the antenna for a given elevation
// angle. ok is false when the beam never reaches that distance.
func beamGeometry(ground, elevationDeg float64) (slant, height float64, ok bool) {
	a := ground / effectiveRadius
	e := toRadians(elevationDeg)
	if e+a >= math.Pi/2 {
		return 0, 0, false
	}
	c := math.Cos(e + a)
	slant = effectiveRadius * math.Sin(a) / c
	height = effectiveRadius*math.Cos(e)/c - effectiveRadius
	return slant, height, true
}

// angularDiff returns the absolute difference between two azimuths in degrees.
func angularDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
