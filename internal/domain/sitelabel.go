package domain

import (
	"context"
	"log/slog"
)

// LabelSite returns the display label for a radar marker: the site identifier,
// followed by the nearest place name when a geocoder is available. Geocoding
// failures degrade to the bare identifier.
func LabelSite(ctx context.Context, v *Volume, geocoder Geocoder, logger *slog.Logger) string {
	if v == nil {
		return ""
	}
	if geocoder == nil || (v.Lat == 0 && v.Lon == 0) {
		return v.Site
	}

	result, err := geocoder.ReverseGeocode(ctx, v.Lat, v.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"site", v.Site,
			"lat", v.Lat,
			"lon", v.Lon,
			"error", err,
		)
		return v.Site
	}

	switch {
	case result.PlaceName != "":
		return v.Site + " - " + result.PlaceName
	case result.FormattedAddress != "":
		return v.Site + " - " + result.FormattedAddress
	default:
		return v.Site
	}
}
