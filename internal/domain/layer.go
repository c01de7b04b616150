package domain

// Layer describes how one gridded field is drawn on the map.
type Layer struct {
	Field    Field
	Name     string
	File     string // overlay PNG file name
	VMin     float64
	VMax     float64
	Colormap string
	Opacity  float64
	Show     bool
}

// DefaultLayers returns the reflectivity, velocity and correlation
// coefficient overlays. Only reflectivity is visible on load.
func DefaultLayers() []Layer {
	return []Layer{
		{
			Field:    FieldReflectivity,
			Name:     FieldReflectivity.Label(),
			File:     "overlay_ref.png",
			VMin:     -10,
			VMax:     70,
			Colormap: "HomeyerRainbow",
			Opacity:  0.8,
			Show:     true,
		},
		{
			Field:    FieldVelocity,
			Name:     FieldVelocity.Label(),
			File:     "overlay_vel.png",
			VMin:     -30,
			VMax:     30,
			Colormap: "BuDRd18",
			Opacity:  0.8,
		},
		{
			Field:    FieldCrossCorrelation,
			Name:     FieldCrossCorrelation.Label(),
			File:     "overlay_cc.png",
			VMin:     0.8,
			VMax:     1.05,
			Colormap: "RefDiff",
			Opacity:  0.8,
		},
	}
}
