package render

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Colormap maps a normalized value in [0, 1] to a colour.
type Colormap interface {
	At(t float64) color.NRGBA
}

// gradient interpolates linearly in sRGB between evenly spaced control points.
type gradient struct {
	stops []colorful.Color
}

func (g gradient) At(t float64) color.NRGBA {
	t = clamp01(t)
	pos := t * float64(len(g.stops)-1)
	i := int(math.Floor(pos))
	if i >= len(g.stops)-1 {
		return toNRGBA(g.stops[len(g.stops)-1])
	}
	return toNRGBA(g.stops[i].BlendRgb(g.stops[i+1], pos-float64(i)))
}

// discrete splits [0, 1] into equal bins, one colour per bin.
type discrete struct {
	colors []colorful.Color
}

func (d discrete) At(t float64) color.NRGBA {
	t = clamp01(t)
	i := int(t * float64(len(d.colors)))
	if i >= len(d.colors) {
		i = len(d.colors) - 1
	}
	return toNRGBA(d.colors[i])
}

var colormaps = map[string]Colormap{
	// Rainbow for reflectivity: lavender through blue, green, yellow and red
	// to dark magenta at the top of the scale.
	"HomeyerRainbow": gradient{stops: mustHexes(
		"#c8b4e0", "#7b68c8", "#2850d2", "#0096e6", "#00c8b4", "#32b432",
		"#a0d228", "#ffeb00", "#ffa500", "#ff4600", "#c80000", "#7a0046",
	)},
	// 18-step diverging blue/red for radial velocity. Negative (toward the
	// radar) is blue.
	"BuDRd18": discrete{colors: mustHexes(
		"#00007f", "#0000c8", "#1e1eff", "#3c50ff", "#5a82ff", "#78aaff",
		"#96c8ff", "#b4dcff", "#dcf0ff", "#ffebdc", "#ffc8b4", "#ff9f87",
		"#ff7864", "#ff503c", "#f01e1e", "#c80000", "#960000", "#640000",
	)},
	// Differential-reflectivity style map reused for correlation coefficient.
	"RefDiff": gradient{stops: mustHexes(
		"#404040", "#8c8c8c", "#1e3cff", "#00a0ff", "#00dc8c", "#28b428",
		"#f0f000", "#ffa000", "#ff3200", "#b40000", "#ff64c8",
	)},
}

// LookupColormap returns the named colormap.
func LookupColormap(name string) (Colormap, error) {
	cm, ok := colormaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}
	return cm, nil
}

func mustHexes(hexes ...string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("colormap: %v", err))
		}
		out[i] = c
	}
	return out
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func clamp01(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
