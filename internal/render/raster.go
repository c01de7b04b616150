package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
	"github.com/couchcryptid/storm-radar-mosaic/internal/fileutil"
)

// Rasterize converts one grid field into an image. Values are normalized to
// [VMin, VMax] and clipped; missing cells are fully transparent. The first
// image row is the northernmost grid row.
func Rasterize(g *domain.Grid, layer domain.Layer) (*image.NRGBA, error) {
	data, ok := g.Fields[layer.Field]
	if !ok {
		return nil, fmt.Errorf("grid has no %s field", layer.Field)
	}
	if layer.VMax <= layer.VMin {
		return nil, fmt.Errorf("layer %q: vmax %g must exceed vmin %g", layer.Name, layer.VMax, layer.VMin)
	}
	cm, err := LookupColormap(layer.Colormap)
	if err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, g.Cols, g.Rows))
	span := layer.VMax - layer.VMin
	for row := 0; row < g.Rows; row++ {
		y := g.Rows - 1 - row
		for col := 0; col < g.Cols; col++ {
			v := float64(data[row*g.Cols+col])
			if math.IsNaN(v) {
				continue
			}
			img.SetNRGBA(col, y, cm.At((v-layer.VMin)/span))
		}
	}
	return img, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG encodes img and writes it to path atomically.
func WritePNG(path string, img image.Image) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	return writeBytes(path, data)
}

func writeBytes(path string, data []byte) error {
	if err := fileutil.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
