package level2

import (
	"context"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

// FileDecoder decodes downloaded archives from local disk.
type FileDecoder struct{}

// Decode reads the archive at dl.Path.
func (FileDecoder) Decode(ctx context.Context, dl domain.Download) (*domain.Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(dl.Path)
}
