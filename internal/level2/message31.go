package level2

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

const (
	dataHeaderSize = 32
	maxDataBlocks  = 10
	volBlockSize   = 44
	momentHdrSize  = 28
)

// volumeBuilder accumulates radials across LDM records.
type volumeBuilder struct {
	header  VolumeHeader
	site    string
	lat     float64
	lon     float64
	height  float64
	vcp     int
	hasVOL  bool
	sweeps  map[int]*sweepBuilder
	radials int
	first   time.Time
}

type sweepBuilder struct {
	number  int
	azRes   float64
	elevSum float64
	radials []domain.Radial
}

func newVolumeBuilder(hdr VolumeHeader) *volumeBuilder {
	return &volumeBuilder{
		header: hdr,
		site:   hdr.ICAO,
		sweeps: make(map[int]*sweepBuilder),
	}
}

// parseMessages walks the messages of one decompressed record.
func (b *volumeBuilder) parseMessages(buf []byte) error {
	off := 0
	for off+ctmHeaderSize+messageHeaderSize <= len(buf) {
		hdr := buf[off+ctmHeaderSize : off+ctmHeaderSize+messageHeaderSize]
		size := int(be.Uint16(hdr[0:2])) * 2
		msgType := hdr[3]

		if msgType != msgDigitalRadarData {
			off += frameSize
			continue
		}

		end := off + ctmHeaderSize + size
		if size < messageHeaderSize || end > len(buf) {
			return fmt.Errorf("message 31 at offset %d: %w", off, io.ErrUnexpectedEOF)
		}
		if err := b.parseRadial(buf[off+ctmHeaderSize+messageHeaderSize : end]); err != nil {
			return fmt.Errorf("message 31 at offset %d: %w", off, err)
		}
		off = end
	}
	return nil
}

// parseRadial decodes the data header block and the data blocks it points to.
func (b *volumeBuilder) parseRadial(msg []byte) error {
	if len(msg) < dataHeaderSize {
		return fmt.Errorf("data header: %w", io.ErrUnexpectedEOF)
	}

	icao := strings.TrimRight(string(msg[0:4]), "\x00 ")
	collected := julianTime(uint32(be.Uint16(msg[8:10])), be.Uint32(msg[4:8]))
	azimuth := float64(math.Float32frombits(be.Uint32(msg[12:16])))
	azRes := azimuthResolution(msg[20])
	elevNum := int(msg[22])
	elevation := float64(math.Float32frombits(be.Uint32(msg[24:28])))
	blockCount := int(be.Uint16(msg[30:32]))
	if blockCount > maxDataBlocks {
		blockCount = maxDataBlocks
	}
	if len(msg) < dataHeaderSize+4*blockCount {
		return fmt.Errorf("data block pointers: %w", io.ErrUnexpectedEOF)
	}

	radial := domain.Radial{
		Azimuth:   azimuth,
		Elevation: elevation,
		Time:      collected,
		Moments:   make(map[domain.Field]*domain.Moment, 3),
	}

	for i := 0; i < blockCount; i++ {
		ptr := int(be.Uint32(msg[dataHeaderSize+4*i:]))
		if ptr == 0 || ptr+4 > len(msg) {
			continue
		}
		name := string(msg[ptr+1 : ptr+4])
		switch name {
		case "VOL":
			if err := b.parseVolumeBlock(msg[ptr:]); err != nil {
				return err
			}
		default:
			field, ok := domain.FieldForMoment(name)
			if !ok {
				continue
			}
			m, err := parseMomentBlock(msg[ptr:])
			if err != nil {
				return fmt.Errorf("%s block: %w", name, err)
			}
			if m != nil {
				radial.Moments[field] = m
			}
		}
	}

	if b.site == "" {
		b.site = icao
	}
	if b.first.IsZero() || collected.Before(b.first) {
		b.first = collected
	}

	sb, ok := b.sweeps[elevNum]
	if !ok {
		sb = &sweepBuilder{number: elevNum, azRes: azRes}
		b.sweeps[elevNum] = sb
	}
	sb.elevSum += elevation
	sb.radials = append(sb.radials, radial)
	b.radials++
	return nil
}

func (b *volumeBuilder) parseVolumeBlock(blk []byte) error {
	if b.hasVOL {
		return nil
	}
	if len(blk) < volBlockSize {
		return fmt.Errorf("VOL block: %w", io.ErrUnexpectedEOF)
	}
	b.lat = float64(math.Float32frombits(be.Uint32(blk[8:12])))
	b.lon = float64(math.Float32frombits(be.Uint32(blk[12:16])))
	siteHeight := float64(int16(be.Uint16(blk[16:18])))
	feedhorn := float64(be.Uint16(blk[18:20]))
	b.height = siteHeight + feedhorn
	b.vcp = int(be.Uint16(blk[40:42]))
	b.hasVOL = true
	return nil
}

// parseMomentBlock decodes a generic data moment. Raw values 0 (below
// threshold) and 1 (range folded) become NaN.
func parseMomentBlock(blk []byte) (*domain.Moment, error) {
	if len(blk) < momentHdrSize {
		return nil, io.ErrUnexpectedEOF
	}
	gates := int(be.Uint16(blk[8:10]))
	firstGate := float64(int16(be.Uint16(blk[10:12])))
	spacing := float64(be.Uint16(blk[12:14]))
	wordSize := int(blk[19])
	scale := math.Float32frombits(be.Uint32(blk[20:24]))
	offset := math.Float32frombits(be.Uint32(blk[24:28]))

	if scale == 0 {
		return nil, nil
	}

	var width int
	switch wordSize {
	case 8:
		width = 1
	case 16:
		width = 2
	default:
		return nil, fmt.Errorf("unsupported word size %d", wordSize)
	}
	data := blk[momentHdrSize:]
	if len(data) < gates*width {
		return nil, fmt.Errorf("%d gates: %w", gates, io.ErrUnexpectedEOF)
	}

	nan := float32(math.NaN())
	values := make([]float32, gates)
	for i := range values {
		var raw uint16
		if width == 1 {
			raw = uint16(data[i])
		} else {
			raw = be.Uint16(data[2*i:])
		}
		if raw <= 1 {
			values[i] = nan
			continue
		}
		values[i] = (float32(raw) - offset) / scale
	}

	return &domain.Moment{
		FirstGate:   firstGate,
		GateSpacing: spacing,
		Values:      values,
	}, nil
}

func azimuthResolution(code byte) float64 {
	switch code {
	case 1:
		return 0.5
	case 2:
		return 1.0
	default:
		return 1.0
	}
}

func (b *volumeBuilder) build() (*domain.Volume, error) {
	if b.radials == 0 {
		return nil, ErrLegacyFormat
	}

	start := b.header.Time
	if start.IsZero() {
		start = b.first
	}

	vol := &domain.Volume{
		Site:      b.site,
		Lat:       b.lat,
		Lon:       b.lon,
		Height:    b.height,
		StartTime: start,
		VCP:       b.vcp,
		Sweeps:    make([]domain.Sweep, 0, len(b.sweeps)),
	}

	numbers := make([]int, 0, len(b.sweeps))
	for n := range b.sweeps {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		sb := b.sweeps[n]
		sweep := domain.Sweep{
			Number:            sb.number,
			Elevation:         sb.elevSum / float64(len(sb.radials)),
			AzimuthResolution: sb.azRes,
			Radials:           sb.radials,
		}
		sweep.SortRadials()
		vol.Sweeps = append(vol.Sweeps, sweep)
	}
	return vol, nil
}
