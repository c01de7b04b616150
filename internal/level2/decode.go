// Package level2 decodes NEXRAD Level II archive files (AR2V0006 and later)
// into domain volumes.
//
// An archive is a 24-byte volume header followed by LDM records. Each record
// is a signed 32-bit length and a bzip2 block holding whole messages. Every
// message starts with a 12-byte CTM prefix and a 16-byte message header.
// Message 31 (digital radar data) is variable length; all other messages are
// padded to 2432-byte frames.
package level2

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

var (
	// ErrNotArchive is returned when the input does not start with an AR2V header.
	ErrNotArchive = errors.New("not a level II archive")

	// ErrLegacyFormat is returned when the archive holds no Message 31 radials.
	ErrLegacyFormat = errors.New("archive contains no message 31 radials")
)

const (
	volumeHeaderSize  = 24
	ctmHeaderSize     = 12
	messageHeaderSize = 16
	frameSize         = 2432

	msgDigitalRadarData = 31

	// maxRecordSize bounds a single compressed LDM record.
	maxRecordSize = 64 << 20
)

var be = binary.BigEndian

// VolumeHeader is the fixed header at the start of every archive.
type VolumeHeader struct {
	Tape      string // e.g. "AR2V0006."
	Extension string
	Time      time.Time
	ICAO      string
}

// ReadFile decodes the archive at path.
func ReadFile(path string) (*domain.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	vol, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return vol, nil
}

// Decode reads a complete archive. Whole-file gzip wrapping is removed
// transparently.
func Decode(r io.Reader) (*domain.Volume, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		br = bufio.NewReaderSize(gz, 1<<16)
	}

	hdr, err := readVolumeHeader(br)
	if err != nil {
		return nil, err
	}

	b := newVolumeBuilder(hdr)
	if err := readRecords(br, b.parseMessages); err != nil {
		return nil, err
	}
	return b.build()
}

func readVolumeHeader(r io.Reader) (VolumeHeader, error) {
	var buf [volumeHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return VolumeHeader{}, fmt.Errorf("read volume header: %w", ErrNotArchive)
	}
	if !bytes.HasPrefix(buf[:], []byte("AR2V")) {
		return VolumeHeader{}, ErrNotArchive
	}
	return VolumeHeader{
		Tape:      string(buf[0:9]),
		Extension: string(buf[9:12]),
		Time:      julianTime(be.Uint32(buf[12:16]), be.Uint32(buf[16:20])),
		ICAO:      string(bytes.TrimRight(buf[20:24], "\x00 ")),
	}, nil
}

// readRecords feeds each decompressed LDM record to fn. Bodies that are not
// bzip2-compressed are passed through as a single raw message stream.
func readRecords(br *bufio.Reader, fn func([]byte) error) error {
	peek, err := br.Peek(7)
	if err != nil {
		rest, _ := io.ReadAll(br)
		return fn(rest)
	}
	if !bytes.Equal(peek[4:7], []byte("BZh")) {
		rest, err := io.ReadAll(br)
		if err != nil {
			return fmt.Errorf("read messages: %w", err)
		}
		return fn(rest)
	}

	for n := 0; ; n++ {
		var word [4]byte
		if _, err := io.ReadFull(br, word[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record %d control word: %w", n, err)
		}
		size := int64(int32(be.Uint32(word[:])))
		if size < 0 {
			size = -size
		}
		if size == 0 {
			return nil
		}
		if size > maxRecordSize {
			return fmt.Errorf("record %d: size %d exceeds limit", n, size)
		}

		compressed := make([]byte, size)
		if _, err := io.ReadFull(br, compressed); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		data, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(compressed)))
		if err != nil {
			return fmt.Errorf("record %d decompress: %w", n, err)
		}
		if err := fn(data); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
	}
}

// julianTime converts a NEXRAD modified Julian date (day 1 = 1970-01-01) and
// milliseconds past midnight to UTC.
func julianTime(days, ms uint32) time.Time {
	if days == 0 {
		return time.Time{}
	}
	return time.Unix(int64(days-1)*86400, 0).UTC().Add(time.Duration(ms) * time.Millisecond)
}
