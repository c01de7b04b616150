package domain

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrNotScan is returned by ParseScanKey for objects that are not radar volumes.
var ErrNotScan = errors.New("not a radar scan")

var (
	// scanNameRe matches volume file names such as "KCCX20240426_151023_V06"
	// and the older gzip form "KCCX20100426_151023_V03.gz".
	scanNameRe = regexp.MustCompile(`^([A-Z0-9]{4})(\d{8})_(\d{6})(?:_V(\d{2}))?(?:\.gz)?$`)

	siteRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)
)

// ScanFile is one remote volume scan.
type ScanFile struct {
	Site     string    `json:"site"`
	Key      string    `json:"key"`
	Filename string    `json:"filename"`
	ScanTime time.Time `json:"scan_time"`
	Size     int64     `json:"size,omitempty"`
}

// Download is a scan that has been fetched to local disk.
type Download struct {
	Scan ScanFile
	Path string
	Size int64
}

// ValidSite reports whether s looks like a 4-character ICAO radar identifier.
func ValidSite(s string) bool {
	return siteRe.MatchString(s)
}

// DatePrefix returns the archive listing prefix for one site and UTC day.
func DatePrefix(date time.Time, site string) string {
	date = date.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%s/", date.Year(), int(date.Month()), date.Day(), site)
}

// MemberKey joins a bundle key and a member name into a single scan key.
func MemberKey(bundle, member string) string {
	return bundle + "#" + member
}

// SplitMemberKey reverses MemberKey. ok is false for plain object keys.
func SplitMemberKey(key string) (bundle, member string, ok bool) {
	return strings.Cut(key, "#")
}

// ParseScanKey parses an archive object key into a ScanFile. Keys that do not
// name a volume (metadata files, directories, unexpected names) return ErrNotScan.
func ParseScanKey(key string) (ScanFile, error) {
	name := key
	if _, member, ok := SplitMemberKey(key); ok {
		name = member
	}
	name = path.Base(name)

	m := scanNameRe.FindStringSubmatch(name)
	if m == nil {
		return ScanFile{}, fmt.Errorf("%q: %w", key, ErrNotScan)
	}

	t, err := time.ParseInLocation("20060102150405", m[2]+m[3], time.UTC)
	if err != nil {
		return ScanFile{}, fmt.Errorf("%q: bad scan time: %w", key, ErrNotScan)
	}

	return ScanFile{
		Site:     m[1],
		Key:      key,
		Filename: name,
		ScanTime: t,
	}, nil
}

// LatestScan returns the newest scan by ScanTime. Equal times are broken by key
// so the choice does not depend on listing order.
func LatestScan(scans []ScanFile) (ScanFile, bool) {
	if len(scans) == 0 {
		return ScanFile{}, false
	}
	sorted := make([]ScanFile, len(scans))
	copy(sorted, scans)
	SortScans(sorted)
	return sorted[len(sorted)-1], true
}

// SortScans orders scans oldest first.
func SortScans(scans []ScanFile) {
	sort.SliceStable(scans, func(i, j int) bool {
		if !scans[i].ScanTime.Equal(scans[j].ScanTime) {
			return scans[i].ScanTime.Before(scans[j].ScanTime)
		}
		return scans[i].Key < scans[j].Key
	})
}
