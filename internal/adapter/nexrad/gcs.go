package nexrad

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
	"github.com/couchcryptid/storm-radar-mosaic/internal/fileutil"
)

// DefaultGCSBucket is Google's public Level II bucket.
const DefaultGCSBucket = "gcp-public-data-nexrad-l2"

// ErrMemberNotFound is returned when a bundle lacks the requested volume.
var ErrMemberNotFound = errors.New("member not found in bundle")

// bundleRe matches hourly tar bundles such as
// "NWS_NEXRAD_NXL2DP_KCCX_20240426150000_20240426155959.tar".
var bundleRe = regexp.MustCompile(`_([A-Z0-9]{4})_(\d{14})_(\d{14})\.tar$`)

// objectStore is the subset of bucket access the archive needs.
type objectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// GCSArchive reads hourly tar bundles from a Cloud Storage bucket.
type GCSArchive struct {
	store  objectStore
	closer io.Closer
	logger *slog.Logger
}

// NewGCSArchive creates an unauthenticated client for bucket.
func NewGCSArchive(ctx context.Context, bucket string, logger *slog.Logger) (*GCSArchive, error) {
	if bucket == "" {
		bucket = DefaultGCSBucket
	}
	client, err := storage.NewClient(ctx, option.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchive{
		store:  gcsStore{bucket: client.Bucket(bucket)},
		closer: client,
		logger: logger,
	}, nil
}

// Close releases the storage client.
func (a *GCSArchive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// ListScans lists the bundles for site on date and returns the volumes of the
// newest bundle that has any. Older bundles are never opened when a newer one
// yields scans.
func (a *GCSArchive) ListScans(ctx context.Context, site string, date time.Time) ([]domain.ScanFile, error) {
	names, err := a.store.List(ctx, domain.DatePrefix(date, site))
	if err != nil {
		return nil, fmt.Errorf("list scans %s: %w", site, err)
	}

	type bundle struct {
		name  string
		start time.Time
	}
	var bundles []bundle
	for _, name := range names {
		start, ok := parseBundleKey(name)
		if !ok {
			continue
		}
		bundles = append(bundles, bundle{name: name, start: start})
	}
	sort.Slice(bundles, func(i, j int) bool {
		if !bundles[i].start.Equal(bundles[j].start) {
			return bundles[i].start.After(bundles[j].start)
		}
		return bundles[i].name > bundles[j].name
	})

	for _, b := range bundles {
		scans, err := a.bundleScans(ctx, b.name)
		if err != nil {
			return nil, fmt.Errorf("list scans %s: %w", site, err)
		}
		if len(scans) > 0 {
			a.logger.Debug("listed bundle", "site", site, "bundle", b.name, "count", len(scans))
			return scans, nil
		}
		a.logger.Debug("bundle has no volumes", "site", site, "bundle", b.name)
	}
	return nil, nil
}

func (a *GCSArchive) bundleScans(ctx context.Context, name string) ([]domain.ScanFile, error) {
	r, err := a.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return scanMembers(name, r)
}

// Download extracts the volume named by scan.Key into dir/<filename>.
func (a *GCSArchive) Download(ctx context.Context, scan domain.ScanFile, dir string) (domain.Download, error) {
	bundleName, member, ok := domain.SplitMemberKey(scan.Key)
	if !ok {
		return domain.Download{}, fmt.Errorf("download %s: key is not a bundle member", scan.Key)
	}

	r, err := a.store.Open(ctx, bundleName)
	if err != nil {
		return domain.Download{}, fmt.Errorf("download %s: %w", scan.Key, err)
	}
	defer r.Close()

	path := filepath.Join(dir, scan.Filename)
	n, err := extractMember(r, member, path)
	if err != nil {
		return domain.Download{}, fmt.Errorf("download %s: %w", scan.Key, err)
	}
	a.logger.Debug("extracted scan", "key", scan.Key, "path", path, "bytes", n)
	return domain.Download{Scan: scan, Path: path, Size: n}, nil
}

// parseBundleKey returns the start of the hour a bundle covers.
func parseBundleKey(name string) (time.Time, bool) {
	m := bundleRe.FindStringSubmatch(path.Base(name))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102150405", m[2], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// scanMembers reads a tar stream and returns its volume members. Metadata
// and unrecognised members are skipped.
func scanMembers(bundleName string, r io.Reader) ([]domain.ScanFile, error) {
	tr := tar.NewReader(r)
	var scans []domain.ScanFile
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return scans, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", bundleName, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		scan, err := domain.ParseScanKey(domain.MemberKey(bundleName, hdr.Name))
		if err != nil {
			continue
		}
		scan.Size = hdr.Size
		scans = append(scans, scan)
	}
}

// extractMember copies the named tar member to dst.
func extractMember(r io.Reader, member, dst string) (int64, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%s: %w", member, ErrMemberNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("read bundle: %w", err)
		}
		if hdr.Name == member {
			return fileutil.CopyAtomic(dst, tr)
		}
	}
}

type gcsStore struct {
	bucket *storage.BucketHandle
}

func (s gcsStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
}

func (s gcsStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs open %s: %w", name, err)
	}
	return r, nil
}
