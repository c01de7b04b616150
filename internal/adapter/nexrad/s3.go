package nexrad

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
	"github.com/couchcryptid/storm-radar-mosaic/internal/fileutil"
)

// DefaultS3URL is the anonymous endpoint of the public Level II bucket.
const DefaultS3URL = "https://unidata-nexrad-level2.s3.amazonaws.com"

// maxListPages bounds continuation-token paging. One site-day is a few
// hundred keys, far below a single 1000-key page.
const maxListPages = 50

// S3Archive reads the public bucket over unauthenticated S3 REST.
type S3Archive struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewS3Archive creates an archive client for baseURL.
func NewS3Archive(baseURL string, timeout time.Duration, logger *slog.Logger) *S3Archive {
	if baseURL == "" {
		baseURL = DefaultS3URL
	}
	return &S3Archive{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ListScans returns every volume scan stored for site on date.
func (a *S3Archive) ListScans(ctx context.Context, site string, date time.Time) ([]domain.ScanFile, error) {
	prefix := domain.DatePrefix(date, site)

	var (
		scans []domain.ScanFile
		token string
	)
	for page := 0; page < maxListPages; page++ {
		result, err := a.listPage(ctx, prefix, token)
		if err != nil {
			return nil, fmt.Errorf("list scans %s: %w", site, err)
		}
		for _, obj := range result.Contents {
			scan, err := domain.ParseScanKey(obj.Key)
			if errors.Is(err, domain.ErrNotScan) {
				continue
			}
			scan.Size = obj.Size
			scans = append(scans, scan)
		}
		if !result.IsTruncated || result.NextContinuationToken == "" {
			a.logger.Debug("listed scans", "site", site, "prefix", prefix, "count", len(scans))
			return scans, nil
		}
		token = result.NextContinuationToken
	}
	return nil, fmt.Errorf("list scans %s: more than %d pages", site, maxListPages)
}

func (a *S3Archive) listPage(ctx context.Context, prefix, token string) (listBucketResult, error) {
	params := url.Values{
		"list-type": {"2"},
		"prefix":    {prefix},
	}
	if token != "" {
		params.Set("continuation-token", token)
	}

	resp, err := a.get(ctx, a.baseURL+"/?"+params.Encode())
	if err != nil {
		return listBucketResult{}, err
	}
	defer resp.Body.Close()

	var result listBucketResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return listBucketResult{}, fmt.Errorf("decode listing: %w", err)
	}
	return result, nil
}

// Download streams the object into dir/<filename>.
func (a *S3Archive) Download(ctx context.Context, scan domain.ScanFile, dir string) (domain.Download, error) {
	resp, err := a.get(ctx, a.baseURL+"/"+escapeKey(scan.Key))
	if err != nil {
		return domain.Download{}, fmt.Errorf("download %s: %w", scan.Key, err)
	}
	defer resp.Body.Close()

	path := filepath.Join(dir, scan.Filename)
	n, err := fileutil.CopyAtomic(path, resp.Body)
	if err != nil {
		return domain.Download{}, fmt.Errorf("download %s: %w", scan.Key, err)
	}
	a.logger.Debug("downloaded scan", "key", scan.Key, "path", path, "bytes", n)
	return domain.Download{Scan: scan, Path: path, Size: n}, nil
}

// get issues a GET and returns the response only for 200 OK. The caller
// closes the body.
func (a *S3Archive) get(ctx context.Context, fullURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("s3 request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// StatusError is a non-200 archive response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("s3 API error: status %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// S3 ListObjectsV2 response types.

type listBucketResult struct {
	IsTruncated           bool       `xml:"IsTruncated"`
	NextContinuationToken string     `xml:"NextContinuationToken"`
	Contents              []s3Object `xml:"Contents"`
}

type s3Object struct {
	Key  string `xml:"Key"`
	Size int64  `xml:"Size"`
}
