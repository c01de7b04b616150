package nexrad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var scanDate = time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)

const page1 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>unidata-nexrad-level2</Name>
  <Prefix>2024/04/26/KCCX/</Prefix>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>tok-2</NextContinuationToken>
  <Contents><Key>2024/04/26/KCCX/KCCX20240426_000312_V06</Key><Size>7340032</Size></Contents>
  <Contents><Key>2024/04/26/KCCX/KCCX20240426_000856_V06_MDM</Key><Size>12000</Size></Contents>
</ListBucketResult>`

const page2 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <IsTruncated>false</IsTruncated>
  <Contents><Key>2024/04/26/KCCX/KCCX20240426_001441_V06</Key><Size>7000000</Size></Contents>
</ListBucketResult>`

func TestS3Archive_ListScans(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		requests = append(requests, q.Get("continuation-token"))
		assert.Equal(t, "2", q.Get("list-type"))
		assert.Equal(t, "2024/04/26/KCCX/", q.Get("prefix"))

		w.Header().Set("Content-Type", "application/xml")
		if q.Get("continuation-token") == "tok-2" {
			fmt.Fprint(w, page2)
			return
		}
		fmt.Fprint(w, page1)
	}))
	defer srv.Close()

	a := NewS3Archive(srv.URL+"/", 5*time.Second, discardLogger())
	scans, err := a.ListScans(context.Background(), "KCCX", scanDate)
	require.NoError(t, err)

	want := []domain.ScanFile{
		{
			Site:     "KCCX",
			Key:      "2024/04/26/KCCX/KCCX20240426_000312_V06",
			Filename: "KCCX20240426_000312_V06",
			ScanTime: time.Date(2024, 4, 26, 0, 3, 12, 0, time.UTC),
			Size:     7340032,
		},
		{
			Site:     "KCCX",
			Key:      "2024/04/26/KCCX/KCCX20240426_001441_V06",
			Filename: "KCCX20240426_001441_V06",
			ScanTime: time.Date(2024, 4, 26, 0, 14, 41, 0, time.UTC),
			Size:     7000000,
		},
	}
	if diff := cmp.Diff(want, scans); diff != "" {
		t.Errorf("scans mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"", "tok-2"}, requests)
}

func TestS3Archive_ListScansEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<ListBucketResult><IsTruncated>false</IsTruncated></ListBucketResult>`)
	}))
	defer srv.Close()

	a := NewS3Archive(srv.URL, 5*time.Second, discardLogger())
	scans, err := a.ListScans(context.Background(), "KDIX", scanDate)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestS3Archive_ListScansAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "SlowDown")
	}))
	defer srv.Close()

	a := NewS3Archive(srv.URL, 5*time.Second, discardLogger())
	_, err := a.ListScans(context.Background(), "KCCX", scanDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list scans KCCX")
	assert.Contains(t, err.Error(), "status 503: SlowDown")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.Temporary())
}

func TestS3Archive_ListScansBadXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<ListBucketResult><Contents>")
	}))
	defer srv.Close()

	a := NewS3Archive(srv.URL, 5*time.Second, discardLogger())
	_, err := a.ListScans(context.Background(), "KCCX", scanDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode listing")
}

func TestS3Archive_Download(t *testing.T) {
	payload := []byte("AR2V0006.\x00\x00\x00payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2024/04/26/KCCX/KCCX20240426_001441_V06", r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	scan, err := domain.ParseScanKey("2024/04/26/KCCX/KCCX20240426_001441_V06")
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "radar_data")
	a := NewS3Archive(srv.URL, 5*time.Second, discardLogger())
	dl, err := a.Download(context.Background(), scan, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "KCCX20240426_001441_V06"), dl.Path)
	assert.Equal(t, int64(len(payload)), dl.Size)
	assert.Equal(t, scan, dl.Scan)

	got, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestS3Archive_DownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<Error><Code>NoSuchKey</Code></Error>")
	}))
	defer srv.Close()

	dir := t.TempDir()
	a := NewS3Archive(srv.URL, 5*time.Second, discardLogger())
	_, err := a.Download(context.Background(), domain.ScanFile{Key: "x/KDIX20240426_000000_V06", Filename: "KDIX20240426_000000_V06"}, dir)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.False(t, statusErr.Temporary())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial file left behind")
}

func TestS3Archive_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page2)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewS3Archive(srv.URL, 5*time.Second, discardLogger())
	_, err := a.ListScans(ctx, "KCCX", scanDate)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEscapeKey(t *testing.T) {
	assert.Equal(t, "2024/04/26/KCCX/a%20b", escapeKey("2024/04/26/KCCX/a b"))
}
