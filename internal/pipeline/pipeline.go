// Package pipeline runs the discover, fetch, grid and render stages once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
	"github.com/couchcryptid/storm-radar-mosaic/internal/observability"
)

var (
	// ErrNoScans means no site had a scan for the requested day.
	ErrNoScans = errors.New("no scans found")
	// ErrNoVolumes means every selected scan failed to download or decode.
	ErrNoVolumes = errors.New("could not read any radar files")
)

// Archive lists and fetches remote volume scans.
type Archive interface {
	ListScans(ctx context.Context, site string, date time.Time) ([]domain.ScanFile, error)
	Download(ctx context.Context, scan domain.ScanFile, dir string) (domain.Download, error)
}

// Decoder turns a downloaded scan into a radar volume.
type Decoder interface {
	Decode(ctx context.Context, dl domain.Download) (*domain.Volume, error)
}

// Gridder merges volumes onto the output grid.
type Gridder interface {
	Grid(ctx context.Context, volumes []*domain.Volume) (*domain.Grid, error)
}

// Renderer writes the overlays and map page for a grid.
type Renderer interface {
	Render(ctx context.Context, g *domain.Grid, volumes []*domain.Volume) (domain.MosaicResult, error)
}

// Notifier announces a finished mosaic.
type Notifier interface {
	Notify(ctx context.Context, result domain.MosaicResult) error
}

// Options control one run.
type Options struct {
	Sites         []string
	Date          time.Time // zero means today (UTC)
	DownloadDir   string
	KeepDownloads bool

	// Listing retry policy. Zero values use the defaults below.
	ListAttempts int
	RetryBase    time.Duration
	RetryMax     time.Duration
}

const (
	defaultListAttempts = 4
	defaultRetryBase    = 200 * time.Millisecond
	defaultRetryMax     = 5 * time.Second
)

// Pipeline orchestrates the discover, fetch, grid and render stages.
type Pipeline struct {
	archive  Archive
	decoder  Decoder
	gridder  Gridder
	renderer Renderer
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline with the given stages and observability. notifier
// may be nil.
func New(a Archive, d Decoder, g Gridder, r Renderer, n Notifier, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.ListAttempts <= 0 {
		opts.ListAttempts = defaultListAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = defaultRetryMax
	}
	return &Pipeline{
		archive:  a,
		decoder:  d,
		gridder:  g,
		renderer: r,
		notifier: n,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has written a map.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no mosaic has been written yet")
	}
	return nil
}

// Run executes all stages once. ErrNoScans and ErrNoVolumes report runs with
// nothing to draw; any other error is a failure.
func (p *Pipeline) Run(ctx context.Context) (domain.MosaicResult, error) {
	date := p.opts.Date
	if date.IsZero() {
		date = domain.Today()
	}
	p.logger.Info("pipeline started", "sites", p.opts.Sites, "date", date.Format(time.DateOnly))

	result, err := p.run(ctx, date)
	switch {
	case err == nil:
		p.metrics.Runs.WithLabelValues("success").Inc()
	case errors.Is(err, ErrNoScans):
		p.metrics.Runs.WithLabelValues("no_scans").Inc()
	case errors.Is(err, ErrNoVolumes):
		p.metrics.Runs.WithLabelValues("no_volumes").Inc()
	default:
		p.metrics.Runs.WithLabelValues("error").Inc()
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, date time.Time) (domain.MosaicResult, error) {
	start := time.Now()
	scans, err := p.discover(ctx, date)
	p.observe("discover", start)
	if err != nil {
		return domain.MosaicResult{}, err
	}
	if len(scans) == 0 {
		p.logger.Warn("no scans found", "date", date.Format(time.DateOnly))
		return domain.MosaicResult{}, ErrNoScans
	}

	start = time.Now()
	volumes, used, err := p.fetch(ctx, scans)
	p.observe("fetch", start)
	if err != nil {
		return domain.MosaicResult{}, err
	}
	if len(volumes) == 0 {
		p.logger.Error("could not read any radar files", "scans", len(scans))
		return domain.MosaicResult{}, ErrNoVolumes
	}

	start = time.Now()
	g, err := p.gridder.Grid(ctx, volumes)
	p.observe("grid", start)
	if err != nil {
		return domain.MosaicResult{}, fmt.Errorf("grid volumes: %w", err)
	}
	p.logger.Info("grid built", "rows", g.Rows, "cols", g.Cols, "radars", len(volumes))

	start = time.Now()
	result, err := p.renderer.Render(ctx, g, volumes)
	p.observe("render", start)
	if err != nil {
		return domain.MosaicResult{}, fmt.Errorf("render map: %w", err)
	}
	attachScans(&result, used)
	for field, n := range result.ValidCells {
		p.metrics.ValidCells.WithLabelValues(string(field)).Set(float64(n))
	}

	p.notify(ctx, result)
	p.cleanup()

	p.ready.Store(true)
	p.metrics.LastSuccess.Set(float64(domain.Now().Unix()))
	p.logger.Info("pipeline finished", "map", result.MapPath, "data_time", result.DataTime)
	return result, nil
}

// discover selects the newest scan of each site. Sites without scans or whose
// listing keeps failing are skipped. When no site could be listed at all the
// archive is unreachable and the last listing error is returned.
func (p *Pipeline) discover(ctx context.Context, date time.Time) ([]domain.ScanFile, error) {
	var (
		selected []domain.ScanFile
		listed   int
		lastErr  error
	)
	for _, site := range p.opts.Sites {
		scans, err := p.listWithRetry(ctx, site, date)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Error("list scans failed, skipping site", "site", site, "error", err)
			lastErr = err
			continue
		}
		listed++
		p.metrics.ScansListed.WithLabelValues(site).Add(float64(len(scans)))

		latest, ok := domain.LatestScan(scans)
		if !ok {
			p.logger.Warn("no scans found for site", "site", site, "date", date.Format(time.DateOnly))
			continue
		}
		p.logger.Info("selected scan", "site", site, "key", latest.Key, "scan_time", latest.ScanTime)
		selected = append(selected, latest)
	}
	if listed == 0 && lastErr != nil {
		return nil, fmt.Errorf("list scans: %w", lastErr)
	}
	return selected, nil
}

func (p *Pipeline) listWithRetry(ctx context.Context, site string, date time.Time) ([]domain.ScanFile, error) {
	backoff := p.opts.RetryBase
	var err error
	for attempt := 1; ; attempt++ {
		var scans []domain.ScanFile
		scans, err = p.archive.ListScans(ctx, site, date)
		if err == nil {
			return scans, nil
		}
		if attempt >= p.opts.ListAttempts || !isRetryable(ctx, err) {
			return nil, err
		}
		p.logger.Warn("list scans failed, retrying",
			"site", site,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		p.metrics.ListRetries.Inc()
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, p.opts.RetryMax)
	}
}

// fetch downloads and decodes every scan concurrently. Failures are logged
// and skipped; volumes keep the order of scans.
func (p *Pipeline) fetch(ctx context.Context, scans []domain.ScanFile) ([]*domain.Volume, []domain.ScanFile, error) {
	slots := make([]*domain.Volume, len(scans))
	g, gctx := errgroup.WithContext(ctx)
	for i, scan := range scans {
		g.Go(func() error {
			v, err := p.fetchOne(gctx, scan)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			slots[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		volumes []*domain.Volume
		used    []domain.ScanFile
	)
	for i, v := range slots {
		if v != nil {
			volumes = append(volumes, v)
			used = append(used, scans[i])
		}
	}
	return volumes, used, nil
}

func (p *Pipeline) fetchOne(ctx context.Context, scan domain.ScanFile) (*domain.Volume, error) {
	dl, err := p.archive.Download(ctx, scan, p.opts.DownloadDir)
	if err != nil {
		p.metrics.Downloads.WithLabelValues("error").Inc()
		p.logger.Error("download failed, skipping", "site", scan.Site, "key", scan.Key, "error", err)
		return nil, err
	}
	p.metrics.Downloads.WithLabelValues("success").Inc()
	p.metrics.DownloadBytes.Add(float64(dl.Size))
	p.logger.Info("downloaded scan", "site", scan.Site, "path", dl.Path, "bytes", dl.Size)

	v, err := p.decoder.Decode(ctx, dl)
	if err != nil {
		p.metrics.DecodeFailures.Inc()
		p.logger.Error("decode failed, skipping", "site", scan.Site, "path", dl.Path, "error", err)
		return nil, err
	}
	p.logger.Info("decoded volume",
		"site", v.Site,
		"sweeps", len(v.Sweeps),
		"start_time", v.StartTime,
		"vcp", v.VCP,
	)
	return v, nil
}

func (p *Pipeline) notify(ctx context.Context, result domain.MosaicResult) {
	if p.notifier == nil {
		return
	}
	start := time.Now()
	defer p.observe("notify", start)

	if err := p.notifier.Notify(ctx, result); err != nil {
		p.metrics.Notifications.WithLabelValues("error").Inc()
		p.logger.Warn("notify failed", "error", err)
		return
	}
	p.metrics.Notifications.WithLabelValues("success").Inc()
}

func (p *Pipeline) cleanup() {
	if p.opts.KeepDownloads || p.opts.DownloadDir == "" {
		return
	}
	if err := os.RemoveAll(p.opts.DownloadDir); err != nil {
		p.logger.Warn("remove download dir failed", "dir", p.opts.DownloadDir, "error", err)
		return
	}
	p.logger.Debug("download dir removed", "dir", p.opts.DownloadDir)
}

func (p *Pipeline) observe(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// attachScans copies the archive key and scan time of each site into the
// rendered result.
func attachScans(result *domain.MosaicResult, scans []domain.ScanFile) {
	bySite := make(map[string]domain.ScanFile, len(scans))
	for _, s := range scans {
		bySite[s.Site] = s
	}
	for i := range result.Sites {
		if s, ok := bySite[result.Sites[i].Site]; ok {
			result.Sites[i].Key = s.Key
			result.Sites[i].ScanTime = s.ScanTime
		}
	}
}
