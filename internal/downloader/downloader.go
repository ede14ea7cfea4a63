// Package downloader fetches one-minute clips from the camera's HTTP clip
// archive: a directory listing per hour, one MP4 per minute.
package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/logging"
)

// clipHrefRe matches minute-clip entries in the camera's directory listing.
var clipHrefRe = regexp.MustCompile(`href="(\d{2}\.mp4)"`)

const (
	chunkSize     = 8 * 1024
	listRetryWait = 2 * time.Second
	downloadWait  = time.Second
)

var (
	dlLogger   *slog.Logger
	dlLevelVar = new(slog.LevelVar)
	loggerOnce sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		dlLevelVar.Set(slog.LevelInfo)
		dlLogger, _ = logging.ForService("downloader", dlLevelVar)
	})
	return dlLogger
}

// Downloader fetches clips over HTTP with bounded retries.
type Downloader struct {
	cfg    conf.CameraSettings
	client *http.Client
}

// New creates a Downloader from camera settings. The client timeout bounds
// each individual attempt.
func New(cfg conf.CameraSettings) *Downloader {
	return &Downloader{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// hourURL builds the listing URL for one hour directory.
func (d *Downloader) hourURL(dateStr string, hour int) string {
	return fmt.Sprintf("http://%s/%s/%s/%02d/", d.cfg.Host, d.cfg.BasePath, dateStr, hour)
}

// ListHour fetches the directory listing for an hour and returns the full
// clip URLs in minute order. An unreachable hour directory is a normal
// condition (the camera may simply not have recorded it): after exhausting
// retries an empty slice is returned, not an error.
func (d *Downloader) ListHour(ctx context.Context, dateStr string, hour int) []string {
	hourURL := d.hourURL(dateStr, hour)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.RetryCount; attempt++ {
		body, err := d.fetch(ctx, hourURL)
		if err == nil {
			names := clipHrefRe.FindAllStringSubmatch(string(body), -1)
			urls := make([]string, 0, len(names))
			for _, m := range names {
				urls = append(urls, hourURL+m[1])
			}
			sort.Strings(urls)
			return urls
		}
		lastErr = err
		logger().Warn("Listing attempt failed",
			"url", hourURL, "attempt", attempt, "retries", d.cfg.RetryCount, "error", err)
		if attempt < d.cfg.RetryCount && !sleepCtx(ctx, listRetryWait) {
			break
		}
	}

	logger().Warn("Failed to list clips", "url", hourURL, "error", lastErr)
	return nil
}

// Download fetches a clip to destPath. When the destination already exists
// and is non-empty the call is an idempotent no-op. Bytes stream through a
// temporary file that is renamed into place, so no partial file is ever
// visible at the final path. Exhausted retries fail with a download error
// carrying the URL.
func (d *Downloader) Download(ctx context.Context, url, destPath string) error {
	if fi, err := os.Stat(destPath); err == nil && fi.Size() > 0 {
		logger().Debug("Clip already downloaded, skipping", "path", destPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return downloadError(url, fmt.Errorf("creating destination directory: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.RetryCount; attempt++ {
		err := d.downloadOnce(ctx, url, destPath)
		if err == nil {
			logger().Info("Downloaded clip", "url", url, "path", destPath)
			return nil
		}
		lastErr = err
		logger().Warn("Download attempt failed",
			"url", url, "attempt", attempt, "retries", d.cfg.RetryCount, "error", err)
		if attempt < d.cfg.RetryCount && !sleepCtx(ctx, downloadWait) {
			break
		}
	}

	return downloadError(url, fmt.Errorf("failed after %d attempts: %w", d.cfg.RetryCount, lastErr))
}

func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	d.setAuth(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // response body
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(f, resp.Body, buf); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// DownloadHour lists and downloads every clip of an hour, returning
// (url, localPath) pairs for the successes. Individual failures are logged
// and skipped; the rest of the hour is still fetched.
func (d *Downloader) DownloadHour(ctx context.Context, dateStr string, hour int, destDir string) []ClipRef {
	urls := d.ListHour(ctx, dateStr, hour)
	var results []ClipRef
	for _, url := range urls {
		minute := minuteFromURL(url)
		destPath := filepath.Join(destDir, dateStr, fmt.Sprintf("%02d", hour), filepath.Base(url))
		if err := d.Download(ctx, url, destPath); err != nil {
			logger().Error("Giving up on clip", "url", url, "error", err)
			results = append(results, ClipRef{URL: url, Minute: minute, Err: err})
			continue
		}
		results = append(results, ClipRef{URL: url, Minute: minute, LocalPath: destPath})
	}
	return results
}

// ClipRef is the outcome of fetching one clip.
type ClipRef struct {
	URL       string
	Minute    int
	LocalPath string
	Err       error
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	d.setAuth(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // response body
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (d *Downloader) setAuth(req *http.Request) {
	if d.cfg.User != "" && d.cfg.Password != "" {
		req.SetBasicAuth(d.cfg.User, d.cfg.Password)
	}
}

// minuteFromURL parses the minute from a clip URL ending in MM.mp4.
func minuteFromURL(url string) int {
	base := filepath.Base(url)
	if len(base) < 2 {
		return 0
	}
	minute := 0
	fmt.Sscanf(base[:2], "%02d", &minute) //nolint:errcheck // zero on parse failure
	return minute
}

// sleepCtx waits for d or until ctx is cancelled; it reports whether the
// full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func downloadError(url string, err error) error {
	return errors.New(err).
		Component("downloader").
		Category(errors.CategoryDownload).
		Context("url", url).
		Build()
}
