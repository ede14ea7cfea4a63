// Package pipeline orchestrates a night's processing: downloading the
// camera's minute clips, running streak detection on each, and aggregating
// the night's composite image and concatenated highlight video.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/detection"
	"github.com/skymonitor/meteor-go/internal/downloader"
	"github.com/skymonitor/meteor-go/internal/hooks"
	"github.com/skymonitor/meteor-go/internal/logging"
	"github.com/skymonitor/meteor-go/internal/media"
	"github.com/skymonitor/meteor-go/internal/observability"
)

var (
	pipeLogger *slog.Logger
	levelVar   = new(slog.LevelVar)
	loggerOnce sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		pipeLogger, _ = logging.ForService("pipeline", levelVar)
	})
	return pipeLogger
}

// Pipeline wires the downloader, detector, store, hooks and metrics into
// the per-night processing flow.
type Pipeline struct {
	cfg     *conf.Settings
	store   datastore.Interface
	dl      *downloader.Downloader
	det     *detection.Detector
	hooks   *hooks.Runner
	metrics *observability.Metrics
	windows *WindowResolver
}

// New creates a Pipeline. hooks may be an empty runner and metrics may be
// nil.
func New(cfg *conf.Settings, store datastore.Interface, dl *downloader.Downloader, det *detection.Detector, runner *hooks.Runner, metrics *observability.Metrics) *Pipeline {
	if runner == nil {
		runner = hooks.NewRunner()
	}
	return &Pipeline{
		cfg:     cfg,
		store:   store,
		dl:      dl,
		det:     det,
		hooks:   runner,
		metrics: metrics,
		windows: NewWindowResolver(cfg, store),
	}
}

// Windows exposes the pipeline's window resolver for schedulers.
func (p *Pipeline) Windows() *WindowResolver {
	return p.windows
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	DateStr        string
	ClipsListed    int
	ClipsProcessed int
	ClipsDetected  int
	ClipErrors     int
	DetectionCount int
	CompositePath  string
	ConcatPath     string
	Duration       time.Duration
}

// Run processes the night labeled dateStr: every hour slot of the resolved
// observation window is listed and downloaded, each new clip is detected,
// and the night's aggregate artifacts are rebuilt. Clips already in a
// terminal state are skipped, so repeated runs over the same night only do
// incremental work. Per-clip failures mark the clip and continue; only
// setup failures abort the run.
//
// With dryRun set the camera is listed but nothing is downloaded, detected
// or written to the store.
func (p *Pipeline) Run(ctx context.Context, dateStr string, dryRun bool) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{DateStr: dateStr}

	window, err := p.windows.Resolve(dateStr)
	if err != nil {
		return nil, err
	}
	hours := NightHours(window)
	logger().Info("Starting run",
		"date", dateStr,
		"window_start", window.Start.Format(time.RFC3339),
		"window_end", window.End.Format(time.RFC3339),
		"hours", len(hours),
		"dry_run", dryRun)

	for _, hour := range hours {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		camDate := cameraDate(dateStr, hour)

		if dryRun {
			urls := p.dl.ListHour(ctx, camDate, hour)
			result.ClipsListed += len(urls)
			logger().Info("Would process hour", "camera_date", camDate, "hour", hour, "clips", len(urls))
			continue
		}

		refs := p.dl.DownloadHour(ctx, camDate, hour, p.cfg.Paths.DownloadDir)
		result.ClipsListed += len(refs)
		for _, ref := range refs {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			p.processClip(ctx, dateStr, hour, ref, result)
		}
	}

	if dryRun {
		result.Duration = time.Since(started)
		return result, nil
	}

	night, err := p.RebuildOutputs(ctx, dateStr)
	if err != nil {
		return result, err
	}
	result.DetectionCount = night.DetectionCount
	result.CompositePath = night.CompositeImage
	result.ConcatPath = night.ConcatVideo
	result.Duration = time.Since(started)

	p.hooks.NightComplete(hooks.NightCompleteEvent{
		DateStr:        dateStr,
		DetectionCount: night.DetectionCount,
		CompositePath:  night.CompositeImage,
		VideoPath:      night.ConcatVideo,
	})
	if p.metrics != nil {
		p.metrics.RunDuration.Set(result.Duration.Seconds())
		p.metrics.LastRunUnix.Set(float64(time.Now().Unix()))
	}

	logger().Info("Run complete",
		"date", dateStr,
		"processed", result.ClipsProcessed,
		"detected", result.ClipsDetected,
		"errors", result.ClipErrors,
		"detections", result.DetectionCount,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// processClip records one downloaded (or failed) clip and runs detection on
// it when it is new. Failures are absorbed into the clip's error status.
func (p *Pipeline) processClip(ctx context.Context, dateStr string, hour int, ref downloader.ClipRef, result *RunResult) {
	clip := &datastore.Clip{
		ClipURL:   ref.URL,
		DateStr:   dateStr,
		Hour:      hour,
		Minute:    ref.Minute,
		LocalPath: ref.LocalPath,
		Status:    datastore.StatusPending,
	}
	if err := p.store.UpsertClip(clip); err != nil {
		logger().Error("Failed to record clip", "url", ref.URL, "error", err)
		result.ClipErrors++
		return
	}

	stored, err := p.store.GetClip(ref.URL)
	if err != nil {
		logger().Error("Failed to load clip", "url", ref.URL, "error", err)
		result.ClipErrors++
		return
	}

	// Terminal clips were already processed on a previous cycle; a later
	// download failure must not demote them.
	if datastore.IsTerminalStatus(stored.Status) {
		return
	}

	if ref.Err != nil {
		p.markClipError(stored.ID, "download", ref.Err, result)
		return
	}

	if err := p.store.SetClipStatus(stored.ID, datastore.StatusDownloaded, map[string]any{
		"local_path": ref.LocalPath,
	}); err != nil {
		logger().Error("Failed to update clip", "url", ref.URL, "error", err)
		result.ClipErrors++
		return
	}

	p.detectClip(ctx, stored.ID, dateStr, hour, ref, result)
}

// detectClip runs the detector over one downloaded clip and persists the
// outcome.
func (p *Pipeline) detectClip(ctx context.Context, clipID uint, dateStr string, hour int, ref downloader.ClipRef, result *RunResult) {
	outputDir := filepath.Join(p.cfg.Paths.OutputDir, dateStr)

	res, err := p.det.Detect(ctx, ref.LocalPath, outputDir)
	if err != nil {
		p.markClipError(clipID, "detection", err, result)
		return
	}
	result.ClipsProcessed++
	if p.metrics != nil {
		p.metrics.ClipsProcessed.Inc()
	}

	if !res.Detected {
		if err := p.store.SetClipStatus(clipID, datastore.StatusNoDetection, nil); err != nil {
			logger().Error("Failed to update clip", "clip_id", clipID, "error", err)
		}
		return
	}

	videos, err := p.extractSubclips(ctx, ref.LocalPath, outputDir, res)
	if err != nil {
		// Detection stands even when subclip extraction fails; the full
		// clip stands in for the missing subclips.
		logger().Error("Subclip extraction failed, using full clip", "clip", ref.LocalPath, "error", err)
		p.hooks.Error(hooks.ErrorEvent{Stage: "extract", Err: err, Context: map[string]string{"clip": ref.LocalPath}})
		videos = []string{ref.LocalPath}
	}

	detections := make([]datastore.Detection, len(res.Lines))
	for i, line := range res.Lines {
		detections[i] = datastore.Detection{
			LineIndex: i,
			X1:        line.X1, Y1: line.Y1,
			X2: line.X2, Y2: line.Y2,
			CropImage: res.CropPaths[i],
		}
	}
	if err := p.store.ReplaceDetections(clipID, detections); err != nil {
		p.markClipError(clipID, "detection", err, result)
		return
	}

	fields := map[string]any{
		"detection_image": res.ImagePath,
		"line_count":      res.LineCount(),
	}
	if encoded := encodeVideoList(videos); encoded != "" {
		fields["detected_video"] = encoded
	}
	if err := p.store.SetClipStatus(clipID, datastore.StatusDetected, fields); err != nil {
		logger().Error("Failed to update clip", "clip_id", clipID, "error", err)
		result.ClipErrors++
		return
	}

	result.ClipsDetected++
	if p.metrics != nil {
		p.metrics.ClipsDetected.Inc()
		p.metrics.DetectionsTotal.Add(float64(res.LineCount()))
	}
	p.hooks.Detection(hooks.DetectionEvent{
		DateStr:   dateStr,
		Hour:      hour,
		Minute:    ref.Minute,
		LineCount: res.LineCount(),
		ImagePath: res.ImagePath,
		ClipPath:  ref.LocalPath,
		Lines:     res.Lines,
	})
}

// extractSubclips cuts the detected time ranges out of the source clip.
func (p *Pipeline) extractSubclips(ctx context.Context, clipPath, outputDir string, res *detection.Result) ([]string, error) {
	ranges := media.ComputeTimeRanges(res.GroupIndices, res.ExposureSec, p.cfg.Detection.ClipMarginSec, res.DurationSec)
	return media.ExtractSegments(ctx, clipPath, ranges, outputDir)
}

func (p *Pipeline) markClipError(clipID uint, stage string, cause error, result *RunResult) {
	result.ClipErrors++
	if p.metrics != nil {
		p.metrics.ClipErrors.Inc()
	}
	if err := p.store.SetClipStatus(clipID, datastore.StatusError, map[string]any{
		"error_message": cause.Error(),
	}); err != nil {
		logger().Error("Failed to mark clip errored", "clip_id", clipID, "error", err)
	}
	p.hooks.Error(hooks.ErrorEvent{Stage: stage, Err: cause})
}

// encodeVideoList stores extracted subclip paths as a JSON array.
func encodeVideoList(videos []string) string {
	if len(videos) == 0 {
		return ""
	}
	data, err := json.Marshal(videos)
	if err != nil {
		return ""
	}
	return string(data)
}

// decodeVideoList parses a stored subclip path list.
func decodeVideoList(encoded string) []string {
	if encoded == "" {
		return nil
	}
	var videos []string
	if err := json.Unmarshal([]byte(encoded), &videos); err != nil {
		logger().Warn("Unreadable subclip list", "value", encoded, "error", err)
		return nil
	}
	return videos
}

// sortClipsChrono orders clips by their position within the night: evening
// hours first, then the post-midnight morning hours.
func sortClipsChrono(clips []datastore.Clip) {
	sort.SliceStable(clips, func(i, j int) bool {
		a, b := nightOrdinal(clips[i]), nightOrdinal(clips[j])
		return a < b
	})
}

func nightOrdinal(c datastore.Clip) int {
	hour := c.Hour
	if hour < 12 {
		hour += 24
	}
	return hour*60 + c.Minute
}
