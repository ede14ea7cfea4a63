package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/skymonitor/meteor-go/internal/compositor"
	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/detection"
	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/frame"
	"github.com/skymonitor/meteor-go/internal/media"
)

// nightArtifactPaths returns the night's composite image and concatenated
// video locations under the output directory.
func (p *Pipeline) nightArtifactPaths(dateStr string) (compositePath, concatPath string) {
	dir := filepath.Join(p.cfg.Paths.OutputDir, dateStr)
	return filepath.Join(dir, dateStr+"_composite.png"), filepath.Join(dir, dateStr+"_meteors.mp4")
}

// RebuildOutputs regenerates both aggregate artifacts for a night from the
// current exclusion state and upserts the night's output row.
func (p *Pipeline) RebuildOutputs(ctx context.Context, dateStr string) (*datastore.NightOutput, error) {
	compositePath, err := p.buildComposite(dateStr)
	if err != nil {
		return nil, err
	}
	concatPath, err := p.buildConcat(ctx, dateStr)
	if err != nil {
		return nil, err
	}
	return p.saveNightOutput(dateStr, &compositePath, &concatPath)
}

// RebuildComposite regenerates only the night's composite image and updates
// the night row; the concatenated video is left untouched.
func (p *Pipeline) RebuildComposite(_ context.Context, dateStr string) (string, error) {
	path, err := p.buildComposite(dateStr)
	if err != nil {
		return "", err
	}
	if _, err := p.saveNightOutput(dateStr, &path, nil); err != nil {
		return "", err
	}
	return path, nil
}

// RebuildConcat regenerates only the night's concatenated video and updates
// the night row; the composite image is left untouched.
func (p *Pipeline) RebuildConcat(ctx context.Context, dateStr string) (string, error) {
	path, err := p.buildConcat(ctx, dateStr)
	if err != nil {
		return "", err
	}
	if _, err := p.saveNightOutput(dateStr, nil, &path); err != nil {
		return "", err
	}
	return path, nil
}

// buildComposite regenerates the night's composite image from the
// non-excluded detected clips, blacking out the regions of excluded
// detections. An empty result path means the night has no included
// detections; a stale composite file is removed in that case.
func (p *Pipeline) buildComposite(dateStr string) (string, error) {
	compositePath, _ := p.nightArtifactPaths(dateStr)

	clips, err := p.store.GetDetectedClips(dateStr, false)
	if err != nil {
		return "", err
	}
	sortClipsChrono(clips)

	var images []*image.Gray
	for _, clip := range clips {
		img, err := p.clipCompositeImage(clip)
		if err != nil {
			logger().Warn("Skipping clip image", "clip_id", clip.ID, "error", err)
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		if err := removeIfExists(compositePath); err != nil {
			return "", err
		}
		return "", nil
	}

	composite, err := compositor.ComposeImages(images)
	if err != nil {
		return "", err
	}
	if err := frame.Save(compositePath, composite); err != nil {
		return "", err
	}
	logger().Info("Rebuilt composite", "date", dateStr, "clips", len(images), "path", compositePath)
	return compositePath, nil
}

// clipCompositeImage loads one clip's detection image with its excluded
// detections' crop regions zeroed, so reviewed-out streaks disappear from
// the night composite.
func (p *Pipeline) clipCompositeImage(clip datastore.Clip) (*image.Gray, error) {
	img, err := frame.LoadGray(clip.DetectionImage)
	if err != nil {
		return nil, err
	}
	detections, err := p.store.GetDetections(clip.ID, false)
	if err != nil {
		return nil, err
	}
	for _, det := range detections {
		if !det.Excluded {
			continue
		}
		line := frame.Line{X1: det.X1, Y1: det.Y1, X2: det.X2, Y2: det.Y2}
		frame.ZeroRegion(img, frame.CropRegion(img.Rect, line, detection.CropPadding, detection.CropMinSize))
	}
	return img, nil
}

// buildConcat regenerates the night's concatenated highlight video from
// the non-excluded detected clips' extracted subclips, in chronological
// order. Clips whose subclips are missing are skipped; zero subclips
// clears the artifact.
func (p *Pipeline) buildConcat(ctx context.Context, dateStr string) (string, error) {
	_, concatPath := p.nightArtifactPaths(dateStr)

	clips, err := p.store.GetDetectedClips(dateStr, false)
	if err != nil {
		return "", err
	}
	sortClipsChrono(clips)

	var videos []string
	for _, clip := range clips {
		for _, video := range decodeVideoList(clip.DetectedVideo) {
			if _, err := os.Stat(video); err != nil {
				logger().Warn("Subclip missing, skipping", "path", video)
				continue
			}
			videos = append(videos, video)
		}
	}

	if len(videos) == 0 {
		if err := removeIfExists(concatPath); err != nil {
			return "", err
		}
		return "", nil
	}

	if err := media.Concatenate(ctx, videos, concatPath); err != nil {
		return "", err
	}
	logger().Info("Rebuilt concat video", "date", dateStr, "subclips", len(videos), "path", concatPath)
	return concatPath, nil
}

// saveNightOutput upserts the night row. A nil path pointer preserves the
// stored value for that artifact.
func (p *Pipeline) saveNightOutput(dateStr string, compositePath, concatPath *string) (*datastore.NightOutput, error) {
	output := &datastore.NightOutput{DateStr: dateStr}
	if existing, err := p.store.GetNightOutput(dateStr); err == nil {
		output = existing
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	if compositePath != nil {
		output.CompositeImage = *compositePath
	}
	if concatPath != nil {
		output.ConcatVideo = *concatPath
	}

	count, err := p.store.CountNightDetections(dateStr)
	if err != nil {
		return nil, err
	}
	output.DetectionCount = count
	output.LastUpdatedAt = time.Now()

	if err := p.store.UpsertNightOutput(output); err != nil {
		return nil, err
	}
	return output, nil
}

// RefreshNight recomputes the night's detection count and updates the night
// row without touching the artifacts on disk.
func (p *Pipeline) RefreshNight(dateStr string) (*datastore.NightOutput, error) {
	return p.saveNightOutput(dateStr, nil, nil)
}

// Redetect re-runs streak detection over every locally retained clip of a
// night, replacing each clip's detections wholesale, then rebuilds the
// night's artifacts. The context is checked between clips so a cancelled
// redetect stops at the next clip boundary; progress, when non-nil, is
// called after each clip with (done, total).
func (p *Pipeline) Redetect(ctx context.Context, dateStr string, progress func(done, total int)) error {
	clips, err := p.store.GetClipsForNight(dateStr)
	if err != nil {
		return err
	}
	sortClipsChrono(clips)

	var local []datastore.Clip
	for _, clip := range clips {
		if clip.LocalPath == "" {
			continue
		}
		if _, err := os.Stat(clip.LocalPath); err != nil {
			logger().Warn("Clip file missing, skipping", "path", clip.LocalPath)
			continue
		}
		local = append(local, clip)
	}
	if len(local) == 0 {
		return errors.Newf("no local clips to redetect for night %s", dateStr).
			Component("pipeline").
			Category(errors.CategoryNotFound).
			Build()
	}

	outputDir := filepath.Join(p.cfg.Paths.OutputDir, dateStr)
	logger().Info("Redetecting night", "date", dateStr, "clips", len(local))

	for i, clip := range local {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.redetectClip(ctx, clip, outputDir)
		if progress != nil {
			progress(i+1, len(local))
		}
	}

	if _, err := p.RebuildOutputs(ctx, dateStr); err != nil {
		return err
	}
	return nil
}

// redetectClip re-runs detection on one clip and overwrites its stored
// outcome.
func (p *Pipeline) redetectClip(ctx context.Context, clip datastore.Clip, outputDir string) {
	res, err := p.det.Detect(ctx, clip.LocalPath, outputDir)
	if err != nil {
		logger().Error("Redetect failed", "clip_id", clip.ID, "error", err)
		if serr := p.store.SetClipStatus(clip.ID, datastore.StatusError, map[string]any{
			"error_message": err.Error(),
		}); serr != nil {
			logger().Error("Failed to mark clip errored", "clip_id", clip.ID, "error", serr)
		}
		return
	}

	if !res.Detected {
		if err := p.store.ReplaceDetections(clip.ID, nil); err != nil {
			logger().Error("Failed to clear detections", "clip_id", clip.ID, "error", err)
			return
		}
		if err := p.store.SetClipStatus(clip.ID, datastore.StatusNoDetection, map[string]any{
			"detection_image": "",
			"detected_video":  "",
			"line_count":      0,
		}); err != nil {
			logger().Error("Failed to update clip", "clip_id", clip.ID, "error", err)
		}
		return
	}

	videos, err := p.extractSubclips(ctx, clip.LocalPath, outputDir, res)
	if err != nil {
		logger().Error("Subclip extraction failed, using full clip", "clip", clip.LocalPath, "error", err)
		videos = []string{clip.LocalPath}
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
	if err := p.store.ReplaceDetections(clip.ID, detections); err != nil {
		logger().Error("Failed to replace detections", "clip_id", clip.ID, "error", err)
		return
	}
	if err := p.store.SetClipStatus(clip.ID, datastore.StatusDetected, map[string]any{
		"detection_image": res.ImagePath,
		"detected_video":  encodeVideoList(videos),
		"line_count":      res.LineCount(),
	}); err != nil {
		logger().Error("Failed to update clip", "clip_id", clip.ID, "error", err)
	}
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New(fmt.Errorf("removing stale artifact: %w", err)).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
