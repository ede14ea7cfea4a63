// Package detection implements the per-clip streak detector: consecutive
// frames are differenced in exposure-sized groups, each group's difference
// composite is blurred, edge detected and line transformed, and candidate
// lines are kept only when bright enough along their length.
package detection

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/frame"
	"github.com/skymonitor/meteor-go/internal/logging"
	"github.com/skymonitor/meteor-go/internal/media"
)

// Crop geometry around a detected line: padding on each side of the line's
// bounding box, and a floor on the resulting region size.
const (
	CropPadding = 80
	CropMinSize = 120
)

var (
	detLogger  *slog.Logger
	levelVar   = new(slog.LevelVar)
	loggerOnce sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		detLogger, _ = logging.ForService("detection", levelVar)
	})
	return detLogger
}

// Result is the outcome of detecting one clip.
type Result struct {
	Detected     bool
	Lines        []frame.Line
	GroupIndices []int // frame groups that yielded at least one line
	ImagePath    string
	CropPaths    []string
	FPS          float64
	DurationSec  float64
	ExposureSec  float64
}

// LineCount returns the number of surviving lines.
func (r *Result) LineCount() int {
	return len(r.Lines)
}

// Detector runs streak detection with fixed configuration. A configured
// mask image is loaded once at construction.
type Detector struct {
	cfg  conf.DetectionSettings
	mask *image.Gray
}

// New creates a Detector. A configured mask path that does not exist is
// logged and ignored.
func New(cfg conf.DetectionSettings) *Detector {
	d := &Detector{cfg: cfg}
	if cfg.MaskPath != "" {
		maskPath := conf.ExpandPath(cfg.MaskPath)
		mask, err := frame.LoadGray(maskPath)
		if err != nil {
			logger().Warn("Mask path configured but not loadable", "path", maskPath, "error", err)
		} else {
			d.mask = mask
			logger().Info("Loaded mask", "path", maskPath)
		}
	}
	return d
}

// Detect runs streak detection on a clip, writing the clip's lighten
// composite and per-line crop images under outputDir. Decode failures are
// detection-category errors carrying the clip path.
func (d *Detector) Detect(ctx context.Context, clipPath, outputDir string) (*Result, error) {
	info, err := media.Probe(ctx, clipPath)
	if err != nil {
		return nil, err
	}

	framesPerGroup := int(math.Floor(info.FPS * d.cfg.ExposureDurationSec))
	// A group needs at least two frames to produce a difference.
	if framesPerGroup < 2 {
		framesPerGroup = 2
	}

	logger().Debug("Processing clip",
		"clip", filepath.Base(clipPath),
		"fps", info.FPS,
		"frames_per_group", framesPerGroup)

	reader, err := media.OpenFrameReader(ctx, clipPath, info.Width, info.Height)
	if err != nil {
		return nil, err
	}

	result := &Result{
		FPS:         info.FPS,
		DurationSec: info.DurationSec,
		ExposureSec: d.cfg.ExposureDurationSec,
	}

	var clipComposite *image.Gray
	groupIndex := 0

	for {
		group, err := d.readGroup(reader, framesPerGroup, info.Width, info.Height)
		if err != nil {
			_ = reader.Close()
			return nil, err
		}
		// Trailing groups shorter than two frames cannot be differenced.
		if len(group) < 2 {
			break
		}

		diffComposite := groupDiff(group)
		d.applyMask(diffComposite)

		lines := d.detectLines(diffComposite)
		if len(lines) > 0 {
			result.Lines = append(result.Lines, lines...)
			result.GroupIndices = append(result.GroupIndices, groupIndex)
		}

		if clipComposite == nil {
			clipComposite = diffComposite
		} else {
			frame.MaxInto(clipComposite, diffComposite)
		}

		if len(group) < framesPerGroup {
			break // stream exhausted
		}
		groupIndex++
	}

	if err := reader.Close(); err != nil {
		return nil, err
	}

	if clipComposite == nil {
		logger().Warn("No frames processed", "clip", clipPath)
		return result, nil
	}

	if len(result.Lines) == 0 {
		logger().Debug("No lines detected", "clip", filepath.Base(clipPath))
		return result, nil
	}

	result.Detected = true
	logger().Info("Detected lines", "clip", filepath.Base(clipPath), "count", len(result.Lines))

	stem := strings.TrimSuffix(filepath.Base(clipPath), filepath.Ext(clipPath))
	imagePath := filepath.Join(outputDir, stem+"_detect.png")
	if err := frame.Save(imagePath, clipComposite); err != nil {
		return nil, err
	}
	result.ImagePath = imagePath

	for i, line := range result.Lines {
		region := frame.CropRegion(clipComposite.Rect, line, CropPadding, CropMinSize)
		cropPath := filepath.Join(outputDir, fmt.Sprintf("%s_line%d.png", stem, i))
		if err := frame.Save(cropPath, frame.Crop(clipComposite, region)); err != nil {
			return nil, err
		}
		result.CropPaths = append(result.CropPaths, cropPath)
	}

	return result, nil
}

// readGroup reads up to framesPerGroup frames from the reader.
func (d *Detector) readGroup(reader *media.FrameReader, framesPerGroup, width, height int) ([]*image.Gray, error) {
	group := make([]*image.Gray, 0, framesPerGroup)
	for len(group) < framesPerGroup {
		buf, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		group = append(group, frame.FromBytes(buf, width, height))
	}
	return group, nil
}

// groupDiff folds the absolute differences of consecutive frames into one
// composite via pixel-wise maximum.
func groupDiff(group []*image.Gray) *image.Gray {
	diffComposite := frame.AbsDiff(group[1], group[0])
	for i := 1; i < len(group)-1; i++ {
		frame.MaxInto(diffComposite, frame.AbsDiff(group[i+1], group[i]))
	}
	return diffComposite
}

// applyMask zeroes excluded regions of a group's difference composite. The
// mask is applied after differencing and before blur/edge detection; the
// two masking modes are mutually exclusive, with the file mask taking
// precedence over the bottom-fraction exclusion.
func (d *Detector) applyMask(diffComposite *image.Gray) {
	if d.mask != nil {
		mask := frame.Resize(d.mask, diffComposite.Rect.Dx(), diffComposite.Rect.Dy())
		frame.ApplyMask(diffComposite, mask)
		return
	}
	frame.ZeroBottom(diffComposite, d.cfg.ExcludeBottomPct)
}

// detectLines runs blur, edge detection, the probabilistic line transform
// and the minimum-brightness filter over one difference composite.
func (d *Detector) detectLines(diffComposite *image.Gray) []frame.Line {
	blurred := frame.GaussianBlur5(diffComposite)
	edges := frame.Canny(blurred, d.cfg.CannyThreshold1, d.cfg.CannyThreshold2)
	candidates := frame.HoughLinesP(edges, d.cfg.HoughThreshold, d.cfg.MinLineLength, d.cfg.MaxLineGap)

	lines := candidates[:0]
	for _, line := range candidates {
		// Edges border the streak rather than lie on it, so the brightness
		// check samples a small perpendicular neighborhood.
		brightness := frame.MaxMeanNearLine(diffComposite, line, 2)
		if brightness < d.cfg.MinLineBrightness {
			logger().Debug("Discarding dim line", "brightness", brightness, "min", d.cfg.MinLineBrightness)
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
