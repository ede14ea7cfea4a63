// Package compositor builds lighten composites: per-pixel maxima across a
// set of detection images, visually accumulating bright streaks over a night.
package compositor

import (
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/frame"
	"github.com/skymonitor/meteor-go/internal/logging"
)

var (
	compLogger *slog.Logger
	levelVar   = new(slog.LevelVar)
	loggerOnce sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		compLogger, _ = logging.ForService("compositor", levelVar)
	})
	return compLogger
}

// ComposeImages folds equal-dimension grayscale images with pixel-wise
// maximum. Composition is commutative and idempotent: max(x, x) = x.
// An empty input or a full dimension mismatch is a compositor error.
func ComposeImages(images []*image.Gray) (*image.Gray, error) {
	if len(images) == 0 {
		return nil, compositorError("no images to composite")
	}
	result := frame.Clone(images[0])
	for _, img := range images[1:] {
		if img.Rect.Dx() != result.Rect.Dx() || img.Rect.Dy() != result.Rect.Dy() {
			return nil, compositorError("image dimensions do not match")
		}
		frame.MaxInto(result, img)
	}
	return result, nil
}

// Compose loads the given image files, folds them with pixel-wise maximum
// and writes the result to outputPath. Unreadable or mismatched inputs are
// skipped with a warning; zero usable inputs is a compositor error.
func Compose(imagePaths []string, outputPath string) error {
	return compose(imagePaths, outputPath, nil)
}

// ComposeIncremental is Compose seeded with an existing composite, letting
// a night's artifact grow clip by clip without re-reading prior inputs.
// A missing or unreadable existing composite falls back to a fresh compose.
func ComposeIncremental(existingPath string, imagePaths []string, outputPath string) error {
	var seed *image.Gray
	if _, err := os.Stat(existingPath); err == nil {
		img, err := frame.LoadGray(existingPath)
		if err != nil {
			logger().Warn("Failed to load existing composite", "path", existingPath, "error", err)
		} else {
			seed = img
		}
	}
	return compose(imagePaths, outputPath, seed)
}

func compose(imagePaths []string, outputPath string, seed *image.Gray) error {
	result := seed
	for _, path := range imagePaths {
		img, err := frame.LoadGray(path)
		if err != nil {
			logger().Warn("Failed to load image, skipping", "path", path, "error", err)
			continue
		}
		if result == nil {
			result = img
			continue
		}
		if img.Rect.Dx() != result.Rect.Dx() || img.Rect.Dy() != result.Rect.Dy() {
			logger().Warn("Size mismatch, skipping",
				"path", path,
				"want_width", result.Rect.Dx(), "want_height", result.Rect.Dy(),
				"got_width", img.Rect.Dx(), "got_height", img.Rect.Dy())
			continue
		}
		frame.MaxInto(result, img)
	}

	if result == nil {
		return compositorError("no valid images to composite")
	}

	if err := frame.Save(outputPath, result); err != nil {
		return err
	}
	logger().Info("Composite saved", "path", outputPath)
	return nil
}

func compositorError(msg string) error {
	return errors.Newf("%s", msg).
		Component("compositor").
		Category(errors.CategoryCompositor).
		Build()
}
