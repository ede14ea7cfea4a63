package frame

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// LoadGray reads a PNG or JPEG file and converts it to grayscale.
func LoadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("opening image %s: %w", path, err)).
			Component("frame").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer f.Close() //nolint:errcheck // read-only file

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("decoding image %s: %w", path, err)).
			Component("frame").
			Category(errors.CategoryFileIO).
			Build()
	}

	if gray, ok := img.(*image.Gray); ok {
		return gray, nil
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray, nil
}

// Save writes img to path, choosing the encoder from the file extension
// (.png or .jpg/.jpeg). The parent directory is created if needed.
func Save(path string, img *image.Gray) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(fmt.Errorf("creating output directory for %s: %w", path, err)).
			Component("frame").
			Category(errors.CategoryFileIO).
			Build()
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.New(fmt.Errorf("creating image file %s: %w", path, err)).
			Component("frame").
			Category(errors.CategoryFileIO).
			Build()
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		_ = f.Close()
		return errors.New(fmt.Errorf("encoding image %s: %w", path, err)).
			Component("frame").
			Category(errors.CategoryFileIO).
			Build()
	}
	return f.Close()
}
