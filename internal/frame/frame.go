// Package frame implements the grayscale image operations behind streak
// detection: frame differencing, lighten compositing, masking, blur, edge
// detection and the probabilistic line transform.
package frame

import (
	"image"
	"math"
)

// Line is a detected segment in pixel coordinates.
type Line struct {
	X1, Y1, X2, Y2 int
}

// Length returns the Euclidean length of the segment.
func (l Line) Length() float64 {
	dx := float64(l.X2 - l.X1)
	dy := float64(l.Y2 - l.Y1)
	return math.Sqrt(dx*dx + dy*dy)
}

// NewGray allocates a zeroed grayscale image of the given size.
func NewGray(width, height int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, width, height))
}

// FromBytes wraps a raw single-channel frame buffer in an image.Gray.
// The buffer is used directly, not copied.
func FromBytes(buf []byte, width, height int) *image.Gray {
	return &image.Gray{
		Pix:    buf,
		Stride: width,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// AbsDiff returns the pixel-wise absolute difference of two equal-size
// grayscale images.
func AbsDiff(a, b *image.Gray) *image.Gray {
	out := image.NewGray(a.Rect)
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		out.Pix[i] = uint8(d)
	}
	return out
}

// MaxInto folds src into dst taking the pixel-wise maximum. dst and src
// must have equal dimensions.
func MaxInto(dst, src *image.Gray) {
	for i := range dst.Pix {
		if src.Pix[i] > dst.Pix[i] {
			dst.Pix[i] = src.Pix[i]
		}
	}
}

// Clone returns a deep copy of img.
func Clone(img *image.Gray) *image.Gray {
	out := image.NewGray(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

// ApplyMask zeroes every pixel of img where mask is zero (bitwise AND
// against a binary mask). Images must have equal dimensions.
func ApplyMask(img, mask *image.Gray) {
	for i := range img.Pix {
		if mask.Pix[i] == 0 {
			img.Pix[i] = 0
		}
	}
}

// ZeroBottom zeroes the bottom fraction of the image, a simpler masking
// mode for cameras that burn a timestamp overlay into the lower edge.
func ZeroBottom(img *image.Gray, fraction float64) {
	if fraction <= 0 {
		return
	}
	h := img.Rect.Dy()
	w := img.Rect.Dx()
	start := h - int(float64(h)*fraction)
	if start < 0 {
		start = 0
	}
	for y := start; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for i := range row {
			row[i] = 0
		}
	}
}

// Resize scales img to the given dimensions with nearest-neighbor sampling.
// Used to fit a configured mask to the camera's frame size.
func Resize(img *image.Gray, width, height int) *image.Gray {
	srcW := img.Rect.Dx()
	srcH := img.Rect.Dy()
	if srcW == width && srcH == height {
		return img
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := y * srcH / height
		for x := 0; x < width; x++ {
			sx := x * srcW / width
			out.Pix[y*out.Stride+x] = img.Pix[sy*img.Stride+sx]
		}
	}
	return out
}

// MeanAlongLine returns the mean intensity of img sampled along the segment.
// Sampling walks the longer axis one pixel at a time.
func MeanAlongLine(img *image.Gray, l Line) float64 {
	dx := l.X2 - l.X1
	dy := l.Y2 - l.Y1
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	if steps == 0 {
		return float64(img.GrayAt(l.X1, l.Y1).Y)
	}
	var sum float64
	for i := 0; i <= steps; i++ {
		x := l.X1 + dx*i/steps
		y := l.Y1 + dy*i/steps
		sum += float64(img.GrayAt(x, y).Y)
	}
	return sum / float64(steps+1)
}

// MaxMeanNearLine returns the highest MeanAlongLine over perpendicular
// shifts of the segment up to radius pixels. Edge detection places a
// segment on the dark pixels flanking a bright streak, so the streak's
// intensity sits one or two pixels to the side of the reported line.
func MaxMeanNearLine(img *image.Gray, l Line, radius int) float64 {
	shiftY := abs(l.X2-l.X1) >= abs(l.Y2-l.Y1)
	var best float64
	for off := -radius; off <= radius; off++ {
		shifted := l
		if shiftY {
			shifted.Y1 += off
			shifted.Y2 += off
		} else {
			shifted.X1 += off
			shifted.X2 += off
		}
		if m := MeanAlongLine(img, shifted); m > best {
			best = m
		}
	}
	return best
}

// CropRegion computes a padded bounding box around a line, expanded to a
// minimum size and clamped to the image bounds.
func CropRegion(bounds image.Rectangle, l Line, padding, minSize int) image.Rectangle {
	w := bounds.Dx()
	h := bounds.Dy()

	x1 := min(l.X1, l.X2) - padding
	x2 := max(l.X1, l.X2) + padding
	y1 := min(l.Y1, l.Y2) - padding
	y2 := max(l.Y1, l.Y2) + padding

	x1 = clamp(x1, 0, w)
	x2 = clamp(x2, 0, w)
	y1 = clamp(y1, 0, h)
	y2 = clamp(y2, 0, h)

	if x2-x1 < minSize {
		mid := (x1 + x2) / 2
		x1 = clamp(mid-minSize/2, 0, w)
		x2 = clamp(x1+minSize, 0, w)
	}
	if y2-y1 < minSize {
		mid := (y1 + y2) / 2
		y1 = clamp(mid-minSize/2, 0, h)
		y2 = clamp(y1+minSize, 0, h)
	}

	return image.Rect(x1, y1, x2, y2)
}

// Crop returns a copy of the given region of img.
func Crop(img *image.Gray, region image.Rectangle) *image.Gray {
	region = region.Intersect(img.Rect)
	out := image.NewGray(image.Rect(0, 0, region.Dx(), region.Dy()))
	for y := 0; y < region.Dy(); y++ {
		srcOff := (region.Min.Y+y)*img.Stride + region.Min.X
		copy(out.Pix[y*out.Stride:y*out.Stride+region.Dx()], img.Pix[srcOff:srcOff+region.Dx()])
	}
	return out
}

// ZeroRegion blacks out a rectangular region of img in place.
func ZeroRegion(img *image.Gray, region image.Rectangle) {
	region = region.Intersect(img.Rect)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			img.Pix[y*img.Stride+x] = 0
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
