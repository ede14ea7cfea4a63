package frame

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayWith(width, height int, fill uint8) *image.Gray {
	img := NewGray(width, height)
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}

func TestAbsDiff(t *testing.T) {
	a := grayWith(4, 4, 200)
	b := grayWith(4, 4, 50)

	d1 := AbsDiff(a, b)
	d2 := AbsDiff(b, a)
	for i := range d1.Pix {
		assert.Equal(t, uint8(150), d1.Pix[i])
		assert.Equal(t, uint8(150), d2.Pix[i], "absolute difference must be symmetric")
	}
}

func TestMaxIntoCommutativeIdempotent(t *testing.T) {
	a := grayWith(8, 8, 0)
	b := grayWith(8, 8, 0)
	a.Pix[3] = 200
	b.Pix[3] = 100
	b.Pix[10] = 50

	ab := Clone(a)
	MaxInto(ab, b)
	ba := Clone(b)
	MaxInto(ba, a)
	assert.Equal(t, ab.Pix, ba.Pix, "pixel-wise max must be commutative")

	again := Clone(ab)
	MaxInto(again, ab)
	assert.Equal(t, ab.Pix, again.Pix, "pixel-wise max must be idempotent")

	assert.Equal(t, uint8(200), ab.Pix[3])
	assert.Equal(t, uint8(50), ab.Pix[10])
}

func TestFromBytes(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6}
	img := FromBytes(buf, 3, 2)
	assert.Equal(t, 3, img.Rect.Dx())
	assert.Equal(t, 2, img.Rect.Dy())
	assert.Equal(t, uint8(4), img.GrayAt(0, 1).Y)
}

func TestZeroBottom(t *testing.T) {
	img := grayWith(10, 10, 255)
	ZeroBottom(img, 0.2)

	assert.Equal(t, uint8(255), img.GrayAt(5, 7).Y)
	assert.Equal(t, uint8(0), img.GrayAt(5, 8).Y)
	assert.Equal(t, uint8(0), img.GrayAt(5, 9).Y)

	// Zero fraction leaves the image untouched.
	img2 := grayWith(10, 10, 255)
	ZeroBottom(img2, 0)
	assert.Equal(t, uint8(255), img2.GrayAt(5, 9).Y)
}

func TestApplyMask(t *testing.T) {
	img := grayWith(4, 4, 200)
	mask := grayWith(4, 4, 255)
	mask.SetGray(1, 1, color.Gray{Y: 0})

	ApplyMask(img, mask)
	assert.Equal(t, uint8(0), img.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(200), img.GrayAt(0, 0).Y)
}

func TestMeanAlongLine(t *testing.T) {
	img := grayWith(20, 20, 0)
	for x := 2; x <= 17; x++ {
		img.SetGray(x, 10, color.Gray{Y: 100})
	}

	mean := MeanAlongLine(img, Line{X1: 2, Y1: 10, X2: 17, Y2: 10})
	assert.InDelta(t, 100.0, mean, 0.01)

	off := MeanAlongLine(img, Line{X1: 2, Y1: 5, X2: 17, Y2: 5})
	assert.InDelta(t, 0.0, off, 0.01)
}

func TestMaxMeanNearLineReachesFlankedStreak(t *testing.T) {
	img := grayWith(64, 64, 0)
	for x := 0; x < 64; x++ {
		img.SetGray(x, 30, color.Gray{Y: 200})
	}

	// An edge two rows above the streak reads zero on its own pixels but
	// must pick up the streak within the perpendicular radius.
	edge := Line{X1: 0, Y1: 28, X2: 63, Y2: 28}
	assert.InDelta(t, 0.0, MeanAlongLine(img, edge), 0.01)
	assert.InDelta(t, 200.0, MaxMeanNearLine(img, edge, 2), 0.01)
	assert.InDelta(t, 0.0, MaxMeanNearLine(img, edge, 1), 0.01)

	vertical := grayWith(64, 64, 0)
	for y := 0; y < 64; y++ {
		vertical.SetGray(30, y, color.Gray{Y: 120})
	}
	edgeV := Line{X1: 32, Y1: 0, X2: 32, Y2: 63}
	assert.InDelta(t, 120.0, MaxMeanNearLine(vertical, edgeV, 2), 0.01)
}

func TestCropRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	region := CropRegion(bounds, Line{X1: 300, Y1: 200, X2: 340, Y2: 240}, 80, 120)
	assert.True(t, region.In(bounds), "crop region must stay inside the image")
	assert.GreaterOrEqual(t, region.Dx(), 120)
	assert.GreaterOrEqual(t, region.Dy(), 120)

	// A line at the corner is clamped, not rejected.
	corner := CropRegion(bounds, Line{X1: 0, Y1: 0, X2: 5, Y2: 5}, 80, 120)
	assert.True(t, corner.In(bounds))
	assert.GreaterOrEqual(t, corner.Dx(), 120)
}

func TestZeroRegion(t *testing.T) {
	img := grayWith(10, 10, 255)
	ZeroRegion(img, image.Rect(2, 2, 5, 5))
	assert.Equal(t, uint8(0), img.GrayAt(3, 3).Y)
	assert.Equal(t, uint8(255), img.GrayAt(6, 6).Y)
}

func TestResize(t *testing.T) {
	img := grayWith(4, 4, 0)
	img.SetGray(3, 3, color.Gray{Y: 200})

	resized := Resize(img, 8, 8)
	assert.Equal(t, 8, resized.Rect.Dx())
	assert.Equal(t, uint8(200), resized.GrayAt(7, 7).Y)
}

func TestLineLength(t *testing.T) {
	assert.InDelta(t, 5.0, Line{X1: 0, Y1: 0, X2: 3, Y2: 4}.Length(), 0.001)
}

func TestSaveAndLoadGray(t *testing.T) {
	img := grayWith(16, 12, 0)
	img.SetGray(5, 5, color.Gray{Y: 180})

	path := filepath.Join(t.TempDir(), "nested", "img.png")
	require.NoError(t, Save(path, img))

	loaded, err := LoadGray(path)
	require.NoError(t, err)
	assert.Equal(t, img.Rect, loaded.Rect)
	assert.Equal(t, uint8(180), loaded.GrayAt(5, 5).Y)
}

func TestGaussianBlurPreservesFlatRegions(t *testing.T) {
	img := grayWith(20, 20, 100)
	blurred := GaussianBlur5(img)
	for i := range blurred.Pix {
		assert.Equal(t, uint8(100), blurred.Pix[i], "blurring a flat image must not change it")
	}
}

func TestCannyFindsNoEdgesInFlatImage(t *testing.T) {
	img := grayWith(32, 32, 128)
	edges := Canny(img, 50, 100)
	for i := range edges.Pix {
		assert.Equal(t, uint8(0), edges.Pix[i])
	}
}

func TestHoughLinesPFindsStraightEdge(t *testing.T) {
	// A single horizontal run of edge pixels.
	edges := NewGray(200, 100)
	for x := 20; x <= 180; x++ {
		edges.SetGray(x, 50, color.Gray{Y: 255})
	}

	lines := HoughLinesP(edges, 50, 60, 5)
	require.NotEmpty(t, lines)
	line := lines[0]
	assert.GreaterOrEqual(t, line.Length(), 60.0)
	assert.Equal(t, 50, line.Y1)
	assert.Equal(t, 50, line.Y2)
}

func TestHoughLinesPIgnoresSparseNoise(t *testing.T) {
	edges := NewGray(200, 100)
	for i := 0; i < 30; i++ {
		edges.SetGray((i*37)%200, (i*53)%100, color.Gray{Y: 255})
	}
	lines := HoughLinesP(edges, 50, 60, 5)
	assert.Empty(t, lines)
}

func TestHoughLinesPDeterministic(t *testing.T) {
	edges := NewGray(200, 100)
	for x := 20; x <= 180; x++ {
		edges.SetGray(x, 30, color.Gray{Y: 255})
		edges.SetGray(x, 70, color.Gray{Y: 255})
	}

	first := HoughLinesP(edges, 50, 60, 5)
	second := HoughLinesP(edges, 50, 60, 5)
	assert.Equal(t, first, second, "identical input must yield identical lines")
}
