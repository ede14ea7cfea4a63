package frame

import "image"

// gaussian5 is the separable 5-tap binomial kernel, the discrete
// equivalent of a 5x5 Gaussian with sigma derived from the kernel size.
var gaussian5 = [5]int{1, 4, 6, 4, 1}

const gaussian5Sum = 16

// GaussianBlur5 applies a 5x5 Gaussian blur and returns a new image.
// Border pixels are handled by clamping coordinates to the image edge.
func GaussianBlur5(img *image.Gray) *image.Gray {
	w := img.Rect.Dx()
	h := img.Rect.Dy()

	// Horizontal pass
	tmp := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		out := tmp.Pix[y*tmp.Stride:]
		for x := 0; x < w; x++ {
			var acc int
			for k := -2; k <= 2; k++ {
				sx := clamp(x+k, 0, w-1)
				acc += int(row[sx]) * gaussian5[k+2]
			}
			out[x] = uint8(acc / gaussian5Sum)
		}
	}

	// Vertical pass
	dst := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			var acc int
			for k := -2; k <= 2; k++ {
				sy := clamp(y+k, 0, h-1)
				acc += int(tmp.Pix[sy*tmp.Stride+x]) * gaussian5[k+2]
			}
			out[x] = uint8(acc / gaussian5Sum)
		}
	}
	return dst
}
