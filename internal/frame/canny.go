package frame

import (
	"image"
	"math"
)

// Canny runs Canny edge detection with the given low/high thresholds and
// returns a binary edge map (255 = edge). The steps are the classic four:
// Sobel gradients, non-maximum suppression along the quantized gradient
// direction, double thresholding, and hysteresis tracking of weak edges
// connected to strong ones.
func Canny(img *image.Gray, lowThreshold, highThreshold int) *image.Gray {
	w := img.Rect.Dx()
	h := img.Rect.Dy()

	magnitude := make([]float64, w*h)
	direction := make([]uint8, w*h) // 0=E/W, 1=NE/SW, 2=N/S, 3=NW/SE

	// Sobel gradients; the one-pixel border stays zero.
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			p := func(dx, dy int) int {
				return int(img.Pix[(y+dy)*img.Stride+x+dx])
			}
			gx := -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) + p(1, -1) + 2*p(1, 0) + p(1, 1)
			gy := -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)

			idx := y*w + x
			magnitude[idx] = math.Hypot(float64(gx), float64(gy))

			angle := math.Atan2(float64(gy), float64(gx)) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			switch {
			case angle < 22.5 || angle >= 157.5:
				direction[idx] = 0
			case angle < 67.5:
				direction[idx] = 1
			case angle < 112.5:
				direction[idx] = 2
			default:
				direction[idx] = 3
			}
		}
	}

	// Non-maximum suppression.
	const (
		none   = 0
		weak   = 1
		strong = 2
	)
	labels := make([]uint8, w*h)
	low := float64(lowThreshold)
	high := float64(highThreshold)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			idx := y*w + x
			m := magnitude[idx]
			if m < low {
				continue
			}
			var n1, n2 float64
			switch direction[idx] {
			case 0:
				n1, n2 = magnitude[idx-1], magnitude[idx+1]
			case 1:
				n1, n2 = magnitude[idx-w+1], magnitude[idx+w-1]
			case 2:
				n1, n2 = magnitude[idx-w], magnitude[idx+w]
			default:
				n1, n2 = magnitude[idx-w-1], magnitude[idx+w+1]
			}
			if m < n1 || m < n2 {
				continue
			}
			if m >= high {
				labels[idx] = strong
			} else {
				labels[idx] = weak
			}
		}
	}

	// Hysteresis: promote weak pixels connected to strong ones.
	out := image.NewGray(image.Rect(0, 0, w, h))
	stack := make([]int, 0, 256)
	for idx, l := range labels {
		if l == strong && out.Pix[idx] == 0 {
			out.Pix[idx] = 255
			stack = append(stack, idx)
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cy := cur / w
				cx := cur % w
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						ny := cy + dy
						nx := cx + dx
						if ny < 0 || ny >= h || nx < 0 || nx >= w {
							continue
						}
						nIdx := ny*w + nx
						if labels[nIdx] != none && out.Pix[nIdx] == 0 {
							out.Pix[nIdx] = 255
							stack = append(stack, nIdx)
						}
					}
				}
			}
		}
	}
	return out
}
