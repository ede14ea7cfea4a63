package frame

import (
	"image"
	"math"
	"math/rand"
)

// HoughLinesP runs the progressive probabilistic Hough transform over a
// binary edge map, following the classic accumulator-and-walk formulation:
// edge points are visited in random order, voted into a (rho, theta)
// accumulator, and when a bin reaches voteThreshold the corresponding line
// direction is walked in both directions to extract the longest segment with
// gaps up to maxGap. Points belonging to an accepted segment have their
// votes retracted so each edge pixel supports at most one line.
//
// The point order is shuffled with a fixed seed so detection stays
// deterministic for identical input.
func HoughLinesP(edges *image.Gray, voteThreshold, minLineLength, maxGap int) []Line {
	w := edges.Rect.Dx()
	h := edges.Rect.Dy()

	const numAngle = 180 // theta step of one degree
	rhoMax := w + h
	numRho := 2*rhoMax + 1

	sinTab := make([]float64, numAngle)
	cosTab := make([]float64, numAngle)
	for a := 0; a < numAngle; a++ {
		theta := float64(a) * math.Pi / float64(numAngle)
		sinTab[a] = math.Sin(theta)
		cosTab[a] = math.Cos(theta)
	}

	// Collect edge points; mask tracks not-yet-consumed edge pixels.
	mask := make([]bool, w*h)
	points := make([]image.Point, 0, 1024)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.Pix[y*edges.Stride+x] != 0 {
				mask[y*w+x] = true
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}

	accum := make([]int32, numAngle*numRho)
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic shuffle, not crypto
	var lines []Line

	for count := len(points); count > 0; count-- {
		// Pick a random remaining point.
		idx := rng.Intn(count)
		pt := points[idx]
		points[idx] = points[count-1]

		if !mask[pt.Y*w+pt.X] {
			continue // consumed by a previously accepted segment
		}

		// Vote and find the best angle for this point.
		bestVal := int32(0)
		bestAngle := -1
		for a := 0; a < numAngle; a++ {
			r := int(math.Round(float64(pt.X)*cosTab[a]+float64(pt.Y)*sinTab[a])) + rhoMax
			accum[a*numRho+r]++
			if v := accum[a*numRho+r]; v > bestVal {
				bestVal = v
				bestAngle = a
			}
		}
		if bestVal < int32(voteThreshold) {
			continue
		}

		// Walk along the line direction from the seed point in both
		// directions, tolerating up to maxGap missing pixels.
		var dx, dy float64
		if sinTab[bestAngle] != 0 && math.Abs(sinTab[bestAngle]) >= math.Abs(cosTab[bestAngle]) {
			// Mostly horizontal walk
			dx = 1
			dy = -cosTab[bestAngle] / sinTab[bestAngle]
		} else {
			dy = 1
			dx = -sinTab[bestAngle] / cosTab[bestAngle]
		}

		var ends [2]image.Point
		for dir := 0; dir < 2; dir++ {
			sign := 1.0
			if dir == 1 {
				sign = -1.0
			}
			fx := float64(pt.X)
			fy := float64(pt.Y)
			gap := 0
			ends[dir] = pt
			for {
				fx += sign * dx
				fy += sign * dy
				x := int(math.Round(fx))
				y := int(math.Round(fy))
				if x < 0 || x >= w || y < 0 || y >= h {
					break
				}
				if mask[y*w+x] {
					gap = 0
					ends[dir] = image.Point{X: x, Y: y}
				} else {
					gap++
					if gap > maxGap {
						break
					}
				}
			}
		}

		line := Line{X1: ends[1].X, Y1: ends[1].Y, X2: ends[0].X, Y2: ends[0].Y}
		goodLine := line.Length() >= float64(minLineLength)

		// Consume the walked pixels, retracting their votes so they cannot
		// seed or support another line.
		for dir := 0; dir < 2; dir++ {
			sign := 1.0
			if dir == 1 {
				sign = -1.0
			}
			fx := float64(pt.X)
			fy := float64(pt.Y)
			for {
				x := int(math.Round(fx))
				y := int(math.Round(fy))
				if mask[y*w+x] {
					if goodLine {
						for a := 0; a < numAngle; a++ {
							r := int(math.Round(float64(x)*cosTab[a]+float64(y)*sinTab[a])) + rhoMax
							if accum[a*numRho+r] > 0 {
								accum[a*numRho+r]--
							}
						}
					}
					mask[y*w+x] = false
				}
				if x == ends[dir].X && y == ends[dir].Y {
					break
				}
				fx += sign * dx
				fy += sign * dy
			}
		}

		if goodLine {
			lines = append(lines, line)
		}
	}
	return lines
}
