package detectors

import (
	"math"

	"leadscope/internal/errors"
)

// coord is one step of a warping path; I indexes the target, J the candidate
type coord struct {
	I, J int
}

// warp computes the dynamic time warping distance between x and y under a
// Sakoe-Chiba band of the given radius (|i-j| <= radius) and backtracks the
// optimal path from (0,0) to (len(x)-1, len(y)-1). Step cost is the absolute
// difference. The band is widened to |len(x)-len(y)| so the end cell stays
// reachable.
//
// Only the band is stored: (len(x)+1) * (2*radius+1) cells.
func warp(x, y []float64, radius int) (float64, []coord, error) {
	n, m := len(x), len(y)
	if n == 0 || m == 0 {
		return 0, nil, errors.InvalidInput("warping needs two non-empty sequences")
	}
	if radius < 1 {
		return 0, nil, errors.InvalidInput("warping radius must be at least 1")
	}
	if gap := n - m; gap > radius {
		radius = gap
	} else if -gap > radius {
		radius = -gap
	}

	width := 2*radius + 1
	acc := make([]float64, (n+1)*width)
	for k := range acc {
		acc[k] = math.Inf(1)
	}
	// cell returns the accumulated cost at (i, j) of the padded matrix
	cell := func(i, j int) float64 {
		if i < 0 || j < 0 || j > m || j-i > radius || i-j > radius {
			return math.Inf(1)
		}
		return acc[i*width+j-i+radius]
	}

	acc[radius] = 0
	for i := 1; i <= n; i++ {
		lo, hi := max(1, i-radius), min(m, i+radius)
		for j := lo; j <= hi; j++ {
			best := math.Min(cell(i-1, j-1), math.Min(cell(i-1, j), cell(i, j-1)))
			acc[i*width+j-i+radius] = math.Abs(x[i-1]-y[j-1]) + best
		}
	}

	distance := cell(n, m)
	if math.IsInf(distance, 0) || math.IsNaN(distance) {
		return distance, nil, errors.InvalidInput("no warping path within the band")
	}

	path := make([]coord, 0, n+m)
	i, j := n, m
	for i > 0 && j > 0 {
		path = append(path, coord{I: i - 1, J: j - 1})
		diag, up, left := cell(i-1, j-1), cell(i-1, j), cell(i, j-1)
		switch {
		case diag <= up && diag <= left:
			i--
			j--
		case up <= left:
			i--
		default:
			j--
		}
	}
	for a, b := 0, len(path)-1; a < b; a, b = a+1, b-1 {
		path[a], path[b] = path[b], path[a]
	}
	return distance, path, nil
}
