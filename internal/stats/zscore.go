package stats

import "math"

// groupStats holds the whole-group moments for one comparison group.
type groupStats struct {
	n      int
	mean   float64
	stddev float64 // sample stddev (n-1)
}

func computeGroupStats(values []float64) groupStats {
	n := len(values)
	if n == 0 {
		return groupStats{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if n < 2 {
		return groupStats{n: n, mean: mean}
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return groupStats{n: n, mean: mean, stddev: math.Sqrt(ss / float64(n-1))}
}

// looScore returns the Z-score of values[i] against the mean and sample
// stddev of the remaining members. Scoring a member against a baseline that
// excludes it keeps a single gross outlier from inflating its own stddev and
// hiding below the threshold. When the remaining members are all identical
// (their stddev is 0) the whole-group stddev is used instead.
//
// The returned deviation is values[i] minus the leave-one-out mean.
func looScore(values []float64, i int, whole groupStats) (z, deviation float64) {
	n := len(values)
	if n < 3 {
		return 0, 0
	}
	var sum float64
	for j, v := range values {
		if j == i {
			continue
		}
		sum += v
	}
	mean := sum / float64(n-1)
	var ss float64
	for j, v := range values {
		if j == i {
			continue
		}
		d := v - mean
		ss += d * d
	}
	stddev := math.Sqrt(ss / float64(n-2))
	if stddev == 0 {
		stddev = whole.stddev
	}
	deviation = values[i] - mean
	if stddev == 0 {
		return 0, deviation
	}
	return deviation / stddev, deviation
}
