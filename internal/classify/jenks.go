package classify

import (
	"math"
	"sort"
)

// naturalBreaks returns the upper bound of each class of the optimal
// k-partition of values. Values are collapsed to weighted distinct values
// first; with fewer than k distinct values every distinct value is its own
// class.
func naturalBreaks(values []float64, k int) []float64 {
	if len(values) == 0 {
		return nil
	}
	v, w := distinct(values)
	if len(v) <= k {
		return v
	}

	ends := jenks(v, w, k)
	bounds := make([]float64, k)
	for c, end := range ends {
		bounds[c] = v[end]
	}
	return bounds
}

// distinct sorts values and returns the distinct values with their counts.
func distinct(values []float64) ([]float64, []float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var v, w []float64
	for _, x := range sorted {
		if n := len(v); n > 0 && v[n-1] == x {
			w[n-1]++
			continue
		}
		v = append(v, x)
		w = append(w, 1)
	}
	return v, w
}

// jenks solves the weighted Fisher-Jenks problem exactly and returns the
// inclusive end index of each class. len(v) must be at least k.
//
// cost[c][j] is the least squared deviation of v[0..j] split into c+1
// classes. The optimal start of the last class is monotone in j, so each
// row is filled by divide and conquer in O(m log m).
func jenks(v, w []float64, k int) []int {
	m := len(v)
	sw := make([]float64, m+1)
	sx := make([]float64, m+1)
	sxx := make([]float64, m+1)
	for i := range v {
		sw[i+1] = sw[i] + w[i]
		sx[i+1] = sx[i] + w[i]*v[i]
		sxx[i+1] = sxx[i] + w[i]*v[i]*v[i]
	}
	// ssd is the weighted squared deviation of v[i..j] from its mean.
	ssd := func(i, j int) float64 {
		n := sw[j+1] - sw[i]
		s := sx[j+1] - sx[i]
		d := sxx[j+1] - sxx[i] - s*s/n
		if d < 0 {
			return 0
		}
		return d
	}

	prev := make([]float64, m)
	for j := range prev {
		prev[j] = ssd(0, j)
	}

	split := make([][]int, k)
	for c := 1; c < k; c++ {
		cur := make([]float64, m)
		start := make([]int, m)

		var solve func(lo, hi, optLo, optHi int)
		solve = func(lo, hi, optLo, optHi int) {
			if lo > hi {
				return
			}
			mid := (lo + hi) / 2
			best, bestI := math.Inf(1), -1
			for i := max(c, optLo); i <= min(mid, optHi); i++ {
				if d := prev[i-1] + ssd(i, mid); d < best {
					best, bestI = d, i
				}
			}
			cur[mid], start[mid] = best, bestI
			solve(lo, mid-1, optLo, bestI)
			solve(mid+1, hi, bestI, optHi)
		}
		solve(c, m-1, c, m-1)

		prev, split[c] = cur, start
	}

	ends := make([]int, k)
	j := m - 1
	for c := k - 1; c >= 1; c-- {
		ends[c] = j
		j = split[c][j] - 1
	}
	ends[0] = j
	return ends
}
