package scoring

import (
	"math"
	"sort"
)

// percentileRanks returns average-method percentile ranks in (0,1]:
// each value gets rank/n where tied values share the mean of their
// 1-based positions. NaN inputs are treated as 0 before ranking, so a
// missing indicator lands in the middle of the zeros rather than
// poisoning the column.
func percentileRanks(values []float64) []float64 {
	n := len(values)
	ranks := make([]float64, n)
	if n == 0 {
		return ranks
	}

	clean := make([]float64, n)
	for i, v := range values {
		if math.IsNaN(v) {
			clean[i] = 0
		} else {
			clean[i] = v
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return clean[idx[a]] < clean[idx[b]]
	})

	i := 0
	for i < n {
		j := i
		for j+1 < n && clean[idx[j+1]] == clean[idx[i]] {
			j++
		}
		// Positions i..j (0-based) are tied; mean 1-based rank.
		meanRank := float64(i+j+2) / 2.0
		pct := meanRank / float64(n)
		for k := i; k <= j; k++ {
			ranks[idx[k]] = pct
		}
		i = j + 1
	}

	return ranks
}
