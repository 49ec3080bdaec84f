package scheduler

import (
	"math/rand/v2"
	"sort"
)

// SamplePositions picks min(poolSize, maxCount) distinct 1-based positions
// from [1, poolSize] uniformly at random. Positions come back sorted so the
// pool query can fetch them in one pass.
func SamplePositions(r *rand.Rand, poolSize, maxCount int) []int {
	if poolSize <= 0 || maxCount <= 0 {
		return nil
	}
	n := min(poolSize, maxCount)
	if n == poolSize {
		all := make([]int, poolSize)
		for i := range all {
			all[i] = i + 1
		}
		return all
	}

	// Floyd's algorithm: n draws, no allocation proportional to poolSize.
	chosen := make(map[int]struct{}, n)
	out := make([]int, 0, n)
	for j := poolSize - n + 1; j <= poolSize; j++ {
		t := r.IntN(j) + 1
		if _, dup := chosen[t]; dup {
			t = j
		}
		chosen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}
