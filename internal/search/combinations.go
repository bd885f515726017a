package search

import "fmt"

// Combinations enumerates index combinations of sizes 1..maxOrder over k
// items: all singles, then all pairs, and so on, each size in lexicographic
// order.
func Combinations(k, maxOrder int) ([][]int, error) {
	if maxOrder < 1 || maxOrder > k {
		return nil, fmt.Errorf("%w: max order %d with %d predicates", ErrInvalidOptions, maxOrder, k)
	}

	var out [][]int
	for size := 1; size <= maxOrder; size++ {
		idx := make([]int, size)
		for i := range idx {
			idx[i] = i
		}
		for {
			combo := make([]int, size)
			copy(combo, idx)
			out = append(out, combo)

			// Advance the rightmost index that still has room.
			i := size - 1
			for i >= 0 && idx[i] == k-size+i {
				i--
			}
			if i < 0 {
				break
			}
			idx[i]++
			for j := i + 1; j < size; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
	return out, nil
}

// CountCombinations returns C(k,1)+...+C(k,maxOrder).
func CountCombinations(k, maxOrder int) int {
	total := 0
	c := 1
	for r := 1; r <= maxOrder && r <= k; r++ {
		c = c * (k - r + 1) / r
		total += c
	}
	return total
}
