package domain

import "sort"

// GroupCount is one bucket of an aggregate.
type GroupCount struct {
	Label string
	Count int64
}

// SortGroupCounts orders buckets by count descending, then label ascending.
func SortGroupCounts(groups []GroupCount) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Label < groups[j].Label
	})
}

// SumGroupCounts returns the total across buckets.
func SumGroupCounts(groups []GroupCount) int64 {
	var total int64
	for _, g := range groups {
		total += g.Count
	}
	return total
}
