package pipeline

// Range is the half-open index range [Start, End) owned by one worker.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

// Partition splits n records into workers contiguous ranges of floor(n/workers)
// indices each, with the last range absorbing the remainder. The ranges are
// disjoint and together cover [0, n) exactly once. A worker count below 1 is
// treated as 1.
func Partition(n, workers int) []Range {
	workers = max(workers, 1)
	n = max(n, 0)
	size := n / workers

	ranges := make([]Range, workers)
	for i := range ranges {
		ranges[i] = Range{Start: i * size, End: (i + 1) * size}
	}
	ranges[workers-1].End = n
	return ranges
}
