// Package batch provides helpers for partitioning slices into bounded groups.
package batch

// Chunk splits items into consecutive groups of at most size elements.
// The last group may be shorter. A size <= 0 yields a single group with
// all items, which keeps callers from accidentally looping forever on a
// misconfigured limit.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}
