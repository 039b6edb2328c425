// Package flow holds the small work-shaping utilities shared by the
// crawler stages: interleaving work items across routing keys so no
// single shard absorbs a burst, and batching slices for bounded
// concurrent fetches.
package flow

// Spread interleaves items round-robin across the buckets produced by
// keyFn until every bucket is drained. Relative order within a bucket
// is preserved.
func Spread[T any, K comparable](items []T, keyFn func(T) K) []T {
	buckets := make(map[K][]T)
	var order []K
	for _, it := range items {
		k := keyFn(it)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], it)
	}

	out := make([]T, 0, len(items))
	for len(out) < len(items) {
		for _, k := range order {
			if b := buckets[k]; len(b) > 0 {
				out = append(out, b[0])
				buckets[k] = b[1:]
			}
		}
	}
	return out
}

// Chunk yields consecutive n-sized batches; the last batch may be
// smaller. n must be positive.
func Chunk[T any](items []T, n int) [][]T {
	if n <= 0 {
		panic("flow: chunk size must be positive")
	}
	var out [][]T
	for start := 0; start < len(items); start += n {
		end := start + n
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
