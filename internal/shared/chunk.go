// Package shared provides small pure helpers used by several layers.
package shared

// Chunk splits items into consecutive slices of at most size elements,
// preserving order. The last chunk may be shorter. A size <= 0 yields a
// single chunk with everything, so callers cannot accidentally loop forever.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
