// Package paging slices ordered results into fixed-size pages.
package paging

// DefaultPageSize matches the number of cards shown per collection page.
const DefaultPageSize = 30

// TotalPages is ceil(n/size). It is zero for an empty sequence.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// DisplayPages is TotalPages clamped to at least one, for page counters.
func DisplayPages(n, size int) int {
	return max(TotalPages(n, size), 1)
}

// Clamp snaps page into [1, totalPages]; with no pages it returns 1.
func Clamp(page, totalPages int) int {
	if totalPages <= 0 {
		return 1
	}
	return min(max(page, 1), totalPages)
}

// Window returns items[(page-1)*size : page*size], bounded by len(items).
func Window[T any](items []T, size, page int) []T {
	if size <= 0 || page < 1 {
		return []T{}
	}
	offset := (page - 1) * size
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+size, len(items))
	return items[offset:end]
}
