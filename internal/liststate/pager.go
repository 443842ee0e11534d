package liststate

// PageCount is ceil(total / size), zero for an empty list.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// RowNumber is the 1-based ordinal of the in-page row i.
func RowNumber(i int, p Pagination) int {
	return i + 1 + p.PageIndex*p.PageSize
}

// CanPrev reports whether "first" and "previous" are enabled.
func CanPrev(p Pagination) bool {
	return p.PageIndex > 0
}

// CanNext reports whether "next" and "last" are enabled.
func CanNext(p Pagination, pageCount int) bool {
	return p.PageIndex < pageCount-1
}
