package feed

// Page is one page of an ordered result set
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNumber    int   `json:"page_number"`
	PageSize      int   `json:"page_size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// NewPage builds a page and derives the page count and first/last flags
// from total.
func NewPage[T any](content []T, page, size int, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{
		Content:       content,
		PageNumber:    page,
		PageSize:      size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         page == 0,
		Last:          page+1 >= totalPages,
	}
}

// EmptyPage returns a page with no content that is both first and last
func EmptyPage[T any](page, size int) Page[T] {
	p := NewPage[T](nil, page, size, 0)
	p.First = true
	return p
}

// WithContent returns a page with the same paging metadata and new content.
func WithContent[T, U any](p Page[T], content []U) Page[U] {
	if content == nil {
		content = []U{}
	}
	return Page[U]{
		Content:       content,
		PageNumber:    p.PageNumber,
		PageSize:      p.PageSize,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		First:         p.First,
		Last:          p.Last,
	}
}
