package shared

import "strconv"

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Page is a one-based page window for list endpoints.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

// NewPage normalises page number and size.
func NewPage(number, size int) Page {
	if number <= 0 {
		number = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return Page{Number: number, Size: size}
}

// ParsePage reads page and page_size query values, ignoring garbage.
func ParsePage(page, size string) Page {
	n, _ := strconv.Atoi(page)
	s, _ := strconv.Atoi(size)
	return NewPage(n, s)
}

// Limit returns the SQL LIMIT.
func (p Page) Limit() int { return p.Size }

// Offset returns the SQL OFFSET.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }
