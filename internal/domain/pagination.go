package domain

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PageRequest carries limit/offset pagination parameters.
type PageRequest struct {
	MaxResults int
	Page       int
}

// Limit returns the effective page size, clamped to [1, maxPageSize].
func (p PageRequest) Limit() int {
	if p.MaxResults <= 0 {
		return defaultPageSize
	}
	if p.MaxResults > maxPageSize {
		return maxPageSize
	}
	return p.MaxResults
}

// Offset returns the row offset for the requested page.
func (p PageRequest) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return p.Page * p.Limit()
}
