package shared

// MaxPageSize caps every list query
const MaxPageSize = 100

// Filter holds the paging, ordering and free-text search of a list query.
// Entity filters embed it and add their own criteria.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter is page 1 of 20, newest first
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithPage applies the positive values of page and pageSize, capping the
// page size at MaxPageSize
func (f Filter) WithPage(page, pageSize int) Filter {
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = min(pageSize, MaxPageSize)
	}
	return f
}

// WithOrder applies a non-empty sort field and direction. Repositories check
// both against their own whitelist.
func (f Filter) WithOrder(by, dir string) Filter {
	if by != "" {
		f.OrderBy = by
	}
	if dir != "" {
		f.OrderDir = dir
	}
	return f
}

// Offset returns the row offset for the filter's page
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// TotalPages is the number of pages needed for total rows
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
