package model

// DefaultPageSize is used when a list request does not carry a limit.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination is the envelope returned with every paginated list
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalRecords int `json:"totalRecords"`
	Limit        int `json:"limit"`
}

// NewPagination builds an envelope with totalPages == ceil(total/limit) and
// currentPage clamped into [1, totalPages] whenever there is at least one page.
func NewPagination(page, limit, total int) Pagination {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + limit - 1) / limit

	if page < 1 {
		page = 1
	}
	if totalPages >= 1 && page > totalPages {
		page = totalPages
	}

	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalRecords: total,
		Limit:        limit,
	}
}

// Offset returns the zero-based index of the first record on the current page.
func (p Pagination) Offset() int {
	if p.CurrentPage < 1 {
		return 0
	}
	return (p.CurrentPage - 1) * p.Limit
}

// Page is one page of records together with its pagination envelope
type Page[T any] struct {
	Records    []T        `json:"records"`
	Pagination Pagination `json:"pagination"`
}

// ListQuery carries paging and filter parameters for list and search requests
type ListQuery struct {
	Page     int    `json:"page" form:"page"`
	Limit    int    `json:"limit" form:"limit"`
	Search   string `json:"search" form:"search"`
	Status   string `json:"status" form:"status"`
	Priority string `json:"priority" form:"priority"`
	Category string `json:"category" form:"category"`
	Date     string `json:"date" form:"date" binding:"omitempty,datetime=2006-01-02"`
	Role     string `json:"role" form:"role"`
	WalkIn   *bool  `json:"walkIn" form:"walkIn"`
}

// Normalize fills defaults and caps the page size.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}
