package entity

// PaginationParams represents pagination request parameters
type PaginationParams struct {
	Page  int `json:"page" query:"page"`
	Limit int `json:"limit" query:"limit"`
}

// Page is one page of a listing. HasMore is set when another page exists.
type Page[T any] struct {
	Data    []T  `json:"data"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// Pagination constants
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1
	DefaultPage     = 1
)

// Validate validates and normalizes pagination parameters
func (p *PaginationParams) Validate() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}

	if p.Limit < MinPageSize {
		p.Limit = DefaultPageSize
	} else if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
}

// CalculateOffset calculates the database offset from page and limit
func (p *PaginationParams) CalculateOffset() int {
	return (p.Page - 1) * p.Limit
}

// NewPage builds a page from items fetched with a limit of p.Limit+1
func NewPage[T any](p PaginationParams, items []T) Page[T] {
	page := Page[T]{Data: items, Page: p.Page, Limit: p.Limit}
	if len(items) > p.Limit {
		page.Data = items[:p.Limit]
		page.HasMore = true
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	return page
}
