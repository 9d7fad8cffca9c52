package models

// MaxPage is the highest page number a listing serves. Larger requests are
// answered as this page, which keeps row offsets from overflowing.
const MaxPage = 1_000_000

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// NewPage builds the pagination metadata for items taken from page of a
// listing with total rows.
func NewPage[T any](items []T, page, perPage, total int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	page = ClampPage(page)
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	p := &Page[T]{
		Data:        items,
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    last,
	}
	if len(items) > 0 {
		p.From = (page-1)*perPage + 1
		p.To = p.From + len(items) - 1
	}
	return p
}

// HasMore reports whether a later page exists.
func (p *Page[T]) HasMore() bool {
	return p.CurrentPage < p.LastPage
}

// ClampPage limits page to the range 1..MaxPage.
func ClampPage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}

// Offset converts a 1-based page number into a row offset.
func Offset(page, perPage int) int {
	return (ClampPage(page) - 1) * perPage
}
