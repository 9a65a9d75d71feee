package listview

import "github.com/jwalitptl/hms/internal/model"

// WindowSize is the most page numbers shown at once.
const WindowSize = 5

// PageWindow returns the page numbers to show around current.
func PageWindow(current, total int) []int {
	if total < 1 {
		return nil
	}

	start, end := 1, total
	switch {
	case total <= WindowSize:
	case current <= 3:
		end = WindowSize
	case current >= total-2:
		start = total - WindowSize + 1
	default:
		start, end = current-2, current+2
	}

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Nav is the state of the first/previous/pages/next/last controls.
type Nav struct {
	Current int
	Total   int
	Pages   []int
	First   bool
	Prev    bool
	Next    bool
	Last    bool
}

// NewNav derives the navigation controls from an envelope.
func NewNav(p model.Pagination) Nav {
	back := p.CurrentPage > 1
	forward := p.CurrentPage < p.TotalPages
	return Nav{
		Current: p.CurrentPage,
		Total:   p.TotalPages,
		Pages:   PageWindow(p.CurrentPage, p.TotalPages),
		First:   back,
		Prev:    back,
		Next:    forward,
		Last:    forward,
	}
}
