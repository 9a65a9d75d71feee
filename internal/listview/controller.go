// Package listview drives a paginated, searchable list of records: it
// loads pages from a store, filters the loaded page locally, and derives
// counters, exports and printable reports from what is shown.
package listview

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/store"
)

// Fetcher loads one page of records.
type Fetcher[T model.Listable] interface {
	FetchPage(ctx context.Context, q model.ListQuery) (model.Page[T], error)
}

// View is a snapshot of a controller.
type View[T model.Listable] struct {
	Records    []T
	Filtered   []T
	Pagination model.Pagination
	Loading    bool
	Err        string
	Search     string
	Date       string
}

// Controller is one list view. Only the response to the most recently
// issued load may change what it shows.
type Controller[T model.Listable] struct {
	fetcher Fetcher[T]
	limit   int
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.Mutex
	seq        uint64
	query      model.ListQuery
	records    []T
	pagination model.Pagination
	loading    bool
	err        string
	search     string
	date       string
}

// New returns an idle controller loading limit records per page.
func New[T model.Listable](fetcher Fetcher[T], limit int, logger *zap.Logger) *Controller[T] {
	if limit <= 0 {
		limit = model.DefaultPageSize
	}
	return &Controller[T]{
		fetcher: fetcher,
		limit:   limit,
		logger:  logger,
		now:     time.Now,
	}
}

// LoadPage requests page n. A failure leaves the current page on screen.
// A page the fetcher reports as stale is never shown.
func (c *Controller[T]) LoadPage(ctx context.Context, n int) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	q := c.query
	q.Page = n
	q.Limit = c.limit
	c.loading = true
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.Debug("Dropping superseded page", zap.Int("page", n), zap.Uint64("seq", seq))
		return nil
	}
	c.loading = false
	if stderrors.Is(err, store.ErrStale) {
		c.logger.Debug("Dropping stale page", zap.Int("page", n))
		return nil
	}
	if err != nil {
		c.err = store.Message(err)
		return err
	}
	c.err = ""
	c.records = page.Records
	c.pagination = page.Pagination
	return nil
}

// ChangePage loads page n unless it lies outside [1, totalPages].
func (c *Controller[T]) ChangePage(ctx context.Context, n int) error {
	c.mu.Lock()
	total := c.pagination.TotalPages
	c.mu.Unlock()

	if n < 1 || n > total {
		return nil
	}
	return c.LoadPage(ctx, n)
}

// Reload fetches the current page again.
func (c *Controller[T]) Reload(ctx context.Context) error {
	c.mu.Lock()
	n := c.pagination.CurrentPage
	c.mu.Unlock()
	if n < 1 {
		n = 1
	}
	return c.LoadPage(ctx, n)
}

// SetSearch filters the loaded page by text. No request is made.
func (c *Controller[T]) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = text
}

// SetDate filters the loaded page by ISO date (YYYY-MM-DD). No request is
// made.
func (c *Controller[T]) SetDate(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.date = strings.TrimSpace(date)
}

// SubmitSearch runs text against the whole dataset on the server and shows
// the first page of matches. The local text filter is cleared.
func (c *Controller[T]) SubmitSearch(ctx context.Context, text string) error {
	c.mu.Lock()
	c.query.Search = strings.TrimSpace(text)
	c.search = ""
	c.mu.Unlock()
	return c.LoadPage(ctx, 1)
}

// SetFilters replaces the server-side status, priority, category and date
// filters and reloads from page one.
func (c *Controller[T]) SetFilters(ctx context.Context, filters model.ListQuery) error {
	c.mu.Lock()
	search := c.query.Search
	c.query = filters
	c.query.Search = search
	c.mu.Unlock()
	return c.LoadPage(ctx, 1)
}

// SetQuery replaces the server-side search and filters without loading.
func (c *Controller[T]) SetQuery(q model.ListQuery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
}

// View returns what the controller currently shows.
func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View[T]{
		Records:    append([]T(nil), c.records...),
		Filtered:   c.filtered(),
		Pagination: c.pagination,
		Loading:    c.loading,
		Err:        c.err,
		Search:     c.search,
		Date:       c.date,
	}
}

// Filtered is the loaded page narrowed by the text and date filters.
func (c *Controller[T]) Filtered() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filtered()
}

// Nav returns the navigation controls for the current page.
func (c *Controller[T]) Nav() Nav {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewNav(c.pagination)
}

func (c *Controller[T]) filtered() []T {
	term := strings.ToLower(strings.TrimSpace(c.search))
	out := make([]T, 0, len(c.records))
	for _, r := range c.records {
		if c.date != "" && !strings.HasPrefix(r.DateKey(), c.date) {
			continue
		}
		if term != "" && !matches(term, r.SearchFields()) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(term string, fields []string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Stats are counters over the loaded page only. TotalRecords comes from
// the envelope and covers the whole dataset.
type Stats struct {
	Today        int
	Patients     int
	ByStatus     map[string]int
	Shown        int
	TotalRecords int
}

// Stats counts the loaded page against the local calendar date.
func (c *Controller[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := model.ISODate(c.now())
	patients := map[string]struct{}{}
	stats := Stats{
		ByStatus:     map[string]int{},
		Shown:        len(c.records),
		TotalRecords: c.pagination.TotalRecords,
	}
	for _, r := range c.records {
		if strings.HasPrefix(r.DateKey(), today) {
			stats.Today++
		}
		if key := r.PatientKey(); key != "" {
			patients[key] = struct{}{}
		}
		stats.ByStatus[r.StatusLabel()]++
	}
	stats.Patients = len(patients)
	return stats
}
