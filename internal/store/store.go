// Package store keeps the client-side copy of each record domain and
// funnels every create, read, update and delete through typed operations.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jwalitptl/hms/internal/client"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/notify"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/validator"
)

const (
	MsgBusy      = "A request is already in progress"
	MsgNoPatient = "Patient data not available. Please search again."
)

var (
	// ErrBusy is returned when a mutation is attempted while another one
	// on the same store has not finished.
	ErrBusy = errors.Conflict(MsgBusy)
	// ErrNoPatient is returned when a record needs a selected patient and
	// none has been looked up.
	ErrNoPatient = errors.BadRequest(MsgNoPatient, nil)
	// ErrStale is returned by a fetch whose response arrived after a newer
	// fetch or a Reset. Its page is not applied and a failure it carries is
	// not notified.
	ErrStale = stderrors.New("store: response superseded by a newer request")
)

// Backend is the remote side of one record domain.
type Backend[T model.Listable, D any, U any] interface {
	List(ctx context.Context, q model.ListQuery) (model.Page[T], error)
	Search(ctx context.Context, q model.ListQuery) (model.Page[T], error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, draft D) (*T, error)
	Update(ctx context.Context, id string, patch U) (*T, error)
	Delete(ctx context.Context, id string) error
}

// State is what a store holds: the last fetched page, the selected record,
// and the loading and error flags.
type State[T any] struct {
	Records    []T
	Pagination model.Pagination
	Selected   *T
	Loading    bool
	Err        string
}

// Result is the outcome of a mutation. Failures of every kind arrive as
// Success false with a message; Fields lists field-level complaints.
type Result[T any] struct {
	Success bool
	Data    *T
	Error   string
	Fields  []string
}

// Store holds one domain's records. It is safe for concurrent use; at most
// one mutation runs at a time.
type Store[T model.Listable, D any, U any] struct {
	label    string
	api      Backend[T, D, U]
	notifier notify.Notifier
	logger   *zap.Logger
	validate validator.Validator

	// prepare completes a draft from other application state before it is
	// validated.
	prepare func(*D) error

	mu       sync.Mutex
	state    State[T]
	fetchSeq uint64
	inflight int
	mutating bool
}

// New returns an empty store. label names the record kind in notices
// ("Lab record").
func New[T model.Listable, D any, U any](label string, api Backend[T, D, U], notifier notify.Notifier, logger *zap.Logger) *Store[T, D, U] {
	return &Store[T, D, U]{
		label:    label,
		api:      api,
		notifier: notifier,
		logger:   logger.With(zap.String("store", label)),
		validate: validator.New(),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store[T, D, U]) Snapshot() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	out.Records = append([]T(nil), s.state.Records...)
	if s.state.Selected != nil {
		sel := *s.state.Selected
		out.Selected = &sel
	}
	return out
}

// Reset empties the store.
func (s *Store[T, D, U]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchSeq++
	s.state = State[T]{Loading: s.inflight > 0}
}

// FetchPage loads one page. On failure the previous records stay in place.
func (s *Store[T, D, U]) FetchPage(ctx context.Context, q model.ListQuery) (model.Page[T], error) {
	return s.fetch(ctx, q, s.api.List)
}

// Search is FetchPage with query matched server-side against patient name
// and ID, doctor, test name and diagnosis.
func (s *Store[T, D, U]) Search(ctx context.Context, query string, filters model.ListQuery) (model.Page[T], error) {
	filters.Search = strings.TrimSpace(query)
	return s.fetch(ctx, filters, s.api.Search)
}

func (s *Store[T, D, U]) fetch(ctx context.Context, q model.ListQuery, call func(context.Context, model.ListQuery) (model.Page[T], error)) (model.Page[T], error) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.begin()
	s.mu.Unlock()

	page, err := call(ctx, q.Normalize())

	s.mu.Lock()
	s.end()
	if seq != s.fetchSeq {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale page", zap.Uint64("seq", seq), zap.Int("page", q.Page))
		if err != nil {
			return page, fmt.Errorf("%w: %w", ErrStale, err)
		}
		return page, ErrStale
	}
	if err != nil {
		s.mu.Unlock()
		s.fail(err)
		return page, err
	}
	s.state.Records = append([]T(nil), page.Records...)
	s.state.Pagination = page.Pagination
	s.mu.Unlock()
	return page, nil
}

// GetByID loads one record into the selected slot. It returns nil on any
// failure.
func (s *Store[T, D, U]) GetByID(ctx context.Context, id string) *T {
	s.mu.Lock()
	s.begin()
	s.mu.Unlock()

	rec, err := s.api.Get(ctx, id)
	if err == nil && rec == nil {
		err = errors.NotFound(s.label, nil)
	}

	s.mu.Lock()
	s.end()
	if err != nil {
		s.state.Selected = nil
		s.mu.Unlock()
		s.fail(err)
		return nil
	}
	s.state.Records, _ = replace(s.state.Records, *rec)
	sel := *rec
	s.state.Selected = &sel
	s.mu.Unlock()
	return rec
}

// Create validates draft, submits it and adds the new record to the
// collection. A record is never listed twice.
func (s *Store[T, D, U]) Create(ctx context.Context, draft D) Result[T] {
	if s.prepare != nil {
		if err := s.prepare(&draft); err != nil {
			return reject(s, err)
		}
	}
	if err := s.validate.Validate(draft); err != nil {
		return reject(s, err)
	}
	if !s.acquire() {
		return reject(s, ErrBusy)
	}

	rec, err := s.api.Create(ctx, draft)
	if err != nil {
		s.release()
		return reject(s, err)
	}

	s.mu.Lock()
	var added bool
	s.state.Records, added = upsert(s.state.Records, *rec)
	if added {
		s.adjustTotal(1)
	}
	s.mu.Unlock()
	s.release()

	s.logger.Debug("Record created", zap.String("id", (*rec).RecordID()))
	s.succeed(s.label + " created")
	return Result[T]{Success: true, Data: rec}
}

// Update submits a partial update and replaces the record in the collection
// and the selected slot.
func (s *Store[T, D, U]) Update(ctx context.Context, id string, patch U) Result[T] {
	if err := s.validate.Validate(patch); err != nil {
		return reject(s, err)
	}
	if !s.acquire() {
		return reject(s, ErrBusy)
	}

	rec, err := s.api.Update(ctx, id, patch)
	if err != nil {
		s.release()
		return reject(s, err)
	}

	s.mu.Lock()
	s.state.Records, _ = replace(s.state.Records, *rec)
	sel := *rec
	s.state.Selected = &sel
	s.mu.Unlock()
	s.release()

	s.succeed(s.label + " updated")
	return Result[T]{Success: true, Data: rec}
}

// Delete removes the record remotely and then locally. On failure the
// collection is left as it was.
func (s *Store[T, D, U]) Delete(ctx context.Context, id string) bool {
	if !s.acquire() {
		s.fail(ErrBusy)
		return false
	}

	if err := s.api.Delete(ctx, id); err != nil {
		s.release()
		s.fail(err)
		return false
	}

	s.mu.Lock()
	var removed bool
	s.state.Records, removed = remove(s.state.Records, id)
	if removed {
		s.adjustTotal(-1)
	}
	if s.state.Selected != nil && (*s.state.Selected).RecordID() == id {
		s.state.Selected = nil
	}
	s.mu.Unlock()
	s.release()

	s.succeed(s.label + " deleted")
	return true
}

// begin and end track in-flight calls. Callers hold mu.
func (s *Store[T, D, U]) begin() {
	s.inflight++
	s.state.Loading = true
	s.state.Err = ""
}

func (s *Store[T, D, U]) end() {
	s.inflight--
	s.state.Loading = s.inflight > 0
}

func (s *Store[T, D, U]) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutating {
		return false
	}
	s.mutating = true
	s.begin()
	return true
}

func (s *Store[T, D, U]) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutating = false
	s.end()
}

// adjustTotal keeps the envelope consistent after a local insert or
// removal. Callers hold mu.
func (s *Store[T, D, U]) adjustTotal(delta int) {
	p := s.state.Pagination
	if p.Limit == 0 {
		return
	}
	s.state.Pagination = model.NewPagination(p.CurrentPage, p.Limit, p.TotalRecords+delta)
}

// fail records err as the store error and shows it once.
func (s *Store[T, D, U]) fail(err error) string {
	msg := Message(err)

	s.mu.Lock()
	s.state.Err = msg
	s.mu.Unlock()

	s.logger.Debug("Store operation failed", zap.Error(err))
	s.notifier.Notify(notify.Notice{Level: notify.LevelError, Message: msg})
	return msg
}

func (s *Store[T, D, U]) succeed(msg string) {
	s.notifier.Notify(notify.Notice{Level: notify.LevelSuccess, Message: msg})
}

func reject[T model.Listable, D any, U any](s *Store[T, D, U], err error) Result[T] {
	return Result[T]{Error: s.fail(err), Fields: Fields(err)}
}

// Message is the user-facing text of err.
func Message(err error) string {
	var fields validator.Errors
	if stderrors.As(err, &fields) {
		return fields.Error()
	}
	if appErr, ok := errors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// Fields lists the field-level complaints carried by err, if any.
func Fields(err error) []string {
	var fields validator.Errors
	if stderrors.As(err, &fields) {
		return fields.Messages()
	}
	var apiErr *client.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Fields
	}
	if appErr, ok := errors.As(err); ok {
		return appErr.Fields
	}
	return nil
}

func upsert[T model.Listable](records []T, rec T) ([]T, bool) {
	if out, ok := replace(records, rec); ok {
		return out, false
	}
	return append(records, rec), true
}

func replace[T model.Listable](records []T, rec T) ([]T, bool) {
	for i := range records {
		if records[i].RecordID() == rec.RecordID() {
			records[i] = rec
			return records, true
		}
	}
	return records, false
}

func remove[T model.Listable](records []T, id string) ([]T, bool) {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if r.RecordID() != id {
			out = append(out, r)
		}
	}
	return out, len(out) != len(records)
}
