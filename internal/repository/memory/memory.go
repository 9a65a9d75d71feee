// Package memory provides in-process repositories for tests and local runs.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hms/internal/model"
)

// table is a mutex-guarded map of records keyed by ID.
type table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: map[string]T{}}
}

func (t *table[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[id]
	return v, ok
}

func (t *table[T]) put(id string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[id] = v
}

func (t *table[T]) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	return true
}

// snapshot returns the values matching keep, newest first.
func (t *table[T]) snapshot(keep func(T) bool, created func(T) time.Time) []T {
	t.mu.RLock()
	out := make([]T, 0, len(t.items))
	for _, v := range t.items {
		if keep(v) {
			out = append(out, v)
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return created(out[i]).After(created(out[j]))
	})
	return out
}

func stamp(b *model.Base, now time.Time) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
}

func contains(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// matchRecord applies the filters shared by lab and x-ray lists.
func matchRecord(q model.ListQuery, dateKey, status, priority, category string, search ...string) bool {
	if q.Status != "" && q.Status != status {
		return false
	}
	if q.Priority != "" && q.Priority != priority {
		return false
	}
	if q.Category != "" && q.Category != category {
		return false
	}
	if q.Date != "" && !strings.HasPrefix(dateKey, q.Date) {
		return false
	}
	return contains(q.Search, search...)
}

func paginate[T any](items []T, q model.ListQuery) ([]T, int) {
	q = q.Normalize()
	p := model.NewPagination(q.Page, q.Limit, len(items))
	start := p.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], len(items)
}
