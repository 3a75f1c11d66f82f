// Package source ships ready-made page loaders that plug straight into
// listing.Config.Loader: a fixed in-memory collection, a SQLite table, a
// ranked word index and a watched line file.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/bastiangx/relist/internal/utils"
)

// Static serves pages out of a fixed in-memory collection, matching the
// query with case-folded substring containment against the extracted
// fields. SetDelay and SetErr script slow and failing backends for demos
// and tests.
type Static[T any] struct {
	mu     sync.Mutex
	items  []T
	fields func(T) []string
	delay  time.Duration
	err    error
}

func NewStatic[T any](items []T, fields func(T) []string) *Static[T] {
	s := &Static[T]{fields: fields}
	s.SetItems(items)
	return s
}

func (s *Static[T]) SetItems(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]T(nil), items...)
}

// SetDelay makes every Load sleep before answering.
func (s *Static[T]) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetErr makes every Load fail with err until reset with nil.
func (s *Static[T]) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Load implements the listing loader contract.
func (s *Static[T]) Load(ctx context.Context, query string, page, pageSize int) ([]T, error) {
	s.mu.Lock()
	items := s.items
	fields := s.fields
	delay := s.delay
	err := s.err
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	var matched []T
	for _, item := range items {
		if query == "" || s.matches(fields, item, query) {
			matched = append(matched, item)
		}
	}
	return Page(matched, page, pageSize), nil
}

func (s *Static[T]) matches(fields func(T) []string, item T, query string) bool {
	if fields == nil {
		return false
	}
	for _, f := range fields(item) {
		if utils.ContainsFold(f, query) {
			return true
		}
	}
	return false
}

// Page slices one zero-based page out of a matched sequence, the same
// LIMIT/OFFSET discipline every loader here uses.
func Page[T any](matched []T, page, pageSize int) []T {
	if page < 0 || pageSize <= 0 {
		return nil
	}
	start := page * pageSize
	if start >= len(matched) {
		return nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]T, end-start)
	copy(out, matched[start:end])
	return out
}
