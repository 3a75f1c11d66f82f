// Package listing is the core, providing the reactive controller that keeps a
// searched, filtered, sorted, paginated and selectable view over a local
// collection or a remote loader, and notifies subscribers on every visible
// change.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Loader fetches one page of results for a query. Pages are zero based.
// Loaders may be called with queries that are already superseded; the
// controller discards stale results, so a loader only has to be idempotent,
// not cancellation aware.
type Loader[T any] func(ctx context.Context, query string, page, pageSize int) ([]T, error)

// Comparator imposes a total order on items: negative when a sorts before b,
// positive when after, zero when equal.
type Comparator[T any] func(a, b T) int

// Predicate reports whether an item passes a filter.
type Predicate[T any] func(item T) bool

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultPageSize       = 20
	DefaultCacheSize      = 100
	DefaultFuzzyThreshold = 0.3
)

// Config carries the static construction options for a Controller.
// At least one of SearchFields and Loader must be set: SearchFields drives
// local matching, a Loader routes every search through async fetches.
type Config[T any] struct {
	// SearchFields extracts the text fields an item is matched against.
	SearchFields func(item T) []string

	// Loader, when set, serves every dispatch remotely.
	Loader Loader[T]

	// Debounce is the quiet period Search waits for. Zero means the
	// default of 300ms; SearchImmediate always bypasses it.
	Debounce time.Duration

	// CaseSensitive disables case folding in local matching.
	CaseSensitive bool

	// MinQueryLength rejects shorter non-empty queries as no-ops.
	MinQueryLength int

	// PageSize is the fetch window; a full page means more may follow.
	PageSize int

	// CacheSize bounds the fetched-page cache. Zero disables caching.
	CacheSize int

	// Fuzzy switches local matching from substring containment to the
	// scored three-phase matcher, keeping scores >= FuzzyThreshold.
	Fuzzy          bool
	FuzzyThreshold float64

	// Logger receives debug lines for dispatch, discard and eviction
	// decisions. Nil stays quiet.
	Logger *log.Logger
}

// DefaultConfig returns the documented defaults. Callers set SearchFields
// and/or Loader on the result and hand it to New.
func DefaultConfig[T any]() Config[T] {
	return Config[T]{
		Debounce:       DefaultDebounce,
		PageSize:       DefaultPageSize,
		CacheSize:      DefaultCacheSize,
		FuzzyThreshold: DefaultFuzzyThreshold,
	}
}

func (c *Config[T]) validate() error {
	if c.SearchFields == nil && c.Loader == nil {
		return errors.New("either SearchFields or Loader must be set")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("negative debounce %v", c.Debounce)
	}
	if c.MinQueryLength < 0 {
		return fmt.Errorf("negative min query length %d", c.MinQueryLength)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("negative page size %d", c.PageSize)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("negative cache size %d", c.CacheSize)
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold %v outside [0, 1]", c.FuzzyThreshold)
	}
	return nil
}
