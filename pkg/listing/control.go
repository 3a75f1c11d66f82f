package listing

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/relist/internal/logger"
)

// Controller owns the collection, query, filter, sort, pagination and
// selection state and exposes the current visible list to subscribers.
// Items must be comparable so selection can track them by value.
//
// All state transitions are serialized by a single mutex; subscriber
// callbacks run synchronously after a mutation but outside the critical
// section, so they may call back into the controller freely.
type Controller[T comparable] struct {
	cfg Config[T]

	mu          sync.Mutex
	items       []T
	visible     []T
	query       string
	searched    bool
	filters     map[string]Predicate[T]
	filterGen   uint64
	sortBy      Comparator[T]
	page        int
	hasMore     bool
	loading     bool
	loadingMore bool
	err         error
	selected    map[T]struct{}
	disposed    bool

	// token makes the most recently dispatched fetch the only one whose
	// completion is ever applied.
	token uint64

	// timer is the single pending debounce handle; timerSeq invalidates
	// callbacks from timers that lost a Stop race.
	timer    *time.Timer
	timerSeq uint64

	subs   map[uint64]func()
	subSeq uint64

	cache *pageCache[T]

	ctx    context.Context
	cancel context.CancelFunc

	log *log.Logger
}

// New validates the config and builds a Controller. Zero Debounce and
// PageSize fall back to the defaults; everything else is taken as given,
// so a zero CacheSize really does disable caching.
func New[T comparable](cfg Config[T]) (*Controller[T], error) {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller[T]{
		cfg:      cfg,
		filters:  make(map[string]Predicate[T]),
		selected: make(map[T]struct{}),
		subs:     make(map[uint64]func()),
		cache:    newPageCache[T](cfg.CacheSize, cfg.Logger),
		hasMore:  true,
		ctx:      ctx,
		cancel:   cancel,
		log:      cfg.Logger,
	}, nil
}

// Subscribe registers a change listener and returns its unsubscribe
// function. Listeners are invoked after every visible state change.
func (c *Controller[T]) Subscribe(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || fn == nil {
		return func() {}
	}
	c.subSeq++
	id := c.subSeq
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller[T]) notify() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Dispose tears the controller down: the pending debounce timer and the
// loader context are cancelled, selection, cache and subscribers are
// cleared, and every public method becomes an inert no-op. Idempotent,
// and deliberately silent: disposal itself never notifies.
func (c *Controller[T]) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.timerSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.selected = make(map[T]struct{})
	c.subs = make(map[uint64]func())
	c.cache.clear()
	c.mu.Unlock()

	c.cancel()
}

// Items returns a copy of the currently visible list.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.visible...)
}

// AllItems returns a copy of the full local collection, ignoring any
// search, filter or sort.
func (c *Controller[T]) AllItems() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func (c *Controller[T]) SearchQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// HasSearched reports whether a non-empty query is currently applied.
func (c *Controller[T]) HasSearched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searched
}

func (c *Controller[T]) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller[T]) IsLoadingMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingMore
}

// Err returns the last loader failure, or nil. A failed fetch leaves the
// previously visible list untouched, so callers can show stale data next
// to the error.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller[T]) HasMorePages() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// ActiveFilters returns a copy of the filter map.
func (c *Controller[T]) ActiveFilters() map[string]Predicate[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Predicate[T], len(c.filters))
	for k, v := range c.filters {
		out[k] = v
	}
	return out
}

func (c *Controller[T]) SortComparator() Comparator[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortBy
}

// SelectedItems returns the selection as an unordered snapshot.
func (c *Controller[T]) SelectedItems() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, 0, len(c.selected))
	for item := range c.selected {
		out = append(out, item)
	}
	return out
}

func (c *Controller[T]) IsSelected(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[item]
	return ok
}

func (c *Controller[T]) SelectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selected)
}

func (c *Controller[T]) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// CacheLen reports how many fetched pages are currently cached.
func (c *Controller[T]) CacheLen() int {
	return c.cache.size()
}
