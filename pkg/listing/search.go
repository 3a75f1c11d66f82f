package listing

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/relist/internal/utils"
	"github.com/bastiangx/relist/pkg/match"
)

// SetItems replaces the local collection and recomputes the visible list
// synchronously through the filter, search and sort pipeline.
func (c *Controller[T]) SetItems(items []T) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.items = append([]T(nil), items...)
	c.recomputeLocked()
	c.mu.Unlock()

	c.notify()
}

// Search schedules a debounced search. Every call restarts the single
// pending timer, so only the last query of a burst is executed.
func (c *Controller[T]) Search(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.timerSeq++
	seq := c.timerSeq
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.Debounce, func() {
		c.debounceFire(seq, query)
	})
}

func (c *Controller[T]) debounceFire(seq uint64, query string) {
	c.mu.Lock()
	if c.disposed || seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	changed := c.performSearchLocked(query)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// SearchImmediate cancels any pending debounce timer and runs the search
// right away.
func (c *Controller[T]) SearchImmediate(query string) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.timerSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	changed := c.performSearchLocked(query)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// performSearchLocked is the single funnel every search path goes through.
// It reports whether state changed and a notification is due.
func (c *Controller[T]) performSearchLocked(query string) bool {
	if query != "" && utf8.RuneCountInString(query) < c.cfg.MinQueryLength {
		return false
	}
	c.query = query
	c.searched = query != ""
	c.page = 0
	c.hasMore = true
	c.err = nil

	if c.cfg.Loader == nil {
		c.recomputeLocked()
		return true
	}
	c.dispatchLocked(0, false)
	return true
}

// dispatchLocked starts an async fetch for one page. The token bump makes
// this dispatch the only one whose completion will be applied; a cache hit
// applies synchronously and skips the loader entirely.
func (c *Controller[T]) dispatchLocked(page int, appendPage bool) {
	c.token++
	token := c.token

	key := cacheKey{
		query:     c.query,
		page:      page,
		filterSig: filterSignature(c.filters),
		filterGen: c.filterGen,
	}
	if items, ok := c.cache.get(key); ok {
		c.log.Debugf("Cache hit for query %q page %d", c.query, page)
		c.applyPageLocked(items, page, appendPage)
		return
	}

	if appendPage {
		c.loadingMore = true
	} else {
		c.loading = true
	}
	c.log.Debugf("Dispatching fetch %d for query %q page %d", token, c.query, page)

	query := c.query
	size := c.cfg.PageSize
	go c.fetch(token, key, query, page, size, appendPage)
}

func (c *Controller[T]) fetch(token uint64, key cacheKey, query string, page, size int, appendPage bool) {
	items, err := c.cfg.Loader(c.ctx, query, page, size)

	c.mu.Lock()
	if c.disposed || token != c.token {
		c.mu.Unlock()
		c.log.Debugf("Discarding superseded fetch %d for query %q page %d", token, query, page)
		return
	}
	if err != nil {
		c.err = err
		if appendPage {
			c.loadingMore = false
		} else {
			c.loading = false
		}
		c.mu.Unlock()
		c.log.Errorf("Loader failed for query %q page %d: %v", query, page, err)
		c.notify()
		return
	}

	c.cache.put(key, items)
	c.applyPageLocked(items, page, appendPage)
	if appendPage {
		c.loadingMore = false
	} else {
		c.loading = false
	}
	c.mu.Unlock()

	c.notify()
}

// applyPageLocked merges one fetched page into the visible list. An empty
// appended page only drops hasMore; a full page means more may follow.
func (c *Controller[T]) applyPageLocked(items []T, page int, appendPage bool) {
	if appendPage && len(items) == 0 {
		c.hasMore = false
		return
	}
	if appendPage {
		c.visible = append(c.visible, items...)
	} else {
		c.visible = items
	}
	c.page = page
	c.hasMore = len(items) == c.cfg.PageSize
}

// LoadMore fetches the next page and appends it to the visible list.
// No-op while a load-more is in flight, without a loader, or once the
// source is exhausted.
func (c *Controller[T]) LoadMore() {
	c.mu.Lock()
	if c.disposed || c.loadingMore || c.cfg.Loader == nil || !c.hasMore {
		c.mu.Unlock()
		return
	}
	c.dispatchLocked(c.page+1, true)
	c.mu.Unlock()

	c.notify()
}

// Refresh drops every cached page, resets pagination and re-runs the
// current search.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.cache.clear()
	changed := c.performSearchLocked(c.query)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Retry clears the error and re-dispatches the current query at the
// current page, leaving pagination counters and cache alone.
func (c *Controller[T]) Retry() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.err = nil
	if c.cfg.Loader == nil {
		c.recomputeLocked()
	} else {
		c.dispatchLocked(c.page, false)
	}
	c.mu.Unlock()

	c.notify()
}

// recomputeLocked rebuilds the visible list from the local collection:
// filters first, then the query, then the explicit sort. The result is a
// pure function of collection, query, filters, comparator and fuzzy mode.
func (c *Controller[T]) recomputeLocked() {
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if c.passesFiltersLocked(item) {
			out = append(out, item)
		}
	}
	if c.query != "" && c.cfg.SearchFields != nil {
		if c.cfg.Fuzzy {
			out = c.rankFuzzyLocked(out)
		} else {
			out = c.matchExactLocked(out)
		}
	}
	if c.sortBy != nil {
		cmp := c.sortBy
		sort.SliceStable(out, func(i, j int) bool {
			return cmp(out[i], out[j]) < 0
		})
	}
	c.visible = out
}

func (c *Controller[T]) passesFiltersLocked(item T) bool {
	for _, pred := range c.filters {
		if !pred(item) {
			return false
		}
	}
	return true
}

// matchExactLocked keeps items where any search field contains the query,
// case folded unless configured otherwise.
func (c *Controller[T]) matchExactLocked(items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, field := range c.cfg.SearchFields(item) {
			if c.containsQuery(field) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func (c *Controller[T]) containsQuery(field string) bool {
	if c.cfg.CaseSensitive {
		return strings.Contains(field, c.query)
	}
	return utils.ContainsFold(field, c.query)
}

// rankFuzzyLocked scores every candidate with the best multi-field match,
// drops scores under the threshold and sorts descending. The stable sort
// keeps insertion order for ties; an explicit comparator applied later
// overrides this ranking.
func (c *Controller[T]) rankFuzzyLocked(items []T) []T {
	type scored struct {
		item  T
		score float64
	}
	ranked := make([]scored, 0, len(items))
	for _, item := range items {
		res, ok := match.MatchFields(c.query, c.cfg.SearchFields(item), c.cfg.CaseSensitive)
		if !ok || res.Score < c.cfg.FuzzyThreshold {
			continue
		}
		ranked = append(ranked, scored{item: item, score: res.Score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]T, len(ranked))
	for i, r := range ranked {
		out[i] = r.item
	}
	return out
}
