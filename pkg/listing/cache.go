package listing

import (
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// cacheKey identifies one fetched page. The filter signature is the sorted
// filter-key list; the generation pins exact membership, so two filter sets
// that merely share key names can never collide across mutations.
type cacheKey struct {
	query     string
	page      int
	filterSig string
	filterGen uint64
}

func filterSignature[T any](filters map[string]Predicate[T]) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// pageCache holds recently fetched pages in insertion order and evicts the
// single oldest entry once full. Overwriting an existing key keeps its slot.
type pageCache[T any] struct {
	mu      sync.Mutex
	max     int
	entries map[cacheKey][]T
	order   []cacheKey
	log     *log.Logger
}

func newPageCache[T any](max int, logger *log.Logger) *pageCache[T] {
	return &pageCache[T]{
		max:     max,
		entries: make(map[cacheKey][]T, max),
		log:     logger,
	}
}

// get returns a copy of the cached page, since pagination appends mutate
// the live visible list.
func (pc *pageCache[T]) get(key cacheKey) ([]T, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	items, ok := pc.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]T, len(items))
	copy(out, items)
	return out, true
}

func (pc *pageCache[T]) put(key cacheKey, items []T) {
	if pc.max <= 0 {
		return
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	stored := make([]T, len(items))
	copy(stored, items)

	if _, ok := pc.entries[key]; ok {
		pc.entries[key] = stored
		return
	}
	if len(pc.order) >= pc.max {
		oldest := pc.order[0]
		pc.order = pc.order[1:]
		delete(pc.entries, oldest)
		pc.log.Debugf("Evicted cached page %d for query %q", oldest.page, oldest.query)
	}
	pc.entries[key] = stored
	pc.order = append(pc.order, key)
}

func (pc *pageCache[T]) clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.entries = make(map[cacheKey][]T, pc.max)
	pc.order = pc.order[:0]
}

func (pc *pageCache[T]) size() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.entries)
}
