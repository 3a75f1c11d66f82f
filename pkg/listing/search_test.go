package listing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/relist/internal/utils"
)

// fakeLoader pages over an in-memory corpus with optional per-query delays
// and scripted failures, counting every invocation.
type fakeLoader struct {
	mu      sync.Mutex
	data    []string
	calls   int
	queries []string
	delay   map[string]time.Duration
	failing bool
}

func (f *fakeLoader) load(ctx context.Context, query string, page, size int) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.queries = append(f.queries, query)
	delay := f.delay[query]
	failing := f.failing
	data := f.data
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failing {
		return nil, errors.New("backend unavailable")
	}

	var matched []string
	for _, item := range data {
		if query == "" || utils.ContainsFold(item, query) {
			matched = append(matched, item)
		}
	}
	start := page * size
	if start >= len(matched) {
		return nil, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLoader) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func (f *fakeLoader) setData(data []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
}

func (f *fakeLoader) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func remoteController(t *testing.T, loader *fakeLoader, mutate func(*Config[string])) *Controller[string] {
	t.Helper()
	cfg := DefaultConfig[string]()
	cfg.Debounce = 30 * time.Millisecond
	cfg.PageSize = 2
	cfg.Loader = loader.load
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Dispose)
	return c
}

func settle() { time.Sleep(100 * time.Millisecond) }

func TestDebounceCollapsesBursts(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple", "apricot"}}
	c := remoteController(t, loader, nil)

	c.Search("a")
	c.Search("ap")
	c.Search("app")
	settle()

	if got := loader.callCount(); got != 1 {
		t.Errorf("calls = %d, want exactly 1", got)
	}
	if got := loader.lastQuery(); got != "app" {
		t.Errorf("executed query = %q, want the last of the burst", got)
	}
	if got := c.SearchQuery(); got != "app" {
		t.Errorf("stored query = %q, want %q", got, "app")
	}
}

func TestDebounceRestartsOnEveryCall(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple"}}
	c := remoteController(t, loader, nil)

	// Keep poking inside the window; nothing may fire until the burst ends.
	for i := 0; i < 4; i++ {
		c.Search("ap")
		time.Sleep(10 * time.Millisecond)
	}
	if got := loader.callCount(); got != 0 {
		t.Errorf("calls during burst = %d, want 0", got)
	}
	settle()
	if got := loader.callCount(); got != 1 {
		t.Errorf("calls after burst = %d, want 1", got)
	}
}

func TestSearchImmediateSkipsDebounce(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple"}}
	c := remoteController(t, loader, nil)

	c.Search("pending")
	c.SearchImmediate("ap")
	settle()

	// The immediate call cancels the pending timer.
	if got := loader.callCount(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if got := loader.lastQuery(); got != "ap" {
		t.Errorf("executed query = %q, want %q", got, "ap")
	}
}

func TestStaleResponseRejection(t *testing.T) {
	loader := &fakeLoader{
		data:  []string{"xor", "yam"},
		delay: map[string]time.Duration{"x": 80 * time.Millisecond, "y": 10 * time.Millisecond},
	}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("x")
	c.SearchImmediate("y")
	time.Sleep(150 * time.Millisecond)

	got := c.Items()
	if len(got) != 1 || got[0] != "yam" {
		t.Errorf("visible = %v, want the later dispatch only", got)
	}
	if c.SearchQuery() != "y" {
		t.Errorf("query = %q, want %q", c.SearchQuery(), "y")
	}
	if c.IsLoading() {
		t.Error("loading should be cleared by the winning completion")
	}
	if c.Err() != nil {
		t.Errorf("err = %v, want nil", c.Err())
	}
}

func TestLoadingFlagLifecycle(t *testing.T) {
	loader := &fakeLoader{
		data:  []string{"apple", "apricot"},
		delay: map[string]time.Duration{"ap": 60 * time.Millisecond},
	}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("ap")
	if !c.IsLoading() {
		t.Error("loading should be set while the fetch is in flight")
	}
	settle()
	if c.IsLoading() {
		t.Error("loading should clear on completion")
	}
	if got := c.Items(); len(got) != 2 {
		t.Errorf("visible = %v, want both matches", got)
	}
}

func TestPaginationAppendsUntilShortPage(t *testing.T) {
	loader := &fakeLoader{data: []string{"a1", "a2", "a3", "a4", "a5"}}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("")
	settle()
	if got := c.Items(); len(got) != 2 {
		t.Fatalf("page 0 = %v, want 2 items", got)
	}
	if !c.HasMorePages() {
		t.Fatal("full page must leave hasMore true")
	}

	c.LoadMore()
	settle()
	if got := c.Items(); len(got) != 4 {
		t.Fatalf("after first LoadMore = %v, want 4 items", got)
	}
	if !c.HasMorePages() {
		t.Fatal("another full page must leave hasMore true")
	}

	c.LoadMore()
	settle()
	got := c.Items()
	if len(got) != 5 || got[4] != "a5" {
		t.Fatalf("after second LoadMore = %v, want all 5 in order", got)
	}
	if c.HasMorePages() {
		t.Error("short page must set hasMore false")
	}

	before := loader.callCount()
	c.LoadMore()
	settle()
	if loader.callCount() != before {
		t.Error("LoadMore past the end must not fetch")
	}
}

func TestLoadMoreEmptyPageStopsPagination(t *testing.T) {
	loader := &fakeLoader{data: []string{"a1", "a2", "a3", "a4"}}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("")
	settle()
	c.LoadMore()
	settle()
	if got := c.Items(); len(got) != 4 {
		t.Fatalf("visible = %v, want 4", got)
	}
	if !c.HasMorePages() {
		t.Fatal("exactly full page must keep hasMore true")
	}

	c.LoadMore()
	settle()
	if got := c.Items(); len(got) != 4 {
		t.Errorf("empty page must not change the visible list, got %v", got)
	}
	if c.HasMorePages() {
		t.Error("empty page must set hasMore false")
	}
	if c.IsLoadingMore() {
		t.Error("loadingMore should be cleared")
	}
}

func TestLoadMoreNoOpWithoutLoader(t *testing.T) {
	c := fruitController(t, nil)

	notified := 0
	defer c.Subscribe(func() { notified++ })()
	c.LoadMore()
	if notified != 0 {
		t.Error("local mode LoadMore must be a silent no-op")
	}
}

func TestLoadMoreWhileLoadingMoreIsNoOp(t *testing.T) {
	loader := &fakeLoader{
		data:  []string{"a1", "a2", "a3", "a4"},
		delay: map[string]time.Duration{"": 50 * time.Millisecond},
	}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("")
	settle()

	c.LoadMore()
	c.LoadMore()
	c.LoadMore()
	settle()

	// Initial fetch plus a single append.
	if got := loader.callCount(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestLoaderErrorKeepsPreviousItems(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple", "apricot"}}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("ap")
	settle()
	if got := c.Items(); len(got) != 2 {
		t.Fatalf("visible = %v, want 2", got)
	}

	loader.setFailing(true)
	c.SearchImmediate("apr")
	settle()

	if c.Err() == nil {
		t.Fatal("loader failure must surface in Err")
	}
	if got := c.Items(); len(got) != 2 {
		t.Errorf("failed fetch must leave the previous list, got %v", got)
	}
	if c.IsLoading() {
		t.Error("loading should clear after a failure")
	}
}

func TestRetryAfterError(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple", "apricot"}}
	c := remoteController(t, loader, nil)

	loader.setFailing(true)
	c.SearchImmediate("ap")
	settle()
	if c.Err() == nil {
		t.Fatal("expected an error state")
	}

	loader.setFailing(false)
	c.Retry()
	if c.Err() != nil {
		t.Error("Retry must clear the error up front")
	}
	settle()

	if got := c.Items(); len(got) != 2 {
		t.Errorf("visible after retry = %v, want 2", got)
	}
	if c.Err() != nil {
		t.Errorf("err after retry = %v, want nil", c.Err())
	}
}

func TestCacheHitSkipsLoader(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple", "banana"}}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("ap")
	settle()
	c.SearchImmediate("ba")
	settle()
	if got := loader.callCount(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}

	// Repeating the first query must be served from cache, synchronously.
	c.SearchImmediate("ap")
	if got := c.Items(); len(got) != 1 || got[0] != "apple" {
		t.Errorf("cached page should apply immediately, got %v", got)
	}
	if c.IsLoading() {
		t.Error("a cache hit must not enter the loading state")
	}
	if got := loader.callCount(); got != 2 {
		t.Errorf("calls = %d, want still 2", got)
	}
}

func TestCacheDisabledAlwaysFetches(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple"}}
	c := remoteController(t, loader, func(cfg *Config[string]) { cfg.CacheSize = 0 })

	c.SearchImmediate("ap")
	settle()
	c.SearchImmediate("ap")
	settle()

	if got := loader.callCount(); got != 2 {
		t.Errorf("calls = %d, want 2 with caching disabled", got)
	}
}

func TestFilterGenerationPreventsStaleHits(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple"}}
	c := remoteController(t, loader, nil)

	pass := func(string) bool { return true }

	c.SearchImmediate("ap")
	settle()
	c.SetFilter("k", pass)
	settle()
	c.RemoveFilter("k")
	settle()
	c.SetFilter("k", pass)
	settle()

	// Same query, same page, same filter key set, but a fresh generation
	// every time: none of the four dispatches may reuse an older entry.
	if got := loader.callCount(); got != 4 {
		t.Errorf("calls = %d, want 4", got)
	}
}

func TestRefreshBypassesCache(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple"}}
	c := remoteController(t, loader, nil)

	c.SearchImmediate("ap")
	settle()
	loader.setData([]string{"apricot"})

	// Without a refresh the stale cached page still serves.
	c.SearchImmediate("ap")
	if got := c.Items(); len(got) != 1 || got[0] != "apple" {
		t.Fatalf("expected the cached page, got %v", got)
	}

	c.Refresh()
	settle()
	if got := c.Items(); len(got) != 1 || got[0] != "apricot" {
		t.Errorf("refresh must refetch, got %v", got)
	}
}

func TestDisposeCancelsPendingDebounce(t *testing.T) {
	loader := &fakeLoader{data: []string{"apple"}}
	c := remoteController(t, loader, nil)

	c.Search("ap")
	c.Dispose()
	settle()

	if got := loader.callCount(); got != 0 {
		t.Errorf("calls = %d, want 0 after dispose", got)
	}
}

func TestDisposeDiscardsInflightFetch(t *testing.T) {
	loader := &fakeLoader{
		data:  []string{"apple"},
		delay: map[string]time.Duration{"ap": 60 * time.Millisecond},
	}
	c := remoteController(t, loader, nil)

	notified := 0
	c.Subscribe(func() { notified++ })

	c.SearchImmediate("ap")
	time.Sleep(10 * time.Millisecond)
	before := notified
	c.Dispose()
	settle()

	if got := c.Items(); len(got) != 0 {
		t.Errorf("in-flight completion mutated a disposed controller: %v", got)
	}
	if notified != before {
		t.Errorf("disposed controller notified, %d -> %d", before, notified)
	}
}
