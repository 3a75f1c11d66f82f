//go:build test

package mem

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/relist/pkg/listing"
	"github.com/charmbracelet/log"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

var corpus = []string{
	"Apple", "Apricot", "Avocado", "Banana", "Blackberry",
	"Blueberry", "Cherry", "Clementine", "Coconut", "Cranberry",
	"Date", "Dragonfruit", "Elderberry", "Fig", "Gooseberry",
	"Grape", "Grapefruit", "Guava", "Kiwi", "Kumquat",
	"Lemon", "Lime", "Lychee", "Mango", "Melon",
	"Nectarine", "Orange", "Papaya", "Passionfruit", "Peach",
	"Pear", "Persimmon", "Pineapple", "Plum", "Pomegranate",
	"Quince", "Raspberry", "Strawberry", "Tangerine", "Watermelon",
}

var shortQueries = []string{
	"a", "ap", "app", "appl", "apple",
	"b", "ba", "ban", "bana", "banana",
	"ch", "che", "cher", "cherr", "cherry",
	"gr", "gra", "grap", "grape",
	"m", "ma", "man", "mang", "mango",
	"pe", "pea", "peac", "peach",
}

// typingRuns mimic a user typing a long name character by character,
// which is the workload that churns the debounce timer and cache hardest.
var typingRuns = [][]string{
	{"w", "wa", "wat", "wate", "water", "waterm", "watermelon"},
	{"p", "po", "pom", "pome", "pomeg", "pomegr", "pomegranate"},
	{"cl", "cle", "clem", "cleme", "clementine"},
	{"dr", "dra", "drag", "drago", "dragonfruit"},
	{"pa", "pas", "pass", "passi", "passionfruit"},
	{"e", "el", "eld", "elde", "elderberry"},
	{"go", "goo", "goos", "goose", "gooseberry"},
	{"ta", "tan", "tang", "tange", "tangerine"},
}

func newLocalController(t *testing.T) *listing.Controller[string] {
	t.Helper()
	cfg := listing.DefaultConfig[string]()
	cfg.SearchFields = func(item string) []string { return []string{item} }
	cfg.Fuzzy = true
	ctrl, err := listing.New(cfg)
	if err != nil {
		t.Fatalf("controller construction failed: %v", err)
	}
	ctrl.SetItems(corpus)
	return ctrl
}

func TestMemoryLeakBasic(t *testing.T) {
	iterations := []int{100, 500, 1000, 2500, 5000}

	for _, iterCount := range iterations {
		t.Run(fmt.Sprintf("iterations_%d", iterCount), func(t *testing.T) {
			runBasicMemoryTest(t, iterCount, shortQueries)
		})
	}
}

func TestMemoryLeakConcurrent(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 1000},
		{workers: 2, iterationsPerWorker: 500},
		{workers: 4, iterationsPerWorker: 250},
		{workers: 8, iterationsPerWorker: 125},
	}

	for _, config := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", config.workers, config.iterationsPerWorker), func(t *testing.T) {
			runConcurrentMemoryTest(t, config.workers, config.iterationsPerWorker)
		})
	}
}

func TestMemoryStabilityLongRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long-running memory stability test in short mode")
	}

	cycles := 50
	opsPerCycle := 200

	runLongRunMemoryTest(t, cycles, opsPerCycle)
}

func runBasicMemoryTest(t *testing.T, iterations int, queries []string) {
	ctrl := newLocalController(t)
	defer ctrl.Dispose()

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	for i := 0; i < iterations; i++ {
		for _, query := range queries {
			ctrl.SearchImmediate(query)
			items := ctrl.Items()
			_ = items
		}
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	memDelta := int64(final.Alloc - baseline.Alloc)
	goroutineDelta := finalGoroutines - baselineGoroutines
	totalOps := iterations * len(queries)
	bytesPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("iterations=%d searches=%d retained=%d bytes_per_op=%.2f leaked_goroutines=%d",
		iterations, totalOps, memDelta, bytesPerOp, goroutineDelta)

	if bytesPerOp > 1000 {
		t.Errorf("retained %.2f bytes per search, controller state should not grow with query churn", bytesPerOp)
	}

	if goroutineDelta > 2 {
		t.Errorf("leaked %d goroutines across %d searches", goroutineDelta, totalOps)
	}
}

func runConcurrentMemoryTest(t *testing.T, workers, iterationsPerWorker int) {
	memFile, err := os.Create("concurrent_memory.prof")
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer func() {
		memFile.Close()
		os.Remove("concurrent_memory.prof")
	}()

	ctrl := newLocalController(t)
	defer ctrl.Dispose()

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	runOps := 0
	for _, run := range typingRuns {
		runOps += len(run)
	}
	totalOps := workers * iterationsPerWorker * runOps

	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for iter := 0; iter < iterationsPerWorker; iter++ {
				for _, run := range typingRuns {
					for _, query := range run {
						ctrl.SearchImmediate(query)
						items := ctrl.Items()
						_ = items
					}
				}
			}
		}()
	}

	wg.Wait()

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	memDelta := int64(final.Alloc - baseline.Alloc)
	goroutineDelta := finalGoroutines - baselineGoroutines
	bytesPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("workers=%d per_worker=%d searches=%d retained=%d bytes_per_op=%.2f leaked_goroutines=%d",
		workers, iterationsPerWorker, totalOps, memDelta, bytesPerOp, goroutineDelta)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}

	if bytesPerOp > 1000 {
		t.Errorf("retained %.2f bytes per search under contention", bytesPerOp)
	}

	if goroutineDelta > 3 {
		t.Errorf("leaked %d goroutines with %d workers", goroutineDelta, workers)
	}
}

// runLongRunMemoryTest churns whole controller lifecycles: each cycle
// builds one, works it, then disposes it. A timer, subscriber or cache
// entry surviving Dispose shows up as monotonic growth here.
func runLongRunMemoryTest(t *testing.T, cycles, opsPerCycle int) {
	memFile, err := os.Create("longrun_stability.prof")
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer func() {
		memFile.Close()
		os.Remove("longrun_stability.prof")
	}()

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	totalOps := 0
	peakRetained := int64(0)

	for cycle := 0; cycle < cycles; cycle++ {
		ctrl := newLocalController(t)
		unsubscribe := ctrl.Subscribe(func() {})

		for op := 0; op < opsPerCycle; op++ {
			run := typingRuns[op%len(typingRuns)]
			query := run[op%len(run)]
			ctrl.SearchImmediate(query)

			switch op % 5 {
			case 0:
				ctrl.SetFilter("len", func(item string) bool { return len(item) > 4 })
			case 1:
				ctrl.SetSortBy(func(a, b string) int { return strings.Compare(a, b) })
			case 2:
				ctrl.ToggleSelection(corpus[op%len(corpus)])
			case 3:
				ctrl.RemoveFilter("len")
			case 4:
				// Leave a pending debounce for Dispose to cancel.
				ctrl.Search(query + "x")
			}
			totalOps++
		}

		unsubscribe()
		ctrl.Dispose()

		if cycle%10 == 0 {
			var m runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&m)

			retained := int64(m.Alloc - baseline.Alloc)
			goroutineDelta := runtime.NumGoroutine() - baselineGoroutines
			if retained > peakRetained {
				peakRetained = retained
			}

			t.Logf("cycle=%d ops=%d retained=%d bytes_per_op=%.2f leaked_goroutines=%d",
				cycle, totalOps, retained, float64(retained)/float64(totalOps), goroutineDelta)
		}

		time.Sleep(5 * time.Millisecond)
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	finalRetained := int64(final.Alloc - baseline.Alloc)
	finalGoroutineDelta := finalGoroutines - baselineGoroutines
	finalBytesPerOp := float64(finalRetained) / float64(totalOps)

	t.Logf("summary: cycles=%d ops=%d retained=%d bytes_per_op=%.2f leaked_goroutines=%d peak_retained=%d",
		cycles, totalOps, finalRetained, finalBytesPerOp, finalGoroutineDelta, peakRetained)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}

	if finalBytesPerOp > 500 {
		t.Errorf("retained %.2f bytes per op across full lifecycles, Dispose is not releasing state", finalBytesPerOp)
	}

	if finalGoroutineDelta > 2 {
		t.Errorf("leaked %d goroutines across %d controller lifecycles", finalGoroutineDelta, cycles)
	}

	if peakRetained > 10*1024*1024 {
		t.Errorf("peak retained memory %d bytes, cycles should stay flat", peakRetained)
	}
}
