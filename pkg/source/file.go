package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/bastiangx/relist/internal/utils"
)

// reloadDebounce collapses editor write bursts into one reload.
const reloadDebounce = 300 * time.Millisecond

// File serves the lines of a text file and reloads when it changes on
// disk. OnReload hooks let an embedder refresh a controller once the new
// content has landed.
type File struct {
	path string

	mu       sync.Mutex
	lines    []string
	timer    *time.Timer
	onReload []func()
	closed   bool

	watcher *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// OpenFile reads the file and starts watching it.
func OpenFile(path string) (*File, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	f := &File{
		path:    path,
		lines:   lines,
		watcher: watcher,
		closeCh: make(chan struct{}),
	}
	f.wg.Add(1)
	go f.watchLoop()

	log.Debugf("Watching %s (%d lines)", path, len(lines))
	return f, nil
}

// OnReload registers a callback invoked after every completed reload.
func (f *File) OnReload(fn func()) {
	if fn == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReload = append(f.onReload, fn)
}

// Lines returns a copy of the current content.
func (f *File) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// Load implements the listing loader contract.
func (f *File) Load(ctx context.Context, query string, page, pageSize int) ([]string, error) {
	f.mu.Lock()
	lines := f.lines
	f.mu.Unlock()

	var matched []string
	for _, line := range lines {
		if query == "" || utils.ContainsFold(line, query) {
			matched = append(matched, line)
		}
	}
	return Page(matched, page, pageSize), nil
}

// Close stops the watcher. Safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	close(f.closeCh)
	f.mu.Unlock()

	err := f.watcher.Close()
	f.wg.Wait()
	return err
}

func (f *File) watchLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.closeCh:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// Editors often replace files atomically; the watch dies with
			// the old inode and has to be re-added.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(f.path); err != nil {
					log.Warnf("Watched file %s gone: %v", f.path, err)
					continue
				}
				if err := f.watcher.Add(f.path); err != nil {
					log.Warnf("Failed to re-watch %s: %v", f.path, err)
					continue
				}
			}
			f.scheduleReload()

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("Watcher error for %s: %v", f.path, err)
		}
	}
}

func (f *File) scheduleReload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(reloadDebounce, f.reload)
}

func (f *File) reload() {
	lines, err := readLines(f.path)
	if err != nil {
		log.Warnf("Reload of %s failed: %v", f.path, err)
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.lines = lines
	callbacks := append([]func()(nil), f.onReload...)
	f.mu.Unlock()

	log.Debugf("Reloaded %s (%d lines)", f.path, len(lines))
	for _, fn := range callbacks {
		fn()
	}
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
