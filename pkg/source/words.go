package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/bastiangx/relist/internal/utils"
)

type wordEntry struct {
	word string
	rank int
}

// WordIndex serves ranked words out of a patricia trie keyed by the folded
// word. Prefix queries walk the matching subtree; queries that hit no
// prefix fall back to a containment scan over the whole index.
type WordIndex struct {
	mu    sync.RWMutex
	trie  *patricia.Trie
	total int
}

func NewWordIndex() *WordIndex {
	return &WordIndex{trie: patricia.NewTrie()}
}

// LoadWordIndex reads a plain word list, one word per line with an
// optional whitespace-separated rank. Blank lines and # comments are
// skipped; a missing rank defaults to 1.
func LoadWordIndex(path string) (*WordIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening word list: %w", err)
	}
	defer f.Close()

	w := NewWordIndex()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		rank := 1
		if len(parts) > 1 {
			rank, err = strconv.Atoi(parts[1])
			if err != nil {
				log.Warnf("Bad rank on line %d of %s: %v", lineNo, path, err)
				rank = 1
			}
		}
		w.Add(parts[0], rank)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading word list: %w", err)
	}

	log.Debugf("Loaded %d words from %s", w.Len(), path)
	return w, nil
}

// Add inserts or replaces a word. Words folding to the same key overwrite
// each other.
func (w *WordIndex) Add(word string, rank int) {
	if word == "" {
		return
	}
	key := strings.ToLower(word)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.trie.Insert(patricia.Prefix(key), wordEntry{word: word, rank: rank}) {
		w.total++
	} else {
		w.trie.Set(patricia.Prefix(key), wordEntry{word: word, rank: rank})
	}
}

func (w *WordIndex) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.total
}

// Load implements the listing loader contract: collect, order by rank,
// slice the requested page.
func (w *WordIndex) Load(ctx context.Context, query string, page, pageSize int) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var entries []wordEntry
	collect := func(p patricia.Prefix, item patricia.Item) error {
		entry, ok := item.(wordEntry)
		if !ok {
			log.Errorf("Unknown item type %T for prefix %s", item, p)
			return nil
		}
		entries = append(entries, entry)
		return nil
	}

	if query == "" {
		if err := w.trie.Visit(collect); err != nil {
			return nil, err
		}
	} else {
		lower := strings.ToLower(query)
		if err := w.trie.VisitSubtree(patricia.Prefix(lower), collect); err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			err := w.trie.Visit(func(p patricia.Prefix, item patricia.Item) error {
				if utils.ContainsFold(string(p), lower) {
					return collect(p, item)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	// Rank first; the trie already visits keys in order, and the stable
	// sort keeps that order within equal ranks, so pages never shuffle
	// between calls.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].rank > entries[j].rank
	})

	words := make([]string, len(entries))
	for i, e := range entries {
		words[i] = e.word
	}
	return Page(words, page, pageSize), nil
}
