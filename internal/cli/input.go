// Package cli handles cmd line input for driving a list controller, for DBG and demos
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/relist/pkg/listing"
	"github.com/bastiangx/relist/pkg/server"
	"github.com/charmbracelet/log"
)

// settleWait caps how long the REPL blocks on an in-flight fetch.
const settleWait = 5 * time.Second

// InputHandler reads lines from stdin and drives a string controller.
// Plain lines run as searches, lines starting with '/' are commands.
type InputHandler struct {
	ctrl           *listing.Controller[string]
	minQueryLength int
	paged          bool
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(ctrl *listing.Controller[string], minQueryLength int, paged bool) *InputHandler {
	return &InputHandler{
		ctrl:           ctrl,
		minQueryLength: minQueryLength,
		paged:          paged,
	}
}

// Start begins the interface loop.
// It continuously prompts for input, reads a line from stdin,
// and passes the trimmed input to handleInput() for processing.
// Loop terminates on EOF, /q, or a read error.
func (h *InputHandler) Start() error {
	log.Print("relist REPL [BETA]")
	reader := bufio.NewReader(os.Stdin)
	log.Print("type a query and press Enter to search (/help for commands, Ctrl+C to exit):")

	for {
		log.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if h.handleInput(line) {
			return nil
		}
	}
}

// handleInput processes a single line. Returns true when the loop should quit.
func (h *InputHandler) handleInput(line string) bool {
	if strings.HasPrefix(line, "/") {
		return h.handleCommand(line)
	}
	h.runSearch(line)
	return false
}

func (h *InputHandler) runSearch(query string) {
	if utf8.RuneCountInString(query) < h.minQueryLength {
		log.Errorf("Query too short: %s", query)
		return
	}

	start := time.Now()
	h.ctrl.SearchImmediate(query)
	server.WaitSettled(h.ctrl, settleWait)
	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for query '%s'", elapsed, query)

	h.render()
}

func (h *InputHandler) handleCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/q", "/quit":
		return true
	case "/help":
		h.printHelp()
	case "/more":
		if !h.ctrl.HasMorePages() {
			log.Warn("No more pages to load")
			return false
		}
		h.ctrl.LoadMore()
		server.WaitSettled(h.ctrl, settleWait)
		h.render()
	case "/reset":
		h.ctrl.SearchImmediate("")
		server.WaitSettled(h.ctrl, settleWait)
		h.render()
	case "/filter":
		h.handleFilter(fields[1:])
	case "/sort":
		h.handleSort(fields[1:])
	case "/sel":
		h.handleSelect(fields[1:])
	case "/refresh":
		h.ctrl.Refresh()
		server.WaitSettled(h.ctrl, settleWait)
		h.render()
	case "/retry":
		h.ctrl.Retry()
		server.WaitSettled(h.ctrl, settleWait)
		h.render()
	case "/state":
		h.render()
	default:
		log.Errorf("Unknown command: %s", fields[0])
		log.Print("use /help for the command list")
	}
	return false
}

// handleFilter mirrors the wire grammar: three args set a filter,
// a bare key removes one.
func (h *InputHandler) handleFilter(args []string) {
	switch {
	case len(args) == 0:
		active := h.ctrl.ActiveFilters()
		if len(active) == 0 {
			log.Print("no active filters")
			return
		}
		for key := range active {
			log.Printf("  %s", key)
		}
		return
	case len(args) == 1 && args[0] == "clear":
		h.ctrl.ClearFilters()
	case len(args) == 1:
		h.ctrl.RemoveFilter(args[0])
	case len(args) >= 3:
		predicate, err := server.FilterPredicate(args[1], strings.Join(args[2:], " "))
		if err != nil {
			log.Errorf("Bad filter: %v", err)
			return
		}
		h.ctrl.SetFilter(args[0], predicate)
	default:
		log.Error("Usage: /filter <key> <kind> <value>")
		return
	}
	server.WaitSettled(h.ctrl, settleWait)
	h.render()
}

func (h *InputHandler) handleSort(args []string) {
	if len(args) != 1 {
		log.Error("Usage: /sort asc|desc|len|off")
		return
	}
	order := args[0]
	if order == "off" {
		order = ""
	}
	comparator, err := server.SortComparator(order)
	if err != nil {
		log.Errorf("Bad sort: %v", err)
		return
	}
	h.ctrl.SetSortBy(comparator)
	server.WaitSettled(h.ctrl, settleWait)
	h.render()
}

func (h *InputHandler) handleSelect(args []string) {
	if len(args) == 0 {
		log.Error("Usage: /sel <value>|all|none")
		return
	}
	switch args[0] {
	case "all":
		h.ctrl.SelectAll()
	case "none":
		h.ctrl.DeselectAll()
	default:
		h.ctrl.ToggleSelection(strings.Join(args, " "))
	}
	log.Printf("%d selected", h.ctrl.SelectedCount())
}

// render prints the current view, one numbered line per item.
// Selected items carry a star marker.
func (h *InputHandler) render() {
	if err := h.ctrl.Err(); err != nil {
		log.Errorf("Search failed: %v", err)
		log.Print("use /retry to run it again")
		return
	}

	items := h.ctrl.Items()
	if len(items) == 0 {
		log.Warnf("No matches for query: '%s'", h.ctrl.SearchQuery())
		return
	}

	log.Printf("Found %d items for query '%s':", len(items), h.ctrl.SearchQuery())
	for i, item := range items {
		marker := "  "
		if h.ctrl.IsSelected(item) {
			marker = "* "
		}
		clItem := fmt.Sprintf("\033[38;5;75m%s\033[0m", item)
		log.Printf("%2d. %s%s", i+1, marker, clItem)
	}
	if count := h.ctrl.SelectedCount(); count > 0 {
		log.Printf("%d selected", count)
	}
	if h.paged && h.ctrl.HasMorePages() {
		log.Print("use /more for the next page")
	}
}

func (h *InputHandler) printHelp() {
	log.Print("commands:")
	log.Print("  /filter                    list active filters")
	log.Print("  /filter <key> <kind> <v>   set a filter (prefix, suffix, contains, minlen, maxlen)")
	log.Print("  /filter <key>              remove a filter")
	log.Print("  /filter clear              drop all filters")
	log.Print("  /sort asc|desc|len|off     order results")
	log.Print("  /sel <value>               toggle selection ('all' and 'none' act on every item)")
	log.Print("  /more                      load the next page")
	log.Print("  /reset                     clear the query")
	log.Print("  /refresh                   re-run the current search, skipping cache")
	log.Print("  /retry                     re-run after a failure")
	log.Print("  /state                     print the view without searching")
	log.Print("  /q                         quit")
}
