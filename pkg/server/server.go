package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/relist/internal/utils"
	"github.com/bastiangx/relist/pkg/listing"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// settleWait caps how long an op blocks on an in-flight fetch before
	// responding with loading still set.
	settleWait = 5 * time.Second

	maxQueryLen = 256
)

// Server handles the IPC for list state
type Server struct {
	ctrl *listing.Controller[string]
	dec  *msgpack.Decoder
	enc  *msgpack.Encoder
	mu   sync.Mutex
}

// NewServer creates a new list server using stdin/stdout for IPC
func NewServer(ctrl *listing.Controller[string]) *Server {
	return NewServerIO(ctrl, os.Stdin, os.Stdout)
}

// NewServerIO creates a server on explicit streams.
func NewServerIO(ctrl *listing.Controller[string], r io.Reader, w io.Writer) *Server {
	return &Server{
		ctrl: ctrl,
		dec:  msgpack.NewDecoder(r),
		enc:  msgpack.NewEncoder(w),
	}
}

// Start begins listening for IPC requests
func (s *Server) Start() error {
	log.Debug("Starting IPC server.")

	// Signal that the server is ready
	s.send(ReadyResponse{Status: "ready"})

	// incoming requests stdin
	for {
		var request Request
		if err := s.dec.Decode(&request); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Errorf("Decoding request: %v", err)
			return err
		}
		s.handleRequest(request)
	}
}

// handleRequest processes a decoded request
func (s *Server) handleRequest(request Request) {
	start := time.Now()

	// based on op
	switch request.Op {
	case "search":
		s.handleSearch(request, start)
	case "more":
		s.ctrl.LoadMore()
		s.settle()
		s.respondState(request.ID, start)
	case "filter":
		s.handleFilter(request, start)
	case "sort":
		s.handleSort(request, start)
	case "select":
		s.handleSelect(request, start)
	case "state":
		s.respondState(request.ID, start)
	default:
		s.sendError(request.ID, fmt.Sprintf("Unknown op: %s", request.Op), 400)
	}
}

// handleSearch applies a query immediately. Editors debounce on their side,
// so the server skips the controller's debounce window.
func (s *Server) handleSearch(request Request, start time.Time) {
	if len(request.Query) > maxQueryLen {
		s.sendError(request.ID, fmt.Sprintf("Query exceeds maximum length of %d characters", maxQueryLen), 400)
		log.Debug("Query is too long in request")
		return
	}

	s.ctrl.SearchImmediate(request.Query)
	s.settle()
	s.respondState(request.ID, start)
}

// handleFilter sets, removes or clears named filters
func (s *Server) handleFilter(request Request, start time.Time) {
	if request.Key == "" && request.Kind == "" {
		s.ctrl.ClearFilters()
		s.settle()
		s.respondState(request.ID, start)
		return
	}
	if request.Key == "" {
		s.sendError(request.ID, "Missing 'key' parameter", 400)
		return
	}
	if request.Kind == "" {
		s.ctrl.RemoveFilter(request.Key)
		s.settle()
		s.respondState(request.ID, start)
		return
	}

	predicate, err := FilterPredicate(request.Kind, request.Value)
	if err != nil {
		s.sendError(request.ID, err.Error(), 400)
		return
	}
	s.ctrl.SetFilter(request.Key, predicate)
	s.settle()
	s.respondState(request.ID, start)
}

// handleSort swaps the result comparator
func (s *Server) handleSort(request Request, start time.Time) {
	comparator, err := SortComparator(request.Order)
	if err != nil {
		s.sendError(request.ID, err.Error(), 400)
		return
	}
	s.ctrl.SetSortBy(comparator)
	s.settle()
	s.respondState(request.ID, start)
}

// handleSelect runs a selection action addressed by item value
func (s *Server) handleSelect(request Request, start time.Time) {
	action := request.Action
	if action == "" {
		action = "toggle"
	}

	switch action {
	case "toggle", "select", "deselect":
		if request.Value == "" {
			s.sendError(request.ID, "Missing 'value' parameter", 400)
			return
		}
	}

	switch action {
	case "toggle":
		s.ctrl.ToggleSelection(request.Value)
	case "select":
		s.ctrl.Select(request.Value)
	case "deselect":
		s.ctrl.Deselect(request.Value)
	case "all":
		s.ctrl.SelectAll()
	case "none":
		s.ctrl.DeselectAll()
	default:
		s.sendError(request.ID, fmt.Sprintf("Unknown select action: %s", action), 400)
		return
	}
	s.respondState(request.ID, start)
}

// respondState snapshots the controller into a StateResponse
func (s *Server) respondState(id string, start time.Time) {
	items := s.ctrl.Items()
	loading := s.ctrl.IsLoading() || s.ctrl.IsLoadingMore()

	response := StateResponse{
		ID:        id,
		Status:    deriveStatus(s.ctrl.Err(), loading),
		Items:     items,
		Count:     len(items),
		HasMore:   s.ctrl.HasMorePages(),
		Loading:   loading,
		Selected:  s.ctrl.SelectedCount(),
		TimeTaken: time.Since(start).Microseconds(),
	}
	if err := s.ctrl.Err(); err != nil {
		response.Error = err.Error()
	}
	s.send(response)
}

// settle blocks until in-flight fetches finish so responses carry the final
// state, keeping the request/response contract synchronous.
func (s *Server) settle() {
	WaitSettled(s.ctrl, settleWait)
}

// send encodes a response onto the shared stream
func (s *Server) send(response any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.send(ErrorResponse{
		ID:    id,
		Error: message,
		Code:  code,
	})
}

// deriveStatus folds the controller views into a single word.
func deriveStatus(err error, loading bool) string {
	if err != nil {
		return "error"
	}
	if loading {
		return "loading"
	}
	return "ready"
}

// WaitSettled blocks until the controller has no fetch in flight or the
// timeout passes. The subscription wakes it on every state change.
// IPC handlers, the web endpoints and the debug REPL all respond with
// settled state only.
func WaitSettled(ctrl *listing.Controller[string], timeout time.Duration) {
	if !ctrl.IsLoading() && !ctrl.IsLoadingMore() {
		return
	}

	changed := make(chan struct{}, 1)
	unsubscribe := ctrl.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for ctrl.IsLoading() || ctrl.IsLoadingMore() {
		select {
		case <-changed:
		case <-deadline.C:
			log.Warnf("Fetch still in flight after %v, responding early", timeout)
			return
		}
	}
}

// FilterPredicate maps a named filter description onto a predicate.
// The same grammar serves IPC requests and the debug REPL.
func FilterPredicate(kind, value string) (listing.Predicate[string], error) {
	switch kind {
	case "prefix":
		return func(item string) bool { return utils.HasPrefixFold(item, value) }, nil
	case "suffix":
		return func(item string) bool { return utils.HasSuffixFold(item, value) }, nil
	case "contains":
		return func(item string) bool { return utils.ContainsFold(item, value) }, nil
	case "minlen", "maxlen":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("filter %s needs a numeric value, got %q", kind, value)
		}
		if kind == "minlen" {
			return func(item string) bool { return len([]rune(item)) >= n }, nil
		}
		return func(item string) bool { return len([]rune(item)) <= n }, nil
	}
	return nil, fmt.Errorf("unknown filter kind %q", kind)
}

// SortComparator maps an order name onto a comparator.
// An empty order clears sorting.
func SortComparator(order string) (listing.Comparator[string], error) {
	switch order {
	case "":
		return nil, nil
	case "asc":
		return func(a, b string) int {
			return strings.Compare(strings.ToLower(a), strings.ToLower(b))
		}, nil
	case "desc":
		return func(a, b string) int {
			return strings.Compare(strings.ToLower(b), strings.ToLower(a))
		}, nil
	case "len":
		return func(a, b string) int { return len(a) - len(b) }, nil
	}
	return nil, fmt.Errorf("unknown sort order %q", order)
}
