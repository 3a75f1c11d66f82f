package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bastiangx/relist/pkg/listing"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTPError is the JSON error body for web responses.
type HTTPError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WebServer serves controller state over HTTP and websocket.
type WebServer struct {
	ctrl        *listing.Controller[string]
	hub         *Hub
	srv         *http.Server
	upgrader    websocket.Upgrader
	requestLog  bool
	unsubscribe func()
}

// NewWebServer wires a controller to an HTTP surface on addr.
func NewWebServer(ctrl *listing.Controller[string], addr string, requestLog bool) *WebServer {
	ws := &WebServer{
		ctrl:       ctrl,
		hub:        NewHub(0),
		requestLog: requestLog,
		upgrader: websocket.Upgrader{
			// Browsers hit this from arbitrary local pages.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	ws.RegisterRoutes(mux)
	ws.srv = &http.Server{Addr: addr, Handler: mux}

	ws.unsubscribe = ctrl.Subscribe(func() {
		ws.hub.Broadcast(ws.snapshot())
	})
	return ws
}

// RegisterRoutes attaches all handlers to mux.
func (ws *WebServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", ws.withRequestID(ws.handleSearch))
	mux.HandleFunc("GET /api/state", ws.withRequestID(ws.handleState))
	mux.HandleFunc("GET /healthz", ws.withRequestID(ws.handleHealth))
	mux.HandleFunc("GET /events", ws.handleEvents)
}

// Handler returns the routed handler, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.srv.Handler
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (ws *WebServer) Start() error {
	log.Infof("Listening on %s", ws.srv.Addr)
	err := ws.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown detaches from the controller and stops the HTTP server.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.unsubscribe()
	return ws.srv.Shutdown(ctx)
}

// withRequestID tags every response and optionally logs the request.
func (ws *WebServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next(w, r)
		if ws.requestLog {
			log.Infof("%s %s id=%s took=%s", r.Method, r.URL.Path, id, time.Since(start))
		}
	}
}

// handleSearch runs a query and walks pagination up to the requested page.
func (ws *WebServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ws.writeError(w, http.StatusBadRequest, "Invalid page",
				fmt.Sprintf("page must be a non-negative integer, got %q", raw))
			return
		}
		page = n
	}
	if len(query) > maxQueryLen {
		ws.writeError(w, http.StatusBadRequest, "Query too long",
			fmt.Sprintf("query exceeds maximum length of %d characters", maxQueryLen))
		return
	}

	ws.ctrl.SearchImmediate(query)
	WaitSettled(ws.ctrl, settleWait)
	for current := 0; current < page && ws.ctrl.HasMorePages(); current++ {
		ws.ctrl.LoadMore()
		WaitSettled(ws.ctrl, settleWait)
	}

	ws.writeJSON(w, http.StatusOK, ws.snapshot())
}

// handleState snapshots without mutating anything.
func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, ws.snapshot())
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents upgrades to a websocket and streams state snapshots.
func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, events := ws.hub.Register()
	defer ws.hub.Unregister(id)
	log.Debugf("Websocket listener %d connected from %s", id, r.RemoteAddr)

	// Snapshot on connect so clients render without waiting for a change.
	if err := conn.WriteJSON(ws.snapshot()); err != nil {
		return
	}

	// Reads only detect the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				ws.hub.Unregister(id)
				return
			}
		}
	}()

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			log.Debugf("Websocket listener %d write failed: %v", id, err)
			return
		}
	}
}

// snapshot captures the controller views as one wire event.
func (ws *WebServer) snapshot() StateEvent {
	items := ws.ctrl.Items()
	loading := ws.ctrl.IsLoading() || ws.ctrl.IsLoadingMore()

	event := StateEvent{
		Query:    ws.ctrl.SearchQuery(),
		Items:    items,
		Count:    len(items),
		HasMore:  ws.ctrl.HasMorePages(),
		Loading:  loading,
		Selected: ws.ctrl.SelectedCount(),
		Status:   deriveStatus(ws.ctrl.Err(), loading),
	}
	if err := ws.ctrl.Err(); err != nil {
		event.Error = err.Error()
	}
	return event
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("Encoding JSON response: %v", err)
	}
}

func (ws *WebServer) writeError(w http.ResponseWriter, status int, errLabel, message string) {
	ws.writeJSON(w, status, HTTPError{Error: errLabel, Message: message})
}
