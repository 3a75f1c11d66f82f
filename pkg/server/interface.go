/*
Package server exposes a list controller over msgpack IPC and a small HTTP surface.

The IPC side provides a minimal interface for driving searches using msgpack serialization over stdin/stdout.

The protocol uses binary msgpack encoding and supports search, pagination, filter, sort and selection ops.
Messages are processed synchronously with timing info included in responses.

# IPC

The server operates on a request response model where clients send structured messages via stdin and receive responses through stdout.
Each message contains an ID field, an op field and other fields based on the operation type.

Search requests use mainly this structure:

	{"id": "req_001", "op": "search", "q": "ban"}

The server responds with the visible window after the search settles:

	{"id": "req_001", "status": "ready", "items": ["Banana", "bandana"], "c": 2, "more": false, "sel": 0, "t": 145}

Filters and sorting are named server side since predicates cannot cross the wire:

	{"id": "f1", "op": "filter", "key": "short", "kind": "maxlen", "value": "6"}
	{"id": "s1", "op": "sort", "order": "desc"}

Sending a filter op with an empty kind removes that key, and an empty key with an empty kind clears every filter.
An empty order restores the natural result order.

Selection ops address items by value:

	{"id": "sel1", "op": "select", "value": "Banana", "action": "toggle"}
	{"id": "sel2", "op": "select", "action": "all"}

Response structures include status information and error details when an op fails.

# Message Types

Request is the envelope for every operation. Ops are: search, more, filter, sort, select, state.

StateResponse carries the visible items, pagination and selection counters plus elapsed microseconds.
The status field is derived from the controller views: "error" when the last fetch failed, "loading" while a fetch is in flight, otherwise "ready".

ErrorResponse is sent for malformed payloads and unknown ops. The server never exits on a bad request, only on a broken stream.

msgpack encoding has ~30 to 50% smaller message sizes compared to JSON.
binary format enables faster parsing and generation, less errors and reducing latency in most cases.

# Web Mode

WebServer serves the same state over HTTP: GET /api/search runs a query, GET /api/state snapshots without mutating,
GET /healthz reports liveness and GET /events upgrades to a websocket fed by controller change notifications.
Every HTTP response carries an X-Request-ID header.
*/
package server

// Request is the envelope for every IPC operation.
type Request struct {
	ID     string `msgpack:"id"`
	Op     string `msgpack:"op"`
	Query  string `msgpack:"q,omitempty"`
	Key    string `msgpack:"key,omitempty"`
	Kind   string `msgpack:"kind,omitempty"`
	Value  string `msgpack:"value,omitempty"`
	Order  string `msgpack:"order,omitempty"`
	Action string `msgpack:"action,omitempty"`
}

// StateResponse mirrors the controller state after an op settles.
type StateResponse struct {
	ID        string   `msgpack:"id"`
	Status    string   `msgpack:"status"`
	Items     []string `msgpack:"items"`
	Count     int      `msgpack:"c"`
	HasMore   bool     `msgpack:"more"`
	Loading   bool     `msgpack:"loading,omitempty"`
	Error     string   `msgpack:"error,omitempty"`
	Selected  int      `msgpack:"sel"`
	TimeTaken int64    `msgpack:"t"`
}

// ErrorResponse holds basic error information for failed requests
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

// ReadyResponse signals that the IPC stream accepts requests.
type ReadyResponse struct {
	Status string `msgpack:"status"`
}
