// Package testutil provides a fake Observe API for tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// Tokens accepted by the fake API.
const (
	AdminToken = "admin-token"
	OwnerToken = "owner-token"
	OtherToken = "other-token"
)

// Profiles served per token. Owner owns t1 and p1.
var Profiles = map[string]map[string]any{
	AdminToken: {"osmId": 1, "osmDisplayName": "admin", "isAdmin": true},
	OwnerToken: {"osmId": 2, "osmDisplayName": "owner", "isAdmin": false},
	OtherToken: {"osmId": 3, "osmDisplayName": "other", "isAdmin": false},
}

// ObserveAPI is an in-memory Observe API.
type ObserveAPI struct {
	Server *httptest.Server

	mu     sync.Mutex
	traces map[string]map[string]any
	photos map[string]map[string]any
	users  map[string]map[string]any
	calls  []string
}

func NewObserveAPI(t *testing.T) *ObserveAPI {
	t.Helper()
	o := &ObserveAPI{}
	o.Reset()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /profile", o.profile)
	mux.HandleFunc("GET /traces", o.list(func() map[string]map[string]any { return o.traces }))
	mux.HandleFunc("/traces/{id}", o.trace)
	mux.HandleFunc("GET /photos", o.list(func() map[string]map[string]any { return o.photos }))
	mux.HandleFunc("/photos/{id}", o.photo)
	mux.HandleFunc("GET /users", o.list(func() map[string]map[string]any { return o.users }))
	mux.HandleFunc("PATCH /users/{id}", o.user)
	mux.HandleFunc("GET /media/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = io.WriteString(w, "jpeg:"+r.PathValue("name"))
	})

	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.calls = append(o.calls, r.Method+" "+r.URL.Path)
		o.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(o.Server.Close)
	return o
}

// Reset restores the seed data.
func (o *ObserveAPI) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.traces = map[string]map[string]any{
		"t1": {"id": "t1", "ownerId": 2, "description": "morning ride", "length": 1200},
		"t2": {"id": "t2", "ownerId": 3, "description": "evening walk", "length": 800},
	}
	o.photos = map[string]map[string]any{
		"p1": {"id": "p1", "ownerId": 2, "description": "bench", "osmElement": "node/10"},
		"p2": {"id": "p2", "ownerId": 3, "description": ""},
	}
	o.users = map[string]map[string]any{
		"1": {"osmId": 1, "osmDisplayName": "admin", "isAdmin": true, "traces": 0, "photos": 0},
		"2": {"osmId": 2, "osmDisplayName": "owner", "isAdmin": false, "traces": 1, "photos": 1},
		"3": {"osmId": 3, "osmDisplayName": "other", "isAdmin": false, "traces": 1, "photos": 1},
	}
	o.calls = nil
}

// Calls returns "METHOD /path" for every request received so far.
func (o *ObserveAPI) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

// CountCalls counts requests matching "METHOD /path".
func (o *ObserveAPI) CountCalls(call string) int {
	n := 0
	for _, c := range o.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Trace returns the stored trace properties.
func (o *ObserveAPI) Trace(id string) map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.traces[id]
}

func (o *ObserveAPI) User(id string) map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.users[id]
}

func (o *ObserveAPI) authorize(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	profile, ok := Profiles[r.Header.Get("Authorization")]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		return nil, false
	}
	return profile, true
}

func (o *ObserveAPI) profile(w http.ResponseWriter, r *http.Request) {
	if profile, ok := o.authorize(w, r); ok {
		writeJSON(w, http.StatusOK, profile)
	}
}

func (o *ObserveAPI) list(items func() map[string]map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := o.authorize(w, r); !ok {
			return
		}
		o.mu.Lock()
		all := items()
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		results := make([]any, 0, len(keys))
		for _, k := range keys {
			results = append(results, o.shape(r.URL.Path, all[k]))
		}
		o.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"results": results,
			"meta":    map[string]any{"count": len(results), "page": 1, "pageCount": 1},
		})
	}
}

// shape renders a stored record the way the API returns it: traces as
// GeoJSON features, photos with their download urls.
func (o *ObserveAPI) shape(path string, rec map[string]any) map[string]any {
	switch {
	case strings.HasPrefix(path, "/traces"):
		return map[string]any{"type": "Feature", "properties": rec}
	case strings.HasPrefix(path, "/photos"):
		out := map[string]any{"urls": map[string]any{
			"thumb": o.Server.URL + "/media/" + rec["id"].(string) + "-thumb.jpg",
			"full":  o.Server.URL + "/media/" + rec["id"].(string) + "-full.jpg",
		}}
		for k, v := range rec {
			out[k] = v
		}
		return out
	}
	return rec
}

func (o *ObserveAPI) trace(w http.ResponseWriter, r *http.Request) {
	if _, ok := o.authorize(w, r); !ok {
		return
	}
	id := r.PathValue("id")
	if gpx, ok := strings.CutSuffix(id, ".gpx"); ok && r.Method == http.MethodGet {
		if o.Trace(gpx) == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Trace not found."})
			return
		}
		w.Header().Set("Content-Type", "application/gpx+xml")
		_, _ = io.WriteString(w, `<gpx><trk><name>`+gpx+`</name></trk></gpx>`)
		return
	}
	o.item(w, r, "/traces", o.traces, id, "Trace not found.")
}

func (o *ObserveAPI) photo(w http.ResponseWriter, r *http.Request) {
	if _, ok := o.authorize(w, r); !ok {
		return
	}
	o.item(w, r, "/photos", o.photos, r.PathValue("id"), "Photo not found.")
}

func (o *ObserveAPI) item(w http.ResponseWriter, r *http.Request, path string, items map[string]map[string]any, id, notFound string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := items[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": notFound})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, o.shape(path, rec))
	case http.MethodPatch:
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid body."})
			return
		}
		for k, v := range fields {
			rec[k] = v
		}
		writeJSON(w, http.StatusOK, o.shape(path, rec))
	case http.MethodDelete:
		delete(items, id)
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (o *ObserveAPI) user(w http.ResponseWriter, r *http.Request) {
	profile, ok := o.authorize(w, r)
	if !ok {
		return
	}
	if admin, _ := profile["isAdmin"].(bool); !admin {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Forbidden."})
		return
	}
	o.item(w, r, "/users", o.users, r.PathValue("id"), "User not found.")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
