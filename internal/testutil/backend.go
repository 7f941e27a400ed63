// Package testutil provides shared test helpers, chiefly an in-memory
// stand-in for the test case REST backend.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/casedeck/internal/models"
)

// FakeBackend serves the backend contract under /api from memory.
// Listing honours search/priority/status and orders newest first.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	records  map[int64]models.Record
	nextID   int64
	clock    time.Time
	calls    map[string]int
	requests []string
	fail     map[string]int
	listHook func(url.Values)
}

// NewFakeBackend starts a fake backend that is closed with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		records: make(map[int64]models.Record),
		nextID:  1,
		clock:   time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		calls:   make(map[string]int),
		fail:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})
		r.Get("/testcases", fb.list)
		r.Post("/testcases", fb.create)
		r.Get("/testcases/{id}", fb.get)
		r.Put("/testcases/{id}", fb.update)
		r.Delete("/testcases/{id}", fb.remove)
	})

	fb.Server = httptest.NewServer(fb.track(r))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the API base URL to hand to a backend client.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL + "/api"
}

// Seed stores records as-is, assigning ids and timestamps when missing.
func (fb *FakeBackend) Seed(records ...models.Record) []models.Record {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if rec.ID == 0 {
			rec.ID = fb.nextID
		}
		if rec.ID >= fb.nextID {
			fb.nextID = rec.ID + 1
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = fb.tick()
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = rec.CreatedAt
		}
		fb.records[rec.ID] = rec
		out = append(out, rec)
	}
	return out
}

// Record returns the stored record with the given id.
func (fb *FakeBackend) Record(id int64) (models.Record, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	rec, ok := fb.records[id]
	return rec, ok
}

// Len returns the number of stored records.
func (fb *FakeBackend) Len() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.records)
}

// Calls returns how many requests with the given method were received.
func (fb *FakeBackend) Calls(method string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[method]
}

// Requests returns "METHOD /path?query" for every request received.
func (fb *FakeBackend) Requests() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.requests...)
}

// Fail makes every request with method answer status until cleared with
// status 0.
func (fb *FakeBackend) Fail(method string, status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if status == 0 {
		delete(fb.fail, method)
		return
	}
	fb.fail[method] = status
}

// OnList installs a hook that runs before a list response is written.
// Tests use it to delay or reorder responses.
func (fb *FakeBackend) OnList(hook func(url.Values)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.listHook = hook
}

func (fb *FakeBackend) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.calls[r.Method]++
		line := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			line += "?" + r.URL.RawQuery
		}
		fb.requests = append(fb.requests, line)
		status := fb.fail[r.Method]
		fb.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tick returns a strictly increasing creation time. Callers hold mu.
func (fb *FakeBackend) tick() models.Timestamp {
	fb.clock = fb.clock.Add(time.Minute)
	return models.Timestamp{Time: fb.clock}
}

func (fb *FakeBackend) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fb.mu.Lock()
	hook := fb.listHook
	fb.mu.Unlock()
	if hook != nil {
		hook(q)
	}

	priority := q.Get("priority")
	status := q.Get("status")
	search := strings.ToLower(q.Get("search"))

	fb.mu.Lock()
	out := make([]models.Record, 0, len(fb.records))
	for _, rec := range fb.records {
		if priority != "" && string(rec.Priority) != priority {
			continue
		}
		if status != "" && string(rec.Status) != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(rec.Title), search) &&
			!strings.Contains(strings.ToLower(rec.FeatureName), search) {
			continue
		}
		out = append(out, rec)
	}
	fb.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt.Time) {
			return out[i].CreatedAt.After(out[j].CreatedAt.Time)
		}
		return out[i].ID > out[j].ID
	})
	writeJSON(w, http.StatusOK, out)
}

func (fb *FakeBackend) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, found := fb.Record(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Test case not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (fb *FakeBackend) create(w http.ResponseWriter, r *http.Request) {
	var d models.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid JSON body"})
		return
	}
	if err := d.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	fb.mu.Lock()
	now := fb.tick()
	rec := models.Record{
		ID:             fb.nextID,
		FeatureName:    d.FeatureName,
		Title:          d.Title,
		Steps:          d.Steps,
		ExpectedResult: d.ExpectedResult,
		Priority:       d.Priority,
		Status:         d.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	fb.nextID++
	fb.records[rec.ID] = rec
	fb.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (fb *FakeBackend) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var d models.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid JSON body"})
		return
	}
	if err := d.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	fb.mu.Lock()
	rec, found := fb.records[id]
	if !found {
		fb.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Test case not found"})
		return
	}
	rec.FeatureName = d.FeatureName
	rec.Title = d.Title
	rec.Steps = d.Steps
	rec.ExpectedResult = d.ExpectedResult
	rec.Priority = d.Priority
	rec.Status = d.Status
	rec.UpdatedAt = fb.tick()
	fb.records[id] = rec
	fb.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (fb *FakeBackend) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	fb.mu.Lock()
	_, found := fb.records[id]
	delete(fb.records, id)
	fb.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Test case not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
