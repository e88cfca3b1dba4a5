// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests:
// a migrated SQLite database per test and an in-memory tree cache.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"eventtree/internal/database"
	"eventtree/internal/models"
	"eventtree/internal/store"
)

// memoryTreeCache implements TreeCache with generation semantics.
type memoryTreeCache struct {
	mu      sync.Mutex
	gens    map[int64]int64
	entries map[[2]int64][]models.TreeEntry
	hits    int
	down    bool // generation reads fail
}

func newMemoryTreeCache() *memoryTreeCache {
	return &memoryTreeCache{gens: map[int64]int64{}, entries: map[[2]int64][]models.TreeEntry{}}
}

func (c *memoryTreeCache) Generation(_ context.Context, eventID int64) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return 0, false
	}
	return c.gens[eventID], true
}

func (c *memoryTreeCache) Get(_ context.Context, eventID, gen int64) ([]models.TreeEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[[2]int64{eventID, gen}]
	if ok {
		c.hits++
	}
	return e, ok
}

func (c *memoryTreeCache) Set(_ context.Context, eventID, gen int64, entries []models.TreeEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[[2]int64{eventID, gen}] = entries
}

func (c *memoryTreeCache) Invalidate(_ context.Context, eventID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[eventID]++
}

// testEnv is an API mounted on a chi router over a fresh SQLite database.
type testEnv struct {
	router http.Handler
	cache  *memoryTreeCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Connect(database.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cache := newMemoryTreeCache()
	api := NewAPI(
		store.NewEventStore(db),
		store.NewCategoryStore(db, store.NewTxRunner(db), store.DefaultMaxDepth),
		store.NewChangeLogStore(db),
		cache,
	)

	r := chi.NewRouter()
	r.Get("/api/events", api.ListEvents)
	r.Post("/api/events", api.CreateEvent)
	r.Get("/api/events/{eventID}", api.GetEvent)
	r.Get("/api/events/{eventID}/categories/roots", api.RootCategories)
	r.Get("/api/events/{eventID}/categories/tree", api.FullTree)
	r.Get("/api/events/{eventID}/changes", api.TreeChanges)
	r.Post("/api/events/{eventID}/categories", api.CreateCategory)
	r.Get("/api/categories/{id}", api.GetCategory)
	r.Get("/api/categories/{id}/subtree", api.Subtree)
	r.Get("/api/categories/{id}/ancestors", api.Ancestors)
	r.Put("/api/categories/{id}/parent", api.MoveCategory)
	r.Delete("/api/categories/{id}", api.DeleteCategory)

	return &testEnv{router: r, cache: cache}
}

// do sends a request with an optional JSON body and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals the response body into v.
func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

// expectStatus fails the test when the response code differs.
func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

// expectKind checks the error kind of a JSON error response.
func expectKind(t *testing.T, rr *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	expectStatus(t, rr, status)
	var body errorBody
	decode(t, rr, &body)
	if body.Kind != kind {
		t.Errorf("kind: got %q, want %q", body.Kind, kind)
	}
	if body.Error == "" {
		t.Error("error message should not be empty")
	}
}

func (e *testEnv) createEvent(t *testing.T, name string) models.Event {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/events", `{"name":"`+name+`"}`)
	expectStatus(t, rr, http.StatusCreated)
	var ev models.Event
	decode(t, rr, &ev)
	return ev
}

func (e *testEnv) createCategory(t *testing.T, eventID int64, body string) models.Category {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/events/"+itoa(eventID)+"/categories", body)
	expectStatus(t, rr, http.StatusCreated)
	var c models.Category
	decode(t, rr, &c)
	return c
}
