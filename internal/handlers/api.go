// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON API over the event and category
// stores.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"eventtree/internal/models"
	"eventtree/internal/store"
)

// TreeCache is the subset of cache.TreeCache the API uses. A nil TreeCache
// disables caching.
type TreeCache interface {
	Generation(ctx context.Context, eventID int64) (int64, bool)
	Get(ctx context.Context, eventID, gen int64) ([]models.TreeEntry, bool)
	Set(ctx context.Context, eventID, gen int64, entries []models.TreeEntry)
	Invalidate(ctx context.Context, eventID int64)
}

// API groups the event and category handlers. FullTree results are served
// from the tree cache when one is configured; every successful mutation
// invalidates the affected event.
type API struct {
	events     *store.EventStore
	categories *store.CategoryStore
	changes    *store.ChangeLogStore
	treeCache  TreeCache
}

// NewAPI creates the API handler group. treeCache may be nil.
func NewAPI(events *store.EventStore, categories *store.CategoryStore, changes *store.ChangeLogStore, treeCache TreeCache) *API {
	return &API{events: events, categories: categories, changes: changes, treeCache: treeCache}
}

type createEventRequest struct {
	Name string `json:"name"`
}

type createCategoryRequest struct {
	Label    string `json:"label"`
	ParentID *int64 `json:"parent_id"`
}

type moveCategoryRequest struct {
	ParentID optionalID `json:"parent_id"`
}

const maxChangeLimit = 500

var errMissingParent = fmt.Errorf("%w: parent_id is required (null makes a root)", errBadRequest)

// CreateEvent handles POST /api/events.
func (a *API) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	event, err := a.events.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /api/events.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.events.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/events/{eventID}.
func (a *API) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	event, err := a.events.FindByID(r.Context(), eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// RootCategories handles GET /api/events/{eventID}/categories/roots.
func (a *API) RootCategories(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	roots, err := a.categories.Roots(r.Context(), eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

// FullTree handles GET /api/events/{eventID}/categories/tree. With
// ?nested=1 the flat entries are assembled into nodes.
func (a *API) FullTree(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := a.fullTree(r.Context(), eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if nested := r.URL.Query().Get("nested"); nested == "1" || nested == "true" {
		forest := models.BuildForest(entries)
		if forest == nil {
			forest = []*models.Node{}
		}
		writeJSON(w, http.StatusOK, forest)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// fullTree checks the cache before querying the store. The generation is
// read before the store so a concurrent mutation makes the write unreachable.
// An unreadable generation skips the cache entirely.
func (a *API) fullTree(ctx context.Context, eventID int64) ([]models.TreeEntry, error) {
	if a.treeCache == nil {
		return a.categories.FullTree(ctx, eventID)
	}

	gen, ok := a.treeCache.Generation(ctx, eventID)
	if !ok {
		return a.categories.FullTree(ctx, eventID)
	}
	if entries, ok := a.treeCache.Get(ctx, eventID, gen); ok {
		return entries, nil
	}

	entries, err := a.categories.FullTree(ctx, eventID)
	if err != nil {
		return nil, err
	}
	a.treeCache.Set(ctx, eventID, gen, entries)
	return entries, nil
}

// TreeChanges handles GET /api/events/{eventID}/changes?limit=n, newest
// first.
func (a *API) TreeChanges(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxChangeLimit {
			writeError(w, r, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxChangeLimit))
			return
		}
	}

	changes, err := a.changes.Recent(r.Context(), eventID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// CreateCategory handles POST /api/events/{eventID}/categories.
func (a *API) CreateCategory(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := a.categories.Create(r.Context(), req.Label, req.ParentID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), cat.EventID)
	writeJSON(w, http.StatusCreated, cat)
}

// GetCategory handles GET /api/categories/{id}.
func (a *API) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := a.categories.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// Subtree handles GET /api/categories/{id}/subtree. An unknown id yields an
// empty list.
func (a *API) Subtree(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := a.categories.Subtree(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Ancestors handles GET /api/categories/{id}/ancestors.
func (a *API) Ancestors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := a.categories.Ancestors(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// MoveCategory handles PUT /api/categories/{id}/parent. The body must name
// parent_id explicitly; null makes the category a root.
func (a *API) MoveCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req moveCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.ParentID.Set {
		writeError(w, r, errMissingParent)
		return
	}

	cat, err := a.categories.Move(r.Context(), id, req.ParentID.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), cat.EventID)
	writeJSON(w, http.StatusOK, cat)
}

// DeleteCategory handles DELETE /api/categories/{id}. The whole subtree goes
// with it; the count is reported in the X-Deleted-Count header.
func (a *API) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := a.categories.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := a.categories.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), cat.EventID)
	w.Header().Set("X-Deleted-Count", strconv.FormatInt(n, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) invalidate(ctx context.Context, eventID int64) {
	if a.treeCache != nil {
		a.treeCache.Invalidate(context.WithoutCancel(ctx), eventID)
	}
}
