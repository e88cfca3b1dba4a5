// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// tree.go provides a Valkey-backed cache of full category trees per event.
// Entries are keyed by a per-event generation counter: a mutation bumps the
// generation, so a reader that loaded the tree before the mutation stores
// its result under a generation nobody reads anymore.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"eventtree/internal/models"
)

const (
	// treeKeyPrefix is the Valkey key prefix for cached trees.
	treeKeyPrefix = "tree:"

	// DefaultTreeTTL is how long a full tree stays cached.
	DefaultTreeTTL = 5 * time.Minute

	// generationTTL outlives every tree entry so a reset counter can never
	// resurrect an old entry.
	generationTTL = 24 * time.Hour
)

// TreeCache caches FullTree results in Valkey.
type TreeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTreeCache creates a new tree cache backed by the given Valkey client.
func NewTreeCache(client *redis.Client, ttl time.Duration) *TreeCache {
	if ttl == 0 {
		ttl = DefaultTreeTTL
	}
	return &TreeCache{client: client, ttl: ttl}
}

// Generation returns the current generation of an event's tree, 0 if none
// has been recorded. ok is false when the generation could not be read;
// callers must then bypass the cache, since an old entry may still sit under
// any generation they guess.
func (tc *TreeCache) Generation(ctx context.Context, eventID int64) (gen int64, ok bool) {
	gen, err := tc.client.Get(ctx, GenerationKey(eventID)).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		slog.Warn("tree cache generation error", "event_id", eventID, "error", err)
		return 0, false
	}
	return gen, true
}

// Get retrieves the cached tree for an event at generation gen.
func (tc *TreeCache) Get(ctx context.Context, eventID, gen int64) ([]models.TreeEntry, bool) {
	val, err := tc.client.Get(ctx, TreeKey(eventID, gen)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("tree cache get error", "event_id", eventID, "error", err)
		return nil, false
	}

	var entries []models.TreeEntry
	if err := json.Unmarshal(val, &entries); err != nil {
		slog.Warn("tree cache decode error", "event_id", eventID, "error", err)
		return nil, false
	}
	slog.Debug("tree cache hit", "event_id", eventID, "generation", gen)
	return entries, true
}

// Set stores the tree for an event at generation gen with the configured TTL.
func (tc *TreeCache) Set(ctx context.Context, eventID, gen int64, entries []models.TreeEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		slog.Warn("tree cache encode error", "event_id", eventID, "error", err)
		return
	}
	if err := tc.client.Set(ctx, TreeKey(eventID, gen), data, tc.ttl).Err(); err != nil {
		slog.Warn("tree cache set error", "event_id", eventID, "error", err)
	}
}

// Invalidate bumps the event's generation so cached trees are no longer read.
func (tc *TreeCache) Invalidate(ctx context.Context, eventID int64) {
	key := GenerationKey(eventID)
	pipe := tc.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, generationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("tree cache invalidate error", "event_id", eventID, "error", err)
		return
	}
	slog.Debug("tree cache invalidated", "event_id", eventID)
}

// TreeKey returns the cache key for an event's tree at a generation.
func TreeKey(eventID, gen int64) string {
	return fmt.Sprintf("%s%d:%d", treeKeyPrefix, eventID, gen)
}

// GenerationKey returns the key holding an event's tree generation.
func GenerationKey(eventID int64) string {
	return fmt.Sprintf("%sgen:%d", treeKeyPrefix, eventID)
}
