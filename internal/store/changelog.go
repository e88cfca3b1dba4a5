// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// changelog.go records structural mutations of category forests. Entries are
// written inside the mutating transaction, so the log never disagrees with
// the tree.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"eventtree/internal/models"
)

// DefaultChangeLimit is used when Recent is called without a positive limit.
const DefaultChangeLimit = 50

// ChangeLogStore reads the tree change log.
type ChangeLogStore struct {
	db *sqlx.DB
	d  dialect
}

// NewChangeLogStore creates a new ChangeLogStore.
func NewChangeLogStore(db *sqlx.DB) *ChangeLogStore {
	return &ChangeLogStore{db: db, d: dialectFor(db)}
}

// Recent returns the latest changes of an event, newest first.
func (s *ChangeLogStore) Recent(ctx context.Context, eventID int64, limit int) ([]models.TreeChange, error) {
	const op = "list tree changes"

	if limit <= 0 {
		limit = DefaultChangeLimit
	}

	if _, err := findEvent(ctx, s.db, s.d, eventID, false); err != nil {
		return nil, eventLookupError(op, eventID, err)
	}

	query, args, err := s.d.builder.
		Select("id, event_id, category_id, action, parent_id, previous_parent_id, affected").
		From("tree_changes").
		Where("event_id = ?", eventID).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, backendError(op, fmt.Errorf("build select: %w", err))
	}

	changes := []models.TreeChange{}
	if err := s.db.SelectContext(ctx, &changes, query, args...); err != nil {
		return nil, backendError(op, err)
	}
	return changes, nil
}

// recordChange appends one entry to the change log through tx.
func recordChange(ctx context.Context, tx *sqlx.Tx, d dialect, c models.TreeChange) error {
	query, args, err := d.builder.
		Insert("tree_changes").
		Columns("event_id", "category_id", "action", "parent_id", "previous_parent_id", "affected").
		Values(c.EventID, c.CategoryID, c.Action, nullableID(c.ParentID), nullableID(c.PreviousParentID), c.Affected).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record %s of category %d: %w", c.Action, c.CategoryID, err)
	}

	slog.Debug("tree change recorded",
		"event_id", c.EventID,
		"category_id", c.CategoryID,
		"action", c.Action,
		"affected", c.Affected,
	)
	return nil
}
