// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eventtree/internal/models"
)

// DefaultMaxDepth is the number of levels a tree may have. It also bounds
// every recursive traversal so that malformed parent links can never make a
// query run forever.
const DefaultMaxDepth = 512

// CategoryStore manages the category forests of events. Categories form an
// adjacency list through parent_id; all traversal is done with recursive
// queries and all mutations run through a TxRunner.
type CategoryStore struct {
	db       *sqlx.DB
	tx       *TxRunner
	d        dialect
	maxDepth int
}

// NewCategoryStore returns a new CategoryStore whose trees hold at most
// maxDepth levels (roots are level one). A maxDepth of zero or less selects
// DefaultMaxDepth.
func NewCategoryStore(db *sqlx.DB, tx *TxRunner, maxDepth int) *CategoryStore {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CategoryStore{db: db, tx: tx, d: dialectFor(db), maxDepth: maxDepth}
}

const categoryColumns = `id, label, parent_id, event_id`

// subtreeQuery expands a category and its descendants. Depth is relative to
// the requested category.
const subtreeQuery = `
	WITH RECURSIVE subtree (id, label, parent_id, event_id, depth) AS (
		SELECT id, label, parent_id, event_id, 0
		FROM categories
		WHERE id = ?
		UNION ALL
		SELECT c.id, c.label, c.parent_id, c.event_id, s.depth + 1
		FROM categories c
		JOIN subtree s ON c.parent_id = s.id
		WHERE s.depth < ?
	)
	SELECT id, label, parent_id, event_id, depth
	FROM subtree
	ORDER BY depth, id`

// fullTreeQuery expands every root of an event.
const fullTreeQuery = `
	WITH RECURSIVE tree (id, label, parent_id, event_id, depth) AS (
		SELECT id, label, parent_id, event_id, 0
		FROM categories
		WHERE event_id = ? AND parent_id IS NULL
		UNION ALL
		SELECT c.id, c.label, c.parent_id, c.event_id, t.depth + 1
		FROM categories c
		JOIN tree t ON c.parent_id = t.id AND c.event_id = t.event_id
		WHERE t.depth < ?
	)
	SELECT id, label, parent_id, event_id, depth
	FROM tree
	ORDER BY depth, id`

// ancestorsQuery walks parent links upward. Depth counts steps from the
// starting category.
const ancestorsQuery = `
	WITH RECURSIVE ancestry (id, label, parent_id, event_id, depth) AS (
		SELECT id, label, parent_id, event_id, 0
		FROM categories
		WHERE id = ?
		UNION ALL
		SELECT c.id, c.label, c.parent_id, c.event_id, a.depth + 1
		FROM categories c
		JOIN ancestry a ON c.id = a.parent_id
		WHERE a.depth < ?
	)
	SELECT id, label, parent_id, event_id, depth
	FROM ancestry
	ORDER BY depth, id`

// deleteSubtreeQuery removes a category and its descendants in one statement.
// The ON DELETE CASCADE foreign key covers anything below the depth cap.
const deleteSubtreeQuery = `
	WITH RECURSIVE subtree (id, depth) AS (
		SELECT id, 0
		FROM categories
		WHERE id = ?
		UNION ALL
		SELECT c.id, s.depth + 1
		FROM categories c
		JOIN subtree s ON c.parent_id = s.id
		WHERE s.depth < ?
	)
	DELETE FROM categories WHERE id IN (SELECT id FROM subtree)`

// Create inserts a category under eventID, as a root when parentID is nil.
// The parent must exist, belong to the same event and sit above the last
// level the tree may have.
func (s *CategoryStore) Create(ctx context.Context, label string, parentID *int64, eventID int64) (*models.Category, error) {
	const op = "create category"

	label = strings.TrimSpace(label)
	if label == "" {
		return nil, validationError(op, "label", "label is required")
	}
	if utf8.RuneCountInString(label) > maxNameLen {
		return nil, validationError(op, "label", "label is too long (max %d characters)", maxNameLen)
	}

	var created models.Category
	err := s.tx.RunAtomic(ctx, op, func(tx *sqlx.Tx) error {
		// The event row is the per-event mutation lock.
		if _, err := findEvent(ctx, tx, s.d, eventID, true); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return invalidReference(op, "event_id", eventID, "does not exist")
			}
			return backendError(op, err)
		}

		if parentID != nil {
			parent, err := s.find(ctx, tx, *parentID, false)
			if errors.Is(err, sql.ErrNoRows) {
				return invalidReference(op, "parent_id", *parentID, "does not exist")
			}
			if err != nil {
				return backendError(op, err)
			}
			if parent.EventID != eventID {
				return invalidReference(op, "parent_id", *parentID,
					fmt.Sprintf("belongs to event %d", parent.EventID))
			}

			path, err := s.pathToRoot(ctx, tx, op, *parentID)
			if err != nil {
				return err
			}
			if len(path) >= s.maxDepth {
				return validationError(op, "parent_id",
					"category %d is on the last of %d levels", *parentID, s.maxDepth)
			}
		}

		query, args, err := s.d.builder.
			Insert("categories").
			Columns("label", "parent_id", "event_id").
			Values(label, nullableID(parentID), eventID).
			Suffix("RETURNING " + categoryColumns).
			ToSql()
		if err != nil {
			return backendError(op, fmt.Errorf("build insert: %w", err))
		}
		if err := tx.GetContext(ctx, &created, query, args...); err != nil {
			return backendError(op, err)
		}
		return s.record(ctx, tx, op, models.TreeChange{
			EventID:    eventID,
			CategoryID: created.ID,
			Action:     models.ChangeCreate,
			ParentID:   parentID,
			Affected:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// FindByID retrieves a category by ID.
func (s *CategoryStore) FindByID(ctx context.Context, id int64) (*models.Category, error) {
	const op = "get category"
	c, err := s.find(ctx, s.db, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, "category", id)
	}
	if err != nil {
		return nil, backendError(op, err)
	}
	return c, nil
}

// Subtree returns the category and all of its descendants ordered by
// (depth, id), the category itself first at depth 0. A category that does
// not exist yields an empty result, not an error.
func (s *CategoryStore) Subtree(ctx context.Context, id int64) ([]models.TreeEntry, error) {
	const op = "fetch subtree"
	entries, err := s.traverse(ctx, s.db, subtreeQuery, id)
	if err != nil {
		return nil, backendError(op, err)
	}
	return entries, nil
}

// Roots returns the root categories of an event ordered by ID.
func (s *CategoryStore) Roots(ctx context.Context, eventID int64) ([]models.Category, error) {
	const op = "fetch root categories"

	if err := s.requireEvent(ctx, op, eventID); err != nil {
		return nil, err
	}

	query, args, err := s.d.builder.
		Select(categoryColumns).
		From("categories").
		Where("event_id = ?", eventID).
		Where("parent_id IS NULL").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, backendError(op, fmt.Errorf("build select: %w", err))
	}

	items := []models.Category{}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, backendError(op, err)
	}
	return items, nil
}

// FullTree returns every category of an event annotated with its depth from
// its root, ordered by (depth, id). Use models.BuildForest to nest it.
func (s *CategoryStore) FullTree(ctx context.Context, eventID int64) ([]models.TreeEntry, error) {
	const op = "fetch full tree"

	if err := s.requireEvent(ctx, op, eventID); err != nil {
		return nil, err
	}
	entries, err := s.traverse(ctx, s.db, fullTreeQuery, eventID)
	if err != nil {
		return nil, backendError(op, err)
	}
	return entries, nil
}

// Ancestors returns the path from the category up to its root, the category
// itself first at depth 0. A category that does not exist yields an empty
// result.
func (s *CategoryStore) Ancestors(ctx context.Context, id int64) ([]models.TreeEntry, error) {
	const op = "fetch ancestors"
	entries, err := s.traverse(ctx, s.db, ancestorsQuery, id)
	if err != nil {
		return nil, backendError(op, err)
	}
	return entries, nil
}

// Delete removes the category and its entire subtree atomically and returns
// the number of categories removed. The count is the drop in the event's
// category total, so rows removed by the foreign key cascade are included.
func (s *CategoryStore) Delete(ctx context.Context, id int64) (int64, error) {
	const op = "delete category"

	var removed int64
	err := s.tx.RunAtomic(ctx, op, func(tx *sqlx.Tx) error {
		c, err := s.lockForMutation(ctx, tx, op, id)
		if err != nil {
			return err
		}

		before, err := s.countInEvent(ctx, tx, c.EventID)
		if err != nil {
			return backendError(op, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(deleteSubtreeQuery), id, s.maxDepth); err != nil {
			return backendError(op, err)
		}
		after, err := s.countInEvent(ctx, tx, c.EventID)
		if err != nil {
			return backendError(op, err)
		}
		n := before - after
		removed = n
		return s.record(ctx, tx, op, models.TreeChange{
			EventID:          c.EventID,
			CategoryID:       id,
			Action:           models.ChangeDelete,
			PreviousParentID: c.ParentID,
			Affected:         n,
		})
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Move re-parents the category under newParentID, or makes it a root when
// newParentID is nil. Descendants keep their parent links, so the whole
// subtree moves. The new parent must exist, belong to the same event, and
// be neither the category itself nor one of its descendants. The moved
// subtree must still fit in the tree's levels below it.
func (s *CategoryStore) Move(ctx context.Context, id int64, newParentID *int64) (*models.Category, error) {
	const op = "move category"

	var moved *models.Category
	err := s.tx.RunAtomic(ctx, op, func(tx *sqlx.Tx) error {
		c, err := s.lockForMutation(ctx, tx, op, id)
		if err != nil {
			return err
		}

		if newParentID != nil {
			pid := *newParentID
			if pid == id {
				return invariantViolation(op, "category %d cannot be its own parent", id)
			}

			parent, err := s.find(ctx, tx, pid, false)
			if errors.Is(err, sql.ErrNoRows) {
				return invalidReference(op, "parent_id", pid, "does not exist")
			}
			if err != nil {
				return backendError(op, err)
			}
			if parent.EventID != c.EventID {
				return invalidReference(op, "parent_id", pid,
					fmt.Sprintf("belongs to event %d", parent.EventID))
			}

			// The move closes a cycle iff id lies on the new parent's path
			// to its root. A path cut off by the depth cap proves nothing and
			// is rejected.
			path, err := s.ancestry(ctx, tx, pid)
			if err != nil {
				return backendError(op, err)
			}
			for _, a := range path {
				if a.ID == id {
					return invariantViolation(op, "category %d is a descendant of category %d", pid, id)
				}
			}
			if !reachesRoot(path) {
				return truncatedPath(op, pid, s.maxDepth)
			}

			subtree, err := s.traverse(ctx, tx, subtreeQuery, id)
			if err != nil {
				return backendError(op, err)
			}
			if len(path)+height(subtree) >= s.maxDepth {
				return validationError(op, "parent_id",
					"moving category %d under %d exceeds %d levels", id, pid, s.maxDepth)
			}
		}

		query, args, err := s.d.builder.
			Update("categories").
			Set("parent_id", nullableID(newParentID)).
			Where("id = ?", id).
			ToSql()
		if err != nil {
			return backendError(op, fmt.Errorf("build update: %w", err))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return backendError(op, err)
		}

		change := models.TreeChange{
			EventID:          c.EventID,
			CategoryID:       id,
			Action:           models.ChangeMove,
			ParentID:         newParentID,
			PreviousParentID: c.ParentID,
			Affected:         1,
		}
		c.ParentID = newParentID
		moved = c
		return s.record(ctx, tx, op, change)
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// lockForMutation resolves the category, takes the lock on its event row and
// re-reads the category under that lock. Every structural mutation of an
// event goes through the same lock, so a cycle check cannot interleave with
// another writer's update.
func (s *CategoryStore) lockForMutation(ctx context.Context, tx *sqlx.Tx, op string, id int64) (*models.Category, error) {
	c, err := s.find(ctx, tx, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, "category", id)
	}
	if err != nil {
		return nil, backendError(op, err)
	}

	if _, err := findEvent(ctx, tx, s.d, c.EventID, true); err != nil {
		return nil, backendError(op, fmt.Errorf("lock event %d: %w", c.EventID, err))
	}

	// Another writer may have removed the category while we waited.
	c, err = s.find(ctx, tx, id, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, "category", id)
	}
	if err != nil {
		return nil, backendError(op, err)
	}
	return c, nil
}

// ancestry walks up from id through q.
func (s *CategoryStore) ancestry(ctx context.Context, q sqlx.QueryerContext, id int64) ([]models.TreeEntry, error) {
	return s.traverse(ctx, q, ancestorsQuery, id)
}

// pathToRoot returns the ancestry of id, id first. It fails when the walk
// stops at the depth cap before reaching a root.
func (s *CategoryStore) pathToRoot(ctx context.Context, q sqlx.QueryerContext, op string, id int64) ([]models.TreeEntry, error) {
	path, err := s.ancestry(ctx, q, id)
	if err != nil {
		return nil, backendError(op, err)
	}
	if !reachesRoot(path) {
		return nil, truncatedPath(op, id, s.maxDepth)
	}
	return path, nil
}

func reachesRoot(path []models.TreeEntry) bool {
	return len(path) > 0 && path[len(path)-1].ParentID == nil
}

func truncatedPath(op string, id int64, maxDepth int) error {
	return invariantViolation(op, "ancestry of category %d does not reach a root within %d levels", id, maxDepth)
}

// height is the greatest depth in a traversal result.
func height(entries []models.TreeEntry) int {
	h := 0
	for _, e := range entries {
		if e.Depth > h {
			h = e.Depth
		}
	}
	return h
}

// countInEvent counts an event's categories inside tx.
func (s *CategoryStore) countInEvent(ctx context.Context, tx *sqlx.Tx, eventID int64) (int64, error) {
	query, args, err := s.d.builder.
		Select("COUNT(*)").
		From("categories").
		Where("event_id = ?", eventID).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := tx.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// record appends a change log entry inside the mutation's transaction.
func (s *CategoryStore) record(ctx context.Context, tx *sqlx.Tx, op string, c models.TreeChange) error {
	if err := recordChange(ctx, tx, s.d, c); err != nil {
		return backendError(op, err)
	}
	return nil
}

// requireEvent fails with a not-found error when the event does not exist.
func (s *CategoryStore) requireEvent(ctx context.Context, op string, eventID int64) error {
	if _, err := findEvent(ctx, s.db, s.d, eventID, false); err != nil {
		return eventLookupError(op, eventID, err)
	}
	return nil
}

// find reads one category through q, optionally locking its row.
func (s *CategoryStore) find(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*models.Category, error) {
	sel := s.d.builder.Select(categoryColumns).From("categories").Where("id = ?", id)
	if lock {
		sel = s.d.forUpdate(sel)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var c models.Category
	if err := sqlx.GetContext(ctx, q, &c, query, args...); err != nil {
		return nil, err
	}
	return &c, nil
}

// traverse runs one of the recursive queries with the depth cap and keeps
// the shallowest occurrence of each category. Duplicates only appear when
// stored parent links contain a cycle.
func (s *CategoryStore) traverse(ctx context.Context, q sqlx.QueryerContext, query string, id int64) ([]models.TreeEntry, error) {
	ctx, span := tracer.Start(ctx, "store.traverse",
		trace.WithAttributes(attribute.Int64("store.start_id", id)))
	defer span.End()

	var rows []models.TreeEntry
	if err := sqlx.SelectContext(ctx, q, &rows, s.db.Rebind(query), id, s.maxDepth); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("store.rows", len(rows)))

	seen := make(map[int64]struct{}, len(rows))
	entries := make([]models.TreeEntry, 0, len(rows))
	capped := false
	for _, r := range rows {
		if r.Depth >= s.maxDepth {
			capped = true
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		entries = append(entries, r)
	}
	if capped {
		slog.Warn("category traversal reached depth limit",
			"start_id", id,
			"max_depth", s.maxDepth,
			"rows", len(rows),
		)
	}
	return entries, nil
}

// nullableID turns an optional id into a driver value: NULL or the int64.
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
