package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"eventtree/internal/models"
)

// maxNameLen bounds event names and category labels, in runes.
const maxNameLen = 200

// EventStore manages events in the database.
type EventStore struct {
	db *sqlx.DB
	d  dialect
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db, d: dialectFor(db)}
}

const eventColumns = `id, name`

// Create inserts a new event with the given name and returns it.
func (s *EventStore) Create(ctx context.Context, name string) (*models.Event, error) {
	const op = "create event"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError(op, "name", "name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, validationError(op, "name", "name is too long (max %d characters)", maxNameLen)
	}

	query, args, err := s.d.builder.
		Insert("events").
		Columns("name").
		Values(name).
		Suffix("RETURNING " + eventColumns).
		ToSql()
	if err != nil {
		return nil, backendError(op, fmt.Errorf("build insert: %w", err))
	}

	var e models.Event
	if err := s.db.GetContext(ctx, &e, query, args...); err != nil {
		return nil, backendError(op, err)
	}
	return &e, nil
}

// FindByID retrieves an event by ID.
func (s *EventStore) FindByID(ctx context.Context, id int64) (*models.Event, error) {
	const op = "get event"
	e, err := findEvent(ctx, s.db, s.d, id, false)
	if err != nil {
		return nil, eventLookupError(op, id, err)
	}
	return e, nil
}

// List returns all events ordered by ID.
func (s *EventStore) List(ctx context.Context) ([]models.Event, error) {
	const op = "list events"

	query, args, err := s.d.builder.
		Select(eventColumns).
		From("events").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, backendError(op, fmt.Errorf("build select: %w", err))
	}

	items := []models.Event{}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, backendError(op, err)
	}
	return items, nil
}

// findEvent reads one event row through q, optionally locking it. Returns
// sql.ErrNoRows when the event does not exist.
func findEvent(ctx context.Context, q sqlx.QueryerContext, d dialect, id int64, lock bool) (*models.Event, error) {
	sel := d.builder.Select(eventColumns).From("events").Where("id = ?", id)
	if lock {
		sel = d.forUpdate(sel)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var e models.Event
	if err := sqlx.GetContext(ctx, q, &e, query, args...); err != nil {
		return nil, err
	}
	return &e, nil
}

// eventLookupError maps a findEvent failure onto a store error.
func eventLookupError(op string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(op, "event", id)
	}
	return backendError(op, err)
}
