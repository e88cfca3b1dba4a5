// store_test.go provides shared database helpers for the store tests. Every
// test runs against a fresh SQLite file; PostgreSQL runs are added when the
// server is reachable and skipped otherwise.
package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"eventtree/internal/database"
	"eventtree/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "eventtree")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "eventtree")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testSQLite opens a migrated SQLite database in a temporary directory.
func testSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Connect(database.DriverSQLite, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// testPostgres opens the test PostgreSQL database and runs migrations.
// If the database is unavailable, the test is skipped.
func testPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Connect(database.DriverPostgres, testDSN())
	if err != nil {
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db), "failed to run migrations")
	return db
}

// stores bundles the stores over one database for a test.
type stores struct {
	db         *sqlx.DB
	events     *EventStore
	categories *CategoryStore
	changes    *ChangeLogStore
}

func newStores(db *sqlx.DB) *stores {
	return &stores{
		db:         db,
		events:     NewEventStore(db),
		categories: NewCategoryStore(db, NewTxRunner(db), DefaultMaxDepth),
		changes:    NewChangeLogStore(db),
	}
}

// forEachBackend runs fn against SQLite and, when reachable, PostgreSQL.
func forEachBackend(t *testing.T, fn func(t *testing.T, s *stores)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newStores(testSQLite(t)))
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, newStores(testPostgres(t)))
	})
}

// event creates an event that is removed, with its categories, when the
// test finishes.
func (s *stores) event(t *testing.T, name string) *models.Event {
	t.Helper()
	e, err := s.events.Create(context.Background(), name)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.Exec(s.db.Rebind("DELETE FROM events WHERE id = ?"), e.ID)
	})
	return e
}

// category creates a category and fails the test on error.
func (s *stores) category(t *testing.T, label string, parent *models.Category, eventID int64) *models.Category {
	t.Helper()
	var parentID *int64
	if parent != nil {
		parentID = &parent.ID
	}
	c, err := s.categories.Create(context.Background(), label, parentID, eventID)
	require.NoError(t, err)
	return c
}

// ids extracts category ids in order.
func ids(entries []models.TreeEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func ptr(id int64) *int64 { return &id }
