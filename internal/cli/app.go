package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"eventtree/internal/config"
	"eventtree/internal/database"
	"eventtree/internal/store"
)

// app holds the database pool and the stores built on it.
type app struct {
	db         *sqlx.DB
	events     *store.EventStore
	categories *store.CategoryStore
	changes    *store.ChangeLogStore
}

// openApp connects to the configured database, applies migrations and
// builds the stores. The caller closes the pool.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &app{
		db:         db,
		events:     store.NewEventStore(db),
		categories: store.NewCategoryStore(db, store.NewTxRunner(db), cfg.MaxTreeDepth),
		changes:    store.NewChangeLogStore(db),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
