package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// dialect captures the few statement differences between the supported
// engines. Both support WITH RECURSIVE and RETURNING.
type dialect struct {
	name    string
	builder sq.StatementBuilderType
	// lockRows appends FOR UPDATE to row reads inside a transaction.
	// SQLite has no row locks; its writers are serialized by the pool.
	lockRows bool
}

func dialectFor(db *sqlx.DB) dialect {
	switch db.DriverName() {
	case "pgx", "postgres":
		return dialect{
			name:     "postgres",
			builder:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
			lockRows: true,
		}
	default:
		return dialect{
			name:    "sqlite",
			builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		}
	}
}

// forUpdate adds a row lock to sel when the engine supports it.
func (d dialect) forUpdate(sel sq.SelectBuilder) sq.SelectBuilder {
	if d.lockRows {
		return sel.Suffix("FOR UPDATE")
	}
	return sel
}
