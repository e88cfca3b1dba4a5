package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("eventtree/store")

// TxRunner runs multi-statement mutations as one atomic unit.
type TxRunner struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTxRunner returns a TxRunner using the engine's default isolation
// (read committed on PostgreSQL). Callers take explicit row locks.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db, opts: &sql.TxOptions{Isolation: sql.LevelDefault}}
}

// WithIsolation returns a copy of r that begins transactions at level.
func (r *TxRunner) WithIsolation(level sql.IsolationLevel) *TxRunner {
	return &TxRunner{db: r.db, opts: &sql.TxOptions{Isolation: level}}
}

// RunAtomic executes fn inside a transaction bound to ctx. Either every
// statement fn issues commits or none does: an error or panic from fn, or a
// cancelled ctx, rolls back. Errors from fn are returned unchanged; begin
// and commit failures are backend errors. RunAtomic never retries.
func (r *TxRunner) RunAtomic(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) (err error) {
	ctx, span := tracer.Start(ctx, "store.atomic",
		trace.WithAttributes(attribute.String("store.op", op)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, KindOf(err).Error())
		}
		span.End()
	}()

	tx, err := r.db.BeginTxx(ctx, r.opts)
	if err != nil {
		return backendError(op, fmt.Errorf("begin tx: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return &Error{Op: op, Kind: ErrBackend, Err: fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)}
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return backendError(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}
