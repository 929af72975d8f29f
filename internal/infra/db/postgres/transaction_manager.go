package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager runs repository calls inside a pgx transaction. The transaction
// handle is passed down through the repository.Tx parameter so the same
// repository code serves both transactional and plain paths.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// executor is the subset of pgx operations the repositories need. Both
// pgx.Tx and *pgxpool.Pool satisfy it.
type executor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// getExecutor resolves the repository.Tx handle to a concrete executor,
// falling back to the pool when no transaction is in flight.
func getExecutor(tx repository.Tx, pool *pgxpool.Pool) (executor, error) {
	switch t := tx.(type) {
	case pgx.Tx:
		return t, nil
	case *pgxpool.Conn:
		return t, nil
	case *pgxpool.Pool:
		return t, nil
	case nil:
		return pool, nil
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrInvalidExecContext, tx)
	}
}

func execSQL(ctx context.Context, tx repository.Tx, pool *pgxpool.Pool, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := getExecutor(tx, pool)
	if err != nil {
		return nil, err
	}
	return ex.Exec(ctx, sql, args...)
}

func pickRow(ctx context.Context, tx repository.Tx, pool *pgxpool.Pool, sql string, args ...interface{}) (pgx.Row, error) {
	ex, err := getExecutor(tx, pool)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, sql, args...), nil
}

func queryRows(ctx context.Context, tx repository.Tx, pool *pgxpool.Pool, sql string, args ...interface{}) (pgx.Rows, error) {
	ex, err := getExecutor(tx, pool)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, sql, args...)
}
