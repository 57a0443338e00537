package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repositories use. It is
// implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool PgxPool

	Collections  CollectionRepository
	Objects      ObjectRepository
	Sharees      ShareeRepository
	Users        UserRepository
	AppPasswords AppPasswordRepository
}

// New wires concrete repository implementations with a shared connection
// pool. The reconciler is injected so the sharee repository can run it
// inside its transaction without a package cycle.
func New(pool PgxPool, reconciler ShareeReconciler) *Store {
	return &Store{
		pool:         pool,
		Collections:  &collectionRepo{pool: pool},
		Objects:      &objectRepo{pool: pool},
		Sharees:      &shareeRepo{pool: pool, reconciler: reconciler},
		Users:        &userRepo{pool: pool},
		AppPasswords: &appPasswordRepo{pool: pool},
	}
}

// SetReconciler injects the sharee reconciler after construction. The
// reconciler resolves hrefs against this store's own Users repository, so it
// cannot exist before the store does.
func (s *Store) SetReconciler(rec ShareeReconciler) {
	if r, ok := s.Sharees.(*shareeRepo); ok {
		r.reconciler = rec
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
