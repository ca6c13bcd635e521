package data

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is anything that can run Query() from jackc's pgx library.
// Usefully, all of these pgx structs/interfaces have the same signature for Query():
//
//	pgx.Conn
//	pgx.Tx
//	pgxpool.Conn
//	pgxpool.Pool
//
// So if a function implements Querier, then that function can take, as an argument,
// any of the above, meaning that function will automatically work with pgx connections,
// connection pools, transactions, etc.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Execer is anything that can run Exec() from jackc's pgx library, with the
// same benefits as Querier.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Batcher is anything that can send a pgx batch: several independent queries
// sharing one wire round trip, with per-query results. The same pgx
// structs/interfaces that satisfy Querier satisfy Batcher too.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// QueryBatcher is what the Dispatcher needs from the store: single queries
// and batches. A *pgxpool.Pool satisfies it, and so do test fakes.
type QueryBatcher interface {
	Querier
	Batcher
}

// Closer is used for running `defer xxx.Close()` on the pooler later
type Closer interface {
	Close()
}
