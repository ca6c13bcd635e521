package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// NOTE on error handling: we follow the advice at https://blog.golang.org/go1.13-errors:
// The pgx errors we will be dealing with are internal details.
// To avoid exposing them to the caller, we repackage them as new
// errors with the same text. We use the %v formatting verb, since
// %w would permit the caller to unwrap the original pgx errors.
// We don't want to support pgx errors as part of our API.

// ErrTimedOut is delivered to a callback whose store operation stayed
// pending longer than the registry's maximum age.
var ErrTimedOut = errors.New("store operation timed out")

// ResultFunc receives the outcome of a dispatched query together with the
// rock supplied at dispatch time. rows is nil whenever err is non-nil. The
// function must fully consume rows before returning; the dispatcher closes
// them afterward.
type ResultFunc func(rows pgx.Rows, err error, rock string)

// Op is one query to dispatch: its text, parameters, opaque caller context,
// and completion callback.
type Op struct {
	SQL  string
	Args []any
	Rock string
	Done ResultFunc
}

// Dispatcher issues queries against a pooled connection and routes each
// asynchronous completion back to the callback registered for it. Neither
// DispatchOne nor DispatchBatch blocks on the store; store-level failures
// are delivered to the affected callbacks, never returned synchronously.
type Dispatcher struct {
	db  QueryBatcher
	reg *Registry
	log *slog.Logger
}

// NewDispatcher returns a Dispatcher issuing queries against db. db is
// typically a *pgxpool.Pool.
func NewDispatcher(db QueryBatcher, log *slog.Logger) *Dispatcher {
	return &Dispatcher{db: db, reg: NewRegistry(), log: log}
}

// Pending reports the number of operations awaiting a response.
func (d *Dispatcher) Pending() int {
	return d.reg.Len()
}

// DispatchOne registers op's callback and sends op.SQL to the store in a
// single round trip. The callback is invoked exactly once, from another
// goroutine, with either the result rows or the store error. The only
// synchronous failure is malformed input.
func (d *Dispatcher) DispatchOne(ctx context.Context, op Op) error {
	if op.Done == nil {
		return errors.New("dispatch: nil completion callback")
	}
	id := d.reg.Register(op.Done, op.Rock)
	go func() {
		rows, err := d.db.Query(ctx, op.SQL, op.Args...)
		if err != nil {
			rows = nil
			err = fmt.Errorf("%v", err)
		}
		d.complete(id, rows, err)
	}()
	return nil
}

// DispatchBatch registers every operation independently, sends all of them
// to the store in one wire round trip, and demultiplexes the per-query
// results back to their callbacks. A failure on one query does not block
// delivery to the others: with N operations there are always exactly N
// callback invocations.
func (d *Dispatcher) DispatchBatch(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return errors.New("dispatch: empty batch")
	}
	for _, op := range ops {
		if op.Done == nil {
			return errors.New("dispatch: nil completion callback")
		}
	}
	ids := make([]CallbackID, len(ops))
	b := &pgx.Batch{}
	for i, op := range ops {
		ids[i] = d.reg.Register(op.Done, op.Rock)
		b.Queue(op.SQL, op.Args...)
	}
	go func() {
		br := d.db.SendBatch(ctx, b)
		defer br.Close()
		// Results come back in queue order, one per queued query.
		for _, id := range ids {
			rows, err := br.Query()
			if err != nil {
				rows = nil
				err = fmt.Errorf("%v", err)
			}
			d.complete(id, rows, err)
		}
	}()
	return nil
}

// SweepStale fails every operation that has been pending for maxAge or
// longer, delivering ErrTimedOut to its callback. A swept entry is resolved
// exactly once; if its real response arrives later, complete finds no
// pending entry and drops it. Returns the number of entries swept.
func (d *Dispatcher) SweepStale(maxAge time.Duration) int {
	stale := d.reg.takeStale(maxAge)
	for _, e := range stale {
		d.log.Warn("timing out stale store operation",
			"seq", e.id.seq, "rock", e.rock, "pending_since", e.addedAt)
		d.invoke(e.done, nil, ErrTimedOut, e.rock)
	}
	return len(stale)
}

// complete routes one response to its pending callback, exactly once.
// A response with no pending entry means an id was resolved twice or never
// registered; both are latent bugs upstream, so log loudly and drop.
func (d *Dispatcher) complete(id CallbackID, rows pgx.Rows, err error) {
	done, rock, ok := d.reg.Resolve(id)
	if !ok {
		d.log.Error("no pending entry for store response",
			"seq", id.seq, "rock", id.rock)
		if rows != nil {
			rows.Close()
		}
		return
	}
	if rows != nil {
		defer rows.Close()
	}
	d.invoke(done, rows, err, rock)
}

// invoke runs a completion callback, keeping a panicking callback from
// taking down the dispatching goroutine.
func (d *Dispatcher) invoke(done ResultFunc, rows pgx.Rows, err error, rock string) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("completion callback panicked", "rock", rock, "panic", p)
		}
	}()
	done(rows, err, rock)
}
