/*
Package data is the asynchronous data-access layer for the cihui
vocabulary-list service: a correlation-and-batching engine over a pooled
PostgreSQL connection, plus the word-list and account repositories built on
top of it.

# How dispatch works

Every store operation is handed to the Dispatcher together with a completion
callback and an opaque "rock" (caller context the callback will need later,
such as the list id being fetched). The Dispatcher mints a CallbackID for
the operation, parks (callback, rock) in the Registry, and issues the query
without blocking the caller. When the store responds, the entry is resolved
exactly once and the callback runs with the result rows, or with the error:

	d := data.NewDispatcher(pool, logger)
	d.DispatchOne(ctx, data.Op{
		SQL:  `SELECT id, title, stub FROM list ORDER BY modified_at DESC`,
		Rock: "",
		Done: func(rows pgx.Rows, err error, rock string) {
			// consume rows; the dispatcher closes them afterward
		},
	})

Several unrelated queries can share one wire round trip:

	d.DispatchBatch(ctx, []data.Op{opA, opB, opC})

Each batched operation keeps its own id and callback; a failure on one query
is delivered to that query's callback and does not disturb the others.

Completions carry no ordering guarantee, not even within one batch. A caller
that needs a second operation to observe the first (the list-exists check
before a create, for instance) must wait for the first callback before
dispatching the second.

The repositories (ListData, AccountData) wrap the Dispatcher with the domain
operations the web layer consumes, absorbing store errors into a
present/absent or success/failure vocabulary so no pgx types leak upward.
*/
package data
