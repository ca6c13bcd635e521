package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRows plays canned rows back through the pgx.Rows interface so the
// correlation engine and repositories can be tested without a database.
type fakeRows struct {
	fields []pgconn.FieldDescription
	rows   [][]any
	i      int
	err    error
	tag    pgconn.CommandTag
	closed bool
}

func newFakeRows(cols []string, rows ...[]any) *fakeRows {
	fds := make([]pgconn.FieldDescription, len(cols))
	for i, c := range cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return &fakeRows{fields: fds, rows: rows, i: -1}
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return r.tag }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.i], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.i++
	return r.i < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	// Honor the pgx.Rows contract: a single pgx.RowScanner destination scans
	// the whole row itself (this is how the struct-collecting helpers work).
	if len(dest) == 1 {
		if rs, ok := dest[0].(pgx.RowScanner); ok {
			return rs.ScanRow(r)
		}
	}
	row := r.rows[r.i]
	if len(dest) != len(row) {
		return fmt.Errorf("scan wants %d values, row has %d", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

// assign copies a canned value into a scan destination, handling the
// nullable destinations the repositories use.
func assign(dest, src any) error {
	switch d := dest.(type) {
	case *int64:
		v, ok := src.(int64)
		if !ok {
			return fmt.Errorf("cannot scan %T into *int64", src)
		}
		*d = v
	case **int64:
		if src == nil {
			*d = nil
			return nil
		}
		v, ok := src.(int64)
		if !ok {
			return fmt.Errorf("cannot scan %T into **int64", src)
		}
		*d = &v
	case *string:
		v, ok := src.(string)
		if !ok {
			return fmt.Errorf("cannot scan %T into *string", src)
		}
		*d = v
	case **string:
		if src == nil {
			*d = nil
			return nil
		}
		v, ok := src.(string)
		if !ok {
			return fmt.Errorf("cannot scan %T into **string", src)
		}
		*d = &v
	case *bool:
		v, ok := src.(bool)
		if !ok {
			return fmt.Errorf("cannot scan %T into *bool", src)
		}
		*d = v
	case *time.Time:
		v, ok := src.(time.Time)
		if !ok {
			return fmt.Errorf("cannot scan %T into *time.Time", src)
		}
		*d = v
	case **time.Time:
		if src == nil {
			*d = nil
			return nil
		}
		v, ok := src.(time.Time)
		if !ok {
			return fmt.Errorf("cannot scan %T into **time.Time", src)
		}
		*d = &v
	default:
		return fmt.Errorf("fake rows cannot scan into %T", dest)
	}
	return nil
}

// fakeDB stands in for the pgx pool. It counts wire round trips and records
// the SQL and arguments it was handed; respond decides what each query gets
// back.
type fakeDB struct {
	mu         sync.Mutex
	roundTrips int
	sql        []string
	args       [][]any
	respond    func(sql string, args []any) (pgx.Rows, error)
}

func (f *fakeDB) record(sql string, args []any) func(string, []any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return f.respond
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	f.roundTrips++
	f.mu.Unlock()
	respond := f.record(sql, args)
	if respond == nil {
		return newFakeRows(nil), nil
	}
	return respond(sql, args)
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	f.roundTrips++
	f.mu.Unlock()
	return &fakeBatchResults{db: f, batch: b}
}

func (f *fakeDB) trips() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roundTrips
}

func (f *fakeDB) lastSQL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sql) == 0 {
		return ""
	}
	return f.sql[len(f.sql)-1]
}

func (f *fakeDB) lastArgs() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.args) == 0 {
		return nil
	}
	return f.args[len(f.args)-1]
}

// fakeBatchResults hands each queued query to the fakeDB's respond func, in
// queue order, the way pgx batch results come back.
type fakeBatchResults struct {
	db    *fakeDB
	batch *pgx.Batch
	i     int
}

func (br *fakeBatchResults) Query() (pgx.Rows, error) {
	if br.i >= len(br.batch.QueuedQueries) {
		return nil, errors.New("no more results in batch")
	}
	q := br.batch.QueuedQueries[br.i]
	br.i++
	respond := br.db.record(q.SQL, q.Arguments)
	if respond == nil {
		return newFakeRows(nil), nil
	}
	return respond(q.SQL, q.Arguments)
}

func (br *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	rows, err := br.Query()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	rows.Close()
	return rows.CommandTag(), nil
}

func (br *fakeBatchResults) QueryRow() pgx.Row { return errRow{} }
func (br *fakeBatchResults) Close() error      { return nil }

func updateTag(n int) pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n))
}

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errors.New("fake batch results do not implement QueryRow") }
