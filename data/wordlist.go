package data

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/manniwood/pgxtras"

	"github.com/gmwils/cihui/stub"
)

// ListSummary is the index-page projection of a word list.
type ListSummary struct {
	ID    int64
	Title string
	Stub  string
}

// WordList is one full word-list row. Words is nil when the stored column is
// NULL; that is a different state than a list with zero words, and renderers
// consume the two differently.
type WordList struct {
	ID         int64
	Title      string
	Words      []Word
	ModifiedAt time.Time
	Public     bool
	AccountID  int64
}

// ListData is the word-list repository. All operations dispatch
// asynchronously and report through their callback exactly once; store
// errors are absorbed here and surface as the absent/failure shape.
type ListData struct {
	d   *Dispatcher
	log *slog.Logger
}

// NewListData returns a ListData issuing queries through d.
func NewListData(d *Dispatcher, log *slog.Logger) *ListData {
	return &ListData{d: d, log: log}
}

// GetLists fetches summaries of every list, newest modification first. The
// callback always receives a non-nil slice: zero rows and transport
// failures both come back as an empty slice, the latter with a warning.
func (ld *ListData) GetLists(ctx context.Context, cb func(lists []ListSummary)) {
	op := Op{
		SQL: `SELECT id, title, stub FROM list ORDER BY modified_at DESC`,
		Done: func(rows pgx.Rows, err error, _ string) {
			if err != nil {
				ld.log.Warn("could not fetch lists", "error", err)
				cb([]ListSummary{})
				return
			}
			lists, err := pgx.CollectRows(rows, pgxtras.RowToStructBySimpleName[ListSummary])
			if err != nil {
				ld.log.Warn("could not collect lists", "error", err)
				cb([]ListSummary{})
				return
			}
			if len(lists) == 0 {
				ld.log.Warn("no lists found in database")
			}
			cb(lists)
		},
	}
	if err := ld.d.DispatchOne(ctx, op); err != nil {
		ld.log.Error("could not dispatch lists query", "error", err)
		cb([]ListSummary{})
	}
}

// GetWordList fetches one full list by id. The callback receives nil when
// the list is absent, on store failure, and on a response with anything
// other than exactly one row (more than one means the id invariant is
// broken; both cases warn and degrade to absent).
func (ld *ListData) GetWordList(ctx context.Context, listID int64, cb func(list *WordList)) {
	op := Op{
		SQL:  `SELECT id, title, words, modified_at, public, account_id FROM list WHERE id = $1`,
		Args: []any{listID},
		Rock: strconv.FormatInt(listID, 10),
		Done: func(rows pgx.Rows, err error, rock string) {
			if err != nil {
				ld.log.Warn("could not fetch word list", "list_id", rock, "error", err)
				cb(nil)
				return
			}
			var (
				list     WordList
				rawWords *string
				acctID   *int64
				found    int
			)
			for rows.Next() {
				if found == 0 {
					err = rows.Scan(&list.ID, &list.Title, &rawWords, &list.ModifiedAt, &list.Public, &acctID)
					if err != nil {
						ld.log.Warn("could not scan word list", "list_id", rock, "error", err)
						cb(nil)
						return
					}
				}
				found++
			}
			if rows.Err() != nil {
				ld.log.Warn("could not read word list", "list_id", rock, "error", rows.Err())
				cb(nil)
				return
			}
			if found != 1 {
				ld.log.Warn("invalid response shape for word list", "list_id", rock, "rows", found)
				cb(nil)
				return
			}
			if acctID != nil {
				list.AccountID = *acctID
			}
			if rawWords != nil {
				words, err := DecodeWords(*rawWords)
				if err != nil {
					ld.log.Warn("could not decode stored words", "list_id", rock, "error", err)
					cb(nil)
					return
				}
				list.Words = words
			}
			cb(&list)
		},
	}
	if err := ld.d.DispatchOne(ctx, op); err != nil {
		ld.log.Error("could not dispatch word list query", "error", err)
		cb(nil)
	}
}

// ListExists reports whether a list with the given title exists, and its id
// when it does. Callers use this as the precondition for deciding insert vs
// update; the two steps are not atomic (see CreateOrUpdateList).
func (ld *ListData) ListExists(ctx context.Context, title string, cb func(listID int64, ok bool)) {
	op := Op{
		SQL:  `SELECT max(id) FROM list WHERE title = $1`,
		Args: []any{title},
		Rock: title,
		Done: ld.onListExists(cb),
	}
	if err := ld.d.DispatchOne(ctx, op); err != nil {
		ld.log.Error("could not dispatch list existence query", "error", err)
		cb(0, false)
	}
}

// ListExistsForAccount is ListExists scoped to one account's lists.
func (ld *ListData) ListExistsForAccount(ctx context.Context, title string, accountID int64, cb func(listID int64, ok bool)) {
	op := Op{
		SQL:  `SELECT max(id) FROM list WHERE title = $1 AND account_id = $2`,
		Args: []any{title, accountID},
		Rock: title,
		Done: ld.onListExists(cb),
	}
	if err := ld.d.DispatchOne(ctx, op); err != nil {
		ld.log.Error("could not dispatch list existence query", "error", err)
		cb(0, false)
	}
}

func (ld *ListData) onListExists(cb func(listID int64, ok bool)) ResultFunc {
	return func(rows pgx.Rows, err error, rock string) {
		if err != nil {
			ld.log.Warn("could not check list existence", "title", rock, "error", err)
			cb(0, false)
			return
		}
		// max(id) yields one row holding NULL when no list matches.
		maxID, ok, err := pgxtras.CollectOneRowOK(rows, pgx.RowTo[*int64])
		if err != nil {
			ld.log.Warn("could not read list existence result", "title", rock, "error", err)
			cb(0, false)
			return
		}
		if !ok || maxID == nil {
			cb(0, false)
			return
		}
		cb(*maxID, true)
	}
}

// CreateOrUpdateList writes a list. With existingID zero a new row is
// inserted and the generated id reported to cb; otherwise the row with
// existingID gets new words, a re-slugged stub, and a fresh modified_at.
// The insert-vs-update decision belongs to the caller, normally made from a
// prior ListExists result. Check and write are separate round trips, so
// concurrent creators of one title must be serialized upstream; the API
// handler does this per title.
func (ld *ListData) CreateOrUpdateList(ctx context.Context, title string, words []Word, existingID int64, cb func(ok bool, listID int64)) {
	encoded, err := EncodeWords(words)
	if err != nil {
		ld.log.Error("could not encode words", "title", title, "error", err)
		cb(false, 0)
		return
	}
	var op Op
	if existingID != 0 {
		op = Op{
			SQL:  `UPDATE list SET words = $1, modified_at = now(), stub = $2 WHERE id = $3`,
			Args: []any{encoded, stub.Make(title), existingID},
			Rock: strconv.FormatInt(existingID, 10),
			Done: ld.onCreateOrUpdate(cb),
		}
	} else {
		op = Op{
			SQL:  `INSERT INTO list (title, words, stub) VALUES ($1, $2, $3) RETURNING id`,
			Args: []any{title, encoded, stub.Make(title)},
			Done: ld.onCreateOrUpdate(cb),
		}
	}
	if err := ld.d.DispatchOne(ctx, op); err != nil {
		ld.log.Error("could not dispatch list write", "error", err)
		cb(false, 0)
	}
}

// onCreateOrUpdate finishes a list write. Updates carry the target id in
// the rock; inserts read the generated id back from RETURNING.
func (ld *ListData) onCreateOrUpdate(cb func(ok bool, listID int64)) ResultFunc {
	return func(rows pgx.Rows, err error, rock string) {
		if err != nil {
			ld.log.Warn("could not write list", "error", err)
			cb(false, 0)
			return
		}
		if rock != "" {
			rows.Close()
			if rows.Err() != nil {
				ld.log.Warn("could not update list", "list_id", rock, "error", rows.Err())
				cb(false, 0)
				return
			}
			listID, err := strconv.ParseInt(rock, 10, 64)
			if err != nil {
				ld.log.Error("bad list id in rock", "rock", rock, "error", err)
				cb(false, 0)
				return
			}
			cb(true, listID)
			return
		}
		listID, ok, err := pgxtras.CollectOneRowOK(rows, pgx.RowTo[int64])
		if err != nil || !ok {
			ld.log.Warn("could not read id of inserted list", "error", fmt.Sprintf("%v", err))
			cb(false, 0)
			return
		}
		cb(true, listID)
	}
}
