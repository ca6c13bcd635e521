// Package handlers is the thin web layer over the data repositories:
// HTML pages, CSV/TSV/Atom exports, the basic-auth'd JSON API, and login.
package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/gmwils/cihui/data"
	"github.com/gmwils/cihui/format"
	"github.com/gmwils/cihui/stub"
)

// ListStore is the word-list repository surface the handlers consume.
// *data.ListData satisfies it; tests substitute in-memory fakes.
type ListStore interface {
	GetLists(ctx context.Context, cb func(lists []data.ListSummary))
	GetWordList(ctx context.Context, listID int64, cb func(list *data.WordList))
	ListExists(ctx context.Context, title string, cb func(listID int64, ok bool))
	CreateOrUpdateList(ctx context.Context, title string, words []data.Word, existingID int64, cb func(ok bool, listID int64))
}

// AccountStore is the account repository surface the handlers consume.
type AccountStore interface {
	AuthenticateAPIUser(user, pass string) bool
	AuthenticateWebUser(ctx context.Context, user, pass, nextURL string, cb func(accountID int64, redirectURL, email string, ok bool))
	GetAccount(ctx context.Context, email string, cb func(acct *data.Account))
}

// Handler carries the handlers' dependencies and registers their routes.
type Handler struct {
	Lists    ListStore
	Accounts AccountStore
	Sessions *SessionSigner
	Log      *slog.Logger

	// createGroup serializes concurrent creators of the same title through
	// the exists-check-then-write sequence, since that pair of round trips
	// is not atomic at the store.
	createGroup singleflight.Group
}

// Register attaches every route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /atom.xml", h.AtomFeed)
	mux.HandleFunc("GET /list/{list}", h.WordList)
	mux.HandleFunc("POST /api/list", h.requireBasicAuth(h.APICreateList))
	mux.HandleFunc("GET /api/account", h.requireBasicAuth(h.APIAccount))
	mux.HandleFunc("POST /api/account", h.requireBasicAuth(h.APIAccount))
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>CiHui</title></head>
<body>
<h1>Word Lists</h1>
<ul>
{{range .}}<li><a href="/list/{{.Stub}}">{{.Title}}</a></li>
{{end}}</ul>
</body>
</html>
`))

var wordListTmpl = template.Must(template.New("wordlist").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.WordCount}} words</p>
<table>
{{range .Words}}<tr><td>{{.Headword}}</td><td>{{.Pronunciation}}</td><td>{{.Description}}</td></tr>
{{end}}</table>
</body>
</html>
`))

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Log in</title></head>
<body>
<form method="post" action="/login">
<input type="hidden" name="next" value="{{.Next}}">
<label>User <input type="text" name="user"></label>
<label>Password <input type="password" name="passwd"></label>
<button type="submit">Log in</button>
</form>
</body>
</html>
`))

type indexEntry struct {
	Title string
	Stub  string
}

// Index renders the list-of-lists page, newest modification first.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	done := make(chan []data.ListSummary, 1)
	h.Lists.GetLists(r.Context(), func(lists []data.ListSummary) { done <- lists })
	lists := <-done

	entries := make([]indexEntry, 0, len(lists))
	for _, l := range lists {
		entries = append(entries, indexEntry{
			Title: l.Title,
			Stub:  stub.MakeDescriptive(l.ID, l.Stub),
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, entries); err != nil {
		h.Log.Error("could not render index", "error", err)
	}
}

// AtomFeed renders the list index as an Atom feed.
func (h *Handler) AtomFeed(w http.ResponseWriter, r *http.Request) {
	done := make(chan []data.ListSummary, 1)
	h.Lists.GetLists(r.Context(), func(lists []data.ListSummary) { done <- lists })
	lists := <-done

	entries := make([]format.AtomEntry, 0, len(lists))
	for _, l := range lists {
		entries = append(entries, format.AtomEntry{
			Title: l.Title,
			Link:  "/list/" + stub.MakeDescriptive(l.ID, l.Stub),
		})
	}
	feed, err := format.Atom("CiHui", time.Now(), entries)
	if err != nil {
		h.Log.Error("could not render atom feed", "error", err)
		http.Error(w, "Could not render feed.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	fmt.Fprint(w, feed)
}

// parseListRef parses the {list} path segment: "123", "123-some-stub",
// "123.csv", "123-some-stub.tsv", "123.html". The descriptive stub after
// the id is decorative and ignored.
func parseListRef(ref string) (listID int64, ext string, err error) {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		ext = ref[i:]
		ref = ref[:i]
	}
	if i := strings.IndexByte(ref, '-'); i >= 0 {
		ref = ref[:i]
	}
	listID, err = strconv.ParseInt(ref, 10, 64)
	return listID, ext, err
}

type wordRow struct {
	Headword      string
	Pronunciation string
	Description   string
}

type wordListView struct {
	Title     string
	WordCount int
	Words     []wordRow
}

// WordList serves one list as HTML, or as CSV/TSV when the path carries the
// matching extension.
func (h *Handler) WordList(w http.ResponseWriter, r *http.Request) {
	listID, ext, err := parseListRef(r.PathValue("list"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	done := make(chan *data.WordList, 1)
	h.Lists.GetWordList(r.Context(), listID, func(list *data.WordList) { done <- list })
	list := <-done
	if list == nil {
		http.NotFound(w, r)
		return
	}

	switch ext {
	case ".csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		for _, word := range list.Words {
			fmt.Fprintln(w, format.WordAsCSV(word))
		}
	case ".tsv":
		w.Header().Set("Content-Type", "text/tsv; charset=utf-8")
		for _, word := range list.Words {
			fmt.Fprintln(w, format.WordAsTSV(word))
		}
	default:
		view := wordListView{Title: list.Title, WordCount: len(list.Words)}
		for _, word := range list.Words {
			view.Words = append(view.Words, wordRow{
				Headword:      word.Headword,
				Pronunciation: word.Pronunciation,
				Description:   format.Description(word.Glosses),
			})
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := wordListTmpl.Execute(w, view); err != nil {
			h.Log.Error("could not render word list", "list_id", listID, "error", err)
		}
	}
}

// requireBasicAuth gates an API handler behind the static API credentials.
func (h *Handler) requireBasicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !h.Accounts.AuthenticateAPIUser(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm=Restricted`)
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// createListRequest is the JSON body external clients POST to /api/list.
type createListRequest struct {
	Title        string      `json:"title"`
	Words        []data.Word `json:"words"`
	EmailAddress string      `json:"email_address"`
}

type createListResult struct {
	ok     bool
	listID int64
}

// APICreateList creates a list, or replaces the words of the list already
// holding the title. Returns 201 on success, 500 with a reason otherwise.
func (h *Handler) APICreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.createdList(w, false, "Bad request body")
		return
	}
	if req.Title == "" {
		h.createdList(w, false, "Missing title")
		return
	}
	if len(req.Words) == 0 {
		h.createdList(w, false, "No word list supplied")
		return
	}

	v, _, _ := h.createGroup.Do(req.Title, func() (any, error) {
		existsCh := make(chan int64, 1)
		h.Lists.ListExists(r.Context(), req.Title, func(listID int64, ok bool) {
			if !ok {
				listID = 0
			}
			existsCh <- listID
		})
		existingID := <-existsCh

		resCh := make(chan createListResult, 1)
		h.Lists.CreateOrUpdateList(r.Context(), req.Title, req.Words, existingID, func(ok bool, listID int64) {
			resCh <- createListResult{ok: ok, listID: listID}
		})
		return <-resCh, nil
	})
	res := v.(createListResult)
	if !res.ok {
		h.createdList(w, false, "")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) createdList(w http.ResponseWriter, success bool, reason string) {
	if success {
		w.WriteHeader(http.StatusCreated)
		return
	}
	if reason != "" {
		http.Error(w, "Error: "+reason, http.StatusInternalServerError)
		return
	}
	http.Error(w, "Failed to create list.", http.StatusInternalServerError)
}

// accountResponse is the JSON shape of an API account lookup.
type accountResponse struct {
	AccountID           int64   `json:"account_id"`
	AccountEmail        string  `json:"account_email"`
	SkritterUser        *string `json:"skritter_user"`
	SkritterAccessToken *string `json:"skritter_access_token"`
}

// APIAccount looks up an account by email.
func (h *Handler) APIAccount(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" {
		http.Error(w, "No account received", http.StatusNotFound)
		return
	}
	done := make(chan *data.Account, 1)
	h.Accounts.GetAccount(r.Context(), email, func(acct *data.Account) { done <- acct })
	acct := <-done
	if acct == nil {
		http.Error(w, "No account received", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	err := json.NewEncoder(w).Encode(&accountResponse{
		AccountID:           acct.ID,
		AccountEmail:        acct.Email,
		SkritterUser:        acct.SkritterUser,
		SkritterAccessToken: acct.SkritterAccessToken,
	})
	if err != nil {
		h.Log.Error("could not encode account", "email", email, "error", err)
	}
}

// LoginForm renders the login page.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if next == "" {
		next = "/"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginTmpl.Execute(w, struct{ Next string }{Next: next}); err != nil {
		h.Log.Error("could not render login form", "error", err)
	}
}

// Login authenticates the posted credentials. Success sets the signed
// session cookie and redirects to the requested page; failure redirects
// back to the index.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	user := r.FormValue("user")
	pass := r.FormValue("passwd")
	next := r.FormValue("next")
	if next == "" {
		next = "/"
	}

	type authResult struct {
		accountID   int64
		redirectURL string
		name        string
		ok          bool
	}
	done := make(chan authResult, 1)
	h.Accounts.AuthenticateWebUser(r.Context(), user, pass, next,
		func(accountID int64, redirectURL, email string, ok bool) {
			done <- authResult{accountID: accountID, redirectURL: redirectURL, name: user, ok: ok}
		})
	res := <-done
	if !res.ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    h.Sessions.Issue(res.accountID, res.name),
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, res.redirectURL, http.StatusFound)
}

// CurrentUser returns the account name carried by a request's session
// cookie, or false when there is no valid session.
func (h *Handler) CurrentUser(r *http.Request) (string, bool) {
	c, err := r.Cookie("session_id")
	if err != nil {
		return "", false
	}
	_, name, ok := h.Sessions.Verify(c.Value)
	return name, ok
}
