// Package format renders word lists as CSV or TSV lines and list indexes as
// Atom feeds, for the export endpoints.
package format

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/gmwils/cihui/data"
)

// Description folds a word's glosses into the single display string used on
// list pages and in exports.
func Description(glosses []string) string {
	return strings.Join(glosses, "; ")
}

// WordAsCSV renders one word as a CSV line (no trailing newline). Fields
// containing commas or quotes are quoted per encoding/csv.
func WordAsCSV(w data.Word) string {
	return wordAsSeparated(w, ',')
}

// WordAsTSV renders one word as a tab-separated line (no trailing newline).
func WordAsTSV(w data.Word) string {
	return wordAsSeparated(w, '\t')
}

func wordAsSeparated(w data.Word, comma rune) string {
	var b strings.Builder
	cw := csv.NewWriter(&b)
	cw.Comma = comma
	// The only error path is a bad Comma rune, and ours are fixed.
	_ = cw.Write([]string{w.Headword, w.Pronunciation, Description(w.Glosses)})
	cw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// AtomEntry is one feed entry: a list's title and its page link.
type AtomEntry struct {
	Title string
	Link  string
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

type atomEntryXML struct {
	Title   string   `xml:"title"`
	Link    atomLink `xml:"link"`
	Updated string   `xml:"updated"`
}

type atomFeedXML struct {
	XMLName xml.Name       `xml:"feed"`
	Xmlns   string         `xml:"xmlns,attr"`
	Title   string         `xml:"title"`
	Updated string         `xml:"updated"`
	Entries []atomEntryXML `xml:"entry"`
}

// Atom renders an Atom feed of list entries.
func Atom(title string, updated time.Time, entries []AtomEntry) (string, error) {
	feed := atomFeedXML{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   title,
		Updated: updated.UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		feed.Entries = append(feed.Entries, atomEntryXML{
			Title:   e.Title,
			Link:    atomLink{Href: e.Link},
			Updated: feed.Updated,
		})
	}
	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("could not render atom feed: %v", err)
	}
	return xml.Header + string(out) + "\n", nil
}
