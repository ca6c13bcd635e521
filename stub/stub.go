// Package stub derives URL-safe stubs from human list titles.
package stub

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldMarks decomposes characters and strips their combining marks, so
// "Déjà" folds to "Deja" before lowercasing.
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make turns a title into its stub: lowercase ASCII letters and digits with
// single dashes between runs of anything else. "Test List" -> "test-list".
func Make(title string) string {
	folded, _, err := transform.String(foldMarks, title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	dashPending := false
	for _, r := range strings.ToLower(folded) {
		isStubRune := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isStubRune {
			dashPending = b.Len() > 0
			continue
		}
		if dashPending {
			b.WriteByte('-')
			dashPending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MakeDescriptive joins a list id and its stored stub into the descriptive
// URL path segment, e.g. (101, "some-great-list") -> "101-some-great-list".
// With an empty stub the id stands alone.
func MakeDescriptive(listID int64, stub string) string {
	id := strconv.FormatInt(listID, 10)
	if stub == "" {
		return id
	}
	return id + "-" + stub
}
