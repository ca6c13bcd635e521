package data

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Word is one vocabulary entry: a headword, its pronunciation, and its
// glosses. The stored wire form is a three-element JSON array, e.g.
//
//	["大","dà",["big","large"]]
//
// which is what external clients POST to the API and what the list.words
// column holds.
type Word struct {
	Headword      string
	Pronunciation string
	Glosses       []string
}

// MarshalJSON writes the three-element array form.
func (w Word) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{w.Headword, w.Pronunciation, w.Glosses})
}

// UnmarshalJSON reads the three-element array form.
func (w *Word) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("word entry has %d elements, want 3", len(parts))
	}
	if err := json.Unmarshal(parts[0], &w.Headword); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &w.Pronunciation); err != nil {
		return err
	}
	return json.Unmarshal(parts[2], &w.Glosses)
}

// EncodeWords serializes words for the list.words column. A nil slice
// encodes as "[]"; a NULL column is represented by never storing anything,
// not by an encoding of nil.
func EncodeWords(words []Word) (string, error) {
	if words == nil {
		words = []Word{}
	}
	b, err := json.Marshal(words)
	if err != nil {
		return "", fmt.Errorf("%v", err)
	}
	return string(b), nil
}

// DecodeWords parses the list.words column. The result is never nil: a
// stored "[]" comes back as an empty, non-nil slice, which renderers treat
// differently from the nil words of a row whose column is NULL.
func DecodeWords(s string) ([]Word, error) {
	words := []Word{}
	if err := json.Unmarshal([]byte(s), &words); err != nil {
		return nil, fmt.Errorf("%v", err)
	}
	if words == nil {
		words = []Word{}
	}
	return words, nil
}
