package corpus

import (
	"fmt"
	"strings"
	"unicode"
)

// Index field names shared by the indexer and the ranking strategies
const (
	FieldID       = "id"
	FieldTitle    = "title"
	FieldAbstract = "abstract"
	FieldText     = "text"
)

// Document is one parsed corpus record
type Document struct {
	ID       int
	Title    string
	Abstract string
	Text     string // normalized title + " " + normalized abstract
}

// Query is one parsed query record. RawText is kept verbatim.
type Query struct {
	ID      int
	RawText string
}

// NewDocument normalizes title and abstract and derives the composite text.
func NewDocument(id int, title, abstract string) (Document, error) {
	if id <= 0 {
		return Document{}, fmt.Errorf("document id must be positive, got %d", id)
	}
	title = Normalize(title)
	abstract = Normalize(abstract)
	return Document{
		ID:       id,
		Title:    title,
		Abstract: abstract,
		Text:     title + " " + abstract,
	}, nil
}

// NewQuery validates the id. The text is not normalized.
func NewQuery(id int, rawText string) (Query, error) {
	if id <= 0 {
		return Query{}, fmt.Errorf("query id must be positive, got %d", id)
	}
	return Query{ID: id, RawText: rawText}, nil
}

// Normalize drops every character that is not a letter, digit, hyphen or
// whitespace, then collapses whitespace runs into single spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
