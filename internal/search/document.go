package search

import (
	"fmt"
	"strconv"
)

// FieldKind selects how a field value is indexed.
type FieldKind int

const (
	// KeywordField is indexed as one exact-match term without norms.
	KeywordField FieldKind = iota
	// TextField is run through the index analyzer.
	TextField
)

func (k FieldKind) String() string {
	switch k {
	case KeywordField:
		return "keyword"
	case TextField:
		return "text"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field is a named value. Every field is stored.
type Field struct {
	Name  string
	Value string
	Kind  FieldKind
}

// NewIntField returns an exact-match field holding the decimal form of v.
func NewIntField(name string, v int) Field {
	return Field{Name: name, Value: strconv.Itoa(v), Kind: KeywordField}
}

// NewTextField returns an analyzed field.
func NewTextField(name, value string) Field {
	return Field{Name: name, Value: value, Kind: TextField}
}

// Document is the unit handed to Index.Add.
type Document struct {
	Fields []Field
}

// NewDocument builds a document from fields.
func NewDocument(fields ...Field) Document {
	return Document{Fields: fields}
}

// StoredDocument holds the stored values of an indexed document.
type StoredDocument map[string]string

// Int parses a stored field as an integer.
func (d StoredDocument) Int(name string) (int, error) {
	v, ok := d[name]
	if !ok {
		return 0, fmt.Errorf("search: stored field %q not found", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("search: stored field %q is not an integer: %w", name, err)
	}
	return n, nil
}
