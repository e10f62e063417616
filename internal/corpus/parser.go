package corpus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	recordMarker = ".I"
	bodyMarker   = ".W"
)

var idPattern = regexp.MustCompile(`[0-9]+`)

// ParseError reports a malformed record. Record is the 1-based position of
// the record in the input; 0 means the input as a whole.
type ParseError struct {
	Record int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Record == 0 {
		return "corpus: " + e.Reason
	}
	return fmt.Sprintf("corpus: record %d: %s", e.Record, e.Reason)
}

type rawRecord struct {
	ordinal int
	id      int
	body    string
}

// ParseDocuments parses a document file. The body of every record is split
// at its first period into title and abstract. Any malformed record fails
// the whole parse.
func ParseDocuments(raw string) ([]Document, error) {
	records, err := splitRecords(raw)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(records))
	for _, rec := range records {
		title, abstract, ok := strings.Cut(rec.body, ".")
		if !ok {
			return nil, &ParseError{Record: rec.ordinal, Reason: "body has no period separating title from abstract"}
		}
		doc, err := NewDocument(rec.id, title, abstract)
		if err != nil {
			return nil, &ParseError{Record: rec.ordinal, Reason: err.Error()}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ParseQueries parses a query file. Each body is kept as one raw string.
func ParseQueries(raw string) ([]Query, error) {
	records, err := splitRecords(raw)
	if err != nil {
		return nil, err
	}

	queries := make([]Query, 0, len(records))
	for _, rec := range records {
		q, err := NewQuery(rec.id, rec.body)
		if err != nil {
			return nil, &ParseError{Record: rec.ordinal, Reason: err.Error()}
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// splitRecords cuts the input at every line that starts with the record
// marker and extracts id and body from each record.
func splitRecords(raw string) ([]rawRecord, error) {
	starts := recordStarts(raw)
	if len(starts) == 0 {
		return nil, &ParseError{Reason: "no " + recordMarker + " records found"}
	}
	if strings.TrimSpace(raw[:starts[0]]) != "" {
		return nil, &ParseError{Reason: "unexpected text before the first " + recordMarker + " record"}
	}

	seen := make(map[int]int, len(starts))
	records := make([]rawRecord, 0, len(starts))
	for i, start := range starts {
		end := len(raw)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		ordinal := i + 1
		chunk := raw[start+len(recordMarker) : end]

		header, body, ok := strings.Cut(chunk, bodyMarker)
		if !ok {
			return nil, &ParseError{Record: ordinal, Reason: "missing " + bodyMarker + " body marker"}
		}
		digits := idPattern.FindString(header)
		if digits == "" {
			return nil, &ParseError{Record: ordinal, Reason: "missing numeric id"}
		}
		id, err := strconv.Atoi(digits)
		if err != nil {
			return nil, &ParseError{Record: ordinal, Reason: fmt.Sprintf("invalid id %q", digits)}
		}
		if prev, dup := seen[id]; dup {
			return nil, &ParseError{Record: ordinal, Reason: fmt.Sprintf("duplicate id %d (first seen in record %d)", id, prev)}
		}
		seen[id] = ordinal

		records = append(records, rawRecord{ordinal: ordinal, id: id, body: body})
	}
	return records, nil
}

// recordStarts returns the offsets of every record marker that begins a
// line (leading blanks allowed).
func recordStarts(raw string) []int {
	var starts []int
	offset := 0
	for {
		line := raw[offset:]
		next := strings.IndexByte(line, '\n')
		if next >= 0 {
			line = line[:next]
		}
		trimmed := strings.TrimLeft(line, " \t")
		if isRecordMarker(trimmed) {
			starts = append(starts, offset+len(line)-len(trimmed))
		}
		if next < 0 {
			return starts
		}
		offset += next + 1
	}
}

func isRecordMarker(line string) bool {
	if !strings.HasPrefix(line, recordMarker) {
		return false
	}
	if len(line) == len(recordMarker) {
		return true
	}
	c := line[len(recordMarker)]
	return c == ' ' || c == '\t' || c == '\r' || (c >= '0' && c <= '9')
}
