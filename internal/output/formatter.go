// Package output renders ranked results as result-file lines.
package output

import (
	"strconv"
	"strings"
)

// DummyDocID is written in place of a document id for a query without hits.
const DummyDocID = "dummy"

// RankedResult is one line of the result file.
type RankedResult struct {
	QueryID int
	DocID   int
	Dummy   bool
	Rank    int
	Score   float64
}

// Dummy returns the placeholder result for a query without hits.
func Dummy(queryID int) RankedResult {
	return RankedResult{QueryID: queryID, Dummy: true, Rank: 1}
}

// Formatter renders results as q<query>,doc<doc>,<rank>. With IncludeScores
// a fourth score column is added to real hits.
type Formatter struct {
	IncludeScores bool
}

// Format renders one result.
func (f Formatter) Format(r RankedResult) string {
	var b strings.Builder
	b.WriteString("q")
	b.WriteString(strconv.Itoa(r.QueryID))
	b.WriteString(",doc")
	if r.Dummy {
		b.WriteString(DummyDocID)
	} else {
		b.WriteString(strconv.Itoa(r.DocID))
	}
	b.WriteString(",")
	b.WriteString(strconv.Itoa(r.Rank))
	if f.IncludeScores && !r.Dummy {
		b.WriteString(",")
		b.WriteString(strconv.FormatFloat(r.Score, 'g', -1, 32))
	}
	return b.String()
}

// FormatAll renders results in the given order.
func (f Formatter) FormatAll(results []RankedResult) []string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = f.Format(r)
	}
	return lines
}
