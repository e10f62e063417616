package search

import (
	"context"
	"fmt"
	"sort"

	index "github.com/blevesearch/bleve_index_api"
)

// TermStats describes the frequency of one term in a field.
type TermStats struct {
	Field         string
	Term          string
	DocFreq       int
	TotalTermFreq int64
}

// HighFreqTerms returns the n terms of field with the highest total term
// frequency. Equal frequencies are ordered lexicographically. A field that
// was never indexed yields no terms.
func HighFreqTerms(ctx context.Context, i *Index, field string, n int) ([]TermStats, error) {
	if n <= 0 {
		return nil, fmt.Errorf("search: term count must be positive, got %d", n)
	}
	if i.closed {
		return nil, ErrIndexClosed
	}
	if !i.committed {
		return nil, ErrNotCommitted
	}

	adv, err := i.idx.Advanced()
	if err != nil {
		return nil, fmt.Errorf("search: open index: %w", err)
	}
	r, err := adv.Reader()
	if err != nil {
		return nil, fmt.Errorf("search: open reader: %w", err)
	}
	defer r.Close()

	dict, err := r.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("search: field dictionary %s: %w", field, err)
	}
	defer dict.Close()

	var stats []TermStats
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("search: field dictionary %s: %w", field, err)
		}
		if entry == nil {
			break
		}
		ttf, err := totalTermFreq(ctx, r, field, entry.Term)
		if err != nil {
			return nil, err
		}
		stats = append(stats, TermStats{
			Field:         field,
			Term:          entry.Term,
			DocFreq:       int(entry.Count),
			TotalTermFreq: ttf,
		})
	}
	// The dictionary is sorted, so a stable sort keeps ties in term order.
	sort.SliceStable(stats, func(a, b int) bool {
		return stats[a].TotalTermFreq > stats[b].TotalTermFreq
	})

	if len(stats) > n {
		stats = stats[:n]
	}
	return stats, nil
}

func totalTermFreq(ctx context.Context, r index.IndexReader, field, term string) (int64, error) {
	tfr, err := r.TermFieldReader(ctx, []byte(term), field, true, false, false)
	if err != nil {
		return 0, fmt.Errorf("search: postings %s:%s: %w", field, term, err)
	}
	defer tfr.Close()

	var total int64
	var doc index.TermFieldDoc
	for {
		next, err := tfr.Next(&doc)
		if err != nil {
			return 0, fmt.Errorf("search: postings %s:%s: %w", field, term, err)
		}
		if next == nil {
			return total, nil
		}
		total += int64(next.Freq)
		doc.Reset()
	}
}
