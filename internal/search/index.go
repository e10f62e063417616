// Package search keeps the run's inverted index. It wraps a bleve index
// built on the upside-down layout, held either in memory or in a SQLite
// key/value store, and scored with bleve's TF-IDF similarity.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/upsidedown"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/ranker/internal/analysis"
	"github.com/knowledge-engine/ranker/internal/search/sqlitekv"
)

// Stores an index can live in.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// IndexAnalyzer is the name of the analyzer every text field is indexed
// with.
const IndexAnalyzer = "index"

// batchSize is how many documents are sent to bleve at once.
const batchSize = 1000

var (
	ErrIndexClosed      = errors.New("search: index is closed")
	ErrNotCommitted     = errors.New("search: index has not been committed")
	ErrAlreadyCommitted = errors.New("search: index is already committed")
)

// Options configure NewIndex.
type Options struct {
	// Store is StoreMemory or StoreSQLite. Empty means StoreMemory.
	Store string
	// Fields is the schema. Documents may only use these fields.
	Fields map[string]FieldKind
	// Analyzer configures IndexAnalyzer.
	Analyzer analysis.Config
	Logger   *logrus.Entry
}

// Index is written once, committed, then searched. Documents are numbered
// in the order they are added and that order breaks score ties.
type Index struct {
	idx       bleve.Index
	mapping   *mapping.IndexMappingImpl
	fields    map[string]FieldKind
	stored    []string
	batch     *bleve.Batch
	numDocs   int
	committed bool
	closed    bool
	logger    *logrus.Entry
}

// NewIndex creates an empty index.
func NewIndex(opts Options) (*Index, error) {
	if len(opts.Fields) == 0 {
		return nil, fmt.Errorf("search: index needs at least one field")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	m := bleve.NewIndexMapping()
	if err := analysis.Register(m, IndexAnalyzer, opts.Analyzer); err != nil {
		return nil, err
	}
	m.DefaultAnalyzer = IndexAnalyzer
	m.StoreDynamic = false
	m.IndexDynamic = false
	m.DocValuesDynamic = false

	doc := bleve.NewDocumentStaticMapping()
	stored := make([]string, 0, len(opts.Fields))
	for name, kind := range opts.Fields {
		doc.AddFieldMappingsAt(name, fieldMapping(kind))
		stored = append(stored, name)
	}
	sort.Strings(stored)
	m.DefaultMapping = doc

	var (
		idx bleve.Index
		err error
	)
	switch opts.Store {
	case StoreMemory, "":
		idx, err = bleve.NewMemOnly(m)
	case StoreSQLite:
		idx, err = bleve.NewUsing("", m, upsidedown.Name, sqlitekv.Name, map[string]interface{}{
			"logger": logger,
		})
	default:
		return nil, fmt.Errorf("search: unknown index store %q", opts.Store)
	}
	if err != nil {
		return nil, fmt.Errorf("search: create index: %w", err)
	}

	fields := make(map[string]FieldKind, len(opts.Fields))
	for name, kind := range opts.Fields {
		fields[name] = kind
	}
	return &Index{
		idx:     idx,
		mapping: m,
		fields:  fields,
		stored:  stored,
		batch:   idx.NewBatch(),
		logger:  logger.WithField("index", opts.Store),
	}, nil
}

func fieldMapping(kind FieldKind) *mapping.FieldMapping {
	var fm *mapping.FieldMapping
	if kind == KeywordField {
		fm = bleve.NewKeywordFieldMapping()
		fm.IncludeTermVectors = false
	} else {
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = IndexAnalyzer
		// Phrase queries need positions.
		fm.IncludeTermVectors = true
	}
	fm.Store = true
	fm.IncludeInAll = false
	fm.DocValues = false
	return fm
}

// RegisterAnalyzer defines another analyzer on the index, for queries.
func (i *Index) RegisterAnalyzer(name string, cfg analysis.Config) error {
	return analysis.Register(i.mapping, name, cfg)
}

// Analyzer returns a registered analyzer.
func (i *Index) Analyzer(name string) (analysis.Analyzer, error) {
	return analysis.Lookup(i.mapping, name)
}

// Add queues a document and returns its ordinal.
func (i *Index) Add(doc Document) (int, error) {
	if i.closed {
		return 0, ErrIndexClosed
	}
	if i.committed {
		return 0, ErrAlreadyCommitted
	}

	data := make(map[string]interface{}, len(doc.Fields))
	for _, f := range doc.Fields {
		kind, ok := i.fields[f.Name]
		if !ok {
			return 0, fmt.Errorf("search: field %q is not in the schema", f.Name)
		}
		if kind != f.Kind {
			return 0, fmt.Errorf("search: field %q is %s, not %s", f.Name, kind, f.Kind)
		}
		if _, dup := data[f.Name]; dup {
			return 0, fmt.Errorf("search: field %q given twice", f.Name)
		}
		data[f.Name] = f.Value
	}

	ord := i.numDocs
	if err := i.batch.Index(docID(ord), data); err != nil {
		return 0, fmt.Errorf("search: add document %d: %w", ord, err)
	}
	i.numDocs++

	if i.batch.Size() >= batchSize {
		if err := i.flush(); err != nil {
			return 0, err
		}
	}
	return ord, nil
}

func (i *Index) flush() error {
	if i.batch.Size() == 0 {
		return nil
	}
	if err := i.idx.Batch(i.batch); err != nil {
		return fmt.Errorf("search: write batch: %w", err)
	}
	i.batch.Reset()
	return nil
}

// Commit writes the queued documents. The index takes no documents after
// it is committed.
func (i *Index) Commit() error {
	if i.closed {
		return ErrIndexClosed
	}
	if i.committed {
		return ErrAlreadyCommitted
	}
	if err := i.flush(); err != nil {
		return err
	}
	i.committed = true
	i.logger.WithField("documents", i.numDocs).Debug("Index committed")
	return nil
}

// NumDocs returns the number of documents added so far.
func (i *Index) NumDocs() int {
	return i.numDocs
}

// Hit is one matching document.
type Hit struct {
	ID     string
	Score  float64
	Stored StoredDocument
}

// TopDocs holds the best hits of a search, best first. Equal scores are in
// insertion order.
type TopDocs struct {
	TotalHits int
	Hits      []Hit
}

// Search returns the top n hits for q.
func (i *Index) Search(ctx context.Context, q query.Query, n int) (*TopDocs, error) {
	if i.closed {
		return nil, ErrIndexClosed
	}
	if !i.committed {
		return nil, ErrNotCommitted
	}
	if q == nil {
		return nil, fmt.Errorf("search: nil query")
	}
	if n <= 0 {
		return nil, fmt.Errorf("search: hit count must be positive, got %d", n)
	}

	req := bleve.NewSearchRequestOptions(q, n, 0, false)
	req.Fields = i.stored
	req.SortBy([]string{"-_score", "_id"})

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	top := &TopDocs{TotalHits: int(res.Total), Hits: make([]Hit, 0, len(res.Hits))}
	for _, match := range res.Hits {
		top.Hits = append(top.Hits, Hit{
			ID:     match.ID,
			Score:  match.Score,
			Stored: storedDocument(match.Fields),
		})
	}
	return top, nil
}

// Close releases the index.
func (i *Index) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	return i.idx.Close()
}

// docID is zero-padded so that sorting by ID keeps insertion order.
func docID(ord int) string {
	return fmt.Sprintf("%010d", ord)
}

func storedDocument(fields map[string]interface{}) StoredDocument {
	doc := make(StoredDocument, len(fields))
	for name, v := range fields {
		if s, ok := v.(string); ok {
			doc[name] = s
		} else {
			doc[name] = fmt.Sprint(v)
		}
	}
	return doc
}
