// Package queryparser turns free-text queries into search queries scoped
// to one default field.
//
// The syntax is bleve's query string: bare terms, "quoted phrases",
// field:term, + and - modifiers, ^boost, ~fuzziness, * and ? wildcards and
// /regular expressions/. Clauses without a modifier are optional. Terms and
// phrases go through the field analyzer; wildcards are only lower-cased.
package queryparser

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/knowledge-engine/ranker/internal/analysis"
)

// maxFuzziness is the largest edit distance the index can search.
const maxFuzziness = 2

// ParseError reports malformed query syntax.
type ParseError struct {
	Query  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("queryparser: %q: %s", e.Query, e.Reason)
}

// Parser builds queries scoped to a default field.
type Parser struct {
	field    string
	analyzer analysis.Analyzer
}

// NewParser returns a parser for field.
func NewParser(field string, analyzer analysis.Analyzer) *Parser {
	return &Parser{field: field, analyzer: analyzer}
}

// Parse parses text. A query whose terms are all removed by analysis, or
// that only has prohibited clauses, yields a MatchNoneQuery.
func (p *Parser) Parse(text string) (query.Query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Query: text, Reason: "empty query"}
	}
	parsed, err := query.NewQueryStringQuery(text).Parse()
	if err != nil {
		return nil, &ParseError{Query: text, Reason: err.Error()}
	}

	q, err := p.rewrite(parsed)
	if err != nil {
		return nil, &ParseError{Query: text, Reason: err.Error()}
	}
	if q == nil {
		return query.NewMatchNoneQuery(), nil
	}
	return q, nil
}

// rewrite resolves fields and analysis. A nil result means the clause
// matches nothing and is dropped.
func (p *Parser) rewrite(q query.Query) (query.Query, error) {
	switch q := q.(type) {
	case *query.BooleanQuery:
		return p.rewriteBoolean(q)
	case *query.ConjunctionQuery:
		clauses, err := p.rewriteAll(q.Conjuncts)
		if err != nil || len(clauses) == 0 {
			return nil, err
		}
		if len(clauses) == 1 {
			return clauses[0], nil
		}
		return query.NewConjunctionQuery(clauses), nil
	case *query.DisjunctionQuery:
		clauses, err := p.rewriteAll(q.Disjuncts)
		if err != nil || len(clauses) == 0 {
			return nil, err
		}
		if len(clauses) == 1 {
			return clauses[0], nil
		}
		return query.NewDisjunctionQuery(clauses), nil
	case *query.MatchQuery:
		return p.match(q)
	case *query.MatchPhraseQuery:
		return p.phrase(q)
	case *query.WildcardQuery:
		q.Wildcard = cases.Lower(language.Und).String(q.Wildcard)
		p.scope(q)
		return q, nil
	case *query.NumericRangeQuery, *query.DateRangeQuery, *query.DateRangeStringQuery:
		// Text fields hold no numeric or date values.
		return nil, nil
	case *query.MatchNoneQuery:
		return nil, nil
	case query.FieldableQuery:
		p.scope(q)
		return q, nil
	default:
		return q, nil
	}
}

func (p *Parser) rewriteAll(qs []query.Query) ([]query.Query, error) {
	var out []query.Query
	for _, sub := range qs {
		rq, err := p.rewrite(sub)
		if err != nil {
			return nil, err
		}
		if rq != nil {
			out = append(out, rq)
		}
	}
	return out, nil
}

// rewriteBoolean keeps required, optional and prohibited clauses apart.
// Clauses that analyze to nothing are dropped, like stop words.
func (p *Parser) rewriteBoolean(q *query.BooleanQuery) (query.Query, error) {
	must, err := p.clauses(q.Must)
	if err != nil {
		return nil, err
	}
	should, err := p.clauses(q.Should)
	if err != nil {
		return nil, err
	}
	mustNot, err := p.clauses(q.MustNot)
	if err != nil {
		return nil, err
	}
	if len(must) == 0 && len(should) == 0 {
		return nil, nil
	}
	return query.NewBooleanQueryForQueryString(must, should, mustNot), nil
}

// clauses unwraps the conjunction or disjunction a boolean query holds for
// one occurrence.
func (p *Parser) clauses(q query.Query) ([]query.Query, error) {
	switch q := q.(type) {
	case nil:
		return nil, nil
	case *query.ConjunctionQuery:
		return p.rewriteAll(q.Conjuncts)
	case *query.DisjunctionQuery:
		return p.rewriteAll(q.Disjuncts)
	default:
		return p.rewriteAll([]query.Query{q})
	}
}

func (p *Parser) scope(q query.FieldableQuery) {
	if q.Field() == "" {
		q.SetField(p.field)
	}
}

func (p *Parser) fieldOr(field string) string {
	if field == "" {
		return p.field
	}
	return field
}

// match analyzes a bare term. Several tokens become optional clauses.
func (p *Parser) match(q *query.MatchQuery) (query.Query, error) {
	if q.Fuzziness > maxFuzziness {
		return nil, fmt.Errorf("fuzziness %d exceeds %d", q.Fuzziness, maxFuzziness)
	}
	field := p.fieldOr(q.FieldVal)
	tokens := p.analyzer.Analyze([]byte(q.Match))
	if len(tokens) == 0 {
		return nil, nil
	}

	leaves := make([]query.Query, len(tokens))
	for i, tok := range tokens {
		leaves[i] = leaf(field, string(tok.Term), q.Fuzziness, q.Boost())
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return query.NewDisjunctionQuery(leaves), nil
}

// phrase analyzes a quoted phrase. Positions removed by the analyzer stay
// as gaps.
func (p *Parser) phrase(q *query.MatchPhraseQuery) (query.Query, error) {
	if q.Fuzziness > maxFuzziness {
		return nil, fmt.Errorf("fuzziness %d exceeds %d", q.Fuzziness, maxFuzziness)
	}
	field := p.fieldOr(q.FieldVal)
	tokens := p.analyzer.Analyze([]byte(q.MatchPhrase))
	switch len(tokens) {
	case 0:
		return nil, nil
	case 1:
		return leaf(field, string(tokens[0].Term), q.Fuzziness, q.Boost()), nil
	}

	first := tokens[0].Position
	terms := make([]string, tokens[len(tokens)-1].Position-first+1)
	for _, tok := range tokens {
		terms[tok.Position-first] = string(tok.Term)
	}
	pq := query.NewPhraseQuery(terms, field)
	pq.Fuzziness = q.Fuzziness
	if b := q.Boost(); b != 1 {
		pq.SetBoost(b)
	}
	return pq, nil
}

func leaf(field, term string, fuzziness int, boost float64) query.Query {
	var q interface {
		query.FieldableQuery
		query.BoostableQuery
	}
	if fuzziness > 0 {
		fq := query.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		q = fq
	} else {
		q = query.NewTermQuery(term)
	}
	q.SetField(field)
	if boost != 1 {
		q.SetBoost(boost)
	}
	return q
}
