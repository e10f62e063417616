package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"
)

// MatchesNothing reports whether q can be seen to match no document
// without consulting the index.
func MatchesNothing(q query.Query) bool {
	switch q := q.(type) {
	case nil, *query.MatchNoneQuery:
		return true
	case *query.BooleanQuery:
		if q.Must != nil && !isEmptyConjunction(q.Must) {
			return MatchesNothing(q.Must)
		}
		return q.Should == nil || MatchesNothing(q.Should)
	case *query.ConjunctionQuery:
		if len(q.Conjuncts) == 0 {
			return true
		}
		for _, c := range q.Conjuncts {
			if MatchesNothing(c) {
				return true
			}
		}
		return false
	case *query.DisjunctionQuery:
		for _, d := range q.Disjuncts {
			if !MatchesNothing(d) {
				return false
			}
		}
		return true
	case *query.PhraseQuery:
		return len(q.Terms) == 0
	case *query.MultiPhraseQuery:
		return len(q.Terms) == 0
	default:
		return false
	}
}

func isEmptyConjunction(q query.Query) bool {
	c, ok := q.(*query.ConjunctionQuery)
	return ok && len(c.Conjuncts) == 0
}

// Boost multiplies the boost of every leaf of q by factor. Compound
// queries do not apply their own boost when scoring, so weights are pushed
// down to the clauses that do.
func Boost(q query.Query, factor float64) {
	switch q := q.(type) {
	case *query.BooleanQuery:
		for _, sub := range []query.Query{q.Must, q.Should, q.MustNot} {
			if sub != nil {
				Boost(sub, factor)
			}
		}
	case *query.ConjunctionQuery:
		for _, c := range q.Conjuncts {
			Boost(c, factor)
		}
	case *query.DisjunctionQuery:
		for _, d := range q.Disjuncts {
			Boost(d, factor)
		}
	case query.BoostableQuery:
		q.SetBoost(q.Boost() * factor)
	}
}

// Describe renders q in the classic query syntax for logs and tests:
// +required, -prohibited, field:term^boost.
func Describe(q query.Query) string {
	return describe(q, false)
}

func describe(q query.Query, nested bool) string {
	switch q := q.(type) {
	case nil:
		return ""
	case *query.MatchNoneQuery:
		return "<none>"
	case *query.MatchAllQuery:
		return "*:*"
	case *query.TermQuery:
		return q.FieldVal + ":" + q.Term + boostSuffix(q.Boost())
	case *query.FuzzyQuery:
		return q.FieldVal + ":" + q.Term + "~" + strconv.Itoa(q.Fuzziness) + boostSuffix(q.Boost())
	case *query.PrefixQuery:
		return q.FieldVal + ":" + q.Prefix + "*" + boostSuffix(q.Boost())
	case *query.WildcardQuery:
		return q.FieldVal + ":" + q.Wildcard + boostSuffix(q.Boost())
	case *query.RegexpQuery:
		return q.FieldVal + ":/" + q.Regexp + "/" + boostSuffix(q.Boost())
	case *query.PhraseQuery:
		terms := make([]string, len(q.Terms))
		for i, t := range q.Terms {
			terms[i] = gap(t)
		}
		return q.Field + `:"` + strings.Join(terms, " ") + `"` + boostSuffix(q.Boost())
	case *query.MultiPhraseQuery:
		slots := make([]string, len(q.Terms))
		for i, alts := range q.Terms {
			slots[i] = gap(strings.Join(alts, "|"))
		}
		return q.Field + `:"` + strings.Join(slots, " ") + `"` + boostSuffix(q.Boost())
	case *query.BooleanQuery:
		var clauses []string
		clauses = appendClauses(clauses, "+", q.Must)
		clauses = appendClauses(clauses, "", q.Should)
		clauses = appendClauses(clauses, "-", q.MustNot)
		return group(strings.Join(clauses, " "), nested && len(clauses) > 1)
	case *query.ConjunctionQuery:
		clauses := make([]string, len(q.Conjuncts))
		for i, c := range q.Conjuncts {
			clauses[i] = "+" + describe(c, true)
		}
		return group(strings.Join(clauses, " "), nested && len(clauses) > 1)
	case *query.DisjunctionQuery:
		clauses := make([]string, len(q.Disjuncts))
		for i, d := range q.Disjuncts {
			clauses[i] = describe(d, true)
		}
		return group(strings.Join(clauses, " "), nested && len(clauses) > 1)
	default:
		return fmt.Sprintf("%T", q)
	}
}

// appendClauses flattens the conjunction or disjunction that a boolean
// query keeps for one occurrence.
func appendClauses(clauses []string, prefix string, q query.Query) []string {
	switch q := q.(type) {
	case nil:
	case *query.ConjunctionQuery:
		for _, c := range q.Conjuncts {
			clauses = append(clauses, prefix+describe(c, true))
		}
	case *query.DisjunctionQuery:
		for _, d := range q.Disjuncts {
			clauses = append(clauses, prefix+describe(d, true))
		}
	default:
		clauses = append(clauses, prefix+describe(q, true))
	}
	return clauses
}

func group(s string, wrap bool) string {
	if wrap {
		return "(" + s + ")"
	}
	return s
}

func gap(term string) string {
	if term == "" {
		return "?"
	}
	return term
}

func boostSuffix(b float64) string {
	if b == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(b, 'g', -1, 64)
}
