package analysis

import "sort"

// englishStopWords is the classic 33-word English stop list used by the
// standard analyzer.
var englishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "if", "in", "into", "is", "it",
	"no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these",
	"they", "this", "to", "was", "will", "with",
}

// StopSet is a set of lowercase terms excluded from analysis output.
type StopSet map[string]struct{}

// NewStopSet builds a set from the given terms.
func NewStopSet(terms ...string) StopSet {
	s := make(StopSet, len(terms))
	for _, t := range terms {
		s[t] = struct{}{}
	}
	return s
}

// EnglishStopWords returns a fresh copy of the base English stop set.
func EnglishStopWords() StopSet {
	return NewStopSet(englishStopWords...)
}

// Contains reports whether term is in the set. A nil set contains nothing.
func (s StopSet) Contains(term string) bool {
	_, ok := s[term]
	return ok
}

// Union returns a new set holding the terms of both sets.
func (s StopSet) Union(other StopSet) StopSet {
	out := make(StopSet, len(s)+len(other))
	for t := range s {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Sorted returns the terms in lexicographic order.
func (s StopSet) Sorted() []string {
	terms := make([]string, 0, len(s))
	for t := range s {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}
