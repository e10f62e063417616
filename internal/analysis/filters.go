package analysis

import (
	bleveanalysis "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// LowercaseName is the registry type of the lower-casing filter.
	LowercaseName = "ranker_lowercase"
	// StemmerName is the registry type of the English snowball filter.
	StemmerName = "ranker_snowball_en"
)

// LowercaseFilter folds every term to lower case.
type LowercaseFilter struct{}

// Filter implements the bleve token filter interface.
func (LowercaseFilter) Filter(input bleveanalysis.TokenStream) bleveanalysis.TokenStream {
	// A Caser keeps state between calls.
	lower := cases.Lower(language.Und)
	for _, token := range input {
		token.Term = lower.Bytes(token.Term)
	}
	return input
}

// StemFilter applies the English snowball stemmer and drops tokens whose
// stem is empty.
type StemFilter struct{}

// Filter implements the bleve token filter interface.
func (StemFilter) Filter(input bleveanalysis.TokenStream) bleveanalysis.TokenStream {
	out := input[:0]
	for _, token := range input {
		if token.KeyWord {
			out = append(out, token)
			continue
		}
		stemmed := english.Stem(string(token.Term), true)
		if stemmed == "" {
			continue
		}
		token.Term = []byte(stemmed)
		out = append(out, token)
	}
	return out
}

func init() {
	registry.RegisterTokenFilter(LowercaseName, func(map[string]interface{}, *registry.Cache) (bleveanalysis.TokenFilter, error) {
		return LowercaseFilter{}, nil
	})
	registry.RegisterTokenFilter(StemmerName, func(map[string]interface{}, *registry.Cache) (bleveanalysis.TokenFilter, error) {
		return StemFilter{}, nil
	})
}
