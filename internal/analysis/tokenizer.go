package analysis

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	bleveanalysis "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/clipperhouse/uax29/v2/words"
)

// TokenizerName is the registry type of the word tokenizer.
const TokenizerName = "ranker_words"

// DefaultMaxTokenLength is the longest token, in runes, that is kept.
const DefaultMaxTokenLength = 255

// Tokenizer segments text on Unicode word boundaries (UAX #29) and keeps
// segments that carry at least one letter or digit. Positions start at 1
// and count every word segment, including over-long ones that are skipped.
type Tokenizer struct {
	MaxTokenLength int
}

// Tokenize implements the bleve tokenizer interface.
func (t *Tokenizer) Tokenize(input []byte) bleveanalysis.TokenStream {
	maxLen := t.MaxTokenLength
	if maxLen <= 0 {
		maxLen = DefaultMaxTokenLength
	}

	stream := make(bleveanalysis.TokenStream, 0)
	position := 0
	segments := words.FromBytes(input)
	for segments.Next() {
		segment := segments.Value()
		if !isWord(segment) {
			continue
		}
		position++
		if utf8.RuneCount(segment) > maxLen {
			continue
		}

		typ := bleveanalysis.AlphaNumeric
		if words.BleveNumeric(segment) {
			typ = bleveanalysis.Numeric
		} else if words.BleveIdeographic(segment) {
			typ = bleveanalysis.Ideographic
		}
		stream = append(stream, &bleveanalysis.Token{
			Term:     append([]byte(nil), segment...),
			Start:    segments.Start(),
			End:      segments.End(),
			Position: position,
			Type:     typ,
		})
	}
	return stream
}

// isWord reports whether a segment holds at least one letter or digit.
// Whitespace and punctuation segments are dropped.
func isWord(segment []byte) bool {
	for len(segment) > 0 {
		r, size := utf8.DecodeRune(segment)
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
		segment = segment[size:]
	}
	return false
}

func tokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (bleveanalysis.Tokenizer, error) {
	t := &Tokenizer{MaxTokenLength: DefaultMaxTokenLength}
	switch v := config["max_token_length"].(type) {
	case nil:
	case int:
		t.MaxTokenLength = v
	case float64:
		t.MaxTokenLength = int(v)
	default:
		return nil, fmt.Errorf("analysis: max_token_length must be a number, got %T", v)
	}
	if t.MaxTokenLength <= 0 {
		return nil, fmt.Errorf("analysis: max_token_length must be positive, got %d", t.MaxTokenLength)
	}
	return t, nil
}

func init() {
	registry.RegisterTokenizer(TokenizerName, tokenizerConstructor)
}
