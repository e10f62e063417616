package corpus

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup removes HTML/SGML tags, comments and the contents of script
// and style elements, and decodes character references. Every tag becomes a
// single space so words on either side stay apart. Line structure, and with
// it the record markers, is preserved.
func StripMarkup(raw string) (string, error) {
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	b.Grow(len(raw))
	inScript := false
	inStyle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return "", err
			}
			return b.String(), nil

		case html.StartTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			}
			b.WriteByte(' ')

		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			}
			b.WriteByte(' ')

		case html.SelfClosingTagToken:
			b.WriteByte(' ')

		case html.TextToken:
			if !inScript && !inStyle {
				b.Write(tokenizer.Text())
			}
		}
	}
}
