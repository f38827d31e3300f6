package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// Strip drops all markup from s and returns the concatenated text nodes.
// Character references are decoded. Malformed markup is tolerated: the
// tokenizer keeps going until EOF and whatever text it saw is returned.
func Strip(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; both end the text
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
