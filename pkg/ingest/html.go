package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML removes tags and comments from s and returns the remaining text.
// Character references such as &amp; are decoded.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF; a strings.Reader has no other failure mode.
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
