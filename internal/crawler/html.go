package crawler

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML reduces an HTML document to its readable text: script, style and
// noscript subtrees dropped, tags removed, entities decoded, whitespace
// collapsed. Malformed markup is tolerated; the tokenizer emits whatever it
// can.
func StripHTML(raw string) string {
	tok := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	skipDepth := 0

	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.StartTagToken:
			name, _ := tok.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.WriteString(string(tok.Text()))
				b.WriteByte(' ')
			}
		}
	}
}

func skippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript":
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// pageMeta holds the document title and meta description, used as a
// secondary source for specialty labels.
type pageMeta struct {
	Title       string
	Description string
}

func extractMeta(raw string) pageMeta {
	var meta pageMeta
	tok := html.NewTokenizer(strings.NewReader(raw))
	inTitle := false

	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			return meta
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tok.TagName()
			switch string(name) {
			case "title":
				inTitle = tt == html.StartTagToken
			case "meta":
				if !hasAttr {
					continue
				}
				var metaName, content string
				for {
					key, val, more := tok.TagAttr()
					switch string(key) {
					case "name":
						metaName = string(val)
					case "content":
						content = string(val)
					}
					if !more {
						break
					}
				}
				if strings.EqualFold(metaName, "description") {
					meta.Description = content
				}
			case "body":
				// Title and meta live in head; stop early.
				return meta
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if string(name) == "title" {
				inTitle = false
			}
		case html.TextToken:
			if inTitle {
				meta.Title += string(tok.Text())
			}
		}
	}
}
