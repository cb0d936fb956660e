package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// StripMarkup returns the visible text of rich-text HTML with whitespace collapsed.
func StripMarkup(content string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way the text gathered so far is the result
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isInvisibleTag(string(name)) {
				skip++
			}
			separate(&b, name)
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isInvisibleTag(string(name)) && skip > 0 {
				skip--
			}
			separate(&b, name)
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			separate(&b, name)
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// blockTags break the text flow; inline tags such as b, em or a do not.
var blockTags = map[string]struct{}{
	"address": {}, "article": {}, "aside": {}, "blockquote": {}, "br": {}, "dd": {},
	"div": {}, "dl": {}, "dt": {}, "figcaption": {}, "figure": {}, "footer": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {}, "header": {}, "hr": {},
	"li": {}, "ol": {}, "p": {}, "pre": {}, "section": {}, "table": {}, "td": {},
	"th": {}, "tr": {}, "ul": {},
}

func separate(b *strings.Builder, name []byte) {
	if _, ok := blockTags[string(name)]; ok {
		b.WriteByte(' ')
	}
}

func isInvisibleTag(name string) bool {
	return name == "script" || name == "style"
}

// VisibleLength counts the characters left after StripMarkup.
func VisibleLength(content string) int {
	return utf8.RuneCountInString(StripMarkup(content))
}
