package service

import (
	"bytes"
	"context"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"newslm/internal/model/ngram"
)

const (
	FormatText = "text"
	FormatHTML = "html"
)

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true,
	"jr": true, "sr": true, "vs": true, "etc": true, "inc": true, "co": true,
	"corp": true, "ltd": true, "gov": true, "sen": true, "rep": true, "gen": true,
	"col": true, "lt": true, "sgt": true, "jan": true, "feb": true, "aug": true,
	"sept": true, "oct": true, "nov": true, "dec": true,
}

// NewsTokenizer segments news text into sentences and word tokens
type NewsTokenizer struct {
	format string
}

// NewTextTokenizer creates a tokenizer for plain UTF-8 text
func NewTextTokenizer() *NewsTokenizer {
	return &NewsTokenizer{format: FormatText}
}

// NewHTMLTokenizer creates a tokenizer that reads the visible text of an HTML document
func NewHTMLTokenizer() *NewsTokenizer {
	return &NewsTokenizer{format: FormatHTML}
}

func (t *NewsTokenizer) Format() string {
	return t.format
}

// Tokenize splits source into sentences. A sentence ends after a run of terminal
// punctuation (plus any closing quotes or brackets) or at a blank line.
func (t *NewsTokenizer) Tokenize(ctx context.Context, source []byte) (ngram.Corpus, error) {
	source = bytes.TrimPrefix(source, []byte("\uFEFF"))
	source = bytes.ToValidUTF8(source, []byte("\uFFFD"))

	text := string(source)
	if t.format == FormatHTML {
		text = extractHTMLText(source)
	}

	// cases.Caser is stateful and must not be shared between calls
	lower := cases.Lower(language.English)
	lex := newLexer(text)

	var corpus ngram.Corpus
	var sentence ngram.Sentence
	ended := false
	flush := func() {
		if len(sentence) > 0 {
			corpus = append(corpus, sentence)
		}
		sentence = nil
		ended = false
	}

	for {
		token, kind := lex.next()
		if kind == lexEOF {
			break
		}
		if kind == lexParagraph {
			flush()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		if ended && kind != lexClosing {
			flush()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if kind == lexWord {
			token = lower.String(token)
		}
		sentence = append(sentence, token)
		if kind == lexTerminal {
			ended = true
		}
	}
	flush()

	return corpus, nil
}

type lexKind int

const (
	lexEOF lexKind = iota
	lexWord
	lexPunct
	lexTerminal
	lexClosing
	lexParagraph
)

// lexer chops news text into word and punctuation tokens
type lexer struct {
	content []rune
	pending []string
}

func newLexer(content string) *lexer {
	return &lexer{content: []rune(content)}
}

// trimLeft drops leading whitespace and reports whether it contained a blank line
func (l *lexer) trimLeft() bool {
	newlines := 0
	for len(l.content) > 0 && unicode.IsSpace(l.content[0]) {
		if l.content[0] == '\n' {
			newlines++
		}
		l.content = l.content[1:]
	}
	return newlines >= 2
}

func (l *lexer) chop(n int) []rune {
	token := l.content[:n]
	l.content = l.content[n:]
	return token
}

func (l *lexer) chopWhile(f func(rune) bool) []rune {
	n := 0
	for n < len(l.content) && f(l.content[n]) {
		n++
	}
	return l.chop(n)
}

func (l *lexer) peek(i int) rune {
	if i < len(l.content) {
		return l.content[i]
	}
	return 0
}

func (l *lexer) next() (string, lexKind) {
	if len(l.pending) > 0 {
		token := l.pending[0]
		l.pending = l.pending[1:]
		return token, lexWord
	}

	if l.trimLeft() {
		return "", lexParagraph
	}
	if len(l.content) == 0 {
		return "", lexEOF
	}

	r := l.content[0]
	switch {
	case isWordRune(r):
		return l.word(), lexWord
	case isTerminal(r):
		return string(l.chopWhile(isTerminal)), lexTerminal
	case isClosing(r):
		return string(l.chop(1)), lexClosing
	default:
		return string(l.chop(1)), lexPunct
	}
}

// word chops a word together with an attached abbreviation period, decimal part or clitic
func (l *lexer) word() string {
	word := string(l.chopWhile(isWordRune))

	// decimals and thousands separators: 3.5, 1,200
	for (l.peek(0) == '.' || l.peek(0) == ',') && unicode.IsDigit(l.peek(1)) && isDigits(word) {
		word += string(l.chop(1)) + string(l.chopWhile(unicode.IsDigit))
	}

	if l.peek(0) == '.' && (abbreviations[strings.ToLower(word)] || isInitial(word)) {
		word += string(l.chop(1))
		// dotted acronyms: u.s., p.m.
		for unicode.IsLetter(l.peek(0)) && l.peek(1) == '.' {
			word += string(l.chop(2))
		}
		return word
	}

	if isApostrophe(l.peek(0)) && unicode.IsLetter(l.peek(1)) {
		if strings.HasSuffix(strings.ToLower(word), "n") && (l.peek(1) == 't' || l.peek(1) == 'T') && !unicode.IsLetter(l.peek(2)) && len(word) > 1 {
			l.chop(2)
			l.pending = append(l.pending, "n't")
			return word[:len(word)-1]
		}
		l.chop(1)
		l.pending = append(l.pending, "'"+string(l.chopWhile(unicode.IsLetter)))
	}
	return word
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	switch r {
	case '"', '”', '’', ')', ']':
		return true
	}
	return false
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func isInitial(word string) bool {
	runes := []rune(word)
	return len(runes) == 1 && unicode.IsLetter(runes[0])
}

var skippedElements = map[string]bool{"script": true, "style": true, "noscript": true, "head": true}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true, "article": true,
	"section": true, "header": true, "footer": true, "blockquote": true, "title": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "tr": true, "td": true,
}

// extractHTMLText returns the visible text of an HTML document with a blank line
// after every block element
func extractHTMLText(source []byte) string {
	var b strings.Builder
	z := html.NewTokenizer(bytes.NewReader(source))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] && tt == html.StartTagToken {
				skip++
			}
			if blockElements[tag] {
				b.WriteString("\n\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteString("\n\n")
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
