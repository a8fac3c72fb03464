package service

import (
	"context"
	"sort"
	"strings"

	"newslm/internal/model/ngram"
)

// Tokenizer defines the interface for document-format specific tokenization
type Tokenizer interface {
	// Tokenize splits a document into sentences of lower-cased word tokens.
	// Boundary markers are not inserted.
	Tokenize(ctx context.Context, source []byte) (ngram.Corpus, error)

	// Format returns the document format this tokenizer handles
	Format() string
}

// TokenizerRegistry manages tokenizers for different document formats
type TokenizerRegistry struct {
	tokenizers map[string]Tokenizer
	extensions map[string]string // file extension -> format
}

// NewTokenizerRegistry creates a new tokenizer registry
func NewTokenizerRegistry() *TokenizerRegistry {
	return &TokenizerRegistry{
		tokenizers: make(map[string]Tokenizer),
		extensions: make(map[string]string),
	}
}

// NewDefaultTokenizerRegistry creates a registry with the plain text and HTML news tokenizers
func NewDefaultTokenizerRegistry() *TokenizerRegistry {
	registry := NewTokenizerRegistry()
	registry.Register(FormatText, NewTextTokenizer(), []string{".txt", ".text", ""})
	registry.Register(FormatHTML, NewHTMLTokenizer(), []string{".html", ".htm"})
	return registry
}

// Register adds a tokenizer for a specific format
func (tr *TokenizerRegistry) Register(format string, tokenizer Tokenizer, extensions []string) {
	tr.tokenizers[format] = tokenizer
	for _, ext := range extensions {
		tr.extensions[strings.ToLower(ext)] = format
	}
}

// GetTokenizer returns the tokenizer for a given format
func (tr *TokenizerRegistry) GetTokenizer(format string) (Tokenizer, bool) {
	tokenizer, ok := tr.tokenizers[format]
	return tokenizer, ok
}

// GetTokenizerByExtension returns the tokenizer for a given file extension
func (tr *TokenizerRegistry) GetTokenizerByExtension(extension string) (Tokenizer, bool) {
	format, ok := tr.extensions[strings.ToLower(extension)]
	if !ok {
		return nil, false
	}
	return tr.GetTokenizer(format)
}

// SupportedFormats returns all registered formats in sorted order
func (tr *TokenizerRegistry) SupportedFormats() []string {
	formats := make([]string, 0, len(tr.tokenizers))
	for format := range tr.tokenizers {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}
