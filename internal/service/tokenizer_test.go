package service

import (
	"context"
	"reflect"
	"testing"

	"newslm/internal/model/ngram"
)

func TestTextTokenizer(t *testing.T) {
	source := "Mr. Smith went to Washington. He didn't stay!\n\nTrump's plan costs $3.5 billion in the U.S. economy"

	corpus, err := NewTextTokenizer().Tokenize(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	want := ngram.Corpus{
		{"mr.", "smith", "went", "to", "washington", "."},
		{"he", "did", "n't", "stay", "!"},
		{"trump", "'s", "plan", "costs", "$", "3.5", "billion", "in", "the", "u.s.", "economy"},
	}
	if !reflect.DeepEqual(corpus, want) {
		t.Fatalf("Tokenize() = %q, want %q", corpus, want)
	}
}

func TestTextTokenizerClosingQuoteStaysWithSentence(t *testing.T) {
	source := `He said "no." Then he left.`
	corpus, err := NewTextTokenizer().Tokenize(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if len(corpus) != 2 {
		t.Fatalf("Expected 2 sentences, got %q", corpus)
	}
	if last := corpus[0][len(corpus[0])-1]; last != `"` {
		t.Fatalf("Expected closing quote to end the first sentence, got %q", corpus[0])
	}
}

func TestTextTokenizerStripsByteOrderMark(t *testing.T) {
	corpus, err := NewTextTokenizer().Tokenize(context.Background(), []byte("\uFEFFHello world."))
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if corpus[0][0] != "hello" {
		t.Fatalf("Expected BOM to be dropped, got %q", corpus[0][0])
	}
}

func TestTextTokenizerEmptyInput(t *testing.T) {
	corpus, err := NewTextTokenizer().Tokenize(context.Background(), []byte("  \n\n "))
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if len(corpus) != 0 {
		t.Fatalf("Expected no sentences, got %q", corpus)
	}
}

func TestTextTokenizerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTextTokenizer().Tokenize(ctx, []byte("One. Two. Three.")); err == nil {
		t.Fatalf("Expected cancellation error")
	}
}

func TestHTMLTokenizer(t *testing.T) {
	source := `<html><head><title>T</title><script>var x = 1;</script></head>` +
		`<body><h1>Big News</h1><p>Aliens landed. Nobody noticed</p></body></html>`

	corpus, err := NewHTMLTokenizer().Tokenize(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	want := ngram.Corpus{
		{"big", "news"},
		{"aliens", "landed", "."},
		{"nobody", "noticed"},
	}
	if !reflect.DeepEqual(corpus, want) {
		t.Fatalf("Tokenize() = %q, want %q", corpus, want)
	}
}

func TestTokenizerRegistry(t *testing.T) {
	registry := NewDefaultTokenizerRegistry()

	if tok, ok := registry.GetTokenizerByExtension(".HTML"); !ok || tok.Format() != FormatHTML {
		t.Fatalf("Expected html tokenizer for .HTML")
	}
	if tok, ok := registry.GetTokenizerByExtension(".txt"); !ok || tok.Format() != FormatText {
		t.Fatalf("Expected text tokenizer for .txt")
	}
	if _, ok := registry.GetTokenizerByExtension(".pdf"); ok {
		t.Fatalf("Expected no tokenizer for .pdf")
	}
	if got := registry.SupportedFormats(); !reflect.DeepEqual(got, []string{FormatHTML, FormatText}) {
		t.Fatalf("SupportedFormats() = %v", got)
	}
}
