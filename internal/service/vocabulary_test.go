package service

import (
	"reflect"
	"testing"

	"newslm/internal/model/ngram"
)

func TestBuildUnigrams(t *testing.T) {
	corpus := ngram.Corpus{
		{"<s>", "the", "cat", "</s>"},
		{"<s>", "the", "dog", "</s>"},
	}
	counts := BuildUnigrams(corpus)

	want := UnigramCounts{"<s>": 2, "the": 2, "cat": 1, "dog": 1, "</s>": 2}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("BuildUnigrams() = %v, want %v", counts, want)
	}
	if counts.Total() != 8 {
		t.Fatalf("Expected total 8, got %d", counts.Total())
	}
}

func TestBuildBigramsStaysWithinSentences(t *testing.T) {
	corpus := ngram.Corpus{
		{"<s>", "a", "</s>"},
		{"<s>", "a", "</s>"},
	}
	counts := BuildBigrams(corpus)

	want := BigramCounts{
		{First: "<s>", Second: "a"}:  2,
		{First: "a", Second: "</s>"}: 2,
	}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("BuildBigrams() = %v, want %v", counts, want)
	}
	if _, ok := counts[ngram.Bigram{First: "</s>", Second: "<s>"}]; ok {
		t.Fatalf("Expected no bigram across sentence boundary")
	}
}

func TestBuildTablesEmptyCorpus(t *testing.T) {
	if got := BuildUnigrams(nil); len(got) != 0 {
		t.Fatalf("Expected empty unigram table, got %v", got)
	}
	if got := BuildBigrams(ngram.Corpus{}); len(got) != 0 {
		t.Fatalf("Expected empty bigram table, got %v", got)
	}
}

func TestBuildTablesDeterministic(t *testing.T) {
	corpus := ngram.Corpus{
		{"<s>", "breaking", "news", "today", "</s>"},
		{"<s>", "news", "today", "is", "fake", "</s>"},
	}
	if !reflect.DeepEqual(BuildUnigrams(corpus), BuildUnigrams(corpus)) {
		t.Fatalf("Expected identical unigram tables across runs")
	}
	if !reflect.DeepEqual(BuildBigrams(corpus), BuildBigrams(corpus)) {
		t.Fatalf("Expected identical bigram tables across runs")
	}
}

func TestTableKeysAreSorted(t *testing.T) {
	unigrams := UnigramCounts{"b": 1, "a": 2, "c": 3}
	if got := unigrams.Tokens(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Tokens() = %v", got)
	}

	bigrams := BigramCounts{
		{First: "b", Second: "a"}: 1,
		{First: "a", Second: "c"}: 1,
		{First: "a", Second: "b"}: 1,
	}
	want := []ngram.Bigram{{First: "a", Second: "b"}, {First: "a", Second: "c"}, {First: "b", Second: "a"}}
	if got := bigrams.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
}
