package service

import (
	"errors"
	"math"
	"testing"

	"newslm/internal/model/ngram"
)

func TestUnigramPerplexity(t *testing.T) {
	probs := UnigramProbs{"x": 0.5, ngram.Unknown: 0.5}
	result, err := UnigramPerplexity(probs, ngram.Corpus{{"x", "x", "y"}})
	if err != nil {
		t.Fatalf("UnigramPerplexity failed: %v", err)
	}
	if math.Abs(result.Perplexity-2.0) > 1e-9 {
		t.Fatalf("Expected perplexity 2.0, got %v", result.Perplexity)
	}
	if result.Tokens != 3 || result.Scored != 3 {
		t.Fatalf("Expected 3 tokens scored, got %+v", result)
	}
}

func TestUnigramPerplexityEmptyCorpus(t *testing.T) {
	probs := UnigramProbs{ngram.Unknown: 1}
	if _, err := UnigramPerplexity(probs, ngram.Corpus{{}}); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain, got %v", err)
	}
}

func TestUnigramPerplexityWithoutUnknownEntry(t *testing.T) {
	probs := UnigramProbs{"x": 1}
	if _, err := UnigramPerplexity(probs, ngram.Corpus{{"y"}}); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain, got %v", err)
	}
}

func testEvaluator(policy KeyGapPolicy) *BigramEvaluator {
	return &BigramEvaluator{
		Unigrams: UnigramProbs{"a": 0.4, "b": 0.4, ngram.Unknown: 0.2},
		Bigrams: BigramProbs{
			{First: "a", Second: "b"}:                     0.5,
			{First: ngram.Unknown, Second: ngram.Unknown}: 0.25,
			{First: ngram.Unknown, Second: "b"}:           0.2,
			{First: "a", Second: ngram.Unknown}:           0.1,
		},
		Policy: policy,
	}
}

func TestFallbackKey(t *testing.T) {
	e := testEvaluator(KeyGapSkip)
	testCases := []struct {
		name string
		pair ngram.Bigram
		want ngram.Bigram
	}{
		{"exact pair", ngram.Bigram{First: "a", Second: "b"}, ngram.Bigram{First: "a", Second: "b"}},
		{"both unknown", ngram.Bigram{First: "x", Second: "y"}, ngram.Bigram{First: ngram.Unknown, Second: ngram.Unknown}},
		{"first unknown", ngram.Bigram{First: "x", Second: "b"}, ngram.Bigram{First: ngram.Unknown, Second: "b"}},
		{"second unknown", ngram.Bigram{First: "a", Second: "y"}, ngram.Bigram{First: "a", Second: ngram.Unknown}},
		{"both known, unseen pair", ngram.Bigram{First: "b", Second: "a"}, ngram.Bigram{First: "b", Second: ngram.Unknown}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.FallbackKey(tc.pair); got != tc.want {
				t.Fatalf("FallbackKey(%v) = %v, want %v", tc.pair, got, tc.want)
			}
		})
	}
}

func TestBigramPerplexitySkipsMissingFallback(t *testing.T) {
	result, err := testEvaluator(KeyGapSkip).Perplexity(ngram.Corpus{{"a", "b", "a"}})
	if err != nil {
		t.Fatalf("Perplexity failed: %v", err)
	}
	// only (a,b) is scored but N still counts all three tokens
	want := math.Exp(-math.Log(0.5) / 3)
	if math.Abs(result.Perplexity-want) > 1e-9 {
		t.Fatalf("Expected perplexity %v, got %v", want, result.Perplexity)
	}
	if result.SkippedPositions != 1 || result.Scored != 1 || result.Tokens != 3 {
		t.Fatalf("Unexpected counters: %+v", result)
	}
}

func TestBigramPerplexityErrorPolicy(t *testing.T) {
	_, err := testEvaluator(KeyGapFail).Perplexity(ngram.Corpus{{"a", "b", "a"}})
	if !errors.Is(err, ErrKeyGap) {
		t.Fatalf("Expected ErrKeyGap, got %v", err)
	}
	var gap *KeyGapError
	if !errors.As(err, &gap) {
		t.Fatalf("Expected *KeyGapError, got %T", err)
	}
	if gap.Position != 2 || gap.Fallback != (ngram.Bigram{First: "b", Second: ngram.Unknown}) {
		t.Fatalf("Unexpected key gap details: %+v", gap)
	}
}

func TestBigramPerplexityBackfillPolicy(t *testing.T) {
	e := testEvaluator(KeyGapBackfill)
	e.Backfill = func(ngram.Bigram) float64 { return 0.25 }

	result, err := e.Perplexity(ngram.Corpus{{"a", "b", "a"}})
	if err != nil {
		t.Fatalf("Perplexity failed: %v", err)
	}
	if math.Abs(result.Perplexity-2.0) > 1e-9 {
		t.Fatalf("Expected perplexity 2.0, got %v", result.Perplexity)
	}
	if result.BackfilledPositions != 1 || result.SkippedPositions != 0 {
		t.Fatalf("Unexpected counters: %+v", result)
	}
}

func TestBigramPerplexityBackfillWithoutFunction(t *testing.T) {
	if _, err := testEvaluator(KeyGapBackfill).Perplexity(ngram.Corpus{{"a", "b", "a"}}); !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected ErrConfig, got %v", err)
	}
}

func TestBigramPerplexityFlattensSentences(t *testing.T) {
	// the pair (b, x) spans the sentence join and falls back to (b, <UNK>)
	e := testEvaluator(KeyGapSkip)
	e.Bigrams[ngram.Bigram{First: "b", Second: ngram.Unknown}] = 0.5

	result, err := e.Perplexity(ngram.Corpus{{"a", "b"}, {"x"}})
	if err != nil {
		t.Fatalf("Perplexity failed: %v", err)
	}
	if result.Scored != 2 || result.SkippedPositions != 0 {
		t.Fatalf("Expected both pairs scored, got %+v", result)
	}
	if math.Abs(result.Perplexity-math.Pow(2, 2.0/3.0)) > 1e-9 {
		t.Fatalf("Unexpected perplexity %v", result.Perplexity)
	}
}

func TestBigramPerplexityEmptyCorpus(t *testing.T) {
	if _, err := testEvaluator(KeyGapSkip).Perplexity(nil); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain, got %v", err)
	}
}

func TestParseKeyGapPolicy(t *testing.T) {
	if p, err := ParseKeyGapPolicy(""); err != nil || p != KeyGapSkip {
		t.Fatalf("Expected empty policy to default to skip, got %v, %v", p, err)
	}
	if _, err := ParseKeyGapPolicy("ignore"); !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected ErrConfig, got %v", err)
	}
}
