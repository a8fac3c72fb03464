package service

import (
	"errors"
	"math"
	"testing"

	"newslm/internal/model/ngram"
)

func TestScorePredictions(t *testing.T) {
	predicted := []ngram.Label{ngram.LabelReal, ngram.LabelFake, ngram.LabelFake, ngram.LabelReal}
	expected := []ngram.Label{ngram.LabelReal, ngram.LabelFake, ngram.LabelReal, ngram.LabelReal}

	score, err := ScorePredictions(predicted, expected)
	if err != nil {
		t.Fatalf("ScorePredictions failed: %v", err)
	}
	if score.Total != 4 || score.Correct != 3 {
		t.Fatalf("Unexpected totals: %+v", score)
	}
	if math.Abs(score.Accuracy-0.75) > 1e-12 {
		t.Fatalf("Expected accuracy 0.75, got %v", score.Accuracy)
	}
	if score.Confusion[ngram.LabelReal][ngram.LabelFake] != 1 {
		t.Fatalf("Expected one real sentence predicted fake, got %v", score.Confusion)
	}
}

func TestScorePredictionsErrors(t *testing.T) {
	if _, err := ScorePredictions([]ngram.Label{ngram.LabelReal}, nil); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain for length mismatch, got %v", err)
	}
	if _, err := ScorePredictions(nil, nil); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain for empty input, got %v", err)
	}
}

func TestPerplexityClassifier(t *testing.T) {
	realNews := ngram.MarkSentences(ngram.Corpus{
		{"the", "senate", "passed", "the", "bill"},
		{"the", "house", "passed", "the", "budget"},
	}, false)
	fakeNews := ngram.MarkSentences(ngram.Corpus{
		{"aliens", "control", "the", "weather"},
		{"aliens", "secretly", "control", "the", "media"},
	}, false)

	models := map[ngram.Label]*LanguageModel{}
	for label, corpus := range map[ngram.Label]ngram.Corpus{ngram.LabelReal: realNews, ngram.LabelFake: fakeNews} {
		model, err := BuildLanguageModel(label, corpus, mustAddK(t, 0.1), KeyGapBackfill)
		if err != nil {
			t.Fatalf("BuildLanguageModel failed: %v", err)
		}
		models[label] = model
	}

	classifier, err := NewPerplexityClassifier(models)
	if err != nil {
		t.Fatalf("NewPerplexityClassifier failed: %v", err)
	}

	result, err := classifier.Classify(ngram.MarkSentences(ngram.Corpus{{"aliens", "control", "the", "media"}}, false))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Label != ngram.LabelFake {
		t.Fatalf("Expected fake, got %s (%+v)", result.Label, result.Scores)
	}
	if len(result.Scores) != 2 || result.Scores[0].Label != ngram.LabelFake {
		t.Fatalf("Expected scores ordered by label, got %+v", result.Scores)
	}
}

func TestNewPerplexityClassifierNoModels(t *testing.T) {
	if _, err := NewPerplexityClassifier(nil); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain, got %v", err)
	}
}

func TestCalculatePerplexityStatistics(t *testing.T) {
	stats := calculatePerplexityStatistics([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if stats.Count != 8 || stats.Min != 2 || stats.Max != 9 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}
	if math.Abs(stats.Mean-5) > 1e-12 {
		t.Fatalf("Expected mean 5, got %v", stats.Mean)
	}
	// sample standard deviation
	if math.Abs(stats.StdDev-math.Sqrt(32.0/7.0)) > 1e-12 {
		t.Fatalf("Expected stddev sqrt(32/7), got %v", stats.StdDev)
	}

	single := calculatePerplexityStatistics([]float64{3})
	if single.Mean != 3 || single.StdDev != 0 || single.ZScore(10) != 0 {
		t.Fatalf("Unexpected single-value stats: %+v", single)
	}
}

func TestInterpretZScore(t *testing.T) {
	testCases := []struct {
		z    float64
		want string
	}{
		{-3, "very_low"},
		{-1.5, "low"},
		{0, "normal"},
		{1.5, "high"},
		{2.5, "very_high"},
	}
	for _, tc := range testCases {
		if got := interpretZScore(tc.z).Level; got != tc.want {
			t.Fatalf("interpretZScore(%v) == %q, want %q", tc.z, got, tc.want)
		}
	}
}
