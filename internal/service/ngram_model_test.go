package service

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"newslm/internal/model/ngram"
)

func testTrainingCorpus() ngram.Corpus {
	return ngram.Corpus{
		{"<s>", "a", "b", "</s>"},
		{"<s>", "a", "c", "</s>"},
	}
}

func mustBuildModel(t *testing.T, corpus ngram.Corpus, k float64, policy KeyGapPolicy) *LanguageModel {
	t.Helper()
	model, err := BuildLanguageModel(ngram.LabelReal, corpus, mustAddK(t, k), policy)
	if err != nil {
		t.Fatalf("BuildLanguageModel failed: %v", err)
	}
	return model
}

func TestBuildLanguageModelRejectsBadInput(t *testing.T) {
	if _, err := BuildLanguageModel(ngram.LabelFake, ngram.Corpus{}, mustAddK(t, 1), KeyGapSkip); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain for empty corpus, got %v", err)
	}
	if _, err := BuildLanguageModel(ngram.LabelFake, testTrainingCorpus(), nil, KeyGapSkip); !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected ErrConfig for nil smoother, got %v", err)
	}
	if _, err := BuildLanguageModel(ngram.LabelFake, testTrainingCorpus(), mustAddK(t, 1), "floor"); !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected ErrConfig for unknown policy, got %v", err)
	}
}

func TestLanguageModelStats(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapSkip)
	stats := model.Stats()

	if stats.Label != ngram.LabelReal {
		t.Fatalf("Expected label real, got %s", stats.Label)
	}
	if stats.RawVocabularySize != 5 || stats.Cutoff != 4 || stats.VocabularySize != 5 {
		t.Fatalf("Unexpected vocabulary stats: %+v", stats)
	}
	if stats.UnknownCount != 1 {
		t.Fatalf("Expected one folded token, got %d", stats.UnknownCount)
	}
	if stats.TotalTokens != 8 || stats.TrainingSentences != 2 {
		t.Fatalf("Unexpected training stats: %+v", stats)
	}
	if stats.SmootherName != "AddK" || stats.SmoothingK != 0.1 {
		t.Fatalf("Unexpected smoother stats: %+v", stats)
	}
}

func TestLanguageModelUnigramMass(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapSkip)
	if math.Abs(model.unigramProbs.Mass()-1) > 1e-9 {
		t.Fatalf("Expected unigram mass 1, got %v", model.unigramProbs.Mass())
	}
	if model.UnigramProbability("never-seen") != model.UnigramProbability(ngram.Unknown) {
		t.Fatalf("Expected unknown tokens to use the <UNK> probability")
	}
}

func TestLanguageModelConditionalMass(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.5, KeyGapSkip)
	kV := 0.5 * float64(model.VocabularySize())
	for _, first := range model.unigramCounts.Tokens() {
		mass := model.ConditionalMass(first)
		if first == ngram.SentenceEnd {
			want := kV / (float64(model.unigramCounts[first]) + kV)
			if math.Abs(mass-want) > 1e-9 || mass >= 1 {
				t.Fatalf("Expected conditional mass %v for </s>, got %v", want, mass)
			}
			continue
		}
		if math.Abs(mass-1) > 1e-9 {
			t.Fatalf("Expected conditional mass 1 for %q, got %v", first, mass)
		}
	}
}

func TestLanguageModelBigramPerplexityCountsBoundaryGaps(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapSkip)

	result, err := model.BigramPerplexity(testTrainingCorpus())
	if err != nil {
		t.Fatalf("BigramPerplexity failed: %v", err)
	}
	// the joined pair (</s>, <s>) was never trained and (</s>, <UNK>) is missing too
	if result.Tokens != 8 || result.Scored != 6 || result.SkippedPositions != 1 {
		t.Fatalf("Unexpected counters: %+v", result)
	}
	if result.Perplexity <= 1 || math.IsInf(result.Perplexity, 0) || math.IsNaN(result.Perplexity) {
		t.Fatalf("Unexpected perplexity %v", result.Perplexity)
	}
}

func TestLanguageModelBackfillScoresEveryPosition(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapBackfill)

	result, err := model.BigramPerplexity(testTrainingCorpus())
	if err != nil {
		t.Fatalf("BigramPerplexity failed: %v", err)
	}
	if result.Scored != 7 || result.BackfilledPositions != 1 {
		t.Fatalf("Unexpected counters: %+v", result)
	}

	skip := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapSkip)
	skipped, err := skip.BigramPerplexity(testTrainingCorpus())
	if err != nil {
		t.Fatalf("BigramPerplexity failed: %v", err)
	}
	if !(result.Perplexity > skipped.Perplexity) {
		t.Fatalf("Expected skipping to understate perplexity: backfill %v, skip %v", result.Perplexity, skipped.Perplexity)
	}
}

func TestLanguageModelFitsOwnCorpusBetter(t *testing.T) {
	realNews := ngram.Corpus{
		{"<s>", "the", "senate", "passed", "the", "bill", "</s>"},
		{"<s>", "the", "senate", "voted", "on", "the", "bill", "</s>"},
		{"<s>", "the", "house", "passed", "the", "budget", "</s>"},
	}
	fake := ngram.Corpus{
		{"<s>", "aliens", "control", "the", "weather", "</s>"},
		{"<s>", "aliens", "secretly", "control", "the", "media", "</s>"},
		{"<s>", "the", "weather", "is", "a", "hoax", "</s>"},
	}
	realModel := mustBuildModel(t, realNews, 0.1, KeyGapBackfill)
	fakeModel := mustBuildModel(t, fake, 0.1, KeyGapBackfill)

	probe := ngram.Corpus{{"<s>", "the", "senate", "passed", "the", "budget", "</s>"}}
	realScore, err := realModel.BigramPerplexity(probe)
	if err != nil {
		t.Fatalf("BigramPerplexity failed: %v", err)
	}
	fakeScore, err := fakeModel.BigramPerplexity(probe)
	if err != nil {
		t.Fatalf("BigramPerplexity failed: %v", err)
	}
	if !(realScore.Perplexity < fakeScore.Perplexity) {
		t.Fatalf("Expected real model to fit better: real %v, fake %v", realScore.Perplexity, fakeScore.Perplexity)
	}
}

func TestLanguageModelTopContinuations(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapSkip)
	next := model.TopContinuations("a", 5)
	if len(next) != 2 {
		t.Fatalf("Expected 2 continuations of 'a', got %v", next)
	}
	if next[0].Token != ngram.Unknown || next[1].Token != "b" {
		t.Fatalf("Expected tied continuations in lexicographic order, got %v", next)
	}
	if got := model.TopContinuations("a", 1); len(got) != 1 {
		t.Fatalf("Expected limit to apply, got %v", got)
	}
}

func TestLanguageModelBigramProbability(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 1, KeyGapSkip)
	p, ok := model.BigramProbability("a", "zebra")
	if !ok {
		t.Fatalf("Expected (a, <UNK>) fallback to exist")
	}
	// (1 + 1) / (2 + 5)
	if math.Abs(p-2.0/7.0) > 1e-12 {
		t.Fatalf("Expected 2/7, got %v", p)
	}
}

func TestLanguageModelUnsmoothed(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapSkip)
	if got := model.UnsmoothedUnigram("a"); got != 2.0/8.0 {
		t.Fatalf("Expected 0.25, got %v", got)
	}
	if got := model.UnsmoothedBigram("a", "c"); got != 0.5 {
		t.Fatalf("Expected 0.5, got %v", got)
	}
	if got := model.UnsmoothedBigram("c", "a"); got != 0 {
		t.Fatalf("Expected 0 for unseen pair, got %v", got)
	}
}

func TestLanguageModelExplainBigrams(t *testing.T) {
	model := mustBuildModel(t, testTrainingCorpus(), 0.1, KeyGapSkip)

	result, details, err := model.ExplainBigrams(testTrainingCorpus())
	if err != nil {
		t.Fatalf("ExplainBigrams failed: %v", err)
	}
	plain, err := model.BigramPerplexity(testTrainingCorpus())
	if err != nil {
		t.Fatalf("BigramPerplexity failed: %v", err)
	}
	if result != plain {
		t.Fatalf("Expected Explain to agree with Perplexity: %+v vs %+v", result, plain)
	}
	if len(details) != 7 {
		t.Fatalf("Expected 7 scored positions, got %d", len(details))
	}
	if !details[3].Skipped || !reflect.DeepEqual(details[3].Fallback, ngram.NGram{"</s>", ngram.Unknown}) {
		t.Fatalf("Expected sentence join to be skipped, got %+v", details[3])
	}
	// c was folded into <UNK>
	if details[5].Skipped || !reflect.DeepEqual(details[5].Fallback, ngram.NGram{"a", ngram.Unknown}) {
		t.Fatalf("Expected (a, c) to fall back to (a, <UNK>), got %+v", details[5])
	}
	if details[0].Fallback != nil || details[0].LogProb >= 0 {
		t.Fatalf("Expected exact pair with negative log prob, got %+v", details[0])
	}
}
