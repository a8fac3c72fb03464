package service

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"newslm/internal/model/ngram"
)

func TestBagOfWords(t *testing.T) {
	sentence := ngram.Sentence{"<s>", "the", "u.s.", "economy", "grew", "3.5", "%", "a", "the", "n't", "</s>"}
	got := BagOfWords(sentence)
	want := map[string]int{"the": 2, "economy": 1, "grew": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BagOfWords() = %v, want %v", got, want)
	}
}

func newsExamples() []LabeledSentence {
	return []LabeledSentence{
		{ngram.LabelReal, ngram.Sentence{"<s>", "senate", "passes", "budget", "bill", "</s>"}},
		{ngram.LabelReal, ngram.Sentence{"<s>", "house", "votes", "on", "budget", "</s>"}},
		{ngram.LabelReal, ngram.Sentence{"<s>", "senate", "debates", "tax", "bill", "</s>"}},
		{ngram.LabelFake, ngram.Sentence{"<s>", "aliens", "control", "senate", "</s>"}},
		{ngram.LabelFake, ngram.Sentence{"<s>", "shocking", "aliens", "secret", "revealed", "</s>"}},
	}
}

func TestTrainNaiveBayes(t *testing.T) {
	nb, err := TrainNaiveBayes(newsExamples(), 1.0)
	if err != nil {
		t.Fatalf("TrainNaiveBayes failed: %v", err)
	}
	if got := nb.Labels(); !reflect.DeepEqual(got, []ngram.Label{ngram.LabelFake, ngram.LabelReal}) {
		t.Fatalf("Labels() = %v", got)
	}

	if got := nb.PredictOne(ngram.Sentence{"budget", "bill"}); got != ngram.LabelReal {
		t.Fatalf("Expected real, got %s", got)
	}
	if got := nb.PredictOne(ngram.Sentence{"shocking", "aliens"}); got != ngram.LabelFake {
		t.Fatalf("Expected fake, got %s", got)
	}

	predictions := nb.Predict([]ngram.Sentence{{"budget"}, {"aliens"}})
	if !reflect.DeepEqual(predictions, []ngram.Label{ngram.LabelReal, ngram.LabelFake}) {
		t.Fatalf("Predict() = %v", predictions)
	}
}

func TestNaiveBayesLogScores(t *testing.T) {
	nb, err := TrainNaiveBayes(newsExamples(), 1.0)
	if err != nil {
		t.Fatalf("TrainNaiveBayes failed: %v", err)
	}
	// unknown words only leave the priors: 2/5 fake, 3/5 real
	scores := nb.LogScores(ngram.Sentence{"zebra"})
	if math.Abs(scores[ngram.LabelFake]-math.Log(0.4)) > 1e-12 {
		t.Fatalf("Expected fake prior log(0.4), got %v", scores[ngram.LabelFake])
	}
	if math.Abs(scores[ngram.LabelReal]-math.Log(0.6)) > 1e-12 {
		t.Fatalf("Expected real prior log(0.6), got %v", scores[ngram.LabelReal])
	}
}

func TestNaiveBayesTieGoesToFirstLabel(t *testing.T) {
	examples := []LabeledSentence{
		{ngram.LabelReal, ngram.Sentence{"same"}},
		{ngram.LabelFake, ngram.Sentence{"same"}},
	}
	nb, err := TrainNaiveBayes(examples, 1.0)
	if err != nil {
		t.Fatalf("TrainNaiveBayes failed: %v", err)
	}
	if got := nb.PredictOne(ngram.Sentence{"same"}); got != ngram.LabelFake {
		t.Fatalf("Expected tie to resolve to fake, got %s", got)
	}
}

func TestTrainNaiveBayesErrors(t *testing.T) {
	if _, err := TrainNaiveBayes(newsExamples(), 0); !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected ErrConfig, got %v", err)
	}
	if _, err := TrainNaiveBayes(nil, 1); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain, got %v", err)
	}
	noWords := []LabeledSentence{{ngram.LabelReal, ngram.Sentence{"<s>", ".", "</s>"}}}
	if _, err := TrainNaiveBayes(noWords, 1); !errors.Is(err, ErrDomain) {
		t.Fatalf("Expected ErrDomain, got %v", err)
	}
}
