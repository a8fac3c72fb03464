package service

import (
	"fmt"
	"math"
	"sort"
	"unicode"

	"newslm/internal/model/ngram"
)

// LabeledSentence is a training or evaluation example for the bag-of-words classifier
type LabeledSentence struct {
	Label    ngram.Label
	Sentence ngram.Sentence
}

// BagOfWords counts the words of a sentence that are at least two letters or digits
// long. Boundary markers and punctuation are ignored.
func BagOfWords(sentence ngram.Sentence) map[string]int {
	bag := make(map[string]int)
	for _, token := range sentence {
		if isFeatureWord(token) {
			bag[token]++
		}
	}
	return bag
}

func isFeatureWord(token string) bool {
	n := 0
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
		n++
	}
	return n >= 2
}

// NaiveBayes is a multinomial naive Bayes classifier over bag-of-words counts
type NaiveBayes struct {
	alpha         float64
	labels        []ngram.Label // sorted, ties resolve to the first
	logPriors     map[ngram.Label]float64
	logLikelihood map[ngram.Label]map[string]float64
	vocabulary    map[string]struct{}
}

// TrainNaiveBayes fits a classifier with additive smoothing alpha on the examples
func TrainNaiveBayes(examples []LabeledSentence, alpha float64) (*NaiveBayes, error) {
	if alpha <= 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, fmt.Errorf("%w: naive bayes alpha must be positive, got %v", ErrConfig, alpha)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w: no training examples", ErrDomain)
	}

	docCounts := make(map[ngram.Label]int)
	wordCounts := make(map[ngram.Label]map[string]int64)
	totals := make(map[ngram.Label]int64)
	vocabulary := make(map[string]struct{})

	for _, example := range examples {
		docCounts[example.Label]++
		if wordCounts[example.Label] == nil {
			wordCounts[example.Label] = make(map[string]int64)
		}
		for word, count := range BagOfWords(example.Sentence) {
			wordCounts[example.Label][word] += int64(count)
			totals[example.Label] += int64(count)
			vocabulary[word] = struct{}{}
		}
	}
	if len(vocabulary) == 0 {
		return nil, fmt.Errorf("%w: training examples contain no words", ErrDomain)
	}

	labels := make([]ngram.Label, 0, len(docCounts))
	for label := range docCounts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	nb := &NaiveBayes{
		alpha:         alpha,
		labels:        labels,
		logPriors:     make(map[ngram.Label]float64, len(labels)),
		logLikelihood: make(map[ngram.Label]map[string]float64, len(labels)),
		vocabulary:    vocabulary,
	}

	v := float64(len(vocabulary))
	for _, label := range labels {
		nb.logPriors[label] = math.Log(float64(docCounts[label]) / float64(len(examples)))
		denominator := float64(totals[label]) + alpha*v
		likelihood := make(map[string]float64, len(vocabulary))
		for word := range vocabulary {
			likelihood[word] = math.Log((float64(wordCounts[label][word]) + alpha) / denominator)
		}
		nb.logLikelihood[label] = likelihood
	}

	return nb, nil
}

// Labels returns the classes known to the classifier in sorted order
func (nb *NaiveBayes) Labels() []ngram.Label {
	return append([]ngram.Label(nil), nb.labels...)
}

// VocabularySize returns the number of distinct feature words seen in training
func (nb *NaiveBayes) VocabularySize() int {
	return len(nb.vocabulary)
}

// LogScores returns the unnormalized log posterior of every class. Words never seen
// in training are ignored.
func (nb *NaiveBayes) LogScores(sentence ngram.Sentence) map[ngram.Label]float64 {
	bag := BagOfWords(sentence)
	scores := make(map[ngram.Label]float64, len(nb.labels))
	for _, label := range nb.labels {
		score := nb.logPriors[label]
		for word, count := range bag {
			if logP, ok := nb.logLikelihood[label][word]; ok {
				score += float64(count) * logP
			}
		}
		scores[label] = score
	}
	return scores
}

// PredictOne returns the most probable class for a sentence
func (nb *NaiveBayes) PredictOne(sentence ngram.Sentence) ngram.Label {
	scores := nb.LogScores(sentence)
	best := nb.labels[0]
	for _, label := range nb.labels[1:] {
		if scores[label] > scores[best] {
			best = label
		}
	}
	return best
}

// Predict classifies every sentence
func (nb *NaiveBayes) Predict(sentences []ngram.Sentence) []ngram.Label {
	predictions := make([]ngram.Label, len(sentences))
	for i, sentence := range sentences {
		predictions[i] = nb.PredictOne(sentence)
	}
	return predictions
}
