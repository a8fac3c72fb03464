package service

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"newslm/internal/model/ngram"
)

// LabelScore holds the perplexities of one text under one label's model
type LabelScore struct {
	Label   ngram.Label      `json:"label"`
	Unigram PerplexityResult `json:"unigram"`
	Bigram  PerplexityResult `json:"bigram"`
}

// Classification is the outcome of scoring a text against every model
type Classification struct {
	Label  ngram.Label  `json:"label"`
	Scores []LabelScore `json:"scores"`
}

// PerplexityClassifier labels a text with the class whose model finds it least surprising
type PerplexityClassifier struct {
	models []*LanguageModel
}

// NewPerplexityClassifier creates a classifier over the given per-label models
func NewPerplexityClassifier(models map[ngram.Label]*LanguageModel) (*PerplexityClassifier, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no language models to classify with", ErrDomain)
	}
	ordered := make([]*LanguageModel, 0, len(models))
	for _, model := range models {
		ordered = append(ordered, model)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Label() < ordered[j].Label() })
	return &PerplexityClassifier{models: ordered}, nil
}

// Classify scores corpus with every model. The lowest bigram perplexity wins, then the
// lowest unigram perplexity, then the first label in sorted order.
func (c *PerplexityClassifier) Classify(corpus ngram.Corpus) (Classification, error) {
	var result Classification
	for _, model := range c.models {
		unigram, err := model.UnigramPerplexity(corpus)
		if err != nil {
			return result, fmt.Errorf("failed to score with %s model: %w", model.Label(), err)
		}
		bigram, err := model.BigramPerplexity(corpus)
		if err != nil {
			return result, fmt.Errorf("failed to score with %s model: %w", model.Label(), err)
		}
		result.Scores = append(result.Scores, LabelScore{Label: model.Label(), Unigram: unigram, Bigram: bigram})
	}

	best := result.Scores[0]
	for _, score := range result.Scores[1:] {
		if score.Bigram.Perplexity < best.Bigram.Perplexity ||
			(score.Bigram.Perplexity == best.Bigram.Perplexity && score.Unigram.Perplexity < best.Unigram.Perplexity) {
			best = score
		}
	}
	result.Label = best.Label
	return result, nil
}

// ClassifierScore summarizes predictions against expected labels
type ClassifierScore struct {
	Total     int                                 `json:"total"`
	Correct   int                                 `json:"correct"`
	Accuracy  float64                             `json:"accuracy"`
	Confusion map[ngram.Label]map[ngram.Label]int `json:"confusion"` // expected -> predicted -> count
}

// ScorePredictions compares predicted labels with expected labels
func ScorePredictions(predicted, expected []ngram.Label) (ClassifierScore, error) {
	score := ClassifierScore{Confusion: make(map[ngram.Label]map[ngram.Label]int)}
	if len(predicted) != len(expected) {
		return score, fmt.Errorf("%w: %d predictions for %d labels", ErrDomain, len(predicted), len(expected))
	}
	if len(expected) == 0 {
		return score, fmt.Errorf("%w: nothing to score", ErrDomain)
	}

	hits := make([]float64, len(expected))
	for i := range expected {
		if score.Confusion[expected[i]] == nil {
			score.Confusion[expected[i]] = make(map[ngram.Label]int)
		}
		score.Confusion[expected[i]][predicted[i]]++
		if predicted[i] == expected[i] {
			hits[i] = 1
		}
	}
	score.Total = len(expected)
	score.Correct = int(floats.Sum(hits))
	score.Accuracy = stat.Mean(hits, nil)
	return score, nil
}

// PerplexityStats describes the distribution of per-sentence perplexities
type PerplexityStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// calculatePerplexityStatistics computes count, mean, stddev, min and max
func calculatePerplexityStatistics(values []float64) PerplexityStats {
	if len(values) == 0 {
		return PerplexityStats{}
	}
	stats := PerplexityStats{
		Count: len(values),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
	if len(values) == 1 {
		stats.Mean = values[0]
		return stats
	}
	stats.Mean, stats.StdDev = stat.MeanStdDev(values, nil)
	return stats
}

// ZScore returns how many standard deviations value lies from the mean, or 0 when the
// distribution has no spread
func (s PerplexityStats) ZScore(value float64) float64 {
	if s.StdDev == 0 {
		return 0
	}
	return (value - s.Mean) / s.StdDev
}

// ZScoreInterpretation provides human-readable interpretation of z-score
type ZScoreInterpretation struct {
	Level       string  `json:"level"` // "very_low", "low", "normal", "high", "very_high"
	Description string  `json:"description"`
	Percentile  float64 `json:"percentile"` // Approximate percentile among validation sentences
}

// interpretZScore provides human-readable interpretation of z-score
func interpretZScore(zScore float64) ZScoreInterpretation {
	var level, description string
	var percentile float64

	if zScore < -2.0 {
		level = "very_low"
		description = "Far more typical than the class's validation sentences"
		percentile = 2.5
	} else if zScore < -1.0 {
		level = "low"
		description = "More typical than most validation sentences of the class"
		percentile = 16.0
	} else if zScore <= 1.0 {
		level = "normal"
		description = "Within the usual perplexity range of the class"
		percentile = 50.0
	} else if zScore <= 2.0 {
		level = "high"
		description = "Less typical than most validation sentences of the class"
		percentile = 84.0
	} else {
		level = "very_high"
		description = "Unusual for the class - more surprising than 97.5% of its validation sentences"
		percentile = 97.5
	}

	return ZScoreInterpretation{
		Level:       level,
		Description: description,
		Percentile:  percentile,
	}
}
