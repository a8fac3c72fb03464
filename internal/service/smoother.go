package service

import (
	"fmt"
	"math"
)

// Smoother defines the interface for n-gram probability smoothing algorithms
type Smoother interface {
	// Smooth computes the smoothed probability of an event
	// count: count of the unigram or bigram
	// contextCount: total count for unigrams, count of the first token for bigrams
	// vocabularySize: number of entries in the reduced unigram table
	Smooth(count, contextCount int64, vocabularySize int) float64

	// K returns the pseudo-count added to every event
	K() float64

	// Name returns the name of the smoothing algorithm
	Name() string
}

// AddKSmoother implements add-k (Lidstone) smoothing
type AddKSmoother struct {
	k float64
}

// NewAddKSmoother creates a new add-k smoother. k must be a positive finite number.
func NewAddKSmoother(k float64) (*AddKSmoother, error) {
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("%w: smoothing constant must be positive, got %v", ErrConfig, k)
	}
	return &AddKSmoother{k: k}, nil
}

func (s *AddKSmoother) Smooth(count, contextCount int64, vocabularySize int) float64 {
	numerator := float64(count) + s.k
	denominator := float64(contextCount) + (s.k * float64(vocabularySize))
	return numerator / denominator
}

func (s *AddKSmoother) K() float64 {
	return s.k
}

func (s *AddKSmoother) Name() string {
	return "AddK"
}

// MLESmoother is the unsmoothed maximum likelihood estimate, count / contextCount.
// Unseen events get zero probability.
type MLESmoother struct{}

// NewMLESmoother creates an unsmoothed estimator
func NewMLESmoother() *MLESmoother {
	return &MLESmoother{}
}

func (s *MLESmoother) Smooth(count, contextCount int64, vocabularySize int) float64 {
	if contextCount == 0 {
		return 0
	}
	return float64(count) / float64(contextCount)
}

func (s *MLESmoother) K() float64 {
	return 0
}

func (s *MLESmoother) Name() string {
	return "MLE"
}
