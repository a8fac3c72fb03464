package service

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"newslm/internal/model/ngram"
)

// UnigramProbs maps a token to its smoothed probability
type UnigramProbs map[string]float64

// BigramProbs maps an ordered token pair to P(second | first)
type BigramProbs map[ngram.Bigram]float64

// Mass returns the total probability held by the table
func (u UnigramProbs) Mass() float64 {
	values := make([]float64, 0, len(u))
	for _, p := range u {
		values = append(values, p)
	}
	return floats.Sum(values)
}

// SmoothUnigrams converts a reduced unigram table into probabilities,
// P(t) = (count(t) + k) / (total + k*V)
func SmoothUnigrams(counts UnigramCounts, smoother Smoother) (UnigramProbs, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: cannot smooth an empty unigram table", ErrDomain)
	}

	total := counts.Total()
	vocabularySize := len(counts)
	if float64(total)+smoother.K()*float64(vocabularySize) == 0 {
		return nil, fmt.Errorf("%w: unigram table has zero total count", ErrDomain)
	}

	probs := make(UnigramProbs, vocabularySize)
	for token, count := range counts {
		probs[token] = smoother.Smooth(count, total, vocabularySize)
	}
	return probs, nil
}

// SmoothBigrams converts a bigram table into conditional probabilities,
// P(w2 | w1) = (count(w1,w2) + k) / (count(w1) + k*V), where V is the size of the unigram table.
// Every first component must be present in the unigram table.
func SmoothBigrams(unigrams UnigramCounts, bigrams BigramCounts, smoother Smoother) (BigramProbs, error) {
	vocabularySize := len(unigrams)
	probs := make(BigramProbs, len(bigrams))
	for key, count := range bigrams {
		contextCount, ok := unigrams[key.First]
		if !ok {
			return nil, fmt.Errorf("%w: bigram %q has no unigram count for %q", ErrDomain, key.String(), key.First)
		}
		if float64(contextCount)+smoother.K()*float64(vocabularySize) == 0 {
			return nil, fmt.Errorf("%w: zero denominator for bigram %q", ErrDomain, key.String())
		}
		probs[key] = smoother.Smooth(count, contextCount, vocabularySize)
	}
	return probs, nil
}
