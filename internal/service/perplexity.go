package service

import (
	"fmt"
	"math"

	"newslm/internal/model/ngram"
)

// KeyGapPolicy decides what happens when the fallback bigram for a position is missing
type KeyGapPolicy string

const (
	// KeyGapSkip leaves the position out of the sum and counts it as skipped
	KeyGapSkip KeyGapPolicy = "skip"
	// KeyGapBackfill scores the missing fallback with its add-k probability for an unseen pair
	KeyGapBackfill KeyGapPolicy = "backfill"
	// KeyGapFail aborts the evaluation with a KeyGapError
	KeyGapFail KeyGapPolicy = "error"
)

// ParseKeyGapPolicy validates a policy name. The empty string selects KeyGapSkip.
func ParseKeyGapPolicy(name string) (KeyGapPolicy, error) {
	switch KeyGapPolicy(name) {
	case "", KeyGapSkip:
		return KeyGapSkip, nil
	case KeyGapBackfill:
		return KeyGapBackfill, nil
	case KeyGapFail:
		return KeyGapFail, nil
	default:
		return "", fmt.Errorf("%w: unknown key gap policy %q", ErrConfig, name)
	}
}

// PerplexityResult is the outcome of scoring one corpus against one model
type PerplexityResult struct {
	Order               int     `json:"order"`
	Perplexity          float64 `json:"perplexity"`
	Tokens              int     `json:"tokens"`
	Scored              int     `json:"scored"`
	SkippedPositions    int     `json:"skipped_positions"`
	BackfilledPositions int     `json:"backfilled_positions"`
}

// UnigramPerplexity returns exp(sum(-ln P(t)) / N) over the flattened corpus.
// Tokens absent from the table are scored with P(<UNK>).
func UnigramPerplexity(probs UnigramProbs, corpus ngram.Corpus) (PerplexityResult, error) {
	tokens := corpus.Flatten()
	result := PerplexityResult{Order: 1, Tokens: len(tokens)}
	if len(tokens) == 0 {
		return result, fmt.Errorf("%w: cannot compute perplexity of an empty corpus", ErrDomain)
	}

	unknown, hasUnknown := probs[ngram.Unknown]
	sum := 0.0
	for i, token := range tokens {
		p, ok := probs[token]
		if !ok {
			if !hasUnknown {
				return result, fmt.Errorf("%w: token %q at position %d is unknown and the table has no %s entry",
					ErrDomain, token, i, ngram.Unknown)
			}
			p = unknown
		}
		if p <= 0 {
			return result, fmt.Errorf("%w: zero probability for token %q at position %d", ErrDomain, token, i)
		}
		sum -= math.Log(p)
		result.Scored++
	}

	result.Perplexity = math.Exp(sum / float64(len(tokens)))
	return result, nil
}

// BigramEvaluator scores corpora with a bigram table, falling back to <UNK> keys for
// unseen pairs
type BigramEvaluator struct {
	Unigrams UnigramProbs
	Bigrams  BigramProbs
	Policy   KeyGapPolicy
	// Backfill supplies the probability of a missing fallback key under KeyGapBackfill
	Backfill func(key ngram.Bigram) float64
}

// FallbackKey returns the bigram key used to score pair. The exact pair wins when it is
// in the table. Otherwise unknown tokens are replaced by <UNK>, and when both tokens are
// known the second one is.
func (e *BigramEvaluator) FallbackKey(pair ngram.Bigram) ngram.Bigram {
	if _, ok := e.Bigrams[pair]; ok {
		return pair
	}
	_, firstKnown := e.Unigrams[pair.First]
	_, secondKnown := e.Unigrams[pair.Second]
	switch {
	case !firstKnown && !secondKnown:
		return ngram.Bigram{First: ngram.Unknown, Second: ngram.Unknown}
	case !firstKnown:
		return ngram.Bigram{First: ngram.Unknown, Second: pair.Second}
	default:
		return ngram.Bigram{First: pair.First, Second: ngram.Unknown}
	}
}

// Perplexity returns exp(sum(-ln P(w_i | w_i-1)) / N) over the flattened corpus.
// The first token has no predecessor and is not scored, but N counts it.
func (e *BigramEvaluator) Perplexity(corpus ngram.Corpus) (PerplexityResult, error) {
	return e.evaluate(corpus, nil)
}

// BigramScoreDetail describes how one position of a sequence was scored
type BigramScoreDetail struct {
	NGram       ngram.NGram `json:"ngram"`
	Fallback    ngram.NGram `json:"fallback,omitempty"`
	Probability float64     `json:"probability"`
	LogProb     float64     `json:"log_prob"`
	Skipped     bool        `json:"skipped,omitempty"`
	Backfilled  bool        `json:"backfilled,omitempty"`
}

// Explain computes the same result as Perplexity and also returns a score for every
// position after the first
func (e *BigramEvaluator) Explain(corpus ngram.Corpus) (PerplexityResult, []BigramScoreDetail, error) {
	details := make([]BigramScoreDetail, 0, corpus.TokenCount())
	result, err := e.evaluate(corpus, func(d BigramScoreDetail) {
		details = append(details, d)
	})
	return result, details, err
}

func (e *BigramEvaluator) evaluate(corpus ngram.Corpus, visit func(BigramScoreDetail)) (PerplexityResult, error) {
	tokens := corpus.Flatten()
	result := PerplexityResult{Order: 2, Tokens: len(tokens)}
	if len(tokens) == 0 {
		return result, fmt.Errorf("%w: cannot compute perplexity of an empty corpus", ErrDomain)
	}

	sum := 0.0
	for i := 1; i < len(tokens); i++ {
		pair := ngram.Bigram{First: tokens[i-1], Second: tokens[i]}
		key := e.FallbackKey(pair)
		detail := BigramScoreDetail{NGram: pair.NGram()}
		if key != pair {
			detail.Fallback = key.NGram()
		}

		p, ok := e.Bigrams[key]
		if !ok {
			switch e.Policy {
			case KeyGapBackfill:
				if e.Backfill == nil {
					return result, fmt.Errorf("%w: backfill policy without a backfill function", ErrConfig)
				}
				p = e.Backfill(key)
				detail.Backfilled = true
				result.BackfilledPositions++
			case KeyGapFail:
				return result, &KeyGapError{Position: i, Pair: pair, Fallback: key}
			default:
				result.SkippedPositions++
				if visit != nil {
					detail.Skipped = true
					visit(detail)
				}
				continue
			}
		}
		if p <= 0 {
			return result, fmt.Errorf("%w: zero probability for %q at position %d", ErrDomain, key.String(), i)
		}
		logProb := math.Log(p)
		sum -= logProb
		result.Scored++
		if visit != nil {
			detail.Probability = p
			detail.LogProb = logProb
			visit(detail)
		}
	}

	result.Perplexity = math.Exp(sum / float64(len(tokens)))
	return result, nil
}
