package service

import (
	"sort"

	"newslm/internal/model/ngram"
)

// UnigramCounts maps a token to its occurrence count
type UnigramCounts map[string]int64

// BigramCounts maps an ordered token pair to its occurrence count
type BigramCounts map[ngram.Bigram]int64

// Total returns the sum of all counts in the table
func (u UnigramCounts) Total() int64 {
	var total int64
	for _, count := range u {
		total += count
	}
	return total
}

// Tokens returns the table's tokens in lexicographic order
func (u UnigramCounts) Tokens() []string {
	tokens := make([]string, 0, len(u))
	for token := range u {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Keys returns the table's bigrams ordered by first then second token
func (b BigramCounts) Keys() []ngram.Bigram {
	keys := make([]ngram.Bigram, 0, len(b))
	for key := range b {
		keys = append(keys, key)
	}
	sortBigrams(keys)
	return keys
}

// BuildUnigrams counts every token occurrence across all sentences
func BuildUnigrams(corpus ngram.Corpus) UnigramCounts {
	counts := make(UnigramCounts)
	for _, sentence := range corpus {
		for _, token := range sentence {
			counts[token]++
		}
	}
	return counts
}

// BuildBigrams counts consecutive token pairs. Pairs never span two sentences.
func BuildBigrams(corpus ngram.Corpus) BigramCounts {
	return countBigrams(corpus, nil)
}

// countBigrams counts within-sentence pairs, mapping tokens through substitute when it is non-nil
func countBigrams(corpus ngram.Corpus, substitute func(string) string) BigramCounts {
	counts := make(BigramCounts)
	for _, sentence := range corpus {
		for i := 1; i < len(sentence); i++ {
			first, second := sentence[i-1], sentence[i]
			if substitute != nil {
				first, second = substitute(first), substitute(second)
			}
			counts[ngram.Bigram{First: first, Second: second}]++
		}
	}
	return counts
}

func sortBigrams(keys []ngram.Bigram) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].First != keys[j].First {
			return keys[i].First < keys[j].First
		}
		return keys[i].Second < keys[j].Second
	})
}
