package service

import (
	"sort"

	"newslm/internal/model/ngram"
)

// VocabularyCutoff returns how many distinct tokens survive reduction: floor(4*distinct/5)
func VocabularyCutoff(distinct int) int {
	return 4 * distinct / 5
}

type tokenCount struct {
	token string
	count int64
}

// ReduceUnigrams keeps the VocabularyCutoff most frequent tokens and folds every other
// token into a single <UNK> entry whose count is the sum of the folded counts.
// Ties on count are broken lexicographically. The reduced table always contains <UNK>,
// and a literal <UNK> key in the input is folded into that entry rather than ranked.
// Returns the reduced table and the cutoff that was applied.
func ReduceUnigrams(counts UnigramCounts) (UnigramCounts, int) {
	entries := make([]tokenCount, 0, len(counts))
	var unknown int64
	for token, count := range counts {
		if token == ngram.Unknown {
			unknown += count
			continue
		}
		entries = append(entries, tokenCount{token: token, count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].token < entries[j].token
	})

	cutoff := VocabularyCutoff(len(counts))
	if cutoff > len(entries) {
		cutoff = len(entries)
	}

	reduced := make(UnigramCounts, cutoff+1)
	for i, entry := range entries {
		if i < cutoff {
			reduced[entry.token] = entry.count
			continue
		}
		unknown += entry.count
	}
	reduced[ngram.Unknown] = unknown

	return reduced, cutoff
}

// ReduceBigrams recounts the corpus' bigrams after replacing every token missing from
// the reduced unigram table with <UNK>
func ReduceBigrams(reduced UnigramCounts, corpus ngram.Corpus) BigramCounts {
	return countBigrams(corpus, func(token string) string {
		if _, ok := reduced[token]; ok {
			return token
		}
		return ngram.Unknown
	})
}
