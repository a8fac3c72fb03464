package service

import (
	"fmt"
	"sort"

	"newslm/internal/model/ngram"
)

// LanguageModel holds the reduced count tables and smoothed probability tables trained
// on one label's corpus. It is immutable once built and safe for concurrent reads.
type LanguageModel struct {
	label    ngram.Label
	smoother Smoother
	policy   KeyGapPolicy

	rawUnigrams   UnigramCounts // counts before unknown reduction
	rawBigrams    BigramCounts
	unigramCounts UnigramCounts // reduced, always contains <UNK>
	bigramCounts  BigramCounts
	unigramProbs  UnigramProbs
	bigramProbs   BigramProbs
	successors    map[string][]string // first token -> observed second tokens, sorted

	cutoff            int
	trainingSentences int
	trainingTokens    int64
}

// BuildLanguageModel runs the full pipeline for one label: vocabulary building, unknown
// reduction, bigram recount and smoothing
func BuildLanguageModel(label ngram.Label, corpus ngram.Corpus, smoother Smoother, policy KeyGapPolicy) (*LanguageModel, error) {
	if smoother == nil {
		return nil, fmt.Errorf("%w: no smoother configured for %s model", ErrConfig, label)
	}
	policy, err := ParseKeyGapPolicy(string(policy))
	if err != nil {
		return nil, err
	}
	tokenCount := corpus.TokenCount()
	if tokenCount == 0 {
		return nil, fmt.Errorf("%w: training corpus for %s is empty", ErrDomain, label)
	}

	rawUnigrams := BuildUnigrams(corpus)
	rawBigrams := BuildBigrams(corpus)
	reduced, cutoff := ReduceUnigrams(rawUnigrams)
	reducedBigrams := ReduceBigrams(reduced, corpus)

	unigramProbs, err := SmoothUnigrams(reduced, smoother)
	if err != nil {
		return nil, fmt.Errorf("failed to smooth %s unigrams: %w", label, err)
	}
	bigramProbs, err := SmoothBigrams(reduced, reducedBigrams, smoother)
	if err != nil {
		return nil, fmt.Errorf("failed to smooth %s bigrams: %w", label, err)
	}

	return newLanguageModel(languageModelTables{
		label:             label,
		smoother:          smoother,
		policy:            policy,
		rawUnigrams:       rawUnigrams,
		rawBigrams:        rawBigrams,
		unigramCounts:     reduced,
		bigramCounts:      reducedBigrams,
		unigramProbs:      unigramProbs,
		bigramProbs:       bigramProbs,
		cutoff:            cutoff,
		trainingSentences: len(corpus),
		trainingTokens:    int64(tokenCount),
	}), nil
}

type languageModelTables struct {
	label             ngram.Label
	smoother          Smoother
	policy            KeyGapPolicy
	rawUnigrams       UnigramCounts
	rawBigrams        BigramCounts
	unigramCounts     UnigramCounts
	bigramCounts      BigramCounts
	unigramProbs      UnigramProbs
	bigramProbs       BigramProbs
	cutoff            int
	trainingSentences int
	trainingTokens    int64
}

func newLanguageModel(t languageModelTables) *LanguageModel {
	successors := make(map[string][]string)
	for key := range t.bigramProbs {
		successors[key.First] = append(successors[key.First], key.Second)
	}
	for _, next := range successors {
		sort.Strings(next)
	}

	return &LanguageModel{
		label:             t.label,
		smoother:          t.smoother,
		policy:            t.policy,
		rawUnigrams:       t.rawUnigrams,
		rawBigrams:        t.rawBigrams,
		unigramCounts:     t.unigramCounts,
		bigramCounts:      t.bigramCounts,
		unigramProbs:      t.unigramProbs,
		bigramProbs:       t.bigramProbs,
		successors:        successors,
		cutoff:            t.cutoff,
		trainingSentences: t.trainingSentences,
		trainingTokens:    t.trainingTokens,
	}
}

// Label returns the class label the model was trained on
func (m *LanguageModel) Label() ngram.Label {
	return m.label
}

// Cutoff returns the number of tokens retained by unknown reduction
func (m *LanguageModel) Cutoff() int {
	return m.cutoff
}

// VocabularySize returns the size of the reduced unigram table, <UNK> included
func (m *LanguageModel) VocabularySize() int {
	return len(m.unigramCounts)
}

// Normalize maps tokens outside the reduced vocabulary to <UNK>
func (m *LanguageModel) Normalize(token string) string {
	if _, ok := m.unigramCounts[token]; ok {
		return token
	}
	return ngram.Unknown
}

// UnigramProbability returns the smoothed probability of token, using <UNK> for unknown tokens
func (m *LanguageModel) UnigramProbability(token string) float64 {
	return m.unigramProbs[m.Normalize(token)]
}

// BigramProbability returns P(second | first) after the <UNK> fallback, and whether
// the fallback key exists in the table
func (m *LanguageModel) BigramProbability(first, second string) (float64, bool) {
	key := m.evaluator().FallbackKey(ngram.Bigram{First: first, Second: second})
	p, ok := m.bigramProbs[key]
	return p, ok
}

// unseenProbability is the add-k probability of a pair that never occurred after first
func (m *LanguageModel) unseenProbability(key ngram.Bigram) float64 {
	return m.smoother.Smooth(0, m.unigramCounts[m.Normalize(key.First)], len(m.unigramCounts))
}

// ConditionalMass returns the probability mass of the full row P(. | first): the observed
// continuations plus the add-k mass the smoother reserves for every unseen one. The row
// sums to 1 for every token except </s>: bigrams never cross a sentence end, so </s> has
// no observed continuations while its count stays in the denominator, and its row sums
// to kV/(c(</s>)+kV).
func (m *LanguageModel) ConditionalMass(first string) float64 {
	first = m.Normalize(first)
	mass := 0.0
	observed := m.successors[first]
	for _, second := range observed {
		mass += m.bigramProbs[ngram.Bigram{First: first, Second: second}]
	}
	unseen := len(m.unigramCounts) - len(observed)
	mass += float64(unseen) * m.unseenProbability(ngram.Bigram{First: first})
	return mass
}

// Continuation is a possible next token with its count and conditional probability
type Continuation struct {
	Token       string  `json:"token"`
	Count       int64   `json:"count"`
	Probability float64 `json:"probability"`
}

// TopContinuations returns up to limit observed continuations of first, most probable first
func (m *LanguageModel) TopContinuations(first string, limit int) []Continuation {
	first = m.Normalize(first)
	continuations := make([]Continuation, 0, len(m.successors[first]))
	for _, second := range m.successors[first] {
		key := ngram.Bigram{First: first, Second: second}
		continuations = append(continuations, Continuation{
			Token:       second,
			Count:       m.bigramCounts[key],
			Probability: m.bigramProbs[key],
		})
	}
	sort.SliceStable(continuations, func(i, j int) bool {
		return continuations[i].Probability > continuations[j].Probability
	})
	if limit > 0 && len(continuations) > limit {
		continuations = continuations[:limit]
	}
	return continuations
}

func (m *LanguageModel) evaluator() *BigramEvaluator {
	return &BigramEvaluator{
		Unigrams: m.unigramProbs,
		Bigrams:  m.bigramProbs,
		Policy:   m.policy,
		Backfill: m.unseenProbability,
	}
}

// UnigramPerplexity scores corpus with the unigram table
func (m *LanguageModel) UnigramPerplexity(corpus ngram.Corpus) (PerplexityResult, error) {
	return UnigramPerplexity(m.unigramProbs, corpus)
}

// BigramPerplexity scores corpus with the bigram table under the model's key gap policy
func (m *LanguageModel) BigramPerplexity(corpus ngram.Corpus) (PerplexityResult, error) {
	return m.evaluator().Perplexity(corpus)
}

// ExplainBigrams scores corpus like BigramPerplexity and reports how each position was scored
func (m *LanguageModel) ExplainBigrams(corpus ngram.Corpus) (PerplexityResult, []BigramScoreDetail, error) {
	return m.evaluator().Explain(corpus)
}

// UnsmoothedUnigram returns the maximum likelihood probability of token over the raw counts
func (m *LanguageModel) UnsmoothedUnigram(token string) float64 {
	return NewMLESmoother().Smooth(m.rawUnigrams[token], m.trainingTokens, len(m.rawUnigrams))
}

// UnsmoothedBigram returns count(first, second) / count(first) over the raw counts
func (m *LanguageModel) UnsmoothedBigram(first, second string) float64 {
	return NewMLESmoother().Smooth(m.rawBigrams[ngram.Bigram{First: first, Second: second}], m.rawUnigrams[first], len(m.rawUnigrams))
}

// UnigramTable returns the reduced unigram counts and probabilities sorted by token
func (m *LanguageModel) UnigramTable() []UnigramRecord {
	records := make([]UnigramRecord, 0, len(m.unigramCounts))
	for _, token := range m.unigramCounts.Tokens() {
		records = append(records, UnigramRecord{
			Token:       token,
			Count:       m.unigramCounts[token],
			Probability: m.unigramProbs[token],
		})
	}
	return records
}

// BigramTable returns the reduced bigram counts and conditional probabilities sorted by key
func (m *LanguageModel) BigramTable() []BigramRecord {
	records := make([]BigramRecord, 0, len(m.bigramCounts))
	for _, key := range m.bigramCounts.Keys() {
		records = append(records, BigramRecord{
			First:       key.First,
			Second:      key.Second,
			Count:       m.bigramCounts[key],
			Probability: m.bigramProbs[key],
		})
	}
	return records
}

// Stats returns statistics about the model
func (m *LanguageModel) Stats() ModelStats {
	return ModelStats{
		Label:             m.label,
		VocabularySize:    len(m.unigramCounts),
		RawVocabularySize: len(m.rawUnigrams),
		Cutoff:            m.cutoff,
		UnknownCount:      m.unigramCounts[ngram.Unknown],
		BigramCount:       len(m.bigramCounts),
		TrainingSentences: m.trainingSentences,
		TotalTokens:       m.trainingTokens,
		SmootherName:      m.smoother.Name(),
		SmoothingK:        m.smoother.K(),
		KeyGapPolicy:      string(m.policy),
	}
}

// ModelStats contains statistics about a language model
type ModelStats struct {
	Label             ngram.Label `json:"label"`
	VocabularySize    int         `json:"vocabulary_size"`
	RawVocabularySize int         `json:"raw_vocabulary_size"`
	Cutoff            int         `json:"cutoff"`
	UnknownCount      int64       `json:"unknown_count"`
	BigramCount       int         `json:"bigram_count"`
	TrainingSentences int         `json:"training_sentences"`
	TotalTokens       int64       `json:"total_tokens"`
	SmootherName      string      `json:"smoother_name"`
	SmoothingK        float64     `json:"smoothing_k"`
	KeyGapPolicy      string      `json:"key_gap_policy"`
}
