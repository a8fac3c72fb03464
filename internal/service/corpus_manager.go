package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"newslm/internal/model/ngram"
)

// Split names one of the two corpora kept per label
type Split string

const (
	SplitTraining   Split = "training"
	SplitValidation Split = "validation"
)

// ParseSplit validates a split name
func ParseSplit(name string) (Split, error) {
	switch Split(name) {
	case SplitTraining, SplitValidation:
		return Split(name), nil
	default:
		return "", fmt.Errorf("%w: unknown split %q", ErrConfig, name)
	}
}

// LabeledCorpus holds the marked training and validation sentences of one label
type LabeledCorpus struct {
	Label      ngram.Label
	Training   ngram.Corpus
	Validation ngram.Corpus
}

// CorpusManager keeps the labelled corpora, trains one language model per label and
// evaluates every model against every validation corpus
type CorpusManager struct {
	corpora       map[ngram.Label]*LabeledCorpus
	models        map[ngram.Label]*LanguageModel
	bayes         *NaiveBayes
	sentenceStats map[ngram.Label]PerplexityStats // own-label validation sentences, set by Evaluate
	smoother      Smoother
	policy        KeyGapPolicy
	splitOnPeriod bool
	bayesAlpha    float64
	overlapRate   float64
	logger        *zap.Logger
	mu            sync.RWMutex
}

// CorpusManagerOptions configures how corpora are marked and models are trained
type CorpusManagerOptions struct {
	Smoother      Smoother
	KeyGapPolicy  KeyGapPolicy
	SplitOnPeriod bool
	BayesAlpha    float64
	OverlapRate   float64 // false positive rate of the train/validation overlap filter
}

// NewCorpusManager creates a new corpus manager
func NewCorpusManager(opts CorpusManagerOptions, logger *zap.Logger) (*CorpusManager, error) {
	if opts.Smoother == nil {
		return nil, fmt.Errorf("%w: corpus manager needs a smoother", ErrConfig)
	}
	policy, err := ParseKeyGapPolicy(string(opts.KeyGapPolicy))
	if err != nil {
		return nil, err
	}
	if opts.BayesAlpha == 0 {
		opts.BayesAlpha = 1.0
	}
	if opts.OverlapRate == 0 {
		opts.OverlapRate = 0.001
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CorpusManager{
		corpora:       make(map[ngram.Label]*LabeledCorpus),
		models:        make(map[ngram.Label]*LanguageModel),
		sentenceStats: make(map[ngram.Label]PerplexityStats),
		smoother:      opts.Smoother,
		policy:        policy,
		splitOnPeriod: opts.SplitOnPeriod,
		bayesAlpha:    opts.BayesAlpha,
		overlapRate:   opts.OverlapRate,
		logger:        logger,
	}, nil
}

// Mark inserts boundary markers the way every corpus of this manager is marked
func (cm *CorpusManager) Mark(sentences ngram.Corpus) ngram.Corpus {
	return ngram.MarkSentences(sentences, cm.splitOnPeriod)
}

// AddDocument marks the tokenizer's sentences and appends them to a label's split
func (cm *CorpusManager) AddDocument(label ngram.Label, split Split, sentences ngram.Corpus) error {
	if label == "" {
		return fmt.Errorf("%w: empty label", ErrConfig)
	}
	marked := cm.Mark(sentences)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	corpus, ok := cm.corpora[label]
	if !ok {
		corpus = &LabeledCorpus{Label: label}
		cm.corpora[label] = corpus
	}
	switch split {
	case SplitTraining:
		corpus.Training = append(corpus.Training, marked...)
	case SplitValidation:
		corpus.Validation = append(corpus.Validation, marked...)
	default:
		return fmt.Errorf("%w: unknown split %q", ErrConfig, split)
	}

	cm.logger.Debug("Added document to corpus",
		zap.String("label", string(label)),
		zap.String("split", string(split)),
		zap.Int("sentences", len(marked)),
		zap.Int("tokens", marked.TokenCount()),
	)
	return nil
}

// Labels returns every label with a corpus or a model, sorted
func (cm *CorpusManager) Labels() []ngram.Label {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	seen := make(map[ngram.Label]struct{})
	for label := range cm.corpora {
		seen[label] = struct{}{}
	}
	for label := range cm.models {
		seen[label] = struct{}{}
	}
	labels := make([]ngram.Label, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// GetCorpus returns the corpora of a label
func (cm *CorpusManager) GetCorpus(label ngram.Label) (*LabeledCorpus, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	corpus, ok := cm.corpora[label]
	if !ok {
		return nil, fmt.Errorf("%w: no corpus for %q", ErrUnknownLabel, label)
	}
	return corpus, nil
}

// SetModel installs a model, e.g. one loaded from disk
func (cm *CorpusManager) SetModel(model *LanguageModel) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.models[model.Label()] = model
}

// GetModel returns the trained model of a label
func (cm *CorpusManager) GetModel(label ngram.Label) (*LanguageModel, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	model, ok := cm.models[label]
	if !ok {
		return nil, fmt.Errorf("%w: no model for %q", ErrUnknownLabel, label)
	}
	return model, nil
}

// Models returns a snapshot of the trained models
func (cm *CorpusManager) Models() map[ngram.Label]*LanguageModel {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	models := make(map[ngram.Label]*LanguageModel, len(cm.models))
	for label, model := range cm.models {
		models[label] = model
	}
	return models
}

// NaiveBayes returns the trained bag-of-words classifier
func (cm *CorpusManager) NaiveBayes() (*NaiveBayes, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.bayes == nil {
		return nil, fmt.Errorf("%w: naive bayes classifier has not been trained", ErrDomain)
	}
	return cm.bayes, nil
}

// TrainAll builds a language model for every label that does not have one yet. Labels
// are trained in parallel since their pipelines share nothing. The naive Bayes
// classifier is then fitted on all training sentences.
func (cm *CorpusManager) TrainAll(ctx context.Context) error {
	cm.mu.RLock()
	pending := make([]*LabeledCorpus, 0, len(cm.corpora))
	for label, corpus := range cm.corpora {
		if _, trained := cm.models[label]; !trained {
			pending = append(pending, corpus)
		}
	}
	cm.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, corpus := range pending {
		corpus := corpus
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			model, err := BuildLanguageModel(corpus.Label, corpus.Training, cm.smoother, cm.policy)
			if err != nil {
				return fmt.Errorf("failed to train %s model: %w", corpus.Label, err)
			}
			cm.SetModel(model)

			stats := model.Stats()
			cm.logger.Info("Trained language model",
				zap.String("label", string(stats.Label)),
				zap.Int("raw_vocabulary", stats.RawVocabularySize),
				zap.Int("cutoff", stats.Cutoff),
				zap.Int64("unknown_count", stats.UnknownCount),
				zap.Int("bigrams", stats.BigramCount),
				zap.Int64("tokens", stats.TotalTokens),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return cm.trainNaiveBayes()
}

func (cm *CorpusManager) trainNaiveBayes() error {
	cm.mu.RLock()
	var examples []LabeledSentence
	for label, corpus := range cm.corpora {
		for _, sentence := range corpus.Training {
			examples = append(examples, LabeledSentence{Label: label, Sentence: sentence})
		}
	}
	cm.mu.RUnlock()

	if len(examples) == 0 {
		cm.logger.Warn("No training sentences loaded, skipping naive bayes classifier")
		return nil
	}

	nb, err := TrainNaiveBayes(examples, cm.bayesAlpha)
	if err != nil {
		return fmt.Errorf("failed to train naive bayes classifier: %w", err)
	}

	cm.mu.Lock()
	cm.bayes = nb
	cm.mu.Unlock()

	cm.logger.Info("Trained naive bayes classifier",
		zap.Int("examples", len(examples)),
		zap.Int("vocabulary", nb.VocabularySize()),
	)
	return nil
}

// PerplexityCell is the score of one validation corpus under one model
type PerplexityCell struct {
	Model   ngram.Label      `json:"model"`
	Corpus  ngram.Label      `json:"corpus"`
	Unigram PerplexityResult `json:"unigram"`
	Bigram  PerplexityResult `json:"bigram"`
}

// EvaluationReport collects every model x validation corpus perplexity and the
// accuracy of both classifiers on the validation sentences
type EvaluationReport struct {
	RunID                string                          `json:"run_id,omitempty"`
	Perplexities         []PerplexityCell                `json:"perplexities"`
	SentenceStats        map[ngram.Label]PerplexityStats `json:"sentence_stats"`
	PerplexityClassifier *ClassifierScore                `json:"perplexity_classifier,omitempty"`
	NaiveBayes           *ClassifierScore                `json:"naive_bayes,omitempty"`
	Overlap              map[ngram.Label]OverlapReport   `json:"overlap"`
}

// Evaluate scores every validation corpus with every model, then classifies each
// validation sentence with both classifiers
func (cm *CorpusManager) Evaluate(ctx context.Context) (*EvaluationReport, error) {
	models := cm.Models()
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no trained models to evaluate", ErrDomain)
	}

	report := &EvaluationReport{
		SentenceStats: make(map[ngram.Label]PerplexityStats),
		Overlap:       make(map[ngram.Label]OverlapReport),
	}

	labels := cm.Labels()
	var sentences []ngram.Sentence
	var expected []ngram.Label

	for _, corpusLabel := range labels {
		corpus, err := cm.GetCorpus(corpusLabel)
		if err != nil || len(corpus.Validation) == 0 {
			continue
		}
		for _, sentence := range corpus.Validation {
			sentences = append(sentences, sentence)
			expected = append(expected, corpusLabel)
		}
		if len(corpus.Training) > 0 {
			report.Overlap[corpusLabel] = NewOverlapDetector(corpus.Training, cm.overlapRate).Check(corpus.Validation)
			if report.Overlap[corpusLabel].Duplicates > 0 {
				cm.logger.Warn("Validation sentences probably seen in training",
					zap.String("label", string(corpusLabel)),
					zap.Int("duplicates", report.Overlap[corpusLabel].Duplicates),
				)
			}
		}

		for _, modelLabel := range labels {
			model, ok := models[modelLabel]
			if !ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cell, err := cm.scoreCorpus(model, corpusLabel, corpus.Validation)
			if err != nil {
				return nil, err
			}
			report.Perplexities = append(report.Perplexities, cell)
		}
	}

	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: no validation sentences loaded", ErrDomain)
	}

	classifier, err := NewPerplexityClassifier(models)
	if err != nil {
		return nil, err
	}
	predicted := make([]ngram.Label, len(sentences))
	perSentence := make(map[ngram.Label][]float64)
	for i, sentence := range sentences {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		classification, err := classifier.Classify(ngram.Corpus{sentence})
		if err != nil {
			return nil, fmt.Errorf("failed to classify validation sentence %d: %w", i, err)
		}
		predicted[i] = classification.Label
		for _, score := range classification.Scores {
			if score.Label == expected[i] {
				perSentence[score.Label] = append(perSentence[score.Label], score.Bigram.Perplexity)
			}
		}
	}
	score, err := ScorePredictions(predicted, expected)
	if err != nil {
		return nil, err
	}
	report.PerplexityClassifier = &score

	for label, values := range perSentence {
		report.SentenceStats[label] = calculatePerplexityStatistics(values)
	}

	if nb, err := cm.NaiveBayes(); err == nil {
		nbScore, err := ScorePredictions(nb.Predict(sentences), expected)
		if err != nil {
			return nil, err
		}
		report.NaiveBayes = &nbScore
	}

	cm.mu.Lock()
	cm.sentenceStats = report.SentenceStats
	cm.mu.Unlock()

	cm.logger.Info("Evaluated models",
		zap.Int("validation_sentences", len(sentences)),
		zap.Float64("perplexity_accuracy", score.Accuracy),
	)
	return report, nil
}

func (cm *CorpusManager) scoreCorpus(model *LanguageModel, corpusLabel ngram.Label, corpus ngram.Corpus) (PerplexityCell, error) {
	cell := PerplexityCell{Model: model.Label(), Corpus: corpusLabel}

	unigram, err := model.UnigramPerplexity(corpus)
	if err != nil {
		return cell, fmt.Errorf("failed to compute unigram perplexity of %s validation under %s model: %w", corpusLabel, model.Label(), err)
	}
	bigram, err := model.BigramPerplexity(corpus)
	if err != nil {
		return cell, fmt.Errorf("failed to compute bigram perplexity of %s validation under %s model: %w", corpusLabel, model.Label(), err)
	}
	cell.Unigram = unigram
	cell.Bigram = bigram

	if bigram.SkippedPositions > 0 {
		cm.logger.Warn("Bigram perplexity skipped positions with no fallback probability",
			zap.String("model", string(model.Label())),
			zap.String("corpus", string(corpusLabel)),
			zap.Int("skipped", bigram.SkippedPositions),
			zap.Int("tokens", bigram.Tokens),
		)
	}
	cm.logger.Debug("Scored validation corpus",
		zap.String("model", string(model.Label())),
		zap.String("corpus", string(corpusLabel)),
		zap.Float64("unigram_perplexity", unigram.Perplexity),
		zap.Float64("bigram_perplexity", bigram.Perplexity),
	)
	return cell, nil
}

// SentenceStats returns the per-sentence perplexity distribution of a label's own
// validation corpus, available after Evaluate
func (cm *CorpusManager) SentenceStats(label ngram.Label) (PerplexityStats, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	stats, ok := cm.sentenceStats[label]
	return stats, ok
}

// UnsmoothedComparison holds the maximum likelihood probability of one n-gram per label
type UnsmoothedComparison struct {
	NGram         ngram.NGram             `json:"ngram"`
	Probabilities map[ngram.Label]float64 `json:"probabilities"`
}

// CompareUnsmoothed looks up unsmoothed unigram and bigram probabilities in every model
func (cm *CorpusManager) CompareUnsmoothed(tokens []string, pairs []ngram.Bigram) []UnsmoothedComparison {
	models := cm.Models()
	comparisons := make([]UnsmoothedComparison, 0, len(tokens)+len(pairs))
	for _, token := range tokens {
		c := UnsmoothedComparison{NGram: ngram.NGram{token}, Probabilities: make(map[ngram.Label]float64)}
		for label, model := range models {
			c.Probabilities[label] = model.UnsmoothedUnigram(token)
		}
		comparisons = append(comparisons, c)
	}
	for _, pair := range pairs {
		c := UnsmoothedComparison{NGram: pair.NGram(), Probabilities: make(map[ngram.Label]float64)}
		for label, model := range models {
			c.Probabilities[label] = model.UnsmoothedBigram(pair.First, pair.Second)
		}
		comparisons = append(comparisons, c)
	}
	return comparisons
}

// CorpusStats contains statistics about every labelled corpus
type CorpusStats struct {
	Labels []LabelCorpusStats `json:"labels"`
	Models []ModelStats       `json:"models"`
}

// LabelCorpusStats contains statistics about one label's corpora
type LabelCorpusStats struct {
	Label               ngram.Label `json:"label"`
	TrainingSentences   int         `json:"training_sentences"`
	TrainingTokens      int         `json:"training_tokens"`
	ValidationSentences int         `json:"validation_sentences"`
	ValidationTokens    int         `json:"validation_tokens"`
}

// GetStats returns statistics about the corpora and trained models
func (cm *CorpusManager) GetStats() CorpusStats {
	labels := cm.Labels()
	models := cm.Models()

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := CorpusStats{}
	for _, label := range labels {
		if corpus, ok := cm.corpora[label]; ok {
			stats.Labels = append(stats.Labels, LabelCorpusStats{
				Label:               label,
				TrainingSentences:   len(corpus.Training),
				TrainingTokens:      corpus.Training.TokenCount(),
				ValidationSentences: len(corpus.Validation),
				ValidationTokens:    corpus.Validation.TokenCount(),
			})
		}
		if model, ok := models[label]; ok {
			stats.Models = append(stats.Models, model.Stats())
		}
	}
	return stats
}
