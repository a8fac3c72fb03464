package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newslm/internal/config"
	"newslm/internal/model/ngram"
	"newslm/internal/util"
)

// NewsService loads the labelled news corpora, trains and persists one language model
// per label and answers classification and analysis requests
type NewsService struct {
	cfg         *config.Config
	corpus      *CorpusManager
	registry    *TokenizerRegistry
	persistence *NGramPersistence
	smoother    Smoother
	graph       *BigramGraph // nil when graph export is disabled
	runID       string
	revisions   map[ngram.Label]string
	lastReport  *EvaluationReport
	logger      *zap.Logger
	mu          sync.RWMutex
}

// CorpusFile is one document of a configured corpus
type CorpusFile struct {
	Label  ngram.Label
	Split  Split
	Path   string
	Format string
}

// NewNewsService creates a service from configuration. Graph export is attached
// separately with SetGraph.
func NewNewsService(cfg *config.Config, logger *zap.Logger) (*NewsService, error) {
	smoother, err := NewAddKSmoother(cfg.Model.SmoothingK)
	if err != nil {
		return nil, err
	}
	policy, err := ParseKeyGapPolicy(cfg.Model.KeyGapPolicy)
	if err != nil {
		return nil, err
	}

	corpus, err := NewCorpusManager(CorpusManagerOptions{
		Smoother:      smoother,
		KeyGapPolicy:  policy,
		SplitOnPeriod: cfg.Model.SplitOnPeriod,
		BayesAlpha:    cfg.Model.BayesAlpha,
		OverlapRate:   cfg.Model.OverlapRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create corpus manager: %w", err)
	}

	persistence, err := NewNGramPersistence(cfg.App.ModelDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence: %w", err)
	}

	return &NewsService{
		cfg:         cfg,
		corpus:      corpus,
		registry:    NewDefaultTokenizerRegistry(),
		persistence: persistence,
		smoother:    smoother,
		runID:       uuid.NewString(),
		revisions:   make(map[ngram.Label]string),
		logger:      logger,
	}, nil
}

// SetGraph attaches a bigram graph that Train exports every model to
func (ns *NewsService) SetGraph(graph *BigramGraph) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.graph = graph
}

// RunID identifies the models trained by this service instance
func (ns *NewsService) RunID() string {
	return ns.runID
}

// CorpusManager returns the underlying corpus manager
func (ns *NewsService) CorpusManager() *CorpusManager {
	return ns.corpus
}

// CorpusFiles lists every configured document in label order, training files first
func (ns *NewsService) CorpusFiles() ([]CorpusFile, error) {
	var files []CorpusFile
	for _, corpusCfg := range ns.cfg.Corpora {
		if _, ok := ns.registry.GetTokenizer(corpusCfg.Format); !ok {
			return nil, fmt.Errorf("%w: corpus %s uses unknown format %q", ErrConfig, corpusCfg.Label, corpusCfg.Format)
		}
		accept := func(ext string) bool {
			_, ok := ns.registry.GetTokenizerByExtension(ext)
			return ok
		}

		for _, split := range []struct {
			split    Split
			patterns []string
		}{
			{SplitTraining, corpusCfg.Train},
			{SplitValidation, corpusCfg.Validation},
		} {
			paths, err := util.ExpandPaths(split.patterns, accept)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s %s files: %w", corpusCfg.Label, split.split, err)
			}
			for _, path := range paths {
				files = append(files, CorpusFile{
					Label:  ngram.Label(corpusCfg.Label),
					Split:  split.split,
					Path:   path,
					Format: corpusCfg.Format,
				})
			}
		}
	}
	return files, nil
}

// LoadFile tokenizes one document and adds its sentences to the corpus
func (ns *NewsService) LoadFile(ctx context.Context, file CorpusFile) error {
	tokenizer, ok := ns.registry.GetTokenizer(file.Format)
	if !ok {
		return fmt.Errorf("%w: unknown format %q", ErrConfig, file.Format)
	}

	source, err := os.ReadFile(file.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Path, err)
	}

	sentences, err := tokenizer.Tokenize(ctx, source)
	if err != nil {
		return fmt.Errorf("tokenization of %s failed: %w", file.Path, err)
	}

	if err := ns.corpus.AddDocument(file.Label, file.Split, sentences); err != nil {
		return err
	}

	ns.logger.Debug("Loaded corpus file",
		zap.String("label", string(file.Label)),
		zap.String("split", string(file.Split)),
		zap.String("path", util.ToRelativePath(ns.cfg.App.WorkDir, file.Path)),
		zap.Int("sentences", len(sentences)),
	)
	return nil
}

// LoadCorpora loads every configured document. onFile, when set, is called after each file.
func (ns *NewsService) LoadCorpora(ctx context.Context, onFile func(CorpusFile)) error {
	files, err := ns.CorpusFiles()
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ns.LoadFile(ctx, file); err != nil {
			return err
		}
		if onFile != nil {
			onFile(file)
		}
	}

	ns.recordRevisions()

	stats := ns.corpus.GetStats()
	for _, label := range stats.Labels {
		ns.logger.Info("Corpus loaded",
			zap.String("label", string(label.Label)),
			zap.Int("training_sentences", label.TrainingSentences),
			zap.Int("training_tokens", label.TrainingTokens),
			zap.Int("validation_sentences", label.ValidationSentences),
			zap.Int("validation_tokens", label.ValidationTokens),
		)
	}
	return nil
}

// recordRevisions stamps each label with the git revision of its first training path
func (ns *NewsService) recordRevisions() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	for _, corpusCfg := range ns.cfg.Corpora {
		if len(corpusCfg.Train) == 0 {
			continue
		}
		dir := corpusCfg.Train[0]
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		gitInfo, err := util.GetGitInfo(dir)
		if err != nil {
			ns.logger.Warn("Failed to read corpus revision", zap.String("label", corpusCfg.Label), zap.Error(err))
			continue
		}
		ns.revisions[ngram.Label(corpusCfg.Label)] = gitInfo.Revision()
	}
}

// Train builds a model for every configured label. Unless override is set, models
// persisted by an earlier run are loaded instead of retrained, provided they were
// trained with the configured smoothing, key-gap policy and sentence splitting.
// Newly trained models are saved and, when a graph is attached, exported.
func (ns *NewsService) Train(ctx context.Context, override bool) error {
	loaded := make(map[ngram.Label]bool)
	for _, corpusCfg := range ns.cfg.Corpora {
		label := ngram.Label(corpusCfg.Label)
		if override || !ns.persistence.ModelExists(label) {
			continue
		}
		model, meta, err := ns.persistence.LoadModel(label)
		if err != nil {
			ns.logger.Warn("Failed to load existing model, will rebuild",
				zap.String("label", string(label)),
				zap.Error(err))
			continue
		}
		if mismatch := ns.configMismatch(model, meta); mismatch != "" {
			ns.logger.Warn("Persisted model does not match configuration, will rebuild",
				zap.String("label", string(label)),
				zap.String("mismatch", mismatch))
			continue
		}
		ns.corpus.SetModel(model)
		loaded[label] = true
		ns.logger.Info("Loaded language model from disk",
			zap.String("label", string(label)),
			zap.String("run_id", meta.RunID))
	}

	if err := ns.corpus.TrainAll(ctx); err != nil {
		return fmt.Errorf("failed to train models: %w", err)
	}

	ns.mu.RLock()
	graph := ns.graph
	ns.mu.RUnlock()

	for label, model := range ns.corpus.Models() {
		if loaded[label] {
			continue
		}
		ns.mu.RLock()
		meta := ModelMetadata{
			RunID:          ns.runID,
			CorpusRevision: ns.revisions[label],
			SplitOnPeriod:  ns.cfg.Model.SplitOnPeriod,
		}
		ns.mu.RUnlock()
		if err := ns.persistence.SaveModel(model, meta); err != nil {
			ns.logger.Error("Failed to save language model",
				zap.String("label", string(label)),
				zap.Error(err))
			return fmt.Errorf("failed to save model: %w", err)
		}
		if graph != nil {
			if _, err := graph.Export(ctx, model); err != nil {
				return fmt.Errorf("failed to export %s graph: %w", label, err)
			}
		}
	}
	return nil
}

// LoadModels restores every configured label's persisted model without training.
// A model trained with settings other than the configured ones is rejected with ErrConfig.
func (ns *NewsService) LoadModels() error {
	for _, corpusCfg := range ns.cfg.Corpora {
		label := ngram.Label(corpusCfg.Label)
		model, meta, err := ns.persistence.LoadModel(label)
		if err != nil {
			return fmt.Errorf("failed to load %s model: %w", label, err)
		}
		if mismatch := ns.configMismatch(model, meta); mismatch != "" {
			return fmt.Errorf("%w: saved %s model has %s", ErrConfig, label, mismatch)
		}
		ns.corpus.SetModel(model)
	}
	return nil
}

// configMismatch describes the first training setting of a persisted model that differs
// from the configuration, or returns "" when they agree
func (ns *NewsService) configMismatch(model *LanguageModel, meta *ModelMetadata) string {
	stats := model.Stats()
	switch {
	case stats.SmootherName != ns.smoother.Name():
		return fmt.Sprintf("smoother %s, configured %s", stats.SmootherName, ns.smoother.Name())
	case stats.SmoothingK != ns.smoother.K():
		return fmt.Sprintf("smoothing k %v, configured %v", stats.SmoothingK, ns.smoother.K())
	case stats.KeyGapPolicy != ns.cfg.Model.KeyGapPolicy:
		return fmt.Sprintf("key gap policy %s, configured %s", stats.KeyGapPolicy, ns.cfg.Model.KeyGapPolicy)
	case meta.SplitOnPeriod != ns.cfg.Model.SplitOnPeriod:
		return fmt.Sprintf("split_on_period %t, configured %t", meta.SplitOnPeriod, ns.cfg.Model.SplitOnPeriod)
	}
	return ""
}

// ExportGraph writes a label's model to the attached graph
func (ns *NewsService) ExportGraph(ctx context.Context, label ngram.Label) (GraphExportSummary, error) {
	ns.mu.RLock()
	graph := ns.graph
	ns.mu.RUnlock()
	if graph == nil {
		return GraphExportSummary{}, fmt.Errorf("%w: graph export is disabled", ErrConfig)
	}

	model, err := ns.corpus.GetModel(label)
	if err != nil {
		return GraphExportSummary{}, err
	}
	return graph.Export(ctx, model)
}

// Evaluate computes the perplexity matrix and classifier scores on the validation corpora
func (ns *NewsService) Evaluate(ctx context.Context) (*EvaluationReport, error) {
	report, err := ns.corpus.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	report.RunID = ns.runID

	ns.mu.Lock()
	ns.lastReport = report
	ns.mu.Unlock()
	return report, nil
}

// LastEvaluation returns the most recent evaluation report, if any
func (ns *NewsService) LastEvaluation() (*EvaluationReport, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.lastReport, ns.lastReport != nil
}

// NewsAnalysis is the result of scoring a free text against every model
type NewsAnalysis struct {
	Sentences      int                   `json:"sentences"`
	TokenCount     int                   `json:"token_count"`
	Label          ngram.Label           `json:"label"`
	Scores         []LabelScore          `json:"scores"`
	NaiveBayes     ngram.Label           `json:"naive_bayes,omitempty"`
	ZScore         float64               `json:"z_score"`
	Interpretation *ZScoreInterpretation `json:"interpretation,omitempty"`
	Details        []BigramScoreDetail   `json:"details,omitempty"`
}

// AnalyzeText tokenizes text in the given format, classifies it by perplexity and, when
// the classifier is trained, with naive Bayes. The z-score compares the text's bigram
// perplexity with the predicted label's own validation sentences and needs an earlier
// Evaluate. With explain set every bigram position under the predicted model is returned.
func (ns *NewsService) AnalyzeText(ctx context.Context, text []byte, format string, explain bool) (*NewsAnalysis, error) {
	if format == "" {
		format = FormatText
	}
	tokenizer, ok := ns.registry.GetTokenizer(format)
	if !ok {
		return nil, fmt.Errorf("%w: unknown format %q", ErrConfig, format)
	}

	sentences, err := tokenizer.Tokenize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}
	marked := ns.corpus.Mark(sentences)
	if len(marked) == 0 {
		return nil, fmt.Errorf("%w: text contains no tokens", ErrDomain)
	}

	classifier, err := NewPerplexityClassifier(ns.corpus.Models())
	if err != nil {
		return nil, err
	}
	classification, err := classifier.Classify(marked)
	if err != nil {
		return nil, err
	}

	analysis := &NewsAnalysis{
		Sentences:  len(marked),
		TokenCount: marked.TokenCount(),
		Label:      classification.Label,
		Scores:     classification.Scores,
	}

	if nb, err := ns.corpus.NaiveBayes(); err == nil {
		var words ngram.Sentence
		for _, sentence := range marked {
			words = append(words, sentence...)
		}
		analysis.NaiveBayes = nb.PredictOne(words)
	}

	if stats, ok := ns.corpus.SentenceStats(classification.Label); ok {
		for _, score := range classification.Scores {
			if score.Label == classification.Label {
				analysis.ZScore = stats.ZScore(score.Bigram.Perplexity)
				interpretation := interpretZScore(analysis.ZScore)
				analysis.Interpretation = &interpretation
			}
		}
	}

	if explain {
		model, err := ns.corpus.GetModel(classification.Label)
		if err != nil {
			return nil, err
		}
		_, details, err := model.ExplainBigrams(marked)
		if err != nil {
			return nil, err
		}
		analysis.Details = details
	}

	ns.logger.Debug("Analyzed text",
		zap.Int("sentences", analysis.Sentences),
		zap.String("label", string(analysis.Label)),
		zap.String("naive_bayes", string(analysis.NaiveBayes)))
	return analysis, nil
}

// ClassifyTexts labels each plain text document by perplexity
func (ns *NewsService) ClassifyTexts(ctx context.Context, texts []string) ([]Classification, error) {
	classifier, err := NewPerplexityClassifier(ns.corpus.Models())
	if err != nil {
		return nil, err
	}
	tokenizer, _ := ns.registry.GetTokenizer(FormatText)

	results := make([]Classification, 0, len(texts))
	for i, text := range texts {
		sentences, err := tokenizer.Tokenize(ctx, []byte(text))
		if err != nil {
			return nil, fmt.Errorf("tokenization of text %d failed: %w", i, err)
		}
		marked := ns.corpus.Mark(sentences)
		if len(marked) == 0 {
			return nil, fmt.Errorf("%w: text %d contains no tokens", ErrDomain, i)
		}
		classification, err := classifier.Classify(marked)
		if err != nil {
			return nil, fmt.Errorf("failed to classify text %d: %w", i, err)
		}
		results = append(results, classification)
	}
	return results, nil
}

// ModelStats returns the statistics of a label's model
func (ns *NewsService) ModelStats(label ngram.Label) (ModelStats, error) {
	model, err := ns.corpus.GetModel(label)
	if err != nil {
		return ModelStats{}, err
	}
	return model.Stats(), nil
}

// Continuations returns the most probable next tokens after token under a label's model,
// read from the graph when one is attached
func (ns *NewsService) Continuations(ctx context.Context, label ngram.Label, token string, limit int) ([]Continuation, error) {
	model, err := ns.corpus.GetModel(label)
	if err != nil {
		return nil, err
	}
	token = model.Normalize(token)

	ns.mu.RLock()
	graph := ns.graph
	ns.mu.RUnlock()
	if graph != nil {
		continuations, err := graph.Continuations(ctx, label, token, limit)
		if err == nil {
			return continuations, nil
		}
		ns.logger.Warn("Graph lookup failed, using in-memory model", zap.String("label", string(label)), zap.Error(err))
	}
	return model.TopContinuations(token, limit), nil
}

// Close releases the graph connection
func (ns *NewsService) Close(ctx context.Context) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.graph == nil {
		return nil
	}
	err := ns.graph.Close(ctx)
	ns.graph = nil
	return err
}

