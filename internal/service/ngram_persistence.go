package service

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"newslm/internal/model/ngram"
)

const modelFormatVersion = "1.0"

// SerializableLanguageModel is a serializable representation of a language model
type SerializableLanguageModel struct {
	Version           string    // Format version
	Label             string    // Class label
	RunID             string    // Training run that produced the model
	CorpusRevision    string    // Git revision of the corpus directory, if any
	CreatedAt         time.Time // When the model was created
	SmootherName      string    // Smoother type
	SmoothingK        float64   // Smoothing constant
	KeyGapPolicy      string
	SplitOnPeriod     bool // Sentences were re-split on internal periods before training
	Cutoff            int
	TrainingSentences int
	TrainingTokens    int64

	RawUnigrams []UnigramRecord // counts before unknown reduction
	RawBigrams  []BigramRecord
	Unigrams    []UnigramRecord // reduced counts with probabilities
	Bigrams     []BigramRecord
}

// UnigramRecord is one entry of a unigram table
type UnigramRecord struct {
	Token       string  `json:"token"`
	Count       int64   `json:"count"`
	Probability float64 `json:"probability,omitempty"`
}

// BigramRecord is one entry of a bigram table
type BigramRecord struct {
	First       string  `json:"first"`
	Second      string  `json:"second"`
	Count       int64   `json:"count"`
	Probability float64 `json:"probability,omitempty"`
}

// ModelMetadata records where a persisted model came from
type ModelMetadata struct {
	RunID          string
	CorpusRevision string
	SplitOnPeriod  bool
}

// NGramPersistence handles saving and loading language models
type NGramPersistence struct {
	outputDir string
	logger    *zap.Logger
}

// NewNGramPersistence creates a new persistence manager
func NewNGramPersistence(outputDir string, logger *zap.Logger) (*NGramPersistence, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &NGramPersistence{
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// GetModelPath returns the file path for a label's language model
func (p *NGramPersistence) GetModelPath(label ngram.Label) string {
	return filepath.Join(p.outputDir, fmt.Sprintf("%s_lm.gob", label))
}

// ModelExists checks if a persisted model exists for a label
func (p *NGramPersistence) ModelExists(label ngram.Label) bool {
	_, err := os.Stat(p.GetModelPath(label))
	return err == nil
}

// DeleteModel removes a persisted model
func (p *NGramPersistence) DeleteModel(label ngram.Label) error {
	if err := os.Remove(p.GetModelPath(label)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}

// SaveModel writes a model to disk
func (p *NGramPersistence) SaveModel(model *LanguageModel, meta ModelMetadata) error {
	serializable := serializeLanguageModel(model, meta)

	modelPath := p.GetModelPath(model.Label())
	if err := p.saveToFile(serializable, modelPath); err != nil {
		return fmt.Errorf("failed to save to file: %w", err)
	}

	p.logger.Info("Saved language model",
		zap.String("label", serializable.Label),
		zap.String("path", modelPath),
		zap.String("run_id", meta.RunID),
		zap.Int("unigrams", len(serializable.Unigrams)),
		zap.Int("bigrams", len(serializable.Bigrams)),
		zap.Int64("tokens", serializable.TrainingTokens))

	return nil
}

// LoadModel reads a label's model from disk
func (p *NGramPersistence) LoadModel(label ngram.Label) (*LanguageModel, *ModelMetadata, error) {
	modelPath := p.GetModelPath(label)
	serializable, err := p.loadFromFile(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load from file: %w", err)
	}

	model, err := deserializeLanguageModel(serializable)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to restore %s model: %w", label, err)
	}

	p.logger.Info("Loaded language model",
		zap.String("label", serializable.Label),
		zap.String("path", modelPath),
		zap.String("run_id", serializable.RunID),
		zap.Time("created_at", serializable.CreatedAt))

	return model, &ModelMetadata{
		RunID:          serializable.RunID,
		CorpusRevision: serializable.CorpusRevision,
		SplitOnPeriod:  serializable.SplitOnPeriod,
	}, nil
}

// ExportJSON writes the reduced count and probability tables of a model as JSON records
func ExportJSON(model *LanguageModel, w io.Writer) error {
	serializable := serializeLanguageModel(model, ModelMetadata{})
	export := struct {
		Label    string          `json:"label"`
		Smoother string          `json:"smoother"`
		K        float64         `json:"k"`
		Cutoff   int             `json:"cutoff"`
		Unigrams []UnigramRecord `json:"unigrams"`
		Bigrams  []BigramRecord  `json:"bigrams"`
	}{
		Label:    serializable.Label,
		Smoother: serializable.SmootherName,
		K:        serializable.SmoothingK,
		Cutoff:   serializable.Cutoff,
		Unigrams: serializable.Unigrams,
		Bigrams:  serializable.Bigrams,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func serializeLanguageModel(model *LanguageModel, meta ModelMetadata) *SerializableLanguageModel {
	s := &SerializableLanguageModel{
		Version:           modelFormatVersion,
		Label:             string(model.label),
		RunID:             meta.RunID,
		CorpusRevision:    meta.CorpusRevision,
		CreatedAt:         time.Now(),
		SmootherName:      model.smoother.Name(),
		SmoothingK:        model.smoother.K(),
		KeyGapPolicy:      string(model.policy),
		SplitOnPeriod:     meta.SplitOnPeriod,
		Cutoff:            model.cutoff,
		TrainingSentences: model.trainingSentences,
		TrainingTokens:    model.trainingTokens,
	}

	for _, token := range model.rawUnigrams.Tokens() {
		s.RawUnigrams = append(s.RawUnigrams, UnigramRecord{Token: token, Count: model.rawUnigrams[token]})
	}
	for _, key := range model.rawBigrams.Keys() {
		s.RawBigrams = append(s.RawBigrams, BigramRecord{First: key.First, Second: key.Second, Count: model.rawBigrams[key]})
	}
	s.Unigrams = model.UnigramTable()
	s.Bigrams = model.BigramTable()
	return s
}

func deserializeLanguageModel(s *SerializableLanguageModel) (*LanguageModel, error) {
	if s.Version != modelFormatVersion {
		return nil, fmt.Errorf("%w: unsupported model format version %q", ErrConfig, s.Version)
	}

	var smoother Smoother
	switch s.SmootherName {
	case "AddK":
		addK, err := NewAddKSmoother(s.SmoothingK)
		if err != nil {
			return nil, err
		}
		smoother = addK
	case "MLE":
		smoother = NewMLESmoother()
	default:
		return nil, fmt.Errorf("%w: unknown smoother %q", ErrConfig, s.SmootherName)
	}

	policy, err := ParseKeyGapPolicy(s.KeyGapPolicy)
	if err != nil {
		return nil, err
	}

	t := languageModelTables{
		label:             ngram.Label(s.Label),
		smoother:          smoother,
		policy:            policy,
		rawUnigrams:       make(UnigramCounts, len(s.RawUnigrams)),
		rawBigrams:        make(BigramCounts, len(s.RawBigrams)),
		unigramCounts:     make(UnigramCounts, len(s.Unigrams)),
		bigramCounts:      make(BigramCounts, len(s.Bigrams)),
		unigramProbs:      make(UnigramProbs, len(s.Unigrams)),
		bigramProbs:       make(BigramProbs, len(s.Bigrams)),
		cutoff:            s.Cutoff,
		trainingSentences: s.TrainingSentences,
		trainingTokens:    s.TrainingTokens,
	}
	for _, r := range s.RawUnigrams {
		t.rawUnigrams[r.Token] = r.Count
	}
	for _, r := range s.RawBigrams {
		t.rawBigrams[ngram.Bigram{First: r.First, Second: r.Second}] = r.Count
	}
	for _, r := range s.Unigrams {
		t.unigramCounts[r.Token] = r.Count
		t.unigramProbs[r.Token] = r.Probability
	}
	for _, r := range s.Bigrams {
		key := ngram.Bigram{First: r.First, Second: r.Second}
		if _, ok := t.unigramCounts[key.First]; !ok {
			return nil, fmt.Errorf("%w: bigram %q has no unigram entry for %q", ErrDomain, key.String(), key.First)
		}
		t.bigramCounts[key] = r.Count
		t.bigramProbs[key] = r.Probability
	}
	if _, ok := t.unigramCounts[ngram.Unknown]; !ok {
		return nil, fmt.Errorf("%w: unigram table has no %s entry", ErrDomain, ngram.Unknown)
	}

	return newLanguageModel(t), nil
}

// saveToFile saves a model to a file using gob encoding
func (p *NGramPersistence) saveToFile(model *SerializableLanguageModel, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(model); err != nil {
		return err
	}

	return nil
}

// loadFromFile loads a model from a file using gob decoding
func (p *NGramPersistence) loadFromFile(path string) (*SerializableLanguageModel, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var model SerializableLanguageModel
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&model); err != nil {
		return nil, err
	}

	return &model, nil
}
