package service

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"newslm/internal/model/ngram"
)

// OverlapDetector remembers the sentences of a training corpus in a bloom filter so
// validation sentences that leaked from training can be spotted
type OverlapDetector struct {
	filter    *bloom.BloomFilter
	sentences int
}

// OverlapReport summarizes how much of a corpus probably appears in training
type OverlapReport struct {
	Checked    int     `json:"checked"`
	Duplicates int     `json:"probable_duplicates"`
	Fraction   float64 `json:"fraction"`
}

// NewOverlapDetector indexes every sentence of corpus with the given false positive rate
func NewOverlapDetector(corpus ngram.Corpus, falsePositiveRate float64) *OverlapDetector {
	expected := uint(len(corpus))
	if expected == 0 {
		expected = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.001
	}

	filter := bloom.NewWithEstimates(expected, falsePositiveRate)
	for _, sentence := range corpus {
		filter.AddString(sentenceKey(sentence))
	}
	return &OverlapDetector{filter: filter, sentences: len(corpus)}
}

// Contains reports whether sentence was probably indexed
func (d *OverlapDetector) Contains(sentence ngram.Sentence) bool {
	return d.filter.TestString(sentenceKey(sentence))
}

// Check counts the sentences of corpus that were probably indexed
func (d *OverlapDetector) Check(corpus ngram.Corpus) OverlapReport {
	report := OverlapReport{Checked: len(corpus)}
	for _, sentence := range corpus {
		if d.Contains(sentence) {
			report.Duplicates++
		}
	}
	if report.Checked > 0 {
		report.Fraction = float64(report.Duplicates) / float64(report.Checked)
	}
	return report
}

func sentenceKey(sentence ngram.Sentence) string {
	return strings.Join(sentence, "\x1f")
}
