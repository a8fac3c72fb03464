package ngram

import "strings"

// Reserved tokens of the alphabet
const (
	SentenceStart = "<s>"
	SentenceEnd   = "</s>"
	Unknown       = "<UNK>"
)

// Label identifies the class a corpus or model belongs to
type Label string

const (
	LabelFake Label = "fake"
	LabelReal Label = "real"
)

// Sentence is an ordered sequence of normalized tokens
type Sentence []string

// Corpus is an ordered sequence of sentences
type Corpus []Sentence

// Flatten joins every sentence into one token sequence
func (c Corpus) Flatten() []string {
	tokens := make([]string, 0, c.TokenCount())
	for _, sentence := range c {
		tokens = append(tokens, sentence...)
	}
	return tokens
}

// TokenCount returns the total number of tokens across all sentences
func (c Corpus) TokenCount() int {
	total := 0
	for _, sentence := range c {
		total += len(sentence)
	}
	return total
}

// Bigram is an ordered token pair usable as a map key
type Bigram struct {
	First  string
	Second string
}

// String returns the bigram as a space-separated string
func (b Bigram) String() string {
	return b.First + " " + b.Second
}

// NGram converts the bigram into an NGram
func (b Bigram) NGram() NGram {
	return NGram{b.First, b.Second}
}

// NGram represents an n-gram (sequence of n tokens)
type NGram []string

// String returns the n-gram as a space-separated string
func (ng NGram) String() string {
	return strings.Join(ng, " ")
}
