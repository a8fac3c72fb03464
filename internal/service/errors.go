package service

import (
	"errors"
	"fmt"

	"newslm/internal/model/ngram"
)

var (
	// ErrDomain is returned when a computation would divide by zero, e.g. an empty corpus or table
	ErrDomain = errors.New("domain error")

	// ErrKeyGap is returned when a required fallback bigram probability is missing
	ErrKeyGap = errors.New("missing fallback bigram")

	// ErrConfig is returned for invalid model parameters such as a non-positive smoothing constant
	ErrConfig = errors.New("invalid configuration")

	// ErrUnknownLabel is returned when no corpus or model exists for a class label
	ErrUnknownLabel = errors.New("unknown label")
)

// KeyGapError describes the position at which a fallback bigram was missing
type KeyGapError struct {
	Position int
	Pair     ngram.Bigram
	Fallback ngram.Bigram
}

func (e *KeyGapError) Error() string {
	return fmt.Sprintf("%v: no probability for %q (fallback of %q) at position %d",
		ErrKeyGap, e.Fallback.String(), e.Pair.String(), e.Position)
}

func (e *KeyGapError) Unwrap() error {
	return ErrKeyGap
}
