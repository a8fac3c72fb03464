package ngram

// MarkSentences wraps every sentence in <s> ... </s>. With splitOnPeriod set, a "."
// that is not the final token of its sentence is followed by an extra </s> <s> pair.
// Empty sentences are dropped. The input corpus is not modified.
func MarkSentences(corpus Corpus, splitOnPeriod bool) Corpus {
	marked := make(Corpus, 0, len(corpus))
	for _, sentence := range corpus {
		if len(sentence) == 0 {
			continue
		}
		marked = append(marked, markSentence(sentence, splitOnPeriod))
	}
	return marked
}

func markSentence(sentence Sentence, splitOnPeriod bool) Sentence {
	out := make(Sentence, 0, len(sentence)+2)
	out = append(out, SentenceStart)
	last := len(sentence) - 1
	for i, token := range sentence {
		out = append(out, token)
		if splitOnPeriod && token == "." && i != last {
			out = append(out, SentenceEnd, SentenceStart)
		}
	}
	return append(out, SentenceEnd)
}
