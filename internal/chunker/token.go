package chunker

import "strings"

// EstimateTokens approximates a token count at ~1.33 tokens per word.
// Used when no tokenizer is configured for a model.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// WordCount is the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
