// Package tokens estimates token counts for prompts and completions when the
// provider does not report usage itself.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackCharsPerToken = 4

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// getEncoder lazily loads the cl100k_base encoding. Loading can fail offline
// (the BPE ranks may need to be fetched), in which case counting falls back
// to the character heuristic.
func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})
	return encoder
}

// Count returns the token count of text under cl100k_base, or an approximate
// count of len/4 (minimum 1 for non-empty text) when the encoding is
// unavailable.
func Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := getEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return approximate(text)
}

func approximate(text string) int {
	n := len(text) / fallbackCharsPerToken
	if n < 1 {
		return 1
	}
	return n
}
