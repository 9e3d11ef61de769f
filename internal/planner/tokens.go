package planner

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName mirrors the teacher's tokenizer choice: a general-purpose
// cl100k_base encoding, close enough across providers for a diagnostic count.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoder() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding(encodingName)
		if err == nil {
			enc = e
		}
	})
	return enc
}

// CountTokens counts text's tokens under the cl100k_base encoding. If
// the encoder could not be loaded, it falls back to a rough estimate of
// one token per four bytes of text rather than failing the request — token
// accounting here is diagnostic, not load-bearing.
func CountTokens(text string) int {
	if e := encoder(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return len(text) / 4
}
