package session

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

// encodingName is compatible with the GPT-4 family of chat deployments.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// encoding returns the shared BPE encoding, loading it once from the
// embedded offline dictionary. Returns nil if loading failed.
func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
		e, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			return
		}
		enc = e
	})
	return enc
}

// CountTokens counts BPE tokens in text. When the encoding is
// unavailable it falls back to a rune-based estimate that is
// conservative for both English and CJK text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return utf8.RuneCountInString(text) / 2
}
