package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func encoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding(encodingName)
	})
	return tokenEncoder, encoderErr
}

// Limits bounds the context sent with a question. Zero disables a limit.
type Limits struct {
	MaxChars  int
	MaxTokens int
}

// Apply trims s to the character limit, then to the token limit.
func (l Limits) Apply(s string) string {
	if l.MaxChars > 0 {
		s = TrimChars(s, l.MaxChars)
	}
	if l.MaxTokens > 0 {
		s = TrimTokens(s, l.MaxTokens)
	}
	return s
}

// TrimChars keeps the first n characters of s.
func TrimChars(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// CountTokens counts cl100k_base tokens, estimating when the encoding is
// unavailable.
func CountTokens(s string) int {
	enc, err := encoder()
	if err != nil {
		return estimateTokens(s)
	}
	return len(enc.Encode(s, nil, nil))
}

// TrimTokens keeps the longest prefix of s that fits in n tokens.
func TrimTokens(s string, n int) string {
	if n <= 0 {
		return ""
	}
	enc, err := encoder()
	if err != nil {
		return TrimChars(s, n*charsPerToken)
	}

	tokens := enc.Encode(s, nil, nil)
	if len(tokens) <= n {
		return s
	}
	out := enc.Decode(tokens[:n])
	// A token boundary can split a multi-byte character.
	return strings.TrimRight(strings.ToValidUTF8(out, "�"), "�")
}

const charsPerToken = 4

func estimateTokens(s string) int {
	runes := len([]rune(s))
	return (runes + charsPerToken - 1) / charsPerToken
}
