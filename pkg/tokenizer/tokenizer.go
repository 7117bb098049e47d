// Package tokenizer counts tokens for prompt packing and text splitting.
package tokenizer

import (
	"unicode/utf8"

	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Counter reports how many tokens a text occupies.
type Counter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// New returns a tiktoken-backed Counter. If the encoding cannot be loaded
// (it is fetched on first use) the rune-based Estimate is returned instead.
func New(encoding string) Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		log.Warnf("[Tokenizer] 加载编码 %s 失败, 使用字符估算: %v", encoding, err)
		return Estimate{}
	}
	return &tiktokenCounter{enc: enc}
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Estimate approximates one token per four characters.
type Estimate struct{}

func (Estimate) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
