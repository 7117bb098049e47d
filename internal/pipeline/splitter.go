package pipeline

import (
	"strings"

	"github.com/KummariJohnson/boston-api/pkg/tokenizer"
)

// Splitter 按 token 数把文本切成有重叠的块，切分点总在空白处。
type Splitter struct {
	counter   tokenizer.Counter
	chunkSize int
	overlap   int
}

// NewSplitter 创建切分器；overlap 不小于 chunkSize 时视为无重叠。
func NewSplitter(counter tokenizer.Counter, chunkSize, overlap int) Splitter {
	if overlap >= chunkSize || overlap < 0 {
		overlap = 0
	}
	return Splitter{counter: counter, chunkSize: chunkSize, overlap: overlap}
}

// Split 返回切分后的文本块。单个超长的词会独占一个块。
func (s Splitter) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks    []string
		cur       []string
		curTokens []int
		total     int
	)
	for _, w := range words {
		n := s.counter.Count(w)
		if total+n > s.chunkSize && len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))

			// 保留末尾不超过 overlap 的词作为下一块的开头
			keep, kept := 0, 0
			for j := len(cur) - 1; j >= 0; j-- {
				if kept+curTokens[j] > s.overlap {
					break
				}
				kept += curTokens[j]
				keep++
			}
			cur = append([]string(nil), cur[len(cur)-keep:]...)
			curTokens = append([]int(nil), curTokens[len(curTokens)-keep:]...)
			total = kept
		}
		cur = append(cur, w)
		curTokens = append(curTokens, n)
		total += n
	}
	chunks = append(chunks, strings.Join(cur, " "))
	return chunks
}
