package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/KummariJohnson/boston-api/pkg/llm"
	"github.com/KummariJohnson/boston-api/pkg/tokenizer"
	"golang.org/x/sync/errgroup"
)

// EmptyResponse 是没有检索到任何文本块时的答案。
const EmptyResponse = "Empty Response"

const treeSummarizePrompt = "Context information from multiple sources is below.\n" +
	"---------------------\n" +
	"%s\n" +
	"---------------------\n" +
	"Given the information from multiple sources and not prior knowledge, answer the query.\n" +
	"Query: %s\n" +
	"Answer: "

const (
	chunkSeparator = "\n\n"
	maxTreeDepth   = 8
	// 同一层摘要的最大并发数
	summaryConcurrency = 4
)

// Synthesizer 根据检索到的文本块生成最终答案。
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, texts []string) (string, error)
}

// TreeSummarizer 把文本块打包进尽量少的 prompt；只有一组时直接作答，
// 否则对每组分别作答，再把这些中间答案作为新的文本块递归汇总。
type TreeSummarizer struct {
	client        llm.Client
	counter       tokenizer.Counter
	contextWindow int
	numOutput     int
}

func NewTreeSummarizer(client llm.Client, counter tokenizer.Counter, contextWindow, numOutput int) *TreeSummarizer {
	return &TreeSummarizer{
		client:        client,
		counter:       counter,
		contextWindow: contextWindow,
		numOutput:     numOutput,
	}
}

func (t *TreeSummarizer) Synthesize(ctx context.Context, query string, texts []string) (string, error) {
	if len(texts) == 0 {
		return EmptyResponse, nil
	}
	return t.summarize(ctx, query, texts, 0)
}

func (t *TreeSummarizer) summarize(ctx context.Context, query string, texts []string, depth int) (string, error) {
	if depth >= maxTreeDepth {
		return "", fmt.Errorf("tree summarize did not converge after %d levels", depth)
	}

	groups := t.pack(query, texts)
	if len(groups) == 1 {
		return t.complete(ctx, query, groups[0])
	}

	summaries := make([]string, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, group := range groups {
		g.Go(func() error {
			s, err := t.complete(gctx, query, group)
			if err != nil {
				return err
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return t.summarize(ctx, query, summaries, depth+1)
}

func (t *TreeSummarizer) complete(ctx context.Context, query, contextText string) (string, error) {
	prompt := fmt.Sprintf(treeSummarizePrompt, contextText, query)
	return t.client.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
}

// budget 是一个 prompt 中留给上下文文本的 token 数。
func (t *TreeSummarizer) budget(query string) int {
	overhead := t.counter.Count(fmt.Sprintf(treeSummarizePrompt, "", query))
	b := t.contextWindow - t.numOutput - overhead
	if b < 1 {
		b = 1
	}
	return b
}

// pack 贪心地把文本块合并成不超过预算的组，超长的单块先被切开。
func (t *TreeSummarizer) pack(query string, texts []string) []string {
	budget := t.budget(query)
	splitter := NewSplitter(t.counter, budget, 0)
	sepTokens := t.counter.Count(chunkSeparator)

	var (
		groups []string
		cur    []string
		total  int
	)
	for _, text := range texts {
		pieces := []string{text}
		if t.counter.Count(text) > budget {
			pieces = splitter.Split(text)
		}
		for _, p := range pieces {
			n := t.counter.Count(p)
			extra := n
			if len(cur) > 0 {
				extra += sepTokens
			}
			if total+extra > budget && len(cur) > 0 {
				groups = append(groups, strings.Join(cur, chunkSeparator))
				cur, total, extra = nil, 0, n
			}
			cur = append(cur, p)
			total += extra
		}
	}
	if len(cur) > 0 {
		groups = append(groups, strings.Join(cur, chunkSeparator))
	}
	if len(groups) == 0 {
		// 所有文本都为空白
		groups = []string{""}
	}
	return groups
}
