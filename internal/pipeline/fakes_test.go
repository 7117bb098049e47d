package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/llm"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

type fakeEmbedder struct {
	err   error
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Model() string { return "fake-embedder" }

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type fakeStore struct {
	nodes    []model.SourceNode
	err      error
	mu       sync.Mutex
	lastTopK int
	upserted []model.Chunk
	closed   bool
}

func (f *fakeStore) Query(_ context.Context, _ []float32, topK int) ([]model.SourceNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.nodes, nil
}

func (f *fakeStore) Upsert(_ context.Context, chunks []model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

// fakeLLM 对包含 leaf 中任一文本的 prompt 返回 "summary"，否则返回 answer。
type fakeLLM struct {
	answer  string
	leaves  []string
	err     error
	mu      sync.Mutex
	prompts []string
}

func (f *fakeLLM) Model() string { return "fake-llm" }

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	prompt := messages[len(messages)-1].Content
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for _, leaf := range f.leaves {
		if strings.Contains(prompt, leaf) {
			return "summary", nil
		}
	}
	return f.answer, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type stubSnapshot struct {
	docs []model.Document
	err  error
}

func (s stubSnapshot) Load(context.Context) ([]model.Document, error) { return s.docs, s.err }
func (s stubSnapshot) Location() string                               { return "stub" }
