package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/embedding"
	"github.com/KummariJohnson/boston-api/pkg/llm"
	"github.com/KummariJohnson/boston-api/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Vector.Provider = "pinecone"
	cfg.Vector.APIKey = "pc-key"
	cfg.Vector.Environment = "us-east-1"
	cfg.Vector.Index = "boston"
	cfg.LLM.APIKey = "g-key"
	cfg.LLM.ContextWindow = 1000
	cfg.LLM.MaxTokens = 10
	cfg.Retrieval.TopK = 2
	cfg.Embedding.BatchSize = 2
	cfg.Snapshot.IndexOnStartup = true
	cfg.Snapshot.ChunkSize = 4
	cfg.Snapshot.ChunkOverlap = 0
	return cfg
}

type factoryCounts struct {
	store    int
	embedder int
	llm      int
}

func testDeps(store *fakeStore, storeErr error, snapshot SnapshotLoader, counts *factoryCounts) Dependencies {
	return Dependencies{
		NewStore: func(context.Context, config.VectorConfig) (vectorstore.Store, error) {
			counts.store++
			if storeErr != nil {
				return nil, storeErr
			}
			return store, nil
		},
		NewEmbedder: func(config.EmbeddingConfig) embedding.Client {
			counts.embedder++
			return &fakeEmbedder{}
		},
		NewLLM: func(config.LLMConfig) llm.Client {
			counts.llm++
			return &fakeLLM{answer: "ok"}
		},
		Snapshot: snapshot,
		Counter:  wordCounter{},
	}
}

func TestBuild_Idempotent(t *testing.T) {
	counts := &factoryCounts{}
	b := NewBuilder(testConfig(), testDeps(&fakeStore{}, nil, stubSnapshot{err: ErrSnapshotNotFound}, counts))

	first, err := b.Build(context.Background())
	require.NoError(t, err)
	second, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, factoryCounts{store: 1, embedder: 1, llm: 1}, *counts)
}

func TestBuild_MissingConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = ""
	counts := &factoryCounts{}
	b := NewBuilder(cfg, testDeps(&fakeStore{}, nil, stubSnapshot{}, counts))

	engine, err := b.Build(context.Background())
	assert.Nil(t, engine)
	assert.ErrorIs(t, err, config.ErrMissingConfig)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
	assert.Zero(t, counts.store)

	engine, err = b.Build(context.Background())
	assert.Nil(t, engine)
	assert.ErrorIs(t, err, config.ErrMissingConfig)
	assert.Zero(t, counts.store)
}

func TestBuild_MissingSnapshotFile(t *testing.T) {
	cfg := testConfig()
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "scraped_data.json")
	store := &fakeStore{}
	deps := testDeps(store, nil, nil, &factoryCounts{})

	engine, err := NewBuilder(cfg, deps).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, engine)
	assert.Zero(t, engine.SnapshotDocuments())
	assert.Empty(t, store.upserted)
}

func TestBuild_CorruptSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "scraped_data.json")
	require.NoError(t, os.WriteFile(cfg.Snapshot.Path, []byte("not json"), 0o644))
	counts := &factoryCounts{}

	engine, err := NewBuilder(cfg, testDeps(&fakeStore{}, nil, nil, counts)).Build(context.Background())
	assert.Nil(t, engine)
	assert.ErrorIs(t, err, ErrSnapshot)
	assert.Zero(t, counts.store)
}

func TestBuild_VectorStoreFailure(t *testing.T) {
	boom := errors.New("401 unauthorized")
	deps := testDeps(nil, boom, stubSnapshot{err: ErrSnapshotNotFound}, &factoryCounts{})

	_, err := NewBuilder(testConfig(), deps).Build(context.Background())
	assert.ErrorIs(t, err, ErrVectorStore)
	assert.ErrorIs(t, err, boom)
}

func TestBuild_IndexesSnapshot(t *testing.T) {
	docs := []model.Document{
		{Content: "one two three four five six", URL: "https://boston.gov/a", Title: "A"},
		{Content: "seven eight", URL: model.MetadataNA, Title: model.MetadataNA},
	}
	store := &fakeStore{}
	deps := testDeps(store, nil, stubSnapshot{docs: docs}, &factoryCounts{})

	engine, err := NewBuilder(testConfig(), deps).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, engine.SnapshotDocuments())

	require.Len(t, store.upserted, 3)
	assert.Equal(t, "one two three four", store.upserted[0].Text)
	assert.Equal(t, "five six", store.upserted[1].Text)
	assert.Equal(t, "https://boston.gov/a", store.upserted[1].URL)
	assert.Equal(t, "seven eight", store.upserted[2].Text)
	for _, c := range store.upserted {
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, c.Vector)
	}

	// 相同内容得到相同的 ID
	again := &fakeStore{}
	_, err = NewBuilder(testConfig(), testDeps(again, nil, stubSnapshot{docs: docs}, &factoryCounts{})).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.upserted[0].ID, again.upserted[0].ID)
}

func TestBuild_SkipsIndexingWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Snapshot.IndexOnStartup = false
	store := &fakeStore{}
	deps := testDeps(store, nil, stubSnapshot{docs: []model.Document{{Content: "x", URL: "u", Title: "t"}}}, &factoryCounts{})

	engine, err := NewBuilder(cfg, deps).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, engine.SnapshotDocuments())
	assert.Empty(t, store.upserted)
}

func TestBuild_ObjectSnapshot(t *testing.T) {
	server := newFakeS3(t)
	defer server.Close()

	build := func(objectName string) (*Engine, *fakeStore, error) {
		cfg := testConfig()
		cfg.Snapshot.MinIO = config.MinIOConfig{
			Endpoint:        strings.TrimPrefix(server.URL, "http://"),
			AccessKeyID:     "minio",
			SecretAccessKey: "minio123",
			BucketName:      "snapshots",
			ObjectName:      objectName,
		}
		store := &fakeStore{}
		engine, err := NewBuilder(cfg, testDeps(store, nil, nil, &factoryCounts{})).Build(context.Background())
		return engine, store, err
	}

	engine, store, err := build("scraped_data.json")
	require.NoError(t, err)
	assert.Equal(t, 1, engine.SnapshotDocuments())
	assert.NotEmpty(t, store.upserted)

	engine, _, err = build("missing.json")
	require.NoError(t, err)
	assert.Zero(t, engine.SnapshotDocuments())

	engine, _, err = build("forbidden.json")
	assert.Nil(t, engine)
	assert.ErrorIs(t, err, ErrSnapshot)
}
