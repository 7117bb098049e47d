package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/internal/pipeline"
	"github.com/KummariJohnson/boston-api/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	result *model.QueryResult
	err    error
	calls  int
}

func (e *stubEngine) Query(context.Context, string) (*model.QueryResult, error) {
	e.calls++
	return e.result, e.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.QueryEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.QueryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func bostonResult() *model.QueryResult {
	return &model.QueryResult{
		Answer: "You can pay your parking ticket online or at City Hall.",
		Sources: []model.SourceNode{
			{ID: "a", Text: "Parking tickets can be paid online through the city portal.", Score: 0.9134, URL: "https://www.boston.gov/parking", Title: "Parking Tickets"},
			{ID: "b", Text: "City Hall, 1 City Hall Square, accepts payments in person.", Score: 0.7651},
		},
	}
}

func TestChat_ShapesResponse(t *testing.T) {
	engine := &stubEngine{result: bostonResult()}
	pub := &recordingPublisher{}
	svc := NewChatService(engine, nil, pub)

	resp, err := svc.Chat(context.Background(), "req-1", "How do I pay a parking ticket?")
	require.NoError(t, err)

	assert.Equal(t, "You can pay your parking ticket online or at City Hall.", resp.Answer)
	require.Len(t, resp.SourceChunks, 2)
	assert.Equal(t, model.SourceChunk{
		ChunkID:     1,
		Score:       0.91,
		URL:         "https://www.boston.gov/parking",
		Title:       "Parking Tickets",
		TextSnippet: "Parking tickets can be paid online through the city portal....",
	}, resp.SourceChunks[0])
	assert.Equal(t, 2, resp.SourceChunks[1].ChunkID)
	assert.Equal(t, 0.77, resp.SourceChunks[1].Score)
	assert.Equal(t, model.MetadataNA, resp.SourceChunks[1].URL)
	assert.Equal(t, model.MetadataNA, resp.SourceChunks[1].Title)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "req-1", pub.events[0].RequestID)
	assert.Equal(t, 2, pub.events[0].SourceCount)
	assert.False(t, pub.events[0].Cached)
}

func TestChat_NotInitialized(t *testing.T) {
	svc := NewChatService(nil, nil, nil)
	assert.False(t, svc.Ready())

	_, err := svc.Chat(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestChat_QueryError(t *testing.T) {
	boom := errors.New("upstream timeout")
	pub := &recordingPublisher{}
	svc := NewChatService(&stubEngine{err: boom}, nil, pub)

	_, err := svc.Chat(context.Background(), "req-2", "q")
	assert.ErrorIs(t, err, boom)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "upstream timeout", pub.events[0].Error)
}

func TestChat_EmptySources(t *testing.T) {
	svc := NewChatService(&stubEngine{result: &model.QueryResult{Answer: pipeline.EmptyResponse}}, nil, nil)

	resp, err := svc.Chat(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.EmptyResponse, resp.Answer)
	assert.NotNil(t, resp.SourceChunks)
	assert.Empty(t, resp.SourceChunks)
}

func TestChat_UsesAnswerCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	engine := &stubEngine{result: bostonResult()}
	pub := &recordingPublisher{}
	svc := NewChatService(engine, repository.NewAnswerCacheRepository(client, time.Minute), pub)

	first, err := svc.Chat(context.Background(), "r1", "parking")
	require.NoError(t, err)
	second, err := svc.Chat(context.Background(), "r2", "parking")
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, first, second)
	require.Len(t, pub.events, 2)
	assert.True(t, pub.events[1].Cached)
}

func TestChat_CacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	engine := &stubEngine{result: bostonResult()}
	svc := NewChatService(engine, repository.NewAnswerCacheRepository(client, time.Minute), nil)

	resp, err := svc.Chat(context.Background(), "", "parking")
	require.NoError(t, err)
	assert.Len(t, resp.SourceChunks, 2)
	assert.Equal(t, 1, engine.calls)
}

func TestShapeSources_Snippet(t *testing.T) {
	long := strings.Repeat("é", 250)
	chunks := ShapeSources([]model.SourceNode{{Text: long, Score: 0.5}, {Text: "", Score: 0.999}})

	assert.Equal(t, strings.Repeat("é", 200)+"...", chunks[0].TextSnippet)
	assert.Equal(t, "...", chunks[1].TextSnippet)
	assert.Equal(t, 1.0, chunks[1].Score)
}

func TestRoundScore_HalfToEven(t *testing.T) {
	for _, tc := range []struct {
		in, want float64
	}{
		{0.125, 0.12},
		{0.625, 0.62},
		{0.375, 0.38},
		{0.9134, 0.91},
		{0.7651, 0.77},
		{-0.125, -0.12},
	} {
		assert.Equal(t, tc.want, roundScore(tc.in), "%v", tc.in)
	}
}
