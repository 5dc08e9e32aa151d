package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
)

func newTestRetriever(embedder *fakeEmbedder, vectors *fakeVectorStore, topK int) *Retriever {
	// 扩展失败路径: fakeChat 报错让 Expander 退化为原始查询。
	expander := NewExpander(&fakeChat{generateErr: fmt.Errorf("no expansion")}, nil, 3)
	return NewRetriever(embedder, vectors, expander, &RetrieverConfig{TopK: topK, FetchK: topK * 4, MMRLambda: 0.5})
}

func seedChunks(t *testing.T, vectors *fakeVectorStore, embedder *fakeEmbedder, sessionID string, chunks []store.Chunk) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, vectors.EnsureCollection(ctx, sessionID))

	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		vecs[i] = embedder.vectorFor(c.Text)
	}
	require.NoError(t, vectors.Insert(ctx, sessionID, chunks, vecs))
}

func TestRetrieverReturnsTopK(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()

	var chunks []store.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, store.Chunk{
			Text:       fmt.Sprintf("passage %d", i),
			Source:     "doc.txt",
			DocumentID: "d1",
			Index:      i,
			Total:      10,
		})
	}
	seedChunks(t, vectors, embedder, "sess", chunks)

	r := newTestRetriever(embedder, vectors, 3)
	passages := r.Retrieve(context.Background(), "sess", "query", nil)

	assert.Len(t, passages, 3)
	// 按相似度降序。
	for i := 1; i < len(passages); i++ {
		assert.GreaterOrEqual(t, passages[i-1].Score, passages[i].Score)
	}
}

func TestRetrieverEmptySession(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()

	r := newTestRetriever(embedder, vectors, 5)
	passages := r.Retrieve(context.Background(), "missing-session", "query", nil)

	assert.Empty(t, passages)
}

func TestRetrieverDegradesOnEmbedFailure(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.err = fmt.Errorf("embedding service down")
	vectors := newFakeVectorStore()

	r := newTestRetriever(embedder, vectors, 5)
	passages := r.Retrieve(context.Background(), "sess", "query", nil)

	assert.Empty(t, passages)
}

func TestRetrieverDegradesOnSearchFailure(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()
	vectors.searchErr = fmt.Errorf("index offline")

	r := newTestRetriever(embedder, vectors, 5)
	passages := r.Retrieve(context.Background(), "sess", "query", nil)

	assert.Empty(t, passages)
}

func TestRetrieverDedupesAcrossVariants(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()

	seedChunks(t, vectors, embedder, "sess", []store.Chunk{
		{Text: "shared passage", Source: "doc.txt", DocumentID: "d1", Index: 0, Total: 1},
	})

	// 两个变体都会召回同一段落。
	expander := NewExpander(&fakeChat{generateOutput: "another phrasing"}, nil, 3)
	r := NewRetriever(embedder, vectors, expander, &RetrieverConfig{TopK: 5, FetchK: 20, MMRLambda: 0.5})

	passages := r.Retrieve(context.Background(), "sess", "query", nil)

	assert.Len(t, passages, 1)
	assert.Equal(t, "shared passage", passages[0].Text)
}

func TestRetrieverSameTextDifferentSourceKept(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()

	seedChunks(t, vectors, embedder, "sess", []store.Chunk{
		{Text: "identical text", Source: "a.txt", DocumentID: "d1", Index: 0, Total: 1},
		{Text: "identical text", Source: "b.txt", DocumentID: "d2", Index: 0, Total: 1},
	})

	r := newTestRetriever(embedder, vectors, 5)
	passages := r.Retrieve(context.Background(), "sess", "query", nil)

	// 去重键是 text+source，不同来源的相同文本都保留。
	assert.Len(t, passages, 2)
}

func TestRetrieverRestrictsToSources(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()

	seedChunks(t, vectors, embedder, "sess", []store.Chunk{
		{Text: "passage from a", Source: "a.txt", DocumentID: "d1", Index: 0, Total: 1},
		{Text: "passage from b", Source: "b.txt", DocumentID: "d2", Index: 0, Total: 1},
	})

	r := newTestRetriever(embedder, vectors, 5)
	passages := r.Retrieve(context.Background(), "sess", "query", &RetrieveOptions{Sources: []string{"a.txt"}})

	require.Len(t, passages, 1)
	assert.Equal(t, "a.txt", passages[0].Source)
}

func TestRetrieverPlainSearch(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()

	var chunks []store.Chunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, store.Chunk{
			Text:       fmt.Sprintf("plain passage %d", i),
			Source:     "doc.txt",
			DocumentID: "d1",
			Index:      i,
			Total:      8,
		})
	}
	seedChunks(t, vectors, embedder, "sess", chunks)

	r := newTestRetriever(embedder, vectors, 3)
	passages := r.Retrieve(context.Background(), "sess", "query", &RetrieveOptions{DisableDiversity: true})

	assert.Len(t, passages, 3)
	for i := 1; i < len(passages); i++ {
		assert.GreaterOrEqual(t, passages[i-1].Score, passages[i].Score)
	}
}

func TestRetrieverSessionIsolation(t *testing.T) {
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()

	seedChunks(t, vectors, embedder, "sess-a", []store.Chunk{
		{Text: "alpha content", Source: "a.txt", DocumentID: "d1", Index: 0, Total: 1},
	})
	seedChunks(t, vectors, embedder, "sess-b", []store.Chunk{
		{Text: "beta content", Source: "b.txt", DocumentID: "d2", Index: 0, Total: 1},
	})

	r := newTestRetriever(embedder, vectors, 5)

	passagesA := r.Retrieve(context.Background(), "sess-a", "anything", nil)
	require.Len(t, passagesA, 1)
	assert.Equal(t, "alpha content", passagesA[0].Text)

	passagesB := r.Retrieve(context.Background(), "sess-b", "anything", nil)
	require.Len(t, passagesB, 1)
	assert.Equal(t, "beta content", passagesB[0].Text)
}
