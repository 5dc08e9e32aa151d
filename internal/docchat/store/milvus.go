package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docchat/internal/pkg/docchat/textutil"
	"github.com/kart-io/docchat/pkg/component/milvus"
	"github.com/kart-io/docchat/pkg/errors"
)

// 会话 collection 的元数据字段。
const (
	fieldText       = "text"
	fieldSource     = "source"
	fieldDocumentID = "document_id"
	fieldChunkIndex = "chunk_index"
	fieldTotalChunk = "total_chunks"
	fieldFileType   = "file_type"
	fieldIngestedAt = "ingested_at"

	maxTextLen     = 65535
	maxSourceLen   = 512
	maxDocIDLen    = 64
	maxFileTypeLen = 16

	collectionPrefix = "chat_"
)

// MilvusStore 基于 Milvus 实现 VectorStore，每个会话一个 collection。
type MilvusStore struct {
	client    *milvus.Client
	dimension int
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 MilvusStore。
func NewMilvusStore(client *milvus.Client, dimension int) *MilvusStore {
	return &MilvusStore{
		client:    client,
		dimension: dimension,
	}
}

// CollectionName 返回会话对应的 collection 名称。
// Milvus collection 名称不允许连字符，统一替换为下划线。
func CollectionName(sessionID string) string {
	return collectionPrefix + strings.ReplaceAll(sessionID, "-", "_")
}

// EnsureCollection 确保会话对应的 collection 存在并已加载。
func (s *MilvusStore) EnsureCollection(ctx context.Context, sessionID string) error {
	schema := &milvus.CollectionSchema{
		Name:        CollectionName(sessionID),
		Description: "docchat session chunks",
		Dimension:   s.dimension,
		MetaFields: []milvus.MetaField{
			{Name: fieldText, DataType: entity.FieldTypeVarChar, MaxLen: maxTextLen},
			{Name: fieldSource, DataType: entity.FieldTypeVarChar, MaxLen: maxSourceLen},
			{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: maxDocIDLen},
			{Name: fieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldTotalChunk, DataType: entity.FieldTypeInt64},
			{Name: fieldFileType, DataType: entity.FieldTypeVarChar, MaxLen: maxFileTypeLen},
			{Name: fieldIngestedAt, DataType: entity.FieldTypeInt64},
		},
	}

	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return errors.ErrIndexUnavailable.WithCause(err)
	}
	return nil
}

// Insert 将分块及其向量写入会话索引。
func (s *MilvusStore) Insert(ctx context.Context, sessionID string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return errors.ErrIndexUnavailable.WithMessagef("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}

	texts := make([]any, len(chunks))
	sources := make([]any, len(chunks))
	docIDs := make([]any, len(chunks))
	indexes := make([]any, len(chunks))
	totals := make([]any, len(chunks))
	fileTypes := make([]any, len(chunks))
	ingested := make([]any, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		sources[i] = c.Source
		docIDs[i] = c.DocumentID
		indexes[i] = int64(c.Index)
		totals[i] = int64(c.Total)
		fileTypes[i] = c.FileType
		ingested[i] = c.IngestedAt.Unix()
	}

	data := &milvus.InsertData{
		Embeddings: vectors,
		Metadata: map[string][]any{
			fieldText:       texts,
			fieldSource:     sources,
			fieldDocumentID: docIDs,
			fieldChunkIndex: indexes,
			fieldTotalChunk: totals,
			fieldFileType:   fileTypes,
			fieldIngestedAt: ingested,
		},
	}

	if _, err := s.client.Insert(ctx, CollectionName(sessionID), data); err != nil {
		return errors.ErrIndexUnavailable.WithCause(err)
	}
	return nil
}

// sourcesExpr 构造限定文件名集合的过滤表达式。sources 为空时不过滤。
func sourcesExpr(sources []string) string {
	if len(sources) == 0 {
		return ""
	}
	quoted := make([]string, len(sources))
	for i, src := range sources {
		quoted[i] = fmt.Sprintf("%q", src)
	}
	return fmt.Sprintf("%s in [%s]", fieldSource, strings.Join(quoted, ", "))
}

// Search 在会话索引中检索 topK 条最相似分块。
func (s *MilvusStore) Search(ctx context.Context, sessionID string, vector []float32, topK int, sources []string) ([]SearchHit, error) {
	return s.search(ctx, sessionID, vector, topK, sourcesExpr(sources), false)
}

// SearchDiverse 先取 fetchK 条候选，再用 MMR 选出 k 条结果。
// MMR 得分 = lambda*相关性 - (1-lambda)*与已选结果的最大相似度。
func (s *MilvusStore) SearchDiverse(ctx context.Context, sessionID string, vector []float32, k, fetchK int, lambda float64, sources []string) ([]SearchHit, error) {
	if fetchK < k {
		fetchK = k
	}

	candidates, err := s.search(ctx, sessionID, vector, fetchK, sourcesExpr(sources), true)
	if err != nil {
		return nil, err
	}
	if len(candidates) <= k {
		return candidates, nil
	}

	selected := make([]SearchHit, 0, k)
	remaining := make([]SearchHit, len(candidates))
	copy(remaining, candidates)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0

		for i, cand := range remaining {
			relevance := textutil.CosineSimilarity(vector, cand.Embedding)

			maxSim := 0.0
			for _, sel := range selected {
				if sim := textutil.CosineSimilarity(cand.Embedding, sel.Embedding); sim > maxSim {
					maxSim = sim
				}
			}

			score := lambda*relevance - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected, nil
}

func (s *MilvusStore) search(ctx context.Context, sessionID string, vector []float32, topK int, filterExpr string, withEmbedding bool) ([]SearchHit, error) {
	name := CollectionName(sessionID)

	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return nil, errors.ErrIndexUnavailable.WithCause(err)
	}
	if !exists {
		return []SearchHit{}, nil
	}

	outputFields := []string{fieldText, fieldSource, fieldDocumentID}
	if withEmbedding {
		outputFields = append(outputFields, "embedding")
	}

	results, err := s.client.Search(ctx, name, vector, topK, filterExpr, outputFields)
	if err != nil {
		return nil, errors.ErrIndexUnavailable.WithCause(err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hit := SearchHit{
			// L2 距离转相似度，保证越大越相关。
			Score:     1.0 / (1.0 + float64(r.Score)),
			Embedding: r.Embedding,
		}
		if v, ok := r.Metadata[fieldText].(string); ok {
			hit.Text = v
		}
		if v, ok := r.Metadata[fieldSource].(string); ok {
			hit.Source = v
		}
		if v, ok := r.Metadata[fieldDocumentID].(string); ok {
			hit.DocumentID = v
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// DeleteByDocument 删除某一文档的全部分块。
func (s *MilvusStore) DeleteByDocument(ctx context.Context, sessionID, documentID string) error {
	name := CollectionName(sessionID)

	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return errors.ErrIndexUnavailable.WithCause(err)
	}
	if !exists {
		return nil
	}

	expr := fmt.Sprintf("%s == %q", fieldDocumentID, documentID)
	if err := s.client.DeleteByExpr(ctx, name, expr); err != nil {
		return errors.ErrIndexUnavailable.WithCause(err)
	}
	return nil
}

// DropCollection 删除会话对应的 collection。
func (s *MilvusStore) DropCollection(ctx context.Context, sessionID string) error {
	name := CollectionName(sessionID)

	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return errors.ErrIndexUnavailable.WithCause(err)
	}
	if !exists {
		return nil
	}

	if err := s.client.DropCollection(ctx, name); err != nil {
		return errors.ErrIndexUnavailable.WithCause(err)
	}
	return nil
}

// Stats 返回会话索引中的分块数量。
func (s *MilvusStore) Stats(ctx context.Context, sessionID string) (int64, error) {
	name := CollectionName(sessionID)

	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return 0, errors.ErrIndexUnavailable.WithCause(err)
	}
	if !exists {
		return 0, nil
	}

	count, err := s.client.GetCollectionStats(ctx, name)
	if err != nil {
		return 0, errors.ErrIndexUnavailable.WithCause(err)
	}
	return count, nil
}

// Close 释放底层 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
