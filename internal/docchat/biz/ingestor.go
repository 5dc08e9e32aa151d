package biz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/llm"
)

// IngestResult 单个文件的入库统计。
type IngestResult struct {
	DocumentID   string `json:"document_id"`
	Filename     string `json:"filename"`
	FileType     string `json:"file_type"`
	ChunkCount   int    `json:"chunk_count"`
	CharCount    int    `json:"char_count"`
	AvgChunkSize int    `json:"avg_chunk_size"`
}

// BatchResult 批量入库中单个文件的处理结果。
type BatchResult struct {
	Filename string        `json:"filename"`
	Result   *IngestResult `json:"result,omitempty"`
	Err      error         `json:"-"`
}

// Ingestor 文档入库管线: 落盘、提取、分块、向量化、写索引、记元数据。
// 落盘之后任何一步失败都会回滚已写入的文件与向量。
type Ingestor struct {
	extractor *Extractor
	chunker   *Chunker
	embedder  llm.EmbeddingProvider
	vectors   store.VectorStore
	sessions  store.SessionStore
	files     store.FileStore
}

// NewIngestor 创建 Ingestor。
func NewIngestor(
	extractor *Extractor,
	chunker *Chunker,
	embedder llm.EmbeddingProvider,
	vectors store.VectorStore,
	sessions store.SessionStore,
	files store.FileStore,
) *Ingestor {
	return &Ingestor{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		sessions:  sessions,
		files:     files,
	}
}

// Ingest 将一个文件入库到指定会话。
// 同名文件已存在时返回 ErrDuplicateDocument。
func (ig *Ingestor) Ingest(ctx context.Context, sessionID, filename string, data []byte) (*IngestResult, error) {
	if !ig.extractor.Supported(filename) {
		return nil, errors.ErrUnsupportedFormat.WithMessagef("unsupported file %q", filename)
	}

	session, err := ig.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, doc := range session.Documents {
		if doc.Filename == filename {
			return nil, errors.ErrDuplicateDocument.WithMessagef("document %q already exists", filename)
		}
	}

	if _, err := ig.files.Save(sessionID, filename, data); err != nil {
		return nil, err
	}

	documentID := uuid.NewString()
	result, err := ig.index(ctx, sessionID, documentID, filename, data)
	if err != nil {
		ig.rollback(ctx, sessionID, documentID, filename)
		return nil, err
	}

	doc := model.Document{
		ID:         documentID,
		Filename:   filename,
		Size:       int64(len(data)),
		ChunkCount: result.ChunkCount,
		CharCount:  result.CharCount,
		UploadedAt: time.Now().UTC(),
	}
	if err := ig.sessions.AddDocument(ctx, sessionID, doc); err != nil {
		ig.rollback(ctx, sessionID, documentID, filename)
		return nil, err
	}

	logger.Infow("document ingested",
		"session_id", sessionID,
		"document_id", documentID,
		"filename", filename,
		"chunks", result.ChunkCount,
		"chars", result.CharCount)

	return result, nil
}

// IngestBatch 逐个处理多个文件，单个失败不会中断其余文件。
func (ig *Ingestor) IngestBatch(ctx context.Context, sessionID string, files map[string][]byte, order []string) []BatchResult {
	results := make([]BatchResult, 0, len(order))
	for _, filename := range order {
		result, err := ig.Ingest(ctx, sessionID, filename, files[filename])
		results = append(results, BatchResult{
			Filename: filename,
			Result:   result,
			Err:      err,
		})
	}
	return results
}

// index 提取、分块、向量化并写入会话索引。
func (ig *Ingestor) index(ctx context.Context, sessionID, documentID, filename string, data []byte) (*IngestResult, error) {
	text, err := ig.extractor.Extract(filename, data)
	if err != nil {
		return nil, err
	}

	pieces, err := ig.chunker.Split(text)
	if err != nil {
		return nil, err
	}

	fileType := ig.extractor.FileType(filename)
	ingestedAt := time.Now().UTC()

	texts := make([]string, len(pieces))
	chunks := make([]store.Chunk, len(pieces))
	totalChunkRunes := 0
	for i, piece := range pieces {
		texts[i] = piece
		totalChunkRunes += len([]rune(piece))
		chunks[i] = store.Chunk{
			Text:       piece,
			Source:     filename,
			DocumentID: documentID,
			Index:      i,
			Total:      len(pieces),
			FileType:   fileType,
			IngestedAt: ingestedAt,
		}
	}

	vectors, err := ig.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, errors.ErrEmbeddingUnavailable.WithCause(err)
	}

	if err := ig.vectors.EnsureCollection(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := ig.vectors.Insert(ctx, sessionID, chunks, vectors); err != nil {
		return nil, err
	}

	return &IngestResult{
		DocumentID:   documentID,
		Filename:     filename,
		FileType:     fileType,
		ChunkCount:   len(pieces),
		CharCount:    len([]rune(text)),
		AvgChunkSize: totalChunkRunes / len(pieces),
	}, nil
}

// rollback 清理失败入库留下的文件与向量。清理失败只记录日志。
func (ig *Ingestor) rollback(ctx context.Context, sessionID, documentID, filename string) {
	if err := ig.files.Remove(sessionID, filename); err != nil {
		logger.Errorw("rollback failed to remove stored file",
			"session_id", sessionID, "filename", filename, "error", err)
	}
	if err := ig.vectors.DeleteByDocument(ctx, sessionID, documentID); err != nil {
		logger.Errorw("rollback failed to remove inserted vectors",
			"session_id", sessionID, "document_id", documentID, "error", err)
	}
}
