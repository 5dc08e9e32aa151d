// Package store 提供向量索引与会话数据的存储抽象。
package store

import (
	"context"
	"time"

	"github.com/kart-io/docchat/internal/model"
)

// Chunk 表示一个待入库的文本分块及其元数据。
type Chunk struct {
	Text       string
	Source     string // 原始文件名
	DocumentID string
	Index      int       // 在文档内的序号，从 0 开始
	Total      int       // 文档分块总数
	FileType   string    // 来源文件类型标签，如 "pdf"
	IngestedAt time.Time // 入库时间
}

// SearchHit 表示一次向量检索的单条结果。
type SearchHit struct {
	Text       string
	Source     string
	DocumentID string
	Score      float64 // 相似度，越大越相关
	Embedding  []float32
}

// VectorStore 定义按会话隔离的向量索引接口。
// 每个会话对应一个独立 collection，跨会话互不可见。
type VectorStore interface {
	// EnsureCollection 确保会话对应的 collection 存在。
	EnsureCollection(ctx context.Context, sessionID string) error

	// Insert 将分块及其向量写入会话索引。
	Insert(ctx context.Context, sessionID string, chunks []Chunk, vectors [][]float32) error

	// Search 在会话索引中检索 topK 条最相似分块。
	// sources 非空时只检索这些文件名对应的分块。
	// 会话索引不存在时返回空结果而非错误。
	Search(ctx context.Context, sessionID string, vector []float32, topK int, sources []string) ([]SearchHit, error)

	// SearchDiverse 先取 fetchK 条候选，再用 MMR 选出 k 条兼顾相关性与多样性的结果。
	// sources 的语义同 Search。
	SearchDiverse(ctx context.Context, sessionID string, vector []float32, k, fetchK int, lambda float64, sources []string) ([]SearchHit, error)

	// DeleteByDocument 删除某一文档的全部分块。
	DeleteByDocument(ctx context.Context, sessionID, documentID string) error

	// DropCollection 删除会话对应的 collection。
	DropCollection(ctx context.Context, sessionID string) error

	// Stats 返回会话索引中的分块数量。
	Stats(ctx context.Context, sessionID string) (int64, error)

	// Close 释放底层连接。
	Close(ctx context.Context) error
}

// SessionStore 定义会话持久化接口。
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]model.Session, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error

	// AppendMessage 追加一条消息并刷新会话的 updated_at。
	AppendMessage(ctx context.Context, id string, msg model.Message) error

	// AddDocument 记录一份已入库文档。
	AddDocument(ctx context.Context, id string, doc model.Document) error

	// RemoveDocument 移除文档记录。
	RemoveDocument(ctx context.Context, id, docID string) error
}

// FileStore 定义原始文档文件的存储接口。
type FileStore interface {
	// Save 保存文件并返回落盘路径。
	Save(sessionID, filename string, data []byte) (string, error)

	// Path 返回已保存文件的落盘路径，文件不存在时返回 ErrDocumentNotFound。
	Path(sessionID, filename string) (string, error)

	// Remove 删除单个文件。文件不存在不报错。
	Remove(sessionID, filename string) error

	// RemoveSession 删除会话的整个存储目录。
	RemoveSession(sessionID string) error
}
