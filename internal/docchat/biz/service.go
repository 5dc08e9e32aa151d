// Package biz 实现文档对话的核心业务逻辑。
package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
)

// ChatService 组合入库、检索与生成，对外提供会话级操作。
// 所有依赖通过构造函数注入。
type ChatService struct {
	sessions  store.SessionStore
	vectors   store.VectorStore
	files     store.FileStore
	ingestor  *Ingestor
	retriever *Retriever
	generator *Generator
}

// NewChatService 创建 ChatService。
func NewChatService(
	sessions store.SessionStore,
	vectors store.VectorStore,
	files store.FileStore,
	ingestor *Ingestor,
	retriever *Retriever,
	generator *Generator,
) *ChatService {
	return &ChatService{
		sessions:  sessions,
		vectors:   vectors,
		files:     files,
		ingestor:  ingestor,
		retriever: retriever,
		generator: generator,
	}
}

// CreateSession 创建新会话。
func (s *ChatService) CreateSession(ctx context.Context) (*model.Session, error) {
	now := time.Now().UTC()
	session := &model.Session{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		Messages:  []model.Message{},
		Documents: []model.Document{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	logger.Infow("session created", "session_id", session.ID)
	return session, nil
}

// ListSessions 按更新时间倒序返回全部会话。
func (s *ChatService) ListSessions(ctx context.Context) ([]model.Session, error) {
	return s.sessions.List(ctx)
}

// GetSession 返回单个会话。
func (s *ChatService) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return s.sessions.Get(ctx, id)
}

// RenameSession 修改会话标题。
func (s *ChatService) RenameSession(ctx context.Context, id, title string) error {
	return s.sessions.Rename(ctx, id, title)
}

// DeleteSession 删除会话及其全部附属数据。
// 先释放向量索引，再清理存储目录，最后删除会话记录。
func (s *ChatService) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.sessions.Get(ctx, id); err != nil {
		return err
	}

	if err := s.vectors.DropCollection(ctx, id); err != nil {
		return err
	}
	if err := s.files.RemoveSession(id); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}

	logger.Infow("session deleted", "session_id", id)
	return nil
}

// UploadDocuments 批量入库文件，单个失败不影响其余文件。
// 每个成功入库的文件都会追加一条会话事件消息。
func (s *ChatService) UploadDocuments(ctx context.Context, sessionID string, files map[string][]byte, order []string) []BatchResult {
	results := s.ingestor.IngestBatch(ctx, sessionID, files, order)

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		event := model.Message{
			ID:        uuid.NewString(),
			Role:      model.MessageRoleSystem,
			Content:   fmt.Sprintf("Uploaded document: %s", r.Filename),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.sessions.AppendMessage(ctx, sessionID, event); err != nil {
			logger.Warnw("failed to record upload event",
				"session_id", sessionID, "filename", r.Filename, "error", err)
		}
	}

	return results
}

// ListDocuments 返回会话内全部文档。
func (s *ChatService) ListDocuments(ctx context.Context, sessionID string) ([]model.Document, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Documents, nil
}

// GetDocumentFile 返回文档的文件名与原始文件的落盘路径。
func (s *ChatService) GetDocumentFile(ctx context.Context, sessionID, documentID string) (string, string, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", "", err
	}

	for _, doc := range session.Documents {
		if doc.ID != documentID {
			continue
		}
		path, err := s.files.Path(sessionID, doc.Filename)
		if err != nil {
			return "", "", err
		}
		return doc.Filename, path, nil
	}
	return "", "", errors.ErrDocumentNotFound
}

// DeleteDocument 删除单个文档: 向量、磁盘文件、元数据记录，并追加事件消息。
func (s *ChatService) DeleteDocument(ctx context.Context, sessionID, documentID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	var target *model.Document
	for i := range session.Documents {
		if session.Documents[i].ID == documentID {
			target = &session.Documents[i]
			break
		}
	}
	if target == nil {
		return errors.ErrDocumentNotFound
	}

	if err := s.vectors.DeleteByDocument(ctx, sessionID, documentID); err != nil {
		return err
	}
	if err := s.files.Remove(sessionID, target.Filename); err != nil {
		return err
	}
	if err := s.sessions.RemoveDocument(ctx, sessionID, documentID); err != nil {
		return err
	}

	event := model.Message{
		ID:        uuid.NewString(),
		Role:      model.MessageRoleSystem,
		Content:   fmt.Sprintf("Deleted document: %s", target.Filename),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.AppendMessage(ctx, sessionID, event); err != nil {
		logger.Warnw("failed to record delete event",
			"session_id", sessionID, "filename", target.Filename, "error", err)
	}

	logger.Infow("document deleted",
		"session_id", sessionID, "document_id", documentID, "filename", target.Filename)
	return nil
}

// Chat 处理一轮对话，返回增量 token 通道。retrieveOpts 可为 nil。
// 用户消息先持久化；助手回复在流结束后持久化，即使流中途出错或客户端断开，
// 已生成的部分内容（含错误标注）也会入库。
func (s *ChatService) Chat(ctx context.Context, sessionID, query string, retrieveOpts *RetrieveOptions) (<-chan string, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	isFirstUserMessage := true
	for _, msg := range session.Messages {
		if msg.Role == model.MessageRoleUser {
			isFirstUserMessage = false
			break
		}
	}

	userMsg := model.Message{
		ID:        uuid.NewString(),
		Role:      model.MessageRoleUser,
		Content:   query,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}

	passages := s.retriever.Retrieve(ctx, sessionID, query, retrieveOpts)
	messages := s.generator.BuildMessages(session, passages, query)

	tokens, err := s.generator.Stream(ctx, messages)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)

		var answer string
		for token := range tokens {
			answer += token
			select {
			case out <- token:
			case <-ctx.Done():
				// 客户端断开，继续收尾以持久化已生成的部分。
			}
		}

		s.finishTurn(ctx, sessionID, answer, query, isFirstUserMessage)
	}()

	return out, nil
}

// finishTurn 持久化助手回复，并在首轮对话后生成会话标题。
// 使用不随请求取消的 context，保证断开连接后仍能落库。
func (s *ChatService) finishTurn(ctx context.Context, sessionID, answer, query string, isFirstUserMessage bool) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if answer != "" {
		assistantMsg := model.Message{
			ID:        uuid.NewString(),
			Role:      model.MessageRoleAssistant,
			Content:   answer,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.sessions.AppendMessage(persistCtx, sessionID, assistantMsg); err != nil {
			logger.Errorw("failed to persist assistant message",
				"session_id", sessionID, "error", err)
		}
	}

	if isFirstUserMessage {
		title := s.generator.GenerateTitle(persistCtx, query)
		if err := s.sessions.Rename(persistCtx, sessionID, title); err != nil {
			logger.Warnw("failed to set session title",
				"session_id", sessionID, "error", err)
		}
	}
}
