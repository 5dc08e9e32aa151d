package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/llm"
)

type serviceFixture struct {
	service  *ChatService
	chat     *fakeChat
	embedder *fakeEmbedder
	vectors  *fakeVectorStore
	sessions *fakeSessionStore
	files    *fakeFileStore
}

func newTestService(t *testing.T) *serviceFixture {
	t.Helper()

	chat := &fakeChat{}
	embedder := newFakeEmbedder()
	vectors := newFakeVectorStore()
	sessions := newFakeSessionStore()
	files := newFakeFileStore()

	chunker, err := NewChunker(100, 20)
	require.NoError(t, err)

	ingestor := NewIngestor(NewExtractor(), chunker, embedder, vectors, sessions, files)
	expander := NewExpander(chat, nil, 3)
	retriever := NewRetriever(embedder, vectors, expander, nil)
	generator := NewGenerator(chat, nil)

	return &serviceFixture{
		service:  NewChatService(sessions, vectors, files, ingestor, retriever, generator),
		chat:     chat,
		embedder: embedder,
		vectors:  vectors,
		sessions: sessions,
		files:    files,
	}
}

func drain(t *testing.T, tokens <-chan string) string {
	t.Helper()
	return collectTokens(t, tokens)
}

func TestCreateAndGetSession(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()

	session, err := fx.service.CreateSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "New Chat", session.Title)

	got, err := fx.service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	_, err = fx.service.GetSession(ctx, "missing")
	assert.True(t, errors.ErrSessionNotFound.Is(err))
}

func TestRenameSession(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")

	require.NoError(t, fx.service.RenameSession(ctx, "sess", "Tax Questions"))

	got, err := fx.service.GetSession(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "Tax Questions", got.Title)
}

func TestDeleteSessionCleansUpEverything(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")

	results := fx.service.UploadDocuments(ctx, "sess", map[string][]byte{
		"notes.txt": []byte("document content"),
	}, []string{"notes.txt"})
	require.NoError(t, results[0].Err)

	require.NoError(t, fx.service.DeleteSession(ctx, "sess"))

	_, err := fx.service.GetSession(ctx, "sess")
	assert.True(t, errors.ErrSessionNotFound.Is(err))
	assert.False(t, fx.files.has("sess", "notes.txt"))
	assert.Equal(t, 0, fx.vectors.count("sess"))
	// 索引先于文件与记录释放。
	assert.Equal(t, []string{"sess"}, fx.vectors.dropOrder)
}

func TestDeleteSessionNotFound(t *testing.T) {
	fx := newTestService(t)

	err := fx.service.DeleteSession(context.Background(), "missing")
	assert.True(t, errors.ErrSessionNotFound.Is(err))
	// 未命中时不应去碰向量索引。
	assert.Empty(t, fx.vectors.dropOrder)
}

func TestUploadDocumentsRecordsEvents(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")

	results := fx.service.UploadDocuments(ctx, "sess", map[string][]byte{
		"notes.txt": []byte("valid content"),
		"bad.jpg":   []byte("jpeg"),
	}, []string{"notes.txt", "bad.jpg"})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)

	// 只有成功的文件产生事件消息。
	msgs := fx.sessions.messages("sess")
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "Uploaded document: notes.txt", msgs[0].Content)
	assert.True(t, msgs[0].IsEvent())
}

func TestListDocuments(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")

	docs, err := fx.service.ListDocuments(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, docs)

	fx.service.UploadDocuments(ctx, "sess", map[string][]byte{
		"notes.txt": []byte("valid content"),
	}, []string{"notes.txt"})

	docs, err = fx.service.ListDocuments(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.txt", docs[0].Filename)
}

func TestDeleteDocument(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")

	results := fx.service.UploadDocuments(ctx, "sess", map[string][]byte{
		"notes.txt": []byte("document content"),
	}, []string{"notes.txt"})
	require.NoError(t, results[0].Err)
	docID := results[0].Result.DocumentID

	require.NoError(t, fx.service.DeleteDocument(ctx, "sess", docID))

	assert.Equal(t, 0, fx.vectors.count("sess"))
	assert.False(t, fx.files.has("sess", "notes.txt"))

	docs, err := fx.service.ListDocuments(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, docs)

	msgs := fx.sessions.messages("sess")
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Deleted document: notes.txt", msgs[len(msgs)-1].Content)
}

func TestGetDocumentFile(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")

	results := fx.service.UploadDocuments(ctx, "sess", map[string][]byte{
		"notes.txt": []byte("document content"),
	}, []string{"notes.txt"})
	require.NoError(t, results[0].Err)
	docID := results[0].Result.DocumentID

	filename, path, err := fx.service.GetDocumentFile(ctx, "sess", docID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", filename)
	assert.NotEmpty(t, path)

	_, _, err = fx.service.GetDocumentFile(ctx, "sess", "no-such-doc")
	assert.True(t, errors.ErrDocumentNotFound.Is(err))

	_, _, err = fx.service.GetDocumentFile(ctx, "missing", docID)
	assert.True(t, errors.ErrSessionNotFound.Is(err))
}

func TestDeleteDocumentNotFound(t *testing.T) {
	fx := newTestService(t)
	fx.sessions.addSession("sess")

	err := fx.service.DeleteDocument(context.Background(), "sess", "no-such-doc")
	assert.True(t, errors.ErrDocumentNotFound.Is(err))
}

func TestChatPersistsUserAndAssistantMessages(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")
	fx.chat.streamChunks = []llm.StreamChunk{
		{Content: "The answer "},
		{Content: "is 42."},
		{Done: true},
	}
	fx.chat.generateOutput = "Meaning Of Life"

	tokens, err := fx.service.Chat(ctx, "sess", "what is the answer?", nil)
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", drain(t, tokens))

	msgs := fx.sessions.messages("sess")
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "what is the answer?", msgs[0].Content)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, "The answer is 42.", msgs[1].Content)
}

func TestChatFirstTurnGeneratesTitle(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")
	fx.chat.streamChunks = []llm.StreamChunk{{Content: "hi"}, {Done: true}}
	fx.chat.generateOutput = "Greeting Exchange"

	tokens, err := fx.service.Chat(ctx, "sess", "hello", nil)
	require.NoError(t, err)
	drain(t, tokens)

	got, err := fx.service.GetSession(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "Greeting Exchange", got.Title)
}

func TestChatSecondTurnKeepsTitle(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	s := fx.sessions.addSession("sess")
	s.Title = "Existing Title"
	s.Messages = []model.Message{
		{ID: "m1", Role: model.MessageRoleUser, Content: "earlier question"},
		{ID: "m2", Role: model.MessageRoleAssistant, Content: "earlier answer"},
	}
	fx.chat.streamChunks = []llm.StreamChunk{{Content: "ok"}, {Done: true}}
	fx.chat.generateOutput = "Should Not Be Used"

	tokens, err := fx.service.Chat(ctx, "sess", "followup", nil)
	require.NoError(t, err)
	drain(t, tokens)

	got, err := fx.service.GetSession(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "Existing Title", got.Title)
}

func TestChatPersistsPartialAnswerOnMidStreamError(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")
	fx.chat.streamChunks = []llm.StreamChunk{
		{Content: "partial "},
		{Content: "answer"},
		{Err: fmt.Errorf("connection reset")},
	}

	tokens, err := fx.service.Chat(ctx, "sess", "question", nil)
	require.NoError(t, err)

	got := drain(t, tokens)
	assert.Equal(t, "partial answer\n\n[Error: connection reset]", got)

	msgs := fx.sessions.messages("sess")
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, "partial answer\n\n[Error: connection reset]", msgs[1].Content)
}

func TestChatStreamStartFailure(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")
	fx.chat.streamErr = fmt.Errorf("dial refused")

	_, err := fx.service.Chat(ctx, "sess", "question", nil)
	assert.True(t, errors.ErrGenerationUnavailable.Is(err))

	// 用户消息在失败前已经入库。
	msgs := fx.sessions.messages("sess")
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
}

func TestChatSessionNotFound(t *testing.T) {
	fx := newTestService(t)

	_, err := fx.service.Chat(context.Background(), "missing", "question", nil)
	assert.True(t, errors.ErrSessionNotFound.Is(err))
}

func TestChatUsesRetrievedContext(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	fx.sessions.addSession("sess")

	results := fx.service.UploadDocuments(ctx, "sess", map[string][]byte{
		"facts.txt": []byte("the capital of France is Paris"),
	}, []string{"facts.txt"})
	require.NoError(t, results[0].Err)

	fx.chat.streamChunks = []llm.StreamChunk{{Content: "Paris."}, {Done: true}}

	tokens, err := fx.service.Chat(ctx, "sess", "what is the capital of France?", nil)
	require.NoError(t, err)
	drain(t, tokens)

	// system prompt 带上了检索到的段落及来源。
	require.NotEmpty(t, fx.chat.lastMessages)
	system := fx.chat.lastMessages[0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "[Source: facts.txt]")
	assert.Contains(t, system.Content, "the capital of France is Paris")
}
