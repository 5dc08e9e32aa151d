package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/docchat/textutil"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/llm"
)

// fakeEmbedder 确定性向量生成，便于断言检索顺序。
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	dim     int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: make(map[string][]float32), dim: 4}
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	// 基于内容哈希的伪随机单位向量。
	h := textutil.HashString(text)
	v := make([]float32, f.dim)
	for i := 0; i < f.dim; i++ {
		v[i] = float32(h[i]%16) + 1
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

// fakeChat 脚本化的 Chat 供应商。
type fakeChat struct {
	generateOutput string
	generateErr    error
	streamChunks   []llm.StreamChunk
	streamErr      error
	lastMessages   []llm.Message
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.lastMessages = messages
	return f.generateOutput, f.generateErr
}

func (f *fakeChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.generateOutput, nil
}

func (f *fakeChat) ChatStream(_ context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	f.lastMessages = messages
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan llm.StreamChunk, len(f.streamChunks))
	for _, c := range f.streamChunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeChat) Name() string { return "fake" }

// fakeVectorStore 内存版 VectorStore，按会话隔离。
type fakeVectorStore struct {
	mu          sync.Mutex
	collections map[string][]storedChunk
	insertErr   error
	searchErr   error
	closed      bool
	dropOrder   []string
}

type storedChunk struct {
	chunk  store.Chunk
	vector []float32
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{collections: make(map[string][]storedChunk)}
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[sessionID]; !ok {
		f.collections[sessionID] = []storedChunk{}
	}
	return nil
}

func (f *fakeVectorStore) Insert(_ context.Context, sessionID string, chunks []store.Chunk, vectors [][]float32) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range chunks {
		f.collections[sessionID] = append(f.collections[sessionID], storedChunk{chunk: chunks[i], vector: vectors[i]})
	}
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, sessionID string, vector []float32, topK int, sources []string) ([]store.SearchHit, error) {
	return f.SearchDiverse(ctx, sessionID, vector, topK, topK, 1.0, sources)
}

func (f *fakeVectorStore) SearchDiverse(_ context.Context, sessionID string, vector []float32, k, fetchK int, lambda float64, sources []string) ([]store.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.collections[sessionID]
	if !ok {
		return []store.SearchHit{}, nil
	}

	allowed := make(map[string]bool, len(sources))
	for _, src := range sources {
		allowed[src] = true
	}

	hits := make([]store.SearchHit, 0, len(stored))
	for _, sc := range stored {
		if len(allowed) > 0 && !allowed[sc.chunk.Source] {
			continue
		}
		hits = append(hits, store.SearchHit{
			Text:       sc.chunk.Text,
			Source:     sc.chunk.Source,
			DocumentID: sc.chunk.DocumentID,
			Score:      textutil.CosineSimilarity(vector, sc.vector),
			Embedding:  sc.vector,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeVectorStore) DeleteByDocument(_ context.Context, sessionID, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.collections[sessionID]
	kept := stored[:0]
	for _, sc := range stored {
		if sc.chunk.DocumentID != documentID {
			kept = append(kept, sc)
		}
	}
	f.collections[sessionID] = kept
	return nil
}

func (f *fakeVectorStore) DropCollection(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, sessionID)
	f.dropOrder = append(f.dropOrder, sessionID)
	return nil
}

func (f *fakeVectorStore) Stats(_ context.Context, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.collections[sessionID])), nil
}

func (f *fakeVectorStore) Close(_ context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeVectorStore) count(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[sessionID])
}

// fakeSessionStore 内存版 SessionStore。
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionStore) addSession(id string) *model.Session {
	now := time.Now().UTC()
	s := &model.Session{ID: id, Title: "New Chat", Messages: []model.Message{}, Documents: []model.Document{}, CreatedAt: now, UpdatedAt: now}
	f.sessions[id] = s
	return s
}

func (f *fakeSessionStore) Create(_ context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeSessionStore) List(_ context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSessionStore) Rename(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}
	s.Title = title
	return nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return errors.ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) AppendMessage(_ context.Context, id string, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

func (f *fakeSessionStore) AddDocument(_ context.Context, id string, doc model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}
	s.Documents = append(s.Documents, doc)
	return nil
}

func (f *fakeSessionStore) RemoveDocument(_ context.Context, id, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}
	kept := s.Documents[:0]
	for _, d := range s.Documents {
		if d.ID != docID {
			kept = append(kept, d)
		}
	}
	s.Documents = kept
	return nil
}

func (f *fakeSessionStore) messages(id string) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.sessions[id].Messages...)
}

// fakeFileStore 内存版 FileStore。
type fakeFileStore struct {
	mu    sync.Mutex
	files map[string][]byte // key: sessionID/filename
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[string][]byte)}
}

func fileKey(sessionID, filename string) string {
	return fmt.Sprintf("%s/%s", sessionID, filename)
}

func (f *fakeFileStore) Save(sessionID, filename string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fileKey(sessionID, filename)
	f.files[key] = data
	return key, nil
}

func (f *fakeFileStore) Path(sessionID, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fileKey(sessionID, filename)
	if _, ok := f.files[key]; !ok {
		return "", errors.ErrDocumentNotFound
	}
	return key, nil
}

func (f *fakeFileStore) Remove(sessionID, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileKey(sessionID, filename))
	return nil
}

func (f *fakeFileStore) RemoveSession(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := sessionID + "/"
	for k := range f.files {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(f.files, k)
		}
	}
	return nil
}

func (f *fakeFileStore) has(sessionID, filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[fileKey(sessionID, filename)]
	return ok
}
