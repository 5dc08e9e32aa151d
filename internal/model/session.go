// Package model defines the persistent data structures shared across layers.
package model

import "time"

// 消息角色。system 角色消息记录上传、删除等会话事件，不参与 LLM 对话历史。
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Session 表示一个聊天会话，消息与文档内嵌存储。
type Session struct {
	ID        string     `bson:"_id" json:"id"`
	Title     string     `bson:"title" json:"title"`
	Messages  []Message  `bson:"messages" json:"messages"`
	Documents []Document `bson:"documents" json:"documents"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// Message 表示会话中的一条消息。
type Message struct {
	ID        string    `bson:"id" json:"id"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Document 表示会话中已入库的一份文档。
type Document struct {
	ID         string    `bson:"id" json:"id"`
	Filename   string    `bson:"filename" json:"filename"`
	Size       int64     `bson:"size" json:"size"`
	ChunkCount int       `bson:"chunk_count" json:"chunk_count"`
	CharCount  int       `bson:"char_count" json:"char_count"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// IsEvent 判断消息是否为会话事件（不进入 LLM 历史）。
func (m *Message) IsEvent() bool {
	return m.Role == MessageRoleSystem
}
