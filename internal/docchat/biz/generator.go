package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/llm"
)

// 生成默认参数。
const (
	DefaultHistoryLimit = 10
	maxTitleRunes       = 50
	defaultTitle        = "New Chat"
)

const defaultSystemPreamble = `You are a helpful assistant that answers questions about the user's uploaded documents.
Ground every answer in the provided context passages and cite the source filename when you use one.
If the context does not contain the answer, say so instead of guessing.`

const titlePrompt = `Generate a short title (3 to 6 words) summarizing this conversation opener.
Return only the title, without quotes or punctuation at the end.

Message: %s`

// GeneratorConfig 生成配置。
type GeneratorConfig struct {
	SystemPreamble string
	HistoryLimit   int
}

// NewGeneratorConfig 返回默认生成配置。
func NewGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		SystemPreamble: defaultSystemPreamble,
		HistoryLimit:   DefaultHistoryLimit,
	}
}

// Generator 回答生成器。
// 负责组装 system prompt 与对话历史，并以流式方式产出回答。
type Generator struct {
	chat   llm.ChatProvider
	config *GeneratorConfig
}

// NewGenerator 创建 Generator。
func NewGenerator(chat llm.ChatProvider, config *GeneratorConfig) *Generator {
	if config == nil {
		config = NewGeneratorConfig()
	}
	if config.SystemPreamble == "" {
		config.SystemPreamble = defaultSystemPreamble
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	return &Generator{
		chat:   chat,
		config: config,
	}
}

// BuildSystemPrompt 组装 system prompt: 前导指令、文档清单、带来源标注的检索段落。
func (g *Generator) BuildSystemPrompt(documents []model.Document, passages []Passage) string {
	var b strings.Builder
	b.WriteString(g.config.SystemPreamble)

	if len(documents) > 0 {
		b.WriteString("\n\nDocuments in this session:\n")
		for _, doc := range documents {
			fmt.Fprintf(&b, "- %s\n", doc.Filename)
		}
	}

	if len(passages) > 0 {
		b.WriteString("\nContext passages:\n")
		for _, p := range passages {
			fmt.Fprintf(&b, "\n[Source: %s]\n%s\n", p.Source, p.Text)
		}
	} else {
		b.WriteString("\nNo relevant context passages were found for this question.")
	}

	return b.String()
}

// BuildMessages 组装发给 LLM 的消息列表。
// 历史只取最近 HistoryLimit 条，且排除会话事件消息。
func (g *Generator) BuildMessages(session *model.Session, passages []Passage, query string) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: g.BuildSystemPrompt(session.Documents, passages)},
	}

	history := make([]model.Message, 0, len(session.Messages))
	for _, msg := range session.Messages {
		if msg.IsEvent() {
			continue
		}
		history = append(history, msg)
	}
	if len(history) > g.config.HistoryLimit {
		history = history[len(history)-g.config.HistoryLimit:]
	}

	for _, msg := range history {
		messages = append(messages, llm.Message{
			Role:    llm.Role(msg.Role),
			Content: msg.Content,
		})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return messages
}

// Stream 流式生成回答，返回增量 token 通道。
// 中途出错时把 "\n\n[Error: ...]" 作为最后一个增量发出后关闭通道，
// 调用方据此持久化已生成的部分内容。启动失败返回 ErrGenerationUnavailable。
func (g *Generator) Stream(ctx context.Context, messages []llm.Message) (<-chan string, error) {
	chunks, err := g.chat.ChatStream(ctx, messages)
	if err != nil {
		return nil, errors.ErrGenerationUnavailable.WithCause(err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Err != nil {
				logger.Errorw("generation failed mid-stream", "error", chunk.Err)
				// 无条件发送错误标注，调用方即使在连接断开后也会读空通道，
				// 保证持久化的部分回答带上错误信息。
				out <- fmt.Sprintf("\n\n[Error: %v]", chunk.Err)
				return
			}
			if chunk.Done {
				return
			}
			if chunk.Content == "" {
				continue
			}
			select {
			case out <- chunk.Content:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// GenerateTitle 为会话生成简短标题。
// 生成失败或结果为空时回退到默认标题。
func (g *Generator) GenerateTitle(ctx context.Context, firstMessage string) string {
	raw, err := g.chat.Generate(ctx, fmt.Sprintf(titlePrompt, firstMessage), "")
	if err != nil {
		logger.Warnw("title generation failed, using default title", "error", err)
		return defaultTitle
	}

	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	if title == "" {
		return defaultTitle
	}
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	return title
}
