package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/pkg/docchat/textutil"
	"github.com/kart-io/docchat/pkg/llm"
)

const expansionPromptTemplate = `You are an AI assistant helping with document search.
Generate %d alternative phrasings of the user question below.
The alternatives should use different wording but preserve the original intent,
so that they retrieve relevant passages a literal search might miss.
Return one query per line, without numbering or commentary.

Question: %s`

// DefaultExpansionCount 默认生成的改写数量。
const DefaultExpansionCount = 3

// Expander 多查询扩展器。
// 用 LLM 将用户问题改写成若干变体，提升召回覆盖面。
// 扩展失败永远不报错，退化为只用原始查询。
type Expander struct {
	chat  llm.ChatProvider
	cache *ExpansionCache
	count int
}

// NewExpander 创建 Expander。cache 可为 nil。
func NewExpander(chat llm.ChatProvider, cache *ExpansionCache, count int) *Expander {
	if count <= 0 {
		count = DefaultExpansionCount
	}
	return &Expander{
		chat:  chat,
		cache: cache,
		count: count,
	}
}

// Expand 返回查询变体列表，原始查询始终排在第一位。
func (e *Expander) Expand(ctx context.Context, query string) []string {
	if cached := e.cache.Get(ctx, query); len(cached) > 0 {
		return cached
	}

	output, err := e.chat.Generate(ctx, fmt.Sprintf(expansionPromptTemplate, e.count, query), "")
	if err != nil {
		logger.Warnw("query expansion failed, falling back to original query", "error", err)
		return []string{query}
	}

	parsed := textutil.ParseQueryList(output)
	if len(parsed) == 0 {
		logger.Warnw("query expansion produced no variants, falling back to original query")
		return []string{query}
	}

	queries := textutil.DedupeStrings(append([]string{query}, parsed...))
	if len(queries) > e.count+1 {
		queries = queries[:e.count+1]
	}

	e.cache.Set(ctx, query, queries)
	return queries
}
