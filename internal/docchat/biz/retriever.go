package biz

import (
	"context"
	"sort"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/pkg/docchat/textutil"
	"github.com/kart-io/docchat/pkg/llm"
)

// 检索默认参数。
const (
	DefaultTopK      = 5
	DefaultFetchK    = 20
	DefaultMMRLambda = 0.5
)

// RetrieverConfig 检索配置。
type RetrieverConfig struct {
	TopK      int
	FetchK    int
	MMRLambda float64
}

// NewRetrieverConfig 返回默认检索配置。
func NewRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		TopK:      DefaultTopK,
		FetchK:    DefaultFetchK,
		MMRLambda: DefaultMMRLambda,
	}
}

// RetrieveOptions 单次检索的可选约束。零值表示全量多样性检索。
type RetrieveOptions struct {
	// Sources 非空时只在这些文件名对应的分块内检索。
	Sources []string

	// DisableDiversity 关闭多样性重排，退回普通最近邻检索。
	DisableDiversity bool
}

// Passage 表示一条提供给生成器的检索结果。
type Passage struct {
	Text   string
	Source string
	Score  float64
}

// Retriever 多查询检索管线。
// 扩展查询、逐变体做 MMR 检索、按内容去重后取 TopK。
// 检索永远不向调用方报错，任何失败都退化为更少（或零）结果。
type Retriever struct {
	embedder llm.EmbeddingProvider
	vectors  store.VectorStore
	expander *Expander
	config   *RetrieverConfig
}

// NewRetriever 创建 Retriever。
func NewRetriever(embedder llm.EmbeddingProvider, vectors store.VectorStore, expander *Expander, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = NewRetrieverConfig()
	}
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		expander: expander,
		config:   config,
	}
}

// Retrieve 为查询返回最多 TopK 条相关段落。opts 可为 nil。
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string, opts *RetrieveOptions) []Passage {
	if opts == nil {
		opts = &RetrieveOptions{}
	}

	queries := r.expander.Expand(ctx, query)

	vectors, err := r.embedder.Embed(ctx, queries)
	if err != nil {
		logger.Warnw("failed to embed query variants, retrieval degraded to empty",
			"session_id", sessionID, "error", err)
		return []Passage{}
	}

	// 按 text+source 去重，同一段落被多个变体召回时保留最高分。
	best := make(map[string]Passage)
	for i, vector := range vectors {
		var hits []store.SearchHit
		var err error
		if opts.DisableDiversity {
			hits, err = r.vectors.Search(ctx, sessionID, vector, r.config.TopK, opts.Sources)
		} else {
			hits, err = r.vectors.SearchDiverse(ctx, sessionID, vector, r.config.TopK, r.config.FetchK, r.config.MMRLambda, opts.Sources)
		}
		if err != nil {
			logger.Warnw("vector search failed for query variant",
				"session_id", sessionID, "variant", queries[i], "error", err)
			continue
		}

		for _, hit := range hits {
			key := textutil.HashString(hit.Text + "\x00" + hit.Source)
			if existing, ok := best[key]; !ok || hit.Score > existing.Score {
				best[key] = Passage{
					Text:   hit.Text,
					Source: hit.Source,
					Score:  hit.Score,
				}
			}
		}
	}

	passages := make([]Passage, 0, len(best))
	for _, p := range best {
		passages = append(passages, p)
	}
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })

	if len(passages) > r.config.TopK {
		passages = passages[:r.config.TopK]
	}
	return passages
}
