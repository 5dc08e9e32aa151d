package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"
)

const (
	expansionCachePrefix = "docchat:expansion:"
	expansionCacheTTL    = 30 * time.Minute
)

// ExpansionCache 缓存查询扩展结果，减少重复的 LLM 调用。
// 缓存故障只记录日志，不影响主流程。
type ExpansionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewExpansionCache 创建 ExpansionCache。
func NewExpansionCache(client *redis.Client) *ExpansionCache {
	return &ExpansionCache{
		client: client,
		ttl:    expansionCacheTTL,
	}
}

func expansionCacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return expansionCachePrefix + hex.EncodeToString(sum[:])
}

// Get 查询缓存，未命中或出错返回 nil。
func (c *ExpansionCache) Get(ctx context.Context, query string) []string {
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, expansionCacheKey(query)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warnw("expansion cache get failed", "error", err)
		}
		return nil
	}

	var queries []string
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		logger.Warnw("expansion cache decode failed", "error", err)
		return nil
	}
	return queries
}

// Set 写入缓存，失败只记录日志。
func (c *ExpansionCache) Set(ctx context.Context, query string, queries []string) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(queries)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, expansionCacheKey(query), raw, c.ttl).Err(); err != nil {
		logger.Warnw("expansion cache set failed", "error", err)
	}
}
