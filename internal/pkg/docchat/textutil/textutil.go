// Package textutil 提供文本处理工具函数。
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// listMarkerRe 匹配行首的编号或项目符号，如 "1. "、"2) "、"- "、"* "。
var listMarkerRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*•]\s*)`)

// CosineSimilarity 计算两个向量的余弦相似度。
// 维度不一致或零向量返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 返回字符串的 md5 十六进制摘要。
func HashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TruncateString 按 rune 截断字符串，超长时追加省略号。
func TruncateString(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}

// ParseQueryList 从 LLM 输出中解析查询列表。
// 每行一条查询，去掉编号与项目符号前缀，跳过空行。
func ParseQueryList(output string) []string {
	var queries []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = listMarkerRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(strings.Trim(line, `"`))
		if line != "" {
			queries = append(queries, line)
		}
	}
	return queries
}

// DedupeStrings 去重并保持原有顺序。
func DedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
