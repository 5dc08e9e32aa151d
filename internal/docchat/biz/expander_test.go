package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpanderIncludesOriginalFirst(t *testing.T) {
	chat := &fakeChat{generateOutput: "1. variant one\n2. variant two\n3. variant three"}
	e := NewExpander(chat, nil, 3)

	queries := e.Expand(context.Background(), "original question")

	assert.Equal(t, "original question", queries[0])
	assert.Equal(t, []string{"original question", "variant one", "variant two", "variant three"}, queries)
}

func TestExpanderDegradesOnFailure(t *testing.T) {
	chat := &fakeChat{generateErr: fmt.Errorf("model offline")}
	e := NewExpander(chat, nil, 3)

	queries := e.Expand(context.Background(), "original question")

	assert.Equal(t, []string{"original question"}, queries)
}

func TestExpanderDegradesOnEmptyOutput(t *testing.T) {
	chat := &fakeChat{generateOutput: "\n  \n"}
	e := NewExpander(chat, nil, 3)

	queries := e.Expand(context.Background(), "original question")

	assert.Equal(t, []string{"original question"}, queries)
}

func TestExpanderDedupesVariants(t *testing.T) {
	// 模型把原始查询也吐了回来。
	chat := &fakeChat{generateOutput: "original question\nanother phrasing"}
	e := NewExpander(chat, nil, 3)

	queries := e.Expand(context.Background(), "original question")

	assert.Equal(t, []string{"original question", "another phrasing"}, queries)
}

func TestExpanderCapsVariantCount(t *testing.T) {
	chat := &fakeChat{generateOutput: "a\nb\nc\nd\ne\nf"}
	e := NewExpander(chat, nil, 2)

	queries := e.Expand(context.Background(), "q")

	// 原始查询 + 最多 count 条变体。
	assert.Len(t, queries, 3)
	assert.Equal(t, "q", queries[0])
}
