package biz

import (
	"strings"
	"unicode/utf8"

	"github.com/kart-io/docchat/pkg/errors"
)

// 默认分块参数。
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators 分隔符层级，从段落到单字符。
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker 递归字符分块器。
// 优先在段落、行、单词等自然边界切分，块间保留重叠以维持上下文连续性。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker 创建分块器。overlap 必须小于 size。
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, errors.ErrInvalidParam.WithMessage("chunk size must be positive")
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, errors.ErrInvalidParam.WithMessage("chunk overlap must be non-negative and less than chunk size")
	}

	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}, nil
}

// ChunkSize 返回块大小。
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap 返回块重叠大小。
func (c *Chunker) ChunkOverlap() int { return c.chunkOverlap }

// Split 将文本切分为若干块。
// 输入为空或仅含空白时返回 ErrChunking。
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.ErrChunking.WithMessage("input text is empty")
	}

	chunks := c.splitRecursive(text, c.separators)

	// 过滤合并过程中产生的空块。
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	if len(out) == 0 {
		return nil, errors.ErrChunking.WithMessage("no chunks produced")
	}
	return out, nil
}

// splitRecursive 按分隔符层级递归切分。
func (c *Chunker) splitRecursive(text string, separators []string) []string {
	finalChunks := make([]string, 0)

	// 选择第一个在文本中出现的分隔符。
	separator := separators[len(separators)-1]
	var newSeparators []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			newSeparators = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		// 无任何分隔符可用，硬切。
		return c.hardCut(text)
	}
	splits = strings.Split(text, separator)

	goodSplits := make([]string, 0)
	for _, split := range splits {
		if utf8.RuneCountInString(split) < c.chunkSize {
			goodSplits = append(goodSplits, split)
			continue
		}

		if len(goodSplits) > 0 {
			finalChunks = append(finalChunks, c.mergeSplits(goodSplits, separator)...)
			goodSplits = goodSplits[:0]
		}

		if len(newSeparators) == 0 {
			finalChunks = append(finalChunks, c.hardCut(split)...)
		} else {
			finalChunks = append(finalChunks, c.splitRecursive(split, newSeparators)...)
		}
	}

	if len(goodSplits) > 0 {
		finalChunks = append(finalChunks, c.mergeSplits(goodSplits, separator)...)
	}

	return finalChunks
}

// mergeSplits 将小块合并到接近 chunkSize，块间按重叠窗口滑动。
func (c *Chunker) mergeSplits(splits []string, separator string) []string {
	separatorLen := utf8.RuneCountInString(separator)

	docs := make([]string, 0)
	currentDoc := make([]string, 0)
	total := 0

	for _, split := range splits {
		length := utf8.RuneCountInString(split)

		if total+length+len(currentDoc)*separatorLen > c.chunkSize {
			if len(currentDoc) > 0 {
				if doc := strings.TrimSpace(strings.Join(currentDoc, separator)); doc != "" {
					docs = append(docs, doc)
				}

				// 弹出队头直到剩余内容不超过重叠窗口。
				for total > c.chunkOverlap || (total+length+len(currentDoc)*separatorLen > c.chunkSize && total > 0) {
					total -= utf8.RuneCountInString(currentDoc[0]) + separatorLen
					currentDoc = currentDoc[1:]
				}
			}
		}

		currentDoc = append(currentDoc, split)
		total += length + separatorLen
	}

	if len(currentDoc) > 0 {
		if doc := strings.TrimSpace(strings.Join(currentDoc, separator)); doc != "" {
			docs = append(docs, doc)
		}
	}

	return docs
}

// hardCut 对没有任何分隔符的超长片段按 rune 窗口硬切，窗口间保留重叠。
func (c *Chunker) hardCut(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
