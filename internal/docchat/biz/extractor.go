package biz

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/kart-io/docchat/pkg/errors"
)

// Extractor 按文件类型提取纯文本。
// 支持 .pdf 与纯文本家族 .txt、.md、.csv、.json，其余类型返回 ErrUnsupportedFormat。
type Extractor struct{}

// NewExtractor 创建 Extractor。
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions 返回支持的扩展名（小写，含点）。
func (e *Extractor) SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md", ".csv", ".json"}
}

// Supported 判断文件名是否属于支持的类型。
func (e *Extractor) Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt", ".md", ".csv", ".json":
		return true
	}
	return false
}

// FileType 返回文件的类型标签，即小写扩展名去掉点，如 "pdf"。
func (e *Extractor) FileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Extract 从文件内容中提取纯文本。
// 提取结果为空或仅含空白时返回 ErrEmptyContent。
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = e.extractPDF(data)
	case ".txt", ".md", ".csv", ".json":
		text, err = e.extractPlainText(data)
	default:
		return "", errors.ErrUnsupportedFormat.WithMessagef("unsupported file extension %q", filepath.Ext(filename))
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.ErrEmptyContent
	}
	return text, nil
}

// extractPDF 逐页提取 PDF 文本，页间以空行分隔。
// 单页提取失败只跳过该页，全部失败才算空文档。
func (e *Extractor) extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.ErrExtraction.WithCause(err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(content) != "" {
			pages = append(pages, content)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}

// extractPlainText 按 UTF-8 解码文本，无效编码回退到 ISO-8859-1。
func (e *Extractor) extractPlainText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	// ISO-8859-1 单字节映射，解码不会失败。
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.ErrExtraction.WithCause(err)
	}
	return string(decoded), nil
}
