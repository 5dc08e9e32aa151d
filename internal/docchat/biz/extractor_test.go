package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/pkg/errors"
)

func TestExtractorSupported(t *testing.T) {
	e := NewExtractor()

	assert.True(t, e.Supported("contract.pdf"))
	assert.True(t, e.Supported("NOTES.TXT"))
	assert.True(t, e.Supported("readme.md"))
	assert.True(t, e.Supported("table.csv"))
	assert.True(t, e.Supported("data.json"))
	assert.False(t, e.Supported("image.png"))
	assert.False(t, e.Supported("archive.zip"))
	assert.False(t, e.Supported("noextension"))
}

func TestExtractorFileType(t *testing.T) {
	e := NewExtractor()

	assert.Equal(t, "pdf", e.FileType("contract.pdf"))
	assert.Equal(t, "txt", e.FileType("NOTES.TXT"))
	assert.Equal(t, "csv", e.FileType("table.csv"))
	assert.Equal(t, "", e.FileType("noextension"))
}

func TestExtractorUnsupportedFormat(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("image.png", []byte("binary"))
	assert.True(t, errors.ErrUnsupportedFormat.Is(err))
}

func TestExtractorPlainText(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract("notes.txt", []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	text, err = e.Extract("notes.md", []byte("# Heading\n\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nbody", text)

	text, err = e.Extract("table.csv", []byte("name,age\nalice,30"))
	require.NoError(t, err)
	assert.Equal(t, "name,age\nalice,30", text)

	text, err = e.Extract("data.json", []byte(`{"key": "value"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"key": "value"}`, text)
}

func TestExtractorPlainTextEncodingFallback(t *testing.T) {
	e := NewExtractor()

	// "café" 按 ISO-8859-1 编码，0xE9 不是合法 UTF-8。
	latin1 := []byte{'c', 'a', 'f', 0xE9}
	text, err := e.Extract("notes.txt", latin1)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestExtractorEmptyContent(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("empty.txt", []byte(""))
	assert.True(t, errors.ErrEmptyContent.Is(err))

	_, err = e.Extract("blank.txt", []byte("   \n\t\n  "))
	assert.True(t, errors.ErrEmptyContent.Is(err))
}

func TestExtractorCorruptPDF(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("broken.pdf", []byte("this is not a pdf"))
	assert.True(t, errors.ErrExtraction.Is(err))
}
