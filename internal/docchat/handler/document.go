package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/pkg/errors"
)

// DocumentHandler 文档管理接口。
type DocumentHandler struct {
	service *biz.ChatService
}

// NewDocumentHandler 创建 DocumentHandler。
func NewDocumentHandler(service *biz.ChatService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// UploadResult 单个文件的上传结果。
type UploadResult struct {
	Filename     string `json:"filename"`
	DocumentID   string `json:"document_id,omitempty"`
	FileType     string `json:"file_type,omitempty"`
	ChunkCount   int    `json:"chunk_count,omitempty"`
	CharCount    int    `json:"char_count,omitempty"`
	AvgChunkSize int    `json:"avg_chunk_size,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Upload 批量上传并入库文档，multipart 字段名为 files。
// 单个文件失败不影响其余文件，逐个返回结果。
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		bindError(c, err)
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		writeError(c, errors.ErrInvalidParam.WithMessage("no files provided, use multipart field \"files\""))
		return
	}

	files := make(map[string][]byte, len(headers))
	order := make([]string, 0, len(headers))
	for _, header := range headers {
		f, openErr := header.Open()
		if openErr != nil {
			writeError(c, errors.ErrInvalidParam.WithCause(openErr))
			return
		}
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			writeError(c, errors.ErrInvalidParam.WithCause(readErr))
			return
		}
		files[header.Filename] = data
		order = append(order, header.Filename)
	}

	results := h.service.UploadDocuments(c.Request.Context(), c.Param("id"), files, order)

	out := make([]UploadResult, 0, len(results))
	for _, r := range results {
		item := UploadResult{Filename: r.Filename}
		if r.Err != nil {
			e := errors.FromError(r.Err)
			item.Error = e.Message(c.GetHeader("Accept-Language"))
		} else {
			item.DocumentID = r.Result.DocumentID
			item.FileType = r.Result.FileType
			item.ChunkCount = r.Result.ChunkCount
			item.CharCount = r.Result.CharCount
			item.AvgChunkSize = r.Result.AvgChunkSize
		}
		out = append(out, item)
	}

	writeData(c, http.StatusOK, out)
}

// List 返回会话内全部文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, docs)
}

// Fetch 返回文档的原始文件内容，供客户端内联预览。
func (h *DocumentHandler) Fetch(c *gin.Context) {
	filename, path, err := h.service.GetDocumentFile(c.Request.Context(), c.Param("id"), c.Param("docID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.File(path)
}

// Delete 删除单个文档及其向量与磁盘文件。
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id"), c.Param("docID")); err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, nil)
}
