package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Common errors (service code 00).
var (
	// ErrInvalidParam indicates a malformed or missing request parameter.
	ErrInvalidParam = Register(&Errno{
		Code:      MakeCode(0, 1, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	})

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = Register(&Errno{
		Code:      MakeCode(0, 4, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	})

	// ErrInternal is the fallback for unclassified failures.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(0, 7, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})

	// ErrTimeout indicates a downstream call exceeded its deadline.
	ErrTimeout = Register(&Errno{
		Code:      MakeCode(0, 11, 1),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Request timed out",
		MessageZH: "请求超时",
	})
)

// docchat errors (service code 30).
var (
	// ErrUnsupportedFormat 表示上传的文件类型不受支持。
	ErrUnsupportedFormat = Register(&Errno{
		Code:      MakeCode(30, 1, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Unsupported file format",
		MessageZH: "不支持的文件格式",
	})

	// ErrEmptyContent 表示文档提取后没有任何可用文本。
	ErrEmptyContent = Register(&Errno{
		Code:      MakeCode(30, 1, 2),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Document contains no extractable text",
		MessageZH: "文档不包含可提取的文本",
	})

	// ErrSessionNotFound 表示会话不存在。
	ErrSessionNotFound = Register(&Errno{
		Code:      MakeCode(30, 4, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Session not found",
		MessageZH: "会话不存在",
	})

	// ErrDocumentNotFound 表示会话中不存在该文档。
	ErrDocumentNotFound = Register(&Errno{
		Code:      MakeCode(30, 4, 2),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Document not found",
		MessageZH: "文档不存在",
	})

	// ErrDuplicateDocument 表示会话中已存在同名文档。
	ErrDuplicateDocument = Register(&Errno{
		Code:      MakeCode(30, 5, 1),
		HTTP:      http.StatusConflict,
		GRPCCode:  codes.AlreadyExists,
		MessageEN: "A document with this name already exists in the session",
		MessageZH: "会话中已存在同名文档",
	})

	// ErrExtraction 表示文本提取失败。
	ErrExtraction = Register(&Errno{
		Code:      MakeCode(30, 7, 1),
		HTTP:      http.StatusUnprocessableEntity,
		GRPCCode:  codes.Internal,
		MessageEN: "Failed to extract text from document",
		MessageZH: "文档文本提取失败",
	})

	// ErrChunking 表示文本分块失败。
	ErrChunking = Register(&Errno{
		Code:      MakeCode(30, 7, 2),
		HTTP:      http.StatusUnprocessableEntity,
		GRPCCode:  codes.Internal,
		MessageEN: "Failed to split document into chunks",
		MessageZH: "文档分块失败",
	})

	// ErrEmbeddingUnavailable 表示向量化服务不可用。
	ErrEmbeddingUnavailable = Register(&Errno{
		Code:      MakeCode(30, 10, 1),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Embedding service unavailable",
		MessageZH: "向量化服务不可用",
	})

	// ErrIndexUnavailable 表示向量索引不可用。
	ErrIndexUnavailable = Register(&Errno{
		Code:      MakeCode(30, 10, 2),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Vector index unavailable",
		MessageZH: "向量索引不可用",
	})

	// ErrGenerationUnavailable 表示生成服务不可用。
	ErrGenerationUnavailable = Register(&Errno{
		Code:      MakeCode(30, 10, 3),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Generation service unavailable",
		MessageZH: "生成服务不可用",
	})
)
