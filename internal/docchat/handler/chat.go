package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/biz"
)

// ChatHandler 对话接口，以 SSE 流式返回回答。
type ChatHandler struct {
	service *biz.ChatService
}

// NewChatHandler 创建 ChatHandler。
func NewChatHandler(service *biz.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// ChatRequest 对话请求。
// sources 非空时只在这些文件内检索；plain 为 true 时关闭多样性重排。
type ChatRequest struct {
	Message string   `json:"message" binding:"required"`
	Sources []string `json:"sources,omitempty"`
	Plain   bool     `json:"plain,omitempty"`
}

type tokenEvent struct {
	Token string `json:"token"`
}

// Send 处理一轮对话。
// 回答以 SSE 增量推送，每个 token 一帧 data: {"token": "..."}，
// 结束时推送 data: [DONE]。
func (h *ChatHandler) Send(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tokens, err := h.service.Chat(c.Request.Context(), c.Param("id"), req.Message, &biz.RetrieveOptions{
		Sources:          req.Sources,
		DisableDiversity: req.Plain,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for token := range tokens {
		payload, marshalErr := json.Marshal(tokenEvent{Token: token})
		if marshalErr != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}
