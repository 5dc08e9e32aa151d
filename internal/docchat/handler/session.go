package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/biz"
)

// SessionHandler 会话管理接口。
type SessionHandler struct {
	service *biz.ChatService
}

// NewSessionHandler 创建 SessionHandler。
func NewSessionHandler(service *biz.ChatService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Create 创建新会话。
func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.service.CreateSession(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, session)
}

// List 按更新时间倒序返回全部会话。
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, sessions)
}

// Get 返回单个会话，含完整消息与文档列表。
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, session)
}

// RenameRequest 重命名请求。
type RenameRequest struct {
	Title string `json:"title" binding:"required"`
}

// Rename 修改会话标题。
func (h *SessionHandler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.service.RenameSession(c.Request.Context(), c.Param("id"), req.Title); err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, nil)
}

// Delete 删除会话及其全部附属数据。
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, nil)
}
