// Package handler provides HTTP handlers for the docchat service.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/pkg/errors"
)

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeData writes a success envelope with the given HTTP status.
func writeData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{Code: 0, Message: "success", Data: data})
}

// writeError maps an error to its registered HTTP status and error code.
func writeError(c *gin.Context, err error) {
	e := errors.FromError(err)
	c.JSON(e.HTTPStatus(), ErrorResponse{
		Code:    e.Code,
		Message: e.Message(c.GetHeader("Accept-Language")),
	})
}

// bindError wraps a request binding failure as an invalid-parameter error.
func bindError(c *gin.Context, err error) {
	writeError(c, errors.ErrInvalidParam.WithMessage(err.Error()))
}
