package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/resolver"
)

// 通用错误消息
const (
	MsgUnknownKind    = "未知的资源类型"
	MsgNoCollection   = "该资源类型没有远端集合，只能随所属记录同步"
	MsgRemoteDown     = "远端服务不可达"
	MsgRemoteRejected = "远端服务返回错误"
	MsgInternalError  = "服务器内部错误，请稍后重试"
)

// writeError 按错误类型选择状态码与提示信息
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownKind):
		Error(c, http.StatusBadRequest, MsgUnknownKind)
	case errors.Is(err, resolver.ErrNoCollection):
		Error(c, http.StatusBadRequest, MsgNoCollection)
	case core.IsConnectionError(err):
		Error(c, http.StatusServiceUnavailable, MsgRemoteDown)
	case core.StatusOf(err) != 0:
		Error(c, http.StatusBadGateway, MsgRemoteRejected)
	default:
		Error(c, http.StatusInternalServerError, MsgInternalError)
	}
}
