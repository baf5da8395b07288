package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	pkgerrors "imagesvoter/backend/pkg/errors"
	"imagesvoter/backend/pkg/response"
)

// respondKind 按错误分类映射 HTTP 状态码，业务码由调用方指定
// 不属于任何分类的错误视为内部错误
func respondKind(c *gin.Context, err error, code int) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, code, err.Error())
	case errors.Is(err, pkgerrors.ErrConflict):
		response.Conflict(c, code, err.Error())
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		response.Unauthorized(c, code, err.Error())
	case errors.Is(err, pkgerrors.ErrPreconditionFailed):
		response.PreconditionFailed(c, code, err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidTransition):
		response.Unprocessable(c, code, err.Error())
	default:
		response.InternalError(c)
	}
}
