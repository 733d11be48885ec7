package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// HandleServiceError 把业务错误映射为 HTTP 状态码。
// 禁用中的用户拿到 403 和剩余分钟数，匹配超时拿到 408。
func HandleServiceError(c *gin.Context, err error) {
	var restricted *service.UsageRestrictedError
	if errors.As(err, &restricted) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":             restricted.Error(),
			"remaining_minutes": restricted.RemainingMinutes,
			"banned_until":      restricted.Until,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed), errors.Is(err, service.ErrValidation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotRoomMember), errors.Is(err, service.ErrPermissionDenied):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrQueueEntryNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrMatchTimeout):
		ErrorResponse(c, http.StatusRequestTimeout, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
