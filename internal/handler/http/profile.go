package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// ProfileHandler 封装了用户资料和心跳相关的 HTTP 处理逻辑
type ProfileHandler struct {
	profileService *service.ProfileService
	penaltyService *service.PenaltyService
}

// NewProfileHandler 创建 ProfileHandler 实例
func NewProfileHandler(profileService *service.ProfileService, penaltyService *service.PenaltyService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, penaltyService: penaltyService}
}

// Get 返回当前用户的资料
func (h *ProfileHandler) Get(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.profileService.Get(c.Request.Context(), uid)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}

// Save 应用资料补丁并返回更新后的资料
func (h *ProfileHandler) Save(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var patch service.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}
	user, err := h.profileService.Save(c.Request.Context(), uid, patch)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}

// Heartbeat 记录一次在线心跳
func (h *ProfileHandler) Heartbeat(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.profileService.Heartbeat(c.Request.Context(), uid); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// PenaltyStatus 返回当前用户的违规状态
func (h *ProfileHandler) PenaltyStatus(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	status, err := h.penaltyService.Status(c.Request.Context(), uid)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, status)
}

// RecordPenalty 为当前用户记录一次违规事件并返回更新后的状态。
// 客户端在房间流程之外（例如匹配等待中途关闭页面）也要能上报违规。
func (h *ProfileHandler) RecordPenalty(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}
	user, err := h.penaltyService.Apply(c.Request.Context(), uid, req.Kind)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, service.PenaltyStatus{
		PenaltyScore: user.PenaltyScore,
		HonbapTemp:   user.HonbapTemp,
		BannedUntil:  user.BannedUntil,
		RemainMillis: user.BannedRemaining(time.Now()).Milliseconds(),
	})
}
