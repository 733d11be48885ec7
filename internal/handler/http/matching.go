package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// MatchingHandler 封装了匹配队列相关的 HTTP 处理逻辑。
// Start 是一个长轮询端点：在找到对手或超时之前不会返回。
type MatchingHandler struct {
	matchingService *service.MatchingService
}

// NewMatchingHandler 创建 MatchingHandler 实例
func NewMatchingHandler(matchingService *service.MatchingService) *MatchingHandler {
	return &MatchingHandler{matchingService: matchingService}
}

// Start 发起匹配。命中或被别人匹配时返回房间 ID，超时返回 408。
func (h *MatchingHandler) Start(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var opts service.MatchOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	roomID, err := h.matchingService.StartMatching(c.Request.Context(), uid, opts)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": uid, "room_id": roomID}).Info("Handler.Start: Match established")
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

// Cancel 退出匹配队列
func (h *MatchingHandler) Cancel(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.matchingService.CancelMatching(c.Request.Context(), uid); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Matching cancelled"})
}

// MarkLeaving 把队列条目标记为 leaving（页面关闭前的尽力提示）
func (h *MatchingHandler) MarkLeaving(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.matchingService.MarkLeaving(c.Request.Context(), uid); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// TestBot 创建一个与测试机器人的聊天房间
func (h *MatchingHandler) TestBot(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, err := h.matchingService.StartWithTestBot(c.Request.Context(), uid)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}
