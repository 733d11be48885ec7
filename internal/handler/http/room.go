package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// RoomHandler 封装了房间生命周期相关的 HTTP 处理逻辑。
// 两个 Wait 端点是长轮询：在结果出来或超时之前不会返回。
type RoomHandler struct {
	roomService    *service.RoomService
	chatService    *service.ChatService
	penaltyService *service.PenaltyService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, chatService *service.ChatService, penaltyService *service.PenaltyService) *RoomHandler {
	return &RoomHandler{roomService: roomService, chatService: chatService, penaltyService: penaltyService}
}

// Get 返回房间文档
func (h *RoomHandler) Get(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	room, err := h.roomService.FindRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// Accept 接受房间邀请
func (h *RoomHandler) Accept(c *gin.Context) {
	h.respond(c, true, service.PenaltyEarlyDecline, false)
}

// Decline 拒绝房间邀请并记一次违规
func (h *RoomHandler) Decline(c *gin.Context) {
	h.respond(c, false, service.PenaltyEarlyDecline, false)
}

// StartYes 在开始确认阶段投赞成票
func (h *RoomHandler) StartYes(c *gin.Context) {
	h.respond(c, true, service.PenaltyStartDecline, true)
}

// StartNo 在开始确认阶段投否决票并记一次违规
func (h *RoomHandler) StartNo(c *gin.Context) {
	h.respond(c, false, service.PenaltyStartDecline, true)
}

// respond 统一处理两种同意阶段的响应：
// 否定响应先写房间状态，再记违规（记账失败只记日志，不影响已完成的转移）。
func (h *RoomHandler) respond(c *gin.Context, positive bool, penaltyKind string, startPhase bool) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("roomId")

	var err error
	if startPhase {
		err = h.roomService.StartYesOrNo(c.Request.Context(), uid, roomID, positive)
	} else {
		err = h.roomService.AcceptOrDecline(c.Request.Context(), uid, roomID, positive)
	}
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if !positive {
		if _, perr := h.penaltyService.Apply(c.Request.Context(), uid, penaltyKind); perr != nil {
			logrus.WithError(perr).WithField("user_id", uid).Error("Failed to record penalty after decline")
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// WaitInvite 等待邀请阶段的结果（长轮询），返回 accepted 布尔值
func (h *RoomHandler) WaitInvite(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	accepted, err := h.roomService.WaitInviteDecision(c.Request.Context(), c.Param("roomId"), waitTimeout(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted})
}

// WaitStart 等待开始确认阶段的结果（长轮询），返回 started 布尔值
func (h *RoomHandler) WaitStart(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	started, err := h.roomService.WaitStartDecision(c.Request.Context(), c.Param("roomId"), waitTimeout(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": started})
}

// Leave 离开房间。聊天开始后的离开会记一次温度违规。
func (h *RoomHandler) Leave(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("roomId")

	room, ferr := h.roomService.FindRoom(c.Request.Context(), roomID)
	if err := h.roomService.LeaveRoom(c.Request.Context(), uid, roomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	if ferr == nil && room.Phase == domain.PhaseChatting {
		if _, perr := h.penaltyService.Apply(c.Request.Context(), uid, service.PenaltyAfterStartCancel); perr != nil {
			logrus.WithError(perr).WithField("user_id", uid).Error("Failed to record penalty after leave")
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}

// Messages 返回房间最近的消息（升序），仅限房间成员
func (h *RoomHandler) Messages(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	msgs, err := h.chatService.Recent(c.Request.Context(), uid, c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"messages": msgs})
}

// waitTimeout 解析 timeout_sec 查询参数，缺省或非法时返回 0（服务层用默认值）
func waitTimeout(c *gin.Context) time.Duration {
	sec, err := strconv.Atoi(c.DefaultQuery("timeout_sec", "0"))
	if err != nil || sec < 0 || sec > 60 {
		return 0
	}
	return time.Duration(sec) * time.Second
}
