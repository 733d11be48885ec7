// Package websocket 处理聊天连接的升级和客户端注册。
package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/hub"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册。
// 升级前先校验房间成员资格，非成员拿到 HTTP 错误、不会建立连接。
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	chatService *service.ChatService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空时允许所有来源（开发环境）。
func NewWebSocketHandler(h *hub.Hub, chatService *service.ChatService, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if chatService == nil {
		panic("ChatService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		chatService: chatService,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// URL 预期格式: /ws/room/{roomId}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证用户 ID (由 Auth 中间件设置)
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	email, _ := c.Get("user_email")
	emailStr, _ := email.(string)

	roomID := c.Param("roomId")
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	// 2. 校验成员资格，非成员在升级前被拒绝
	if _, err := h.chatService.AssertMember(c.Request.Context(), userID, roomID); err != nil {
		HandleMembershipError(c, err, logCtx)
		return
	}

	// 3. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已自动发送 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 4. 创建 Client 并注册到 Hub
	client := hub.NewClient(h.hub, conn, roomID, userID, emailStr)
	registerMsg := hub.HubMessage{
		Type:   "register",
		Client: client,
		RoomID: roomID,
		UserID: userID,
	}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	// 5. 启动客户端的读写 goroutine
	client.Run()
}

// HandleMembershipError 把成员资格校验错误映射为 HTTP 响应
func HandleMembershipError(c *gin.Context, err error, logCtx *logrus.Entry) {
	switch err {
	case service.ErrRoomNotFound:
		logCtx.Warn("WS Handler: Room not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
	case service.ErrNotRoomMember:
		logCtx.Warn("WS Handler: User is not a member of the room")
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this room"})
	default:
		logCtx.WithError(err).Error("WS Handler: Error checking room membership")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room"})
	}
}
