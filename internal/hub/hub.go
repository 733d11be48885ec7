// Package hub 维护房间内的 WebSocket 客户端集合，
// 并把 Redis 消息频道的实时消息扇出给本进程内的连接。
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/dto"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string  // "register", "unregister", "chat"
	RoomID  string  // 房间 ID
	UserID  uint    // 来源用户 ID
	Client  *Client // 关联的客户端
	RawData []byte  // 仅用于 chat (原始 WebSocket 消息)
}

// roomSub 是某个房间的 Redis 消息订阅
type roomSub struct {
	stop   func()
	cancel context.CancelFunc
}

// Hub 维护活跃客户端集合并协调消息扇出。
// 每个有客户端在线的房间持有一个 Redis 消息频道订阅，
// 跨进程的消息经由该频道到达本进程再广播。
type Hub struct {
	messageChan chan HubMessage

	// map[roomID]map[*Client]bool
	rooms   map[string]map[*Client]bool
	subs    map[string]roomSub
	roomsMu sync.RWMutex

	chatService *service.ChatService
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(chatService *service.ChatService) *Hub {
	if chatService == nil {
		panic("ChatService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		subs:        make(map[string]roomSub),
		chatService: chatService,
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "chat":
			// 异步处理，避免慢的存储调用阻塞 Hub 主循环
			go h.handleClientChat(msg)
		default:
			log.Warnf("Hub: Received unknown message type: %s from user %d in room %s", msg.Type, msg.UserID, msg.RoomID)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 处理客户端注册逻辑。
// 房间的第一个客户端到来时建立该房间的消息频道订阅。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": client.UserID(),
		"action":  "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		if err := h.startRoomSubscription(roomID); err != nil {
			logCtx.WithError(err).Error("Failed to subscribe room message channel")
		}
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	// 异步下发历史消息，不阻塞注册
	go h.sendBacklog(client)
}

// startRoomSubscription 建立房间消息频道的订阅并启动扇出 goroutine。
// 调用方必须持有 roomsMu 写锁。
func (h *Hub) startRoomSubscription(roomID string) error {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, stop, err := h.chatService.StreamMessages(ctx, roomID)
	if err != nil {
		cancel()
		return err
	}
	h.subs[roomID] = roomSub{stop: stop, cancel: cancel}

	go func() {
		for msg := range msgs {
			payload, err := json.Marshal(dto.OutgoingChat{Type: "message", Message: msg})
			if err != nil {
				logrus.WithError(err).WithField("room_id", roomID).Error("Failed to marshal chat message")
				continue
			}
			h.broadcast(roomID, payload, nil)
		}
	}()
	return nil
}

// unregisterClient 处理客户端注销逻辑。
// 房间的最后一个客户端离开时撤销该房间的消息频道订阅。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": client.UserID(),
		"action":  "unregisterClient",
	})

	h.roomsMu.Lock()
	if roomClients, roomExists := h.rooms[roomID]; roomExists {
		if _, clientExists := roomClients[client]; clientExists {
			delete(roomClients, client)

			// 关闭此客户端的 send 通道，这将导致其 WritePump 退出
			select {
			case <-client.send:
				logCtx.Warn("Client send channel already closed or has data during unregister")
			default:
				close(client.send)
			}

			if len(roomClients) == 0 {
				delete(h.rooms, roomID)
				if sub, ok := h.subs[roomID]; ok {
					sub.stop()
					sub.cancel()
					delete(h.subs, roomID)
				}
				logCtx.Info("Room empty, subscription released")
			}
		} else {
			logCtx.Warn("Client not found in room during unregister")
		}
	} else {
		logCtx.Warn("Room not found during client unregister")
	}
	h.roomsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")
}

// sendBacklog 下发房间最近的历史消息给新连接的客户端
func (h *Hub) sendBacklog(client *Client) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   client.RoomID(),
		"user_id":   client.UserID(),
		"operation": "sendBacklog",
	})

	ctx := context.Background()
	msgs, err := h.chatService.Recent(ctx, client.UserID(), client.RoomID())
	if err != nil {
		logCtx.WithError(err).Error("Failed to load message backlog")
		h.sendToClient(client, dto.WsError{Type: "error", Message: "Failed to load chat history"})
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	h.sendToClient(client, dto.ChatBacklog{Type: "backlog", Messages: msgs})
	logCtx.WithField("count", len(msgs)).Debug("Backlog sent to client channel")
}

// handleClientChat 处理客户端发来的聊天消息
func (h *Hub) handleClientChat(msg HubMessage) {
	ctx := context.Background()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   msg.RoomID,
		"user_id":   msg.UserID,
		"operation": "handleClientChat",
	})

	var in dto.IncomingChat
	if err := json.Unmarshal(msg.RawData, &in); err != nil {
		logCtx.WithError(err).Warn("Malformed chat message from client")
		h.sendToClient(msg.Client, dto.WsError{Type: "error", Message: "Malformed message"})
		return
	}

	email := ""
	if msg.Client != nil {
		email = msg.Client.Email()
	}
	if err := h.chatService.Send(ctx, msg.UserID, email, msg.RoomID, in.Text); err != nil {
		logCtx.WithError(err).Error("Error sending chat message")
		h.sendToClient(msg.Client, dto.WsError{Type: "error", Message: "Failed to send message"})
	}
}

// broadcast 将消息发送给指定房间的所有客户端，sender 为 nil 时不排除任何人
func (h *Hub) broadcast(roomID string, message []byte, sender *Client) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client != sender {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}
	for _, client := range clientsToSend {
		// 非阻塞发送，避免单个慢客户端阻塞广播
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"room_id":          roomID,
				"receiver_user_id": client.UserID(),
			}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// sendToClient 把单条结构化消息发给某个客户端（非阻塞）
func (h *Hub) sendToClient(client *Client, payload interface{}) {
	if client == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 这是 Client 向 Hub 发送消息的安全方式。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
			"user_id":      msg.UserID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// StopAllSubscriptions 在进程关闭时释放所有房间订阅
func (h *Hub) StopAllSubscriptions() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID, sub := range h.subs {
		sub.stop()
		sub.cancel()
		delete(h.subs, roomID)
	}
}
