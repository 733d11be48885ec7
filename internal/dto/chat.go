// Package dto 定义了 WebSocket 消息的线格式。
package dto

import "github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"

// IncomingChat 是客户端经 WebSocket 发来的消息
type IncomingChat struct {
	Text string `json:"text"`
}

// OutgoingChat 是扇出给房间内所有客户端的单条消息
type OutgoingChat struct {
	Type    string         `json:"type"` // "message"
	Message domain.Message `json:"message"`
}

// ChatBacklog 是新连接建立后下发的历史消息（升序）
type ChatBacklog struct {
	Type     string           `json:"type"` // "backlog"
	Messages []domain.Message `json:"messages"`
}

// WsError 是下发给单个客户端的错误提示
type WsError struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
