/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-14 11:20:05
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-25 21:02:33
 * @FilePath: \go-rtcc\models\message.go
 * @Description: 会话消息记录
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"time"
)

// TempIDPrefix 乐观占位消息的临时ID前缀
const TempIDPrefix = "tmp-"

// ChatMessage 会话消息记录
// 发送时先以临时ID落地为乐观占位，服务端确认后整体替换为真实记录
type ChatMessage struct {
	ID       string    `json:"id"`                 // 消息ID（乐观占位时为临时ID）
	Sender   string    `json:"sender"`             // 发送者用户ID
	Receiver string    `json:"receiver,omitempty"` // 接收者用户ID（单聊）
	RoomID   string    `json:"room_id,omitempty"`  // 房间ID（群聊）
	Content  string    `json:"content"`            // 消息内容
	CreateAt time.Time `json:"create_at"`          // 创建时间，列表按此排序
	Edited   bool      `json:"edited,omitempty"`   // 是否被编辑过
	Deleted  bool      `json:"deleted,omitempty"`  // 是否已删除（墓碑）
	Pinned   bool      `json:"pinned,omitempty"`   // 是否置顶
}

// SetID 设置消息ID
func (m *ChatMessage) SetID(id string) *ChatMessage {
	m.ID = id
	return m
}

// SetSender 设置发送者
func (m *ChatMessage) SetSender(sender string) *ChatMessage {
	m.Sender = sender
	return m
}

// SetReceiver 设置接收者
func (m *ChatMessage) SetReceiver(receiver string) *ChatMessage {
	m.Receiver = receiver
	return m
}

// SetRoomID 设置房间ID
func (m *ChatMessage) SetRoomID(roomID string) *ChatMessage {
	m.RoomID = roomID
	return m
}

// SetContent 设置消息内容
func (m *ChatMessage) SetContent(content string) *ChatMessage {
	m.Content = content
	return m
}

// SetCreateAt 设置创建时间
func (m *ChatMessage) SetCreateAt(t time.Time) *ChatMessage {
	m.CreateAt = t
	return m
}

// Conversation 返回消息所属会话：群聊为房间ID，单聊为对端用户ID
// ownID 为本端用户ID，用于区分收发方向
func (m *ChatMessage) Conversation(ownID string) string {
	if m.RoomID != "" {
		return m.RoomID
	}
	if m.Sender == ownID {
		return m.Receiver
	}
	return m.Sender
}

// IsOptimistic 是否为尚未确认的乐观占位记录
func (m *ChatMessage) IsOptimistic() bool {
	return len(m.ID) > len(TempIDPrefix) && m.ID[:len(TempIDPrefix)] == TempIDPrefix
}

// Clone 复制消息记录
func (m *ChatMessage) Clone() *ChatMessage {
	cp := *m
	return &cp
}
