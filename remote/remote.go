/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-23 10:28:36
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 11:02:13
 * @FilePath: \go-rtcc\remote\remote.go
 * @Description: 请求/应答客户端 - 经通道同步应答实现远端协作接口
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package remote

import (
	"context"

	"github.com/kamalyes/go-rtcc/call"
	"github.com/kamalyes/go-rtcc/chat"
	"github.com/kamalyes/go-rtcc/client"
	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-rtcc/presence"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/json"
)

// 请求事件类型
// 仅出站使用，不属于入站事件联合类型
const (
	eventHistoryFetch  models.EventKind = "conversation:history"
	eventMarkRead      models.EventKind = "conversation:read"
	eventPinnedFetch   models.EventKind = "conversation:pinned"
	eventMessageSend   models.EventKind = "message:send"
	eventMessagePin    models.EventKind = "message:pin"
	eventMessageUnpin  models.EventKind = "message:unpin"
	eventPresenceQuery models.EventKind = "presence:query"
	eventPresenceBatch models.EventKind = "presence:batch"
	eventCallInitiate  models.EventKind = "call:initiate"
)

// 接口实现检查
var (
	_ chat.API         = (*Client)(nil)
	_ presence.Querier = (*Client)(nil)
	_ call.API         = (*Client)(nil)
)

// Client 请求/应答客户端
// 服务端对请求事件回复同步应答帧，应答负载按请求类型解码
type Client struct {
	ch *client.Channel
}

// NewClient 创建请求/应答客户端
func NewClient(ch *client.Channel) *Client {
	return &Client{ch: ch}
}

// request 发起请求并解码应答负载到out（out为nil时仅确认成功）
func (c *Client) request(ctx context.Context, event models.EventKind, scope string, payload, out interface{}) error {
	ack, err := c.ch.PublishWithAck(ctx, event, scope, payload)
	if err != nil {
		return err
	}
	if out == nil || len(ack.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(ack.Data, out); err != nil {
		return errorx.WrapError("failed to decode ack payload", err)
	}
	return nil
}

// ============================================================================
// chat.API
// ============================================================================

// historyReply 历史拉取应答
type historyReply struct {
	Messages []models.ChatMessage `json:"messages"`
}

// FetchHistory 拉取会话历史
func (c *Client) FetchHistory(ctx context.Context, conversation string) ([]models.ChatMessage, error) {
	var reply historyReply
	if err := c.request(ctx, eventHistoryFetch, conversation, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Messages, nil
}

// FetchPinned 拉取置顶子集
func (c *Client) FetchPinned(ctx context.Context, conversation string) ([]models.ChatMessage, error) {
	var reply historyReply
	if err := c.request(ctx, eventPinnedFetch, conversation, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Messages, nil
}

// MarkRead 标记会话已读
func (c *Client) MarkRead(ctx context.Context, conversation string) error {
	return c.request(ctx, eventMarkRead, conversation, nil, nil)
}

// sendReply 消息发送应答
type sendReply struct {
	Message models.ChatMessage `json:"message"`
}

// SendMessage 发送消息，返回服务端确认的真实记录
func (c *Client) SendMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	var reply sendReply
	if err := c.request(ctx, eventMessageSend, msg.Conversation(msg.Sender), msg, &reply); err != nil {
		return nil, err
	}
	return &reply.Message, nil
}

// pinPayload 置顶请求负载
type pinPayload struct {
	MessageID string `json:"message_id"`
}

// Pin 置顶消息
func (c *Client) Pin(ctx context.Context, conversation, messageID string) error {
	return c.request(ctx, eventMessagePin, conversation, &pinPayload{MessageID: messageID}, nil)
}

// Unpin 取消置顶
func (c *Client) Unpin(ctx context.Context, conversation, messageID string) error {
	return c.request(ctx, eventMessageUnpin, conversation, &pinPayload{MessageID: messageID}, nil)
}

// ============================================================================
// presence.Querier
// ============================================================================

// presenceQueryPayload 单个查询负载
type presenceQueryPayload struct {
	UserID string `json:"user_id"`
}

// presenceQueryReply 单个查询应答
type presenceQueryReply struct {
	Status models.PresenceStatus `json:"status"`
}

// QueryStatus 查询单个用户在线状态
func (c *Client) QueryStatus(ctx context.Context, userID string) (models.PresenceStatus, error) {
	var reply presenceQueryReply
	if err := c.request(ctx, eventPresenceQuery, "", &presenceQueryPayload{UserID: userID}, &reply); err != nil {
		return models.PresenceStatusOffline, err
	}
	if !reply.Status.IsValid() {
		return models.PresenceStatusOffline, nil
	}
	return reply.Status, nil
}

// presenceBatchPayload 批量查询负载
type presenceBatchPayload struct {
	UserIDs []string `json:"user_ids"`
}

// presenceBatchReply 批量查询应答
// 状态列表不带ID字段，与请求列表按位置对应
type presenceBatchReply struct {
	Statuses []models.PresenceStatus `json:"statuses"`
}

// QueryBatchStatus 批量查询在线状态
func (c *Client) QueryBatchStatus(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error) {
	var reply presenceBatchReply
	if err := c.request(ctx, eventPresenceBatch, "", &presenceBatchPayload{UserIDs: userIDs}, &reply); err != nil {
		return nil, err
	}
	return reply.Statuses, nil
}

// ============================================================================
// call.API
// ============================================================================

// callInitiatePayload 通话发起负载
type callInitiatePayload struct {
	ReceiverID string `json:"receiver_id"`
}

// callInitiateReply 通话发起应答
type callInitiateReply struct {
	RoomID string `json:"room_id"`
}

// InitiateCall 请求服务端分配房间，同步返回房间ID
func (c *Client) InitiateCall(ctx context.Context, receiverID string) (string, error) {
	var reply callInitiateReply
	if err := c.request(ctx, eventCallInitiate, "", &callInitiatePayload{ReceiverID: receiverID}, &reply); err != nil {
		return "", err
	}
	if reply.RoomID == "" {
		return "", models.ErrRoomAllocFailed
	}
	return reply.RoomID, nil
}
