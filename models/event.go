/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-14 11:02:47
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-25 20:33:09
 * @FilePath: \go-rtcc\models\event.go
 * @Description: 入站事件联合类型与解码
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	stdjson "encoding/json"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/json"
)

// EventKind 事件类型
type EventKind string

// 通道事件类型常量
const (
	EventKindNewMessage        EventKind = "new_message"         // 新消息
	EventKindTyping            EventKind = "typing"              // 对端正在输入
	EventKindMessageEdited     EventKind = "message_edited"      // 消息已编辑
	EventKindMessageDeleted    EventKind = "message_deleted"     // 消息已删除
	EventKindUserStatusChanged EventKind = "user_status_changed" // 用户上下线
	EventKindHeartbeat         EventKind = "heartbeat"           // 心跳（出站）
	EventKindHeartbeatAck      EventKind = "heartbeat:ack"       // 心跳回执
	EventKindCallIncoming      EventKind = "call:incoming"       // 来电
	EventKindCallOffer         EventKind = "call:offer"          // SDP提议
	EventKindCallAnswer        EventKind = "call:answer"         // SDP应答
	EventKindCallCandidate     EventKind = "call:ice-candidate"  // ICE候选
	EventKindCallAccepted      EventKind = "call:accepted"       // 对端已接听
	EventKindCallRejected      EventKind = "call:rejected"       // 对端已拒绝
	EventKindCallEnded         EventKind = "call:ended"          // 通话结束
	EventKindAck               EventKind = "ack"                 // 同步应答帧
)

// Envelope 通道帧信封
// 文本帧统一为 {event, scope, ack_id, data} 结构，data 按事件类型二次解码
type Envelope struct {
	Event EventKind          `json:"event"`            // 事件名
	Scope string             `json:"scope,omitempty"`  // 所属会话/房间，全局事件为空
	AckID string             `json:"ack_id,omitempty"` // 同步应答关联ID
	Data  stdjson.RawMessage `json:"data,omitempty"`   // 事件负载
}

// EncodeEnvelope 序列化信封
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeEnvelope 反序列化信封
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errorx.WrapError("failed to decode envelope", err)
	}
	return &env, nil
}

// Event 入站事件联合类型
// 每个具体事件实现 Kind 与 Scope，路由器据此做穷举分发
type Event interface {
	Kind() EventKind
	Scope() string
}

// NewMessageEvent 新消息事件
type NewMessageEvent struct {
	Conversation string      `json:"conversation"` // 所属会话（对端ID或房间ID）
	Message      ChatMessage `json:"message"`      // 消息记录
}

func (e *NewMessageEvent) Kind() EventKind { return EventKindNewMessage }
func (e *NewMessageEvent) Scope() string   { return e.Conversation }

// TypingEvent 正在输入事件
type TypingEvent struct {
	Conversation string `json:"conversation"` // 所属会话
	UserID       string `json:"user_id"`      // 正在输入的用户
}

func (e *TypingEvent) Kind() EventKind { return EventKindTyping }
func (e *TypingEvent) Scope() string   { return e.Conversation }

// MessageEditedEvent 消息编辑事件
type MessageEditedEvent struct {
	Conversation string    `json:"conversation"` // 所属会话
	MessageID    string    `json:"message_id"`   // 目标消息ID
	Content      string    `json:"content"`      // 新内容
	EditedAt     time.Time `json:"edited_at"`    // 编辑时间
}

func (e *MessageEditedEvent) Kind() EventKind { return EventKindMessageEdited }
func (e *MessageEditedEvent) Scope() string   { return e.Conversation }

// MessageDeletedEvent 消息删除事件
type MessageDeletedEvent struct {
	Conversation string `json:"conversation"` // 所属会话
	MessageID    string `json:"message_id"`   // 目标消息ID
}

func (e *MessageDeletedEvent) Kind() EventKind { return EventKindMessageDeleted }
func (e *MessageDeletedEvent) Scope() string   { return e.Conversation }

// UserStatusChangedEvent 用户状态变更事件（全局作用域）
type UserStatusChangedEvent struct {
	UserID    string         `json:"user_id"`   // 目标用户
	Status    PresenceStatus `json:"status"`    // 新状态
	Timestamp time.Time      `json:"timestamp"` // 变更时间
}

func (e *UserStatusChangedEvent) Kind() EventKind { return EventKindUserStatusChanged }
func (e *UserStatusChangedEvent) Scope() string   { return "" }

// HeartbeatAckEvent 心跳回执事件（全局作用域）
// 回执不影响连接健康判定，仅用于刷新本地在线状态
type HeartbeatAckEvent struct {
	Timestamp time.Time `json:"timestamp"` // 服务端时间
}

func (e *HeartbeatAckEvent) Kind() EventKind { return EventKindHeartbeatAck }
func (e *HeartbeatAckEvent) Scope() string   { return "" }

// CallIncomingEvent 来电事件
// 提议可随来电一并携带，也可经 call:offer 单独送达
type CallIncomingEvent struct {
	RoomID   string `json:"room_id"`             // 房间ID
	CallerID string `json:"caller_id"`           // 主叫ID
	OfferSDP string `json:"offer_sdp,omitempty"` // 随带的SDP提议
}

func (e *CallIncomingEvent) Kind() EventKind { return EventKindCallIncoming }
func (e *CallIncomingEvent) Scope() string   { return e.RoomID }

// CallOfferEvent SDP提议事件
type CallOfferEvent struct {
	RoomID string `json:"room_id"` // 房间ID
	SDP    string `json:"sdp"`     // 提议内容
}

func (e *CallOfferEvent) Kind() EventKind { return EventKindCallOffer }
func (e *CallOfferEvent) Scope() string   { return e.RoomID }

// CallAnswerEvent SDP应答事件
type CallAnswerEvent struct {
	RoomID string `json:"room_id"` // 房间ID
	SDP    string `json:"sdp"`     // 应答内容
}

func (e *CallAnswerEvent) Kind() EventKind { return EventKindCallAnswer }
func (e *CallAnswerEvent) Scope() string   { return e.RoomID }

// CallCandidateEvent ICE候选事件
type CallCandidateEvent struct {
	RoomID    string       `json:"room_id"`   // 房间ID
	Candidate ICECandidate `json:"candidate"` // 候选内容
}

func (e *CallCandidateEvent) Kind() EventKind { return EventKindCallCandidate }
func (e *CallCandidateEvent) Scope() string   { return e.RoomID }

// CallAcceptedEvent 对端接听事件
type CallAcceptedEvent struct {
	RoomID string `json:"room_id"` // 房间ID
}

func (e *CallAcceptedEvent) Kind() EventKind { return EventKindCallAccepted }
func (e *CallAcceptedEvent) Scope() string   { return e.RoomID }

// CallRejectedEvent 对端拒绝事件
type CallRejectedEvent struct {
	RoomID string `json:"room_id"` // 房间ID
}

func (e *CallRejectedEvent) Kind() EventKind { return EventKindCallRejected }
func (e *CallRejectedEvent) Scope() string   { return e.RoomID }

// CallEndedEvent 通话结束事件
type CallEndedEvent struct {
	RoomID string `json:"room_id"` // 房间ID
}

func (e *CallEndedEvent) Kind() EventKind { return EventKindCallEnded }
func (e *CallEndedEvent) Scope() string   { return e.RoomID }

// AckEvent 同步应答帧
// 不经过路由器，由通道层直接交给等待中的请求
type AckEvent struct {
	AckID string             `json:"ack_id"`          // 请求关联ID
	OK    bool               `json:"ok"`              // 服务端处理结果
	Error string             `json:"error,omitempty"` // 失败原因
	Data  stdjson.RawMessage `json:"data,omitempty"`  // 应答负载
}

func (e *AckEvent) Kind() EventKind { return EventKindAck }
func (e *AckEvent) Scope() string   { return "" }

// DecodeEvent 按事件类型解码负载为具体事件
// 未知类型返回错误而不是静默丢弃，缺失分支在编译期由穷举switch暴露
func DecodeEvent(env *Envelope) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch env.Event {
	case EventKindNewMessage:
		ev, err = decodeAs[NewMessageEvent](env)
	case EventKindTyping:
		ev, err = decodeAs[TypingEvent](env)
	case EventKindMessageEdited:
		ev, err = decodeAs[MessageEditedEvent](env)
	case EventKindMessageDeleted:
		ev, err = decodeAs[MessageDeletedEvent](env)
	case EventKindUserStatusChanged:
		ev, err = decodeAs[UserStatusChangedEvent](env)
	case EventKindHeartbeatAck:
		ev, err = decodeAs[HeartbeatAckEvent](env)
	case EventKindCallIncoming:
		ev, err = decodeAs[CallIncomingEvent](env)
	case EventKindCallOffer:
		ev, err = decodeAs[CallOfferEvent](env)
	case EventKindCallAnswer:
		ev, err = decodeAs[CallAnswerEvent](env)
	case EventKindCallCandidate:
		ev, err = decodeAs[CallCandidateEvent](env)
	case EventKindCallAccepted:
		ev, err = decodeAs[CallAcceptedEvent](env)
	case EventKindCallRejected:
		ev, err = decodeAs[CallRejectedEvent](env)
	case EventKindCallEnded:
		ev, err = decodeAs[CallEndedEvent](env)
	case EventKindAck:
		ev, err = decodeAs[AckEvent](env)
	default:
		return nil, errorx.NewError(ErrTypeUnknownEvent, string(env.Event))
	}
	return ev, err
}

// decodeAs 解码负载到指定事件结构
func decodeAs[T any, PT interface {
	*T
	Event
}](env *Envelope) (Event, error) {
	var payload T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, errorx.WrapError("failed to decode event payload", err)
		}
	}
	return PT(&payload), nil
}
