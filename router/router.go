/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-16 09:24:58
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-28 01:10:27
 * @FilePath: \go-rtcc\router\router.go
 * @Description: 事件路由器 - 按类型与作用域穷举分发入站事件
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package router

import (
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-rtcc/client"
	"github.com/kamalyes/go-rtcc/models"
)

// ChatSink 消息同步器的接收面
// inScope 标注事件是否属于当前活动会话，由路由器在分发时刻判定
type ChatSink interface {
	ApplyInboundMessage(ev *models.NewMessageEvent, inScope bool)
	ApplyEdited(ev *models.MessageEditedEvent, inScope bool)
	ApplyDeleted(ev *models.MessageDeletedEvent, inScope bool)
	ApplyTyping(ev *models.TypingEvent, inScope bool)
}

// PresenceSink 在线状态跟踪器的接收面
type PresenceSink interface {
	ApplyStatusChange(ev *models.UserStatusChangedEvent)
	ApplyHeartbeatAck(ev *models.HeartbeatAckEvent)
}

// CallSink 通话信令引擎的接收面
type CallSink interface {
	HandleIncoming(ev *models.CallIncomingEvent)
	HandleOffer(ev *models.CallOfferEvent)
	HandleAnswer(ev *models.CallAnswerEvent)
	HandleCandidate(ev *models.CallCandidateEvent)
	HandleAccepted(ev *models.CallAcceptedEvent)
	HandleRejected(ev *models.CallRejectedEvent)
	HandleEnded(ev *models.CallEndedEvent)
}

// PinnedInvalidator 置顶缓存失效器
// 横切事件（删除了被置顶的消息）无论会话是否活动都要触发失效
type PinnedInvalidator interface {
	InvalidatePinned(scope string)
}

// Router 事件路由器
// 持有活动会话的活引用；所有作用域判定都在分发时刻进行
type Router struct {
	active   *ActiveContext
	chat     ChatSink
	presence PresenceSink
	call     CallSink
	pinned   PinnedInvalidator
	logger   logger.ILogger
}

// NewRouter 创建事件路由器
func NewRouter(active *ActiveContext) *Router {
	return &Router{
		active: active,
		logger: logger.NewEmptyLogger(),
	}
}

// SetLogger 设置日志器
func (r *Router) SetLogger(l logger.ILogger) {
	r.logger = l
}

// SetChatSink 绑定消息同步器
func (r *Router) SetChatSink(sink ChatSink) {
	r.chat = sink
}

// SetPresenceSink 绑定在线状态跟踪器
func (r *Router) SetPresenceSink(sink PresenceSink) {
	r.presence = sink
}

// SetCallSink 绑定通话信令引擎
func (r *Router) SetCallSink(sink CallSink) {
	r.call = sink
}

// SetPinnedInvalidator 绑定置顶缓存失效器
func (r *Router) SetPinnedInvalidator(inv PinnedInvalidator) {
	r.pinned = inv
}

// Active 返回活动会话引用
func (r *Router) Active() *ActiveContext {
	return r.active
}

// Route 分发单个入站事件
// 穷举匹配事件联合类型；新增事件类型时此处缺少分支会在评审中暴露
func (r *Router) Route(ev models.Event) {
	switch e := ev.(type) {
	case *models.NewMessageEvent:
		if r.chat != nil {
			r.chat.ApplyInboundMessage(e, r.active.Is(e.Scope()))
		}
	case *models.TypingEvent:
		if r.chat != nil {
			r.chat.ApplyTyping(e, r.active.Is(e.Scope()))
		}
	case *models.MessageEditedEvent:
		if r.chat != nil {
			r.chat.ApplyEdited(e, r.active.Is(e.Scope()))
		}
	case *models.MessageDeletedEvent:
		// 删除事件同时触发置顶缓存失效，与会话是否活动无关
		if r.pinned != nil {
			r.pinned.InvalidatePinned(e.Scope())
		}
		if r.chat != nil {
			r.chat.ApplyDeleted(e, r.active.Is(e.Scope()))
		}
	case *models.UserStatusChangedEvent:
		if r.presence != nil {
			r.presence.ApplyStatusChange(e)
		}
	case *models.HeartbeatAckEvent:
		if r.presence != nil {
			r.presence.ApplyHeartbeatAck(e)
		}
	case *models.CallIncomingEvent:
		if r.call != nil {
			r.call.HandleIncoming(e)
		}
	case *models.CallOfferEvent:
		if r.call != nil {
			r.call.HandleOffer(e)
		}
	case *models.CallAnswerEvent:
		if r.call != nil {
			r.call.HandleAnswer(e)
		}
	case *models.CallCandidateEvent:
		if r.call != nil {
			r.call.HandleCandidate(e)
		}
	case *models.CallAcceptedEvent:
		if r.call != nil {
			r.call.HandleAccepted(e)
		}
	case *models.CallRejectedEvent:
		if r.call != nil {
			r.call.HandleRejected(e)
		}
	case *models.CallEndedEvent:
		if r.call != nil {
			r.call.HandleEnded(e)
		}
	case *models.AckEvent:
		// 应答帧由通道层直接处理，到达这里说明接线有误
		r.logger.WarnKV("应答帧进入路由器", "ack_id", e.AckID)
	default:
		r.logger.WarnKV("未路由的事件类型", "kind", string(ev.Kind()))
	}
}

// Attach 将路由器挂到通道的订阅接口上
// 每种入站事件类型注册一个订阅者，统一汇入 Route
func (r *Router) Attach(ch *client.Channel) {
	kinds := []models.EventKind{
		models.EventKindNewMessage,
		models.EventKindTyping,
		models.EventKindMessageEdited,
		models.EventKindMessageDeleted,
		models.EventKindUserStatusChanged,
		models.EventKindHeartbeatAck,
		models.EventKindCallIncoming,
		models.EventKindCallOffer,
		models.EventKindCallAnswer,
		models.EventKindCallCandidate,
		models.EventKindCallAccepted,
		models.EventKindCallRejected,
		models.EventKindCallEnded,
	}
	for _, kind := range kinds {
		ch.Subscribe(kind, r.Route)
	}
}
