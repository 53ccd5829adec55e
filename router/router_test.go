/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-25 14:17:02
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 20:05:38
 * @FilePath: \go-rtcc\router\router_test.go
 * @Description:
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package router

import (
	"sync"
	"testing"

	"github.com/kamalyes/go-rtcc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatSink 记录消息事件与作用域标注
type mockChatSink struct {
	mu      sync.Mutex
	inbound []bool // 每次ApplyInboundMessage的inScope标注
	edited  []bool
	deleted []bool
	typing  []bool
}

func (m *mockChatSink) ApplyInboundMessage(ev *models.NewMessageEvent, inScope bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, inScope)
}

func (m *mockChatSink) ApplyEdited(ev *models.MessageEditedEvent, inScope bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = append(m.edited, inScope)
}

func (m *mockChatSink) ApplyDeleted(ev *models.MessageDeletedEvent, inScope bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, inScope)
}

func (m *mockChatSink) ApplyTyping(ev *models.TypingEvent, inScope bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, inScope)
}

// mockPresenceSink 记录在线状态事件
type mockPresenceSink struct {
	statusChanges []*models.UserStatusChangedEvent
	heartbeatAcks int
}

func (m *mockPresenceSink) ApplyStatusChange(ev *models.UserStatusChangedEvent) {
	m.statusChanges = append(m.statusChanges, ev)
}

func (m *mockPresenceSink) ApplyHeartbeatAck(ev *models.HeartbeatAckEvent) {
	m.heartbeatAcks++
}

// mockCallSink 记录信令事件
type mockCallSink struct {
	incoming  []*models.CallIncomingEvent
	offers    []*models.CallOfferEvent
	answers   []*models.CallAnswerEvent
	candidate []*models.CallCandidateEvent
	ended     []*models.CallEndedEvent
}

func (m *mockCallSink) HandleIncoming(ev *models.CallIncomingEvent)   { m.incoming = append(m.incoming, ev) }
func (m *mockCallSink) HandleOffer(ev *models.CallOfferEvent)         { m.offers = append(m.offers, ev) }
func (m *mockCallSink) HandleAnswer(ev *models.CallAnswerEvent)       { m.answers = append(m.answers, ev) }
func (m *mockCallSink) HandleCandidate(ev *models.CallCandidateEvent) { m.candidate = append(m.candidate, ev) }
func (m *mockCallSink) HandleAccepted(ev *models.CallAcceptedEvent)   {}
func (m *mockCallSink) HandleRejected(ev *models.CallRejectedEvent)   {}
func (m *mockCallSink) HandleEnded(ev *models.CallEndedEvent)         { m.ended = append(m.ended, ev) }

// mockPinnedInvalidator 记录置顶失效调用
type mockPinnedInvalidator struct {
	scopes []string
}

func (m *mockPinnedInvalidator) InvalidatePinned(scope string) {
	m.scopes = append(m.scopes, scope)
}

// TestRouteScopeAnnotation 测试作用域标注在分发时刻判定
func TestRouteScopeAnnotation(t *testing.T) {
	active := NewActiveContext()
	chat := &mockChatSink{}
	r := NewRouter(active)
	r.SetChatSink(chat)

	ev := &models.NewMessageEvent{Conversation: "peer-a"}

	// 无活动会话：不在作用域内
	r.Route(ev)
	// 切换到peer-a后同一事件在作用域内
	active.Set("peer-a")
	r.Route(ev)
	// 切换到peer-b后又不在作用域内
	active.Set("peer-b")
	r.Route(ev)

	require.Len(t, chat.inbound, 3)
	assert.Equal(t, []bool{false, true, false}, chat.inbound,
		"作用域判定必须读取分发时刻的活引用，不能用注册时的快照")
}

// TestRouteDeletedInvalidatesPinnedRegardlessOfScope 测试删除事件的横切失效
func TestRouteDeletedInvalidatesPinnedRegardlessOfScope(t *testing.T) {
	active := NewActiveContext()
	active.Set("peer-b")

	chat := &mockChatSink{}
	pinned := &mockPinnedInvalidator{}
	r := NewRouter(active)
	r.SetChatSink(chat)
	r.SetPinnedInvalidator(pinned)

	// 删除事件属于非活动会话peer-a
	r.Route(&models.MessageDeletedEvent{Conversation: "peer-a", MessageID: "m1"})

	require.Len(t, chat.deleted, 1)
	assert.False(t, chat.deleted[0], "peer-a不是活动会话")
	assert.Equal(t, []string{"peer-a"}, pinned.scopes,
		"置顶失效与会话是否活动无关")
}

// TestRoutePresenceEvents 测试全局事件直达在线状态跟踪器
func TestRoutePresenceEvents(t *testing.T) {
	presence := &mockPresenceSink{}
	r := NewRouter(NewActiveContext())
	r.SetPresenceSink(presence)

	r.Route(&models.UserStatusChangedEvent{UserID: "u3", Status: models.PresenceStatusOnline})
	r.Route(&models.HeartbeatAckEvent{})

	require.Len(t, presence.statusChanges, 1)
	assert.Equal(t, "u3", presence.statusChanges[0].UserID)
	assert.Equal(t, 1, presence.heartbeatAcks)
}

// TestRouteCallEvents 测试信令事件按类型转发
func TestRouteCallEvents(t *testing.T) {
	call := &mockCallSink{}
	r := NewRouter(NewActiveContext())
	r.SetCallSink(call)

	r.Route(&models.CallIncomingEvent{RoomID: "r1", CallerID: "u2"})
	r.Route(&models.CallOfferEvent{RoomID: "r1", SDP: "v=0"})
	r.Route(&models.CallAnswerEvent{RoomID: "r1", SDP: "v=0"})
	r.Route(&models.CallCandidateEvent{RoomID: "r1"})
	r.Route(&models.CallEndedEvent{RoomID: "r1"})

	assert.Len(t, call.incoming, 1)
	assert.Len(t, call.offers, 1)
	assert.Len(t, call.answers, 1)
	assert.Len(t, call.candidate, 1)
	assert.Len(t, call.ended, 1)
}

// TestRouteNilSinks 测试未绑定接收面时不崩溃
func TestRouteNilSinks(t *testing.T) {
	r := NewRouter(NewActiveContext())
	assert.NotPanics(t, func() {
		r.Route(&models.NewMessageEvent{Conversation: "peer-a"})
		r.Route(&models.CallEndedEvent{RoomID: "r1"})
		r.Route(&models.MessageDeletedEvent{Conversation: "peer-a"})
	})
}

// TestActiveContext 测试活动会话引用
func TestActiveContext(t *testing.T) {
	ac := NewActiveContext()
	assert.Empty(t, ac.Current())
	assert.False(t, ac.Is(""), "空作用域永不匹配")

	ac.Set("room-1")
	assert.True(t, ac.Is("room-1"))
	assert.False(t, ac.Is("room-2"))

	ac.Clear()
	assert.False(t, ac.Is("room-1"))
}
