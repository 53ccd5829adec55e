/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-18 09:47:33
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-28 11:26:19
 * @FilePath: \go-rtcc\chat\synchronizer.go
 * @Description: 消息同步器 - 乐观发送、回执对账与幂等入站应用
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-rtcc/router"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/osx"
)

// DefaultTombstoneText 删除消息的墓碑占位文本
const DefaultTombstoneText = "[message deleted]"

// API 会话相关的请求/应答接口
// 由通道层的同步应答实现提供，服务端是消息的权威存储
type API interface {
	// FetchHistory 拉取会话历史
	FetchHistory(ctx context.Context, conversation string) ([]models.ChatMessage, error)
	// FetchPinned 拉取置顶子集
	FetchPinned(ctx context.Context, conversation string) ([]models.ChatMessage, error)
	// MarkRead 标记会话已读
	MarkRead(ctx context.Context, conversation string) error
	// SendMessage 发送消息，返回服务端确认的真实记录
	SendMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	// Pin 置顶消息
	Pin(ctx context.Context, conversation, messageID string) error
	// Unpin 取消置顶
	Unpin(ctx context.Context, conversation, messageID string) error
}

// UpdateHandler 消息列表变更回调
type UpdateHandler func(conversation string)

// TypingHandler 对端正在输入回调
type TypingHandler func(conversation, userID string)

// Synchronizer 消息同步器
// 持有当前加载会话的消息列表；所有续体写入前都重读活动会话引用，
// 用户在挂起点之间切换会话时，过期的写入被丢弃而不是覆盖新列表
type Synchronizer struct {
	mu        sync.RWMutex
	ownID     string
	api       API
	active    *router.ActiveContext
	loaded    string                // 当前列表所属会话
	messages  []*models.ChatMessage // 按 CreateAt 升序
	pinned    []*models.ChatMessage // 置顶子集，服务端序
	tombstone string
	outbox    *Outbox               // 可选的失败发送记录
	onUpdate  atomic.Value          // UpdateHandler
	onTyping  atomic.Value          // TypingHandler
	logger    logger.ILogger
}

// NewSynchronizer 创建消息同步器
func NewSynchronizer(ownID string, api API, active *router.ActiveContext) *Synchronizer {
	return &Synchronizer{
		ownID:     ownID,
		api:       api,
		active:    active,
		tombstone: DefaultTombstoneText,
		logger:    logger.NewEmptyLogger(),
	}
}

// WithTombstoneText 设置墓碑占位文本
func (s *Synchronizer) WithTombstoneText(text string) *Synchronizer {
	if text != "" {
		s.tombstone = text
	}
	return s
}

// WithOutbox 挂载失败发送记录
func (s *Synchronizer) WithOutbox(outbox *Outbox) *Synchronizer {
	s.outbox = outbox
	return s
}

// SetLogger 设置日志器
func (s *Synchronizer) SetLogger(l logger.ILogger) *Synchronizer {
	s.logger = l
	return s
}

// OnUpdate 注册列表变更回调
func (s *Synchronizer) OnUpdate(handler UpdateHandler) *Synchronizer {
	s.onUpdate.Store(handler)
	return s
}

// OnTyping 注册正在输入回调
func (s *Synchronizer) OnTyping(handler TypingHandler) *Synchronizer {
	s.onTyping.Store(handler)
	return s
}

// LoadConversation 加载会话
// 清空本地列表后拉取历史、置顶子集并标记已读。
// 可被快速连续调用：每次网络往返返回后都重读活动会话引用，
// 目标已不是活动会话时丢弃结果，防止过期加载覆盖新列表
func (s *Synchronizer) LoadConversation(ctx context.Context, conversation string) error {
	s.active.Set(conversation)

	s.mu.Lock()
	s.loaded = conversation
	s.messages = nil
	s.pinned = nil
	s.mu.Unlock()

	history, err := s.api.FetchHistory(ctx, conversation)
	if err != nil {
		return errorx.WrapError("failed to fetch history", err)
	}
	// 写入时刻判定，不信任调用时的快照
	if !s.active.Is(conversation) {
		s.logger.DebugKV("历史加载结果已过期", "conversation", conversation)
		return nil
	}

	s.mu.Lock()
	if s.loaded == conversation {
		s.messages = make([]*models.ChatMessage, 0, len(history))
		for i := range history {
			s.messages = append(s.messages, history[i].Clone())
		}
		sort.SliceStable(s.messages, func(i, j int) bool {
			return s.messages[i].CreateAt.Before(s.messages[j].CreateAt)
		})
	}
	s.mu.Unlock()
	s.notifyUpdate(conversation)

	if err := s.refetchPinned(ctx, conversation); err != nil {
		s.logger.WarnKV("置顶子集拉取失败", "conversation", conversation, "error", err)
	}

	if err := s.api.MarkRead(ctx, conversation); err != nil {
		s.logger.WarnKV("标记已读失败", "conversation", conversation, "error", err)
	}
	return nil
}

// Send 发送消息
// 空白内容直接忽略。先插入临时ID的乐观占位保持即时可见，
// 服务端确认后在同一次加锁内完成移除加插入的原子替换；
// 失败则移除占位并上抛，调用方负责向用户呈现
func (s *Synchronizer) Send(ctx context.Context, receiverID, content string) (*models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	optimistic := (&models.ChatMessage{}).
		SetID(models.TempIDPrefix + osx.HashUnixMicroCipherText()).
		SetSender(s.ownID).
		SetReceiver(receiverID).
		SetContent(content).
		SetCreateAt(time.Now())
	conversation := optimistic.Conversation(s.ownID)

	s.insert(optimistic)
	s.notifyUpdate(conversation)

	confirmed, err := s.api.SendMessage(ctx, optimistic)
	if err != nil {
		s.remove(optimistic.ID)
		s.notifyUpdate(conversation)
		if s.outbox != nil {
			s.recordFailure(optimistic, err)
		}
		return nil, errorx.WrapError("failed to send message", err)
	}

	if err := s.reconcile(optimistic.ID, confirmed); err != nil {
		// 重复对账不破坏现有状态，记录后返回确认记录
		s.logger.WarnKV("乐观消息对账冲突", "temp_id", optimistic.ID, "error", err)
	}
	s.notifyUpdate(conversation)
	return confirmed, nil
}

// reconcile 用服务端确认记录原子替换乐观占位
// 移除与插入在同一次加锁内完成，并发读取方观察不到两者同时存在或同时缺失
func (s *Synchronizer) reconcile(tempID string, confirmed *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(tempID)
	if idx < 0 {
		return errorx.NewError(models.ErrTypeDuplicateReconcile, tempID)
	}
	if s.indexOf(confirmed.ID) >= 0 {
		// 确认记录已随推送到达，仅移除占位
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		return nil
	}
	s.messages[idx] = confirmed.Clone()
	s.sortLocked()
	return nil
}

// ApplyInboundMessage 应用入站新消息事件
// 同ID记录已存在时忽略，重复投递不产生双条目
func (s *Synchronizer) ApplyInboundMessage(ev *models.NewMessageEvent, inScope bool) {
	if !inScope {
		return
	}
	s.mu.Lock()
	if s.indexOf(ev.Message.ID) >= 0 {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, ev.Message.Clone())
	s.sortLocked()
	s.mu.Unlock()
	s.notifyUpdate(ev.Conversation)
}

// ApplyTyping 应用对端正在输入事件
func (s *Synchronizer) ApplyTyping(ev *models.TypingEvent, inScope bool) {
	if !inScope {
		return
	}
	if f := s.onTyping.Load(); f != nil {
		f.(TypingHandler)(ev.Conversation, ev.UserID)
	}
}

// ApplyEdited 应用消息编辑事件
// 目标不在当前加载窗口内时忽略；命中则原地改写内容与标记
func (s *Synchronizer) ApplyEdited(ev *models.MessageEditedEvent, inScope bool) {
	if !inScope {
		return
	}
	s.mu.Lock()
	idx := s.indexOf(ev.MessageID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.messages[idx].Content = ev.Content
	s.messages[idx].Edited = true
	s.mu.Unlock()
	s.notifyUpdate(ev.Conversation)
}

// ApplyDeleted 应用消息删除事件
// 墓碑化而非摘除：记录保留原位置与ID，内容改写为占位文本，
// 引用该列表的上层索引保持稳定
func (s *Synchronizer) ApplyDeleted(ev *models.MessageDeletedEvent, inScope bool) {
	if !inScope {
		return
	}
	s.mu.Lock()
	idx := s.indexOf(ev.MessageID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.messages[idx].Content = s.tombstone
	s.messages[idx].Deleted = true
	s.messages[idx].Pinned = false
	s.mu.Unlock()
	s.notifyUpdate(ev.Conversation)
}

// Messages 返回当前列表快照
func (s *Synchronizer) Messages() []*models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Clone())
	}
	return out
}

// LoadedConversation 返回当前列表所属会话
func (s *Synchronizer) LoadedConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Reset 清空本地列表
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.loaded = ""
	s.messages = nil
	s.pinned = nil
	s.mu.Unlock()
}

// insert 插入消息并保持时间序
func (s *Synchronizer) insert(msg *models.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.sortLocked()
	s.mu.Unlock()
}

// remove 按ID移除消息
func (s *Synchronizer) remove(id string) {
	s.mu.Lock()
	if idx := s.indexOf(id); idx >= 0 {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	}
	s.mu.Unlock()
}

// indexOf 按ID定位消息，调用方必须持有锁
func (s *Synchronizer) indexOf(id string) int {
	for i, m := range s.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// sortLocked 按创建时间稳定排序，调用方必须持有锁
func (s *Synchronizer) sortLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreateAt.Before(s.messages[j].CreateAt)
	})
}

// notifyUpdate 通知上层列表已变更
func (s *Synchronizer) notifyUpdate(conversation string) {
	if f := s.onUpdate.Load(); f != nil {
		f.(UpdateHandler)(conversation)
	}
}

// recordFailure 将失败的发送落入本地记录
func (s *Synchronizer) recordFailure(msg *models.ChatMessage, sendErr error) {
	if err := s.outbox.Record(context.Background(), msg, sendErr); err != nil {
		s.logger.WarnKV("失败消息落地失败", "temp_id", msg.ID, "error", err)
	}
}
