/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-18 15:21:48
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-27 10:03:12
 * @FilePath: \go-rtcc\chat\pinned.go
 * @Description: 置顶子集 - 远端委托与缓存失效
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package chat

import (
	"context"
	"time"

	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// Pin 置顶消息
// 置顶顺序等元数据由服务端维护，本地不做增量修补，
// 委托远端后无条件重拉置顶子集
func (s *Synchronizer) Pin(ctx context.Context, conversation, messageID string) error {
	if err := s.api.Pin(ctx, conversation, messageID); err != nil {
		return errorx.WrapError("failed to pin message", err)
	}
	return s.refetchPinned(ctx, conversation)
}

// Unpin 取消置顶
func (s *Synchronizer) Unpin(ctx context.Context, conversation, messageID string) error {
	if err := s.api.Unpin(ctx, conversation, messageID); err != nil {
		return errorx.WrapError("failed to unpin message", err)
	}
	return s.refetchPinned(ctx, conversation)
}

// Pinned 返回置顶子集快照（服务端序）
func (s *Synchronizer) Pinned() []*models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ChatMessage, 0, len(s.pinned))
	for _, m := range s.pinned {
		out = append(out, m.Clone())
	}
	return out
}

// InvalidatePinned 置顶缓存失效
// 被删除的消息可能正被置顶，删除事件到达时无论会话是否活动都会触发；
// 仅当失效目标是当前加载会话时才重拉，其余会话本地无缓存可失效
func (s *Synchronizer) InvalidatePinned(scope string) {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if scope == "" || loaded != scope {
		return
	}

	syncx.Go().WithTimeout(5 * time.Second).OnError(func(err error) {
		s.logger.WarnKV("置顶缓存重拉失败", "conversation", scope, "error", err)
	}).ExecWithContext(func(ctx context.Context) error {
		return s.refetchPinned(ctx, scope)
	})
}

// refetchPinned 重拉置顶子集
// 往返返回后重读当前加载会话，目标已切换时丢弃结果
func (s *Synchronizer) refetchPinned(ctx context.Context, conversation string) error {
	pinned, err := s.api.FetchPinned(ctx, conversation)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.loaded == conversation {
		s.pinned = make([]*models.ChatMessage, 0, len(pinned))
		for i := range pinned {
			s.pinned = append(s.pinned, pinned[i].Clone())
		}
	}
	s.mu.Unlock()
	s.notifyUpdate(conversation)
	return nil
}
