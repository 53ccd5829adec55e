/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-15 10:40:33
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-22 11:28:50
 * @FilePath: \go-rtcc\client\ack.go
 * @Description: 同步应答机制 - 发布请求并等待服务端的一次性回复
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package client

import (
	"context"
	"sync"
	"time"

	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// DefaultAckTimeout 默认同步应答超时时间
const DefaultAckTimeout = 5 * time.Second

// PendingAck 待应答请求
type PendingAck struct {
	AckID   string             // 请求关联ID
	AckChan chan *AckEvent     // 应答通道
	ctx     context.Context    // 上下文
	cancel  context.CancelFunc // 取消函数
}

// AckManager 同步应答管理器
type AckManager struct {
	pending        map[string]*PendingAck // 待应答请求映射
	mu             sync.RWMutex           // 读写锁
	defaultTimeout time.Duration          // 默认超时时间
}

// NewAckManager 创建同步应答管理器
func NewAckManager(timeout time.Duration) *AckManager {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &AckManager{
		pending:        make(map[string]*PendingAck),
		defaultTimeout: timeout,
	}
}

// Add 添加待应答请求
func (am *AckManager) Add(ackID string, timeout time.Duration) *PendingAck {
	if timeout <= 0 {
		timeout = am.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	pa := &PendingAck{
		AckID:   ackID,
		AckChan: make(chan *AckEvent, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	am.mu.Lock()
	am.pending[ackID] = pa
	am.mu.Unlock()

	return pa
}

// Confirm 应答到达，唤醒等待方
func (am *AckManager) Confirm(ackID string, ack *AckEvent) bool {
	am.mu.Lock()
	pa, exists := am.pending[ackID]
	if exists {
		delete(am.pending, ackID)
	}
	am.mu.Unlock()

	if !exists {
		return false
	}

	// 先发送应答到channel，成功后再cancel context
	select {
	case pa.AckChan <- ack:
		pa.cancel()
		return true
	default:
		pa.cancel()
		return false
	}
}

// Remove 移除待应答请求
func (am *AckManager) Remove(ackID string) {
	am.mu.Lock()
	if pa, exists := am.pending[ackID]; exists {
		pa.cancel()
		delete(am.pending, ackID)
	}
	am.mu.Unlock()
}

// GetPendingCount 获取待应答请求数量
func (am *AckManager) GetPendingCount() int {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return len(am.pending)
}

// Shutdown 关闭管理器，丢弃所有等待中的请求
func (am *AckManager) Shutdown() {
	am.mu.Lock()
	defer am.mu.Unlock()

	for _, pa := range am.pending {
		pa.cancel()
	}
	am.pending = make(map[string]*PendingAck)
}

// Wait 等待应答
// 调用方上下文先结束或请求超时均返回错误
func (pa *PendingAck) Wait(ctx context.Context) (*AckEvent, error) {
	select {
	case ack := <-pa.AckChan:
		return ack, nil
	case <-ctx.Done():
		return nil, errorx.NewError(models.ErrTypeAckTimeout, pa.AckID)
	case <-pa.ctx.Done():
		return nil, errorx.NewError(models.ErrTypeAckTimeout, pa.AckID)
	}
}
