/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-15 11:30:44
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-28 00:02:15
 * @FilePath: \go-rtcc\client\heartbeat.go
 * @Description: 心跳循环 - 固定间隔的存活信号
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package client

import (
	"context"
	"time"

	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// heartbeatPayload 心跳负载
type heartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"` // 发出时间
}

// startHeartbeat 启动心跳循环
// 连接存续期间按固定间隔发出存活信号；回执不作为健康判定依据，
// 仅用于保持本端在线状态新鲜（通过 OnHeartbeat 回调通知上层）
func (c *Channel) startHeartbeat() {
	interval := c.Config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.hbCancelMu.Lock()
	if c.hbCancel != nil {
		c.hbCancel()
	}
	c.hbCancel = cancel
	c.hbCancelMu.Unlock()

	go syncx.NewEventLoop(ctx).
		// 心跳定时器：即发即弃，不跟踪超时
		OnTicker(interval, c.emitHeartbeat).
		OnPanic(func(r interface{}) {
			c.logger.ErrorKV("心跳循环panic", "panic", r)
		}).
		OnShutdown(func() {
			c.logger.DebugKV("心跳循环已停止")
		}).
		Run()
}

// stopHeartbeat 停止心跳循环
func (c *Channel) stopHeartbeat() {
	c.hbCancelMu.Lock()
	if c.hbCancel != nil {
		c.hbCancel()
		c.hbCancel = nil
	}
	c.hbCancelMu.Unlock()
}

// emitHeartbeat 发出一次心跳
func (c *Channel) emitHeartbeat() {
	if !c.IsConnected() {
		return
	}
	now := time.Now()
	if err := c.Publish(models.EventKindHeartbeat, "", &heartbeatPayload{Timestamp: now}); err != nil {
		c.logger.DebugKV("心跳发送失败", "error", err)
		return
	}
	c.lastHeartbeat.Store(now)
	if f := c.onHeartbeat.Load(); f != nil {
		f.(func(time.Time))(now)
	}
}
