/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 14:20:43
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 17:14:05
 * @FilePath: \go-rtcc\exports_client.go
 * @Description: Client 包的类型和函数导出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package rtcc

import (
	"github.com/kamalyes/go-rtcc/client"
)

// ============================================================================
// Client 类型导出
// ============================================================================

type (
	Channel        = client.Channel
	WebSocket      = client.WebSocket
	ChannelMessage = client.ChannelMessage
	EventHandler   = client.EventHandler
	AckManager     = client.AckManager
	PendingAck     = client.PendingAck
)

// ============================================================================
// Client 函数导出
// ============================================================================

var (
	NewChannel    = client.NewChannel
	NewWebSocket  = client.NewWebSocket
	NewAckManager = client.NewAckManager
)

// ============================================================================
// Channel 方法速览 - 通过 Channel 实例调用
// ============================================================================

// 例如：ch := rtcc.NewChannel(url); ch.SetCredential(token); ch.Connect()

// 连接管理：
// - Connect() error: 幂等建连，凭证缺失/被拒返回连接错误
// - Close() / CloseWithMsg(msg string): 主动关闭，先冲刷下线通知
// - GetConnectionStatus() / IsConnected() / IsConnecting() / Closed()

// 发布订阅：
// - Publish(event, scope, payload) error: 即发即弃
// - PublishWithAck(ctx, event, scope, payload) (*AckEvent, error): 等待同步应答
// - Subscribe(kind, handler) int / Unsubscribe(kind, id)

// 回调设置：
// - OnConnected / OnConnectError / OnDisconnected / OnClose
// - OnReconnected: 重连成功，上层在此重建作用域订阅
// - OnHeartbeat: 每次心跳发出后调用
