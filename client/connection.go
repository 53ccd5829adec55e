/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-15 10:08:26
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-28 00:41:33
 * @FilePath: \go-rtcc\client\connection.go
 * @Description: 连接管理逻辑 - 幂等连接、有界重连、资源清理
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package client

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// Connect 发起连接
// 幂等：已存在活动连接时直接返回 nil，不会打开第二条通道
// 凭证缺失或被服务端拒绝时返回连接错误，不做无限重试
func (c *Channel) Connect() error {
	if c.IsConnected() || c.IsConnecting() {
		return nil
	}
	if c.Credential() == "" {
		return ErrCredentialMissing
	}

	// 转换到连接中状态
	if err := c.stateMachine.TransitionTo(ConnectionStatusConnecting); err != nil {
		return errorx.NewError(models.ErrTypeStateConflict, err.Error())
	}

	c.initSendChannel()
	if err := c.attemptConnection(); err != nil {
		_ = c.stateMachine.TransitionTo(ConnectionStatusError)
		_ = c.stateMachine.TransitionTo(ConnectionStatusDisconnected)
		c.handleConnectError(err)
		return err
	}
	c.onConnectionSuccess(false)
	return nil
}

// initSendChannel 初始化/重置发送通道以及其关闭控制结构（支持断线重连后的再次关闭）
func (c *Channel) initSendChannel() {
	c.WebSocket.sendChanMu.Lock()
	// 创建新的缓冲通道(替换旧引用)
	c.WebSocket.sendChan = make(chan *ChannelMessage, c.Config.MessageBufferSize)
	// 重置 sync.Once，允许重新关闭通道
	c.WebSocket.sendChanOnce = sync.Once{}
	// 重置关闭标志
	atomic.StoreInt32(&c.WebSocket.sendChanClosed, 0)
	c.WebSocket.sendChanMu.Unlock()
}

// createBackoff 创建重连退避策略
func (c *Channel) createBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    c.Config.MinRecTime,
		Max:    c.Config.MaxRecTime,
		Factor: c.Config.RecFactor,
		Jitter: true,
	}
}

// attemptConnection 尝试建立连接
func (c *Channel) attemptConnection() error {
	var err error
	c.WebSocket.Conn, c.WebSocket.HttpResponse, err =
		c.WebSocket.Dialer.Dial(c.WebSocket.Url, c.WebSocket.RequestHeader)
	if err != nil {
		// 握手阶段的 401/403 视为凭证被拒绝
		if resp := c.WebSocket.HttpResponse; resp != nil &&
			(resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return ErrCredentialRejected
		}
		return errorx.WrapError("channel dial failed", err)
	}
	return nil
}

// handleConnectError 处理连接错误
func (c *Channel) handleConnectError(err error) {
	if f := c.onConnectError.Load(); f != nil {
		f.(func(error))(err)
	}
}

// onConnectionSuccess 连接成功后的处理
// reconnected 标记本次是否为重连恢复
func (c *Channel) onConnectionSuccess(reconnected bool) {
	// 变更连接状态
	c.WebSocket.connMu.Lock()
	c.WebSocket.isConnected = true
	c.WebSocket.connMu.Unlock()
	_ = c.stateMachine.TransitionTo(ConnectionStatusConnected)

	// 设置支持接受的消息最大长度
	c.WebSocket.Conn.SetReadLimit(c.Config.MaxMessageSize)
	// 设置关闭、ping 和 pong 处理
	c.setupHandlers()
	// 启动读写协程和心跳循环
	go c.readMessages()
	go c.writeMessages()
	c.startHeartbeat()

	if reconnected {
		if f := c.onReconnected.Load(); f != nil {
			f.(func())()
		}
	} else {
		if f := c.onConnected.Load(); f != nil {
			f.(func())()
		}
	}
}

// setupHandlers 设置关闭处理函数
func (c *Channel) setupHandlers() {
	defaultCloseHandler := c.WebSocket.Conn.CloseHandler()
	c.WebSocket.Conn.SetCloseHandler(func(code int, text string) error {
		result := defaultCloseHandler(code, text)
		c.clean()
		if f := c.onClose.Load(); f != nil {
			f.(func(int, string))(code, text)
		}
		return result
	})
}

// readMessages 启动读消息的协程
func (c *Channel) readMessages() {
	for {
		messageType, message, err := c.WebSocket.Conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatchInbound(message)
	}
}

// handleReadError 处理读取消息时的错误
func (c *Channel) handleReadError(err error) {
	// 主动关闭场景下状态已是断开，直接退出读协程
	if c.Closed() {
		return
	}
	// 异常断线，通知断线回调
	if f := c.onDisconnected.Load(); f != nil {
		f.(func(error))(err)
	}
	// 根据配置决定是否重连
	if c.Config == nil || c.Config.AutoReconnect {
		c.clean()
		go c.reconnectLoop()
	} else {
		c.clean()
	}
}

// reconnectLoop 有界重连
// 每次间隔由退避策略给出，耗尽后停在断开状态并通过连接错误回调上抛
func (c *Channel) reconnectLoop() {
	if err := c.stateMachine.TransitionTo(ConnectionStatusReconnecting); err != nil {
		return
	}
	c.initSendChannel()
	b := c.createBackoff()
	for attempt := 1; attempt <= c.maxRecAttempts; attempt++ {
		time.Sleep(b.Duration())
		if err := c.attemptConnection(); err != nil {
			c.logger.WarnKV("通道重连失败", "attempt", attempt, "max", c.maxRecAttempts, "error", err)
			continue
		}
		c.logger.InfoKV("通道重连成功", "attempt", attempt)
		c.onConnectionSuccess(true)
		return
	}
	_ = c.stateMachine.TransitionTo(ConnectionStatusError)
	_ = c.stateMachine.TransitionTo(ConnectionStatusDisconnected)
	c.handleConnectError(errorx.NewError(models.ErrTypeReconnectExhausted, c.maxRecAttempts))
}

// writeMessages 启动写消息的协程
// 该方法不断从发送消息的通道中读取消息，并将其发送到 WebSocket 连接中
func (c *Channel) writeMessages() {
	// 捕获当前的 sendChan 引用（读锁保护期间读取）
	c.WebSocket.sendChanMu.RLock()
	sendChan := c.WebSocket.sendChan
	c.WebSocket.sendChanMu.RUnlock()
	for msg := range sendChan {
		if err := c.sendRaw(msg.T, msg.Msg); err != nil {
			c.logger.DebugKV("通道发送失败", "error", err)
			continue
		}
		if msg.T == websocket.CloseMessage {
			return
		}
	}
}

// Close 主动关闭连接
func (c *Channel) Close() {
	c.CloseWithMsg("")
}

// CloseWithMsg 主动关闭连接并附带消息
func (c *Channel) CloseWithMsg(msg string) {
	if c.Closed() {
		return
	}
	c.flushGoodbye()
	_ = c.sendRaw(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, msg))
	c.clean()
	if f := c.onClose.Load(); f != nil {
		f.(func(int, string))(websocket.CloseNormalClosure, msg)
	}
}

// flushGoodbye 页面/进程拆除前尽力送出下线通知
// 即发即弃，不阻塞关闭流程
func (c *Channel) flushGoodbye() {
	env := &Envelope{Event: models.EventKind("logout")}
	data, err := models.EncodeEnvelope(env)
	if err != nil {
		return
	}
	syncx.Go().
		WithTimeout(500 * time.Millisecond).
		OnError(func(err error) {
			c.logger.DebugKV("下线通知发送失败", "error", err)
		}).
		ExecWithContext(func(ctx context.Context) error {
			return c.sendRaw(websocket.TextMessage, data)
		})
}

// clean 清理资源
func (c *Channel) clean() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 先转换状态为Disconnected,确保Closed()立即返回true
	_ = c.stateMachine.TransitionTo(ConnectionStatusDisconnected)

	// 停止心跳循环
	c.stopHeartbeat()
	// 丢弃所有等待中的同步应答
	c.ackManager.Shutdown()

	if c.WebSocket == nil {
		return
	}

	c.WebSocket.connMu.Lock()
	c.WebSocket.isConnected = false
	if c.WebSocket.Conn != nil {
		_ = c.WebSocket.Conn.Close()
	}
	// 原子关闭 sendChan（写锁保护）
	c.WebSocket.sendChanMu.Lock()
	c.WebSocket.sendChanOnce.Do(func() {
		atomic.StoreInt32(&c.WebSocket.sendChanClosed, 1)
		close(c.WebSocket.sendChan)
	})
	c.WebSocket.sendChanMu.Unlock()
	c.WebSocket.connMu.Unlock()
}
