/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-15 09:31:02
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-27 23:12:54
 * @FilePath: \go-rtcc\client\channel.go
 * @Description: Channel 结构体及其方法 - 单一持久通道的所有者
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
	wscconfig "github.com/kamalyes/go-config/pkg/wsc"
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/safe"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// DefaultMaxRecAttempts 默认重连次数上限
// 重连是有界的：耗尽后停在断开状态，由上层决定是否重新 Connect
const DefaultMaxRecAttempts = 5

// Channel 结构体表示到服务端的单一持久通道
// 整个进程内由所有子系统共享，上层通过发布/订阅接口使用
type Channel struct {
	mu             sync.Mutex                            // 互斥锁，用于保护并发访问
	Config         *wscconfig.WSC                        // 配置信息
	WebSocket      *WebSocket                            // 底层 WebSocket 连接
	stateMachine   *syncx.StateMachine[ConnectionStatus] // 连接状态机
	maxRecAttempts int                                   // 重连次数上限
	logger         logger.ILogger                        // 日志器

	credential    atomic.Value // 认证凭证 string，缺失时拒绝建立会话
	subs          *subscriberRegistry
	ackManager    *AckManager
	hbCancel      context.CancelFunc // 心跳循环取消函数
	hbCancelMu    sync.Mutex
	lastHeartbeat atomic.Value // time.Time 最近一次心跳发出时间

	// 连接相关的回调函数
	onConnected    atomic.Value // 连接成功回调 func()
	onConnectError atomic.Value // 连接错误回调 func(error)
	onDisconnected atomic.Value // 连接断开回调 func(error)
	onClose        atomic.Value // 连接关闭回调 func(int, string)
	onReconnected  atomic.Value // 重连成功回调 func()，上层在此重建作用域订阅
	onHeartbeat    atomic.Value // 心跳回调 func(time.Time)，用于刷新本端在线状态
}

// NewChannel 创建一个新的通道
// 参数 url: 服务端地址
func NewChannel(url string) *Channel {
	// 初始化状态机
	sm := syncx.NewStateMachine(ConnectionStatusDisconnected)
	// 配置允许的状态转换
	sm.AllowTransitions(ConnectionStatusDisconnected, ConnectionStatusConnecting, ConnectionStatusReconnecting)
	sm.AllowTransitions(ConnectionStatusConnecting, ConnectionStatusConnected, ConnectionStatusDisconnected, ConnectionStatusError)
	sm.AllowTransitions(ConnectionStatusConnected, ConnectionStatusDisconnected, ConnectionStatusError, ConnectionStatusReconnecting)
	sm.AllowTransitions(ConnectionStatusReconnecting, ConnectionStatusConnected, ConnectionStatusDisconnected, ConnectionStatusError)
	sm.AllowTransitions(ConnectionStatusError, ConnectionStatusDisconnected, ConnectionStatusReconnecting)

	return &Channel{
		Config:         safe.MergeWithDefaults[wscconfig.WSC](nil, wscconfig.Default()),
		WebSocket:      NewWebSocket(url),
		stateMachine:   sm,
		maxRecAttempts: DefaultMaxRecAttempts,
		logger:         logger.NewEmptyLogger(),
		subs:           newSubscriberRegistry(),
		ackManager:     NewAckManager(0),
	}
}

// SetConfig 设置通道配置
func (c *Channel) SetConfig(config *wscconfig.WSC) {
	c.Config = config
}

// SetLogger 设置日志器
func (c *Channel) SetLogger(l logger.ILogger) {
	c.logger = l
}

// WithMaxRecAttempts 设置重连次数上限
func (c *Channel) WithMaxRecAttempts(n int) *Channel {
	if n > 0 {
		c.maxRecAttempts = n
	}
	return c
}

// WithAckTimeout 设置同步应答默认超时
// 连接建立前调用
func (c *Channel) WithAckTimeout(d time.Duration) *Channel {
	if d > 0 {
		c.ackManager = NewAckManager(d)
	}
	return c
}

// SetCredential 设置认证凭证
// 凭证随拨号请求头发送，服务端据此接受或拒绝会话
func (c *Channel) SetCredential(token string) {
	c.credential.Store(token)
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	c.WebSocket.WithRequestHeader(header)
}

// Credential 获取当前凭证
func (c *Channel) Credential() string {
	if v := c.credential.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// OnConnected 设置连接成功的回调
func (c *Channel) OnConnected(f func()) {
	c.onConnected.Store(f)
}

// OnConnectError 设置连接出错的回调
func (c *Channel) OnConnectError(f func(err error)) {
	c.onConnectError.Store(f)
}

// OnDisconnected 设置连接断开的回调
func (c *Channel) OnDisconnected(f func(err error)) {
	c.onDisconnected.Store(f)
}

// OnClose 设置连接关闭的回调
func (c *Channel) OnClose(f func(code int, text string)) {
	c.onClose.Store(f)
}

// OnReconnected 设置重连成功的回调
// 依赖作用域订阅的状态（如当前会话的加入）需要在此回调中重建
func (c *Channel) OnReconnected(f func()) {
	c.onReconnected.Store(f)
}

// OnHeartbeat 设置心跳回调
// 每次心跳发出后调用，参数为发出时间
func (c *Channel) OnHeartbeat(f func(t time.Time)) {
	c.onHeartbeat.Store(f)
}

// GetConnectionStatus 获取当前连接状态
func (c *Channel) GetConnectionStatus() ConnectionStatus {
	return c.stateMachine.CurrentState()
}

// IsConnected 检查是否已连接
func (c *Channel) IsConnected() bool {
	return c.stateMachine.CurrentState() == ConnectionStatusConnected
}

// IsConnecting 检查是否正在连接
func (c *Channel) IsConnecting() bool {
	state := c.stateMachine.CurrentState()
	return state == ConnectionStatusConnecting || state == ConnectionStatusReconnecting
}

// Closed 返回连接是否处于断开状态
func (c *Channel) Closed() bool {
	return c.stateMachine.CurrentState() == ConnectionStatusDisconnected
}

// LastHeartbeat 获取最近一次心跳发出时间
func (c *Channel) LastHeartbeat() time.Time {
	if v := c.lastHeartbeat.Load(); v != nil {
		return v.(time.Time)
	}
	return time.Time{}
}

// sendRaw 发送消息到连接端
func (c *Channel) sendRaw(messageType int, data []byte) error {
	c.WebSocket.sendMu.Lock()
	defer c.WebSocket.sendMu.Unlock()

	// 使用读锁保护连接状态和 Conn 的访问
	c.WebSocket.connMu.RLock()
	if !c.WebSocket.isConnected {
		c.WebSocket.connMu.RUnlock()
		return ErrConnectionClosed
	}
	conn := c.WebSocket.Conn
	c.WebSocket.connMu.RUnlock()

	// 设置写超时
	_ = conn.SetWriteDeadline(time.Now().Add(c.Config.WriteTimeout))
	return conn.WriteMessage(messageType, data)
}

// enqueue 将帧放入发送缓冲池
func (c *Channel) enqueue(data []byte) error {
	if c.Closed() {
		return ErrConnectionClosed
	}
	// 读锁保护 sendChan 指针与关闭标志一致性
	c.WebSocket.sendChanMu.RLock()
	defer c.WebSocket.sendChanMu.RUnlock()
	if atomic.LoadInt32(&c.WebSocket.sendChanClosed) == 1 {
		return ErrConnectionClosed
	}
	select {
	case c.WebSocket.sendChan <- &ChannelMessage{T: websocket.TextMessage, Msg: data}:
		return nil
	default:
		return ErrMessageBufferFull
	}
}
