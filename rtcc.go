/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 11:30:52
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 16:44:08
 * @FilePath: \go-rtcc\rtcc.go
 * @Description: 实时通信客户端门面 - 装配通道、路由与各子系统
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package rtcc

import (
	"context"
	"time"

	"github.com/kamalyes/go-rtcc/call"
	"github.com/kamalyes/go-rtcc/chat"
	"github.com/kamalyes/go-rtcc/client"
	"github.com/kamalyes/go-rtcc/presence"
	"github.com/kamalyes/go-rtcc/remote"
	"github.com/kamalyes/go-rtcc/router"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// Client 实时通信客户端
// 持有唯一的持久通道并装配路由器与各子系统；
// 子系统各自管理自己的实体集，通道由全体共享
type Client struct {
	cfg      *Config
	channel  *client.Channel
	active   *router.ActiveContext
	router   *router.Router
	remote   *remote.Client
	presence *presence.Tracker
	chat     *chat.Synchronizer
	call     *call.Engine
	logger   RTCCLogger
}

// New 创建实时通信客户端
// provider 为媒体能力提供方（如 media.NewPionProvider()）
func New(cfg *Config, provider call.MediaProvider) *Client {
	log := initLogger(cfg.Channel)

	ch := client.NewChannel(cfg.URL).
		WithMaxRecAttempts(cfg.MaxRecAttempts).
		WithAckTimeout(cfg.AckTimeout)
	if cfg.Channel != nil {
		ch.SetConfig(cfg.Channel)
	}
	ch.SetLogger(log)
	if cfg.Token != "" {
		ch.SetCredential(cfg.Token)
	}

	active := router.NewActiveContext()
	rt := router.NewRouter(active)
	rt.SetLogger(log)

	rem := remote.NewClient(ch)

	tracker := presence.NewTracker(cfg.OwnID, rem).
		WithTTL(cfg.PresenceTTL).
		SetLogger(log)

	sync := chat.NewSynchronizer(cfg.OwnID, rem, active).
		WithTombstoneText(cfg.TombstoneText).
		SetLogger(log)

	engine := call.NewEngine(cfg.OwnID, provider, rem, ch).
		WithRingTimeout(cfg.RingTimeout).
		WithTeardownGrace(cfg.CallTeardownGrace).
		WithICEServers(cfg.ICEServers).
		SetLogger(log)

	rt.SetChatSink(sync)
	rt.SetPresenceSink(tracker)
	rt.SetCallSink(engine)
	rt.SetPinnedInvalidator(sync)
	rt.Attach(ch)

	c := &Client{
		cfg:      cfg,
		channel:  ch,
		active:   active,
		router:   rt,
		remote:   rem,
		presence: tracker,
		chat:     sync,
		call:     engine,
		logger:   log,
	}
	c.wireChannelCallbacks()
	return c
}

// wireChannelCallbacks 挂接通道生命周期回调
// 本端在线状态在连接成功与每次心跳时刷新，不依赖服务端推送；
// 重连成功后重建作用域订阅的状态（重加入当前活动会话）
func (c *Client) wireChannelCallbacks() {
	c.channel.OnConnected(func() {
		c.presence.MarkSelfOnline()
		c.logger.InfoKV("通道已连接", "own_id", c.cfg.OwnID)
	})

	c.channel.OnHeartbeat(func(_ time.Time) {
		c.presence.MarkSelfOnline()
	})

	c.channel.OnDisconnected(func(err error) {
		c.presence.MarkSelfOffline()
		c.logger.WarnKV("通道已断开", "error", err)
	})

	c.channel.OnReconnected(func() {
		c.presence.MarkSelfOnline()
		scope := c.active.Current()
		if scope == "" {
			return
		}
		// 重连后重加入当前活动会话
		syncx.Go().WithTimeout(10 * time.Second).OnError(func(err error) {
			c.logger.WarnKV("重连后会话重加载失败", "conversation", scope, "error", err)
		}).ExecWithContext(func(ctx context.Context) error {
			return c.chat.LoadConversation(ctx, scope)
		})
	})
}

// WithCredential 更新认证凭证
func (c *Client) WithCredential(token string) *Client {
	c.channel.SetCredential(token)
	return c
}

// WithPresenceStore 挂载在线状态共享镜像并订阅其变更广播
func (c *Client) WithPresenceStore(store presence.Store) error {
	c.presence.WithStore(store)
	return c.presence.AttachStore()
}

// WithOutbox 挂载发送失败记录仓库
func (c *Client) WithOutbox(outbox *chat.Outbox) *Client {
	c.chat.WithOutbox(outbox)
	return c
}

// Connect 建立通道会话
// 幂等：已有存活会话时直接复用而不是再开一条
func (c *Client) Connect() error {
	// 使用 Console 分组记录启动日志
	cg := c.logger.NewConsoleGroup()
	cg.Group("🚀 RTCC 客户端启动")

	cg.Table(map[string]interface{}{
		"用户ID":   c.cfg.OwnID,
		"服务端地址":  c.cfg.URL,
		"心跳间隔":   c.channel.Config.HeartbeatInterval,
		"重连次数上限": c.cfg.MaxRecAttempts,
		"应答超时":   c.cfg.AckTimeout,
	})

	if err := c.channel.Connect(); err != nil {
		cg.Warn("⚠️ 通道建立失败: %v", err)
		cg.GroupEnd()
		return err
	}

	cg.Info("✅ 通道已就绪")
	cg.GroupEnd()
	return nil
}

// Close 结束通道会话
// 先尽力冲刷下线通知，再清空本地状态；不阻塞调用方
func (c *Client) Close() {
	c.channel.CloseWithMsg("logout")
	c.active.Clear()
	c.chat.Reset()
	c.presence.Reset()
}

// OpenConversation 切换并加载会话
func (c *Client) OpenConversation(ctx context.Context, conversation string) error {
	return c.chat.LoadConversation(ctx, conversation)
}

// CloseConversation 退出当前会话
func (c *Client) CloseConversation() {
	c.active.Clear()
	c.chat.Reset()
}

// Channel 通道层访问器
func (c *Client) Channel() *client.Channel {
	return c.channel
}

// Router 路由器访问器
func (c *Client) Router() *router.Router {
	return c.router
}

// Presence 在线状态跟踪器访问器
func (c *Client) Presence() *presence.Tracker {
	return c.presence
}

// Chat 消息同步器访问器
func (c *Client) Chat() *chat.Synchronizer {
	return c.chat
}

// Call 通话信令引擎访问器
func (c *Client) Call() *call.Engine {
	return c.call
}

// Remote 请求/应答客户端访问器
func (c *Client) Remote() *remote.Client {
	return c.remote
}
