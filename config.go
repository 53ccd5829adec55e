/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 09:15:40
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 14:50:23
 * @FilePath: \go-rtcc\config.go
 * @Description: Config 结构体
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package rtcc

import (
	"time"

	wscconfig "github.com/kamalyes/go-config/pkg/wsc"
	"github.com/kamalyes/go-rtcc/call"
	"github.com/kamalyes/go-rtcc/chat"
	"github.com/kamalyes/go-rtcc/client"
	"github.com/kamalyes/go-rtcc/presence"
)

// Config 结构体表示实时通信客户端的配置
// 通道层配置复用 go-config 的 WSC 结构，其余为本客户端的领域参数
type Config struct {
	URL               string         // 服务端地址
	OwnID             string         // 本端用户ID
	Token             string         // 认证凭证
	Channel           *wscconfig.WSC // 通道层配置（重连窗口、缓冲、心跳间隔）
	MaxRecAttempts    int            // 重连次数上限
	AckTimeout        time.Duration  // 同步应答超时
	RingTimeout       time.Duration  // 振铃超时
	CallTeardownGrace time.Duration  // 远端挂断的资源释放宽限期
	TombstoneText     string         // 删除消息的墓碑占位文本
	PresenceTTL       time.Duration  // 在线状态缓存新鲜期
	ICEServers        []string       // STUN/TURN 服务器列表
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig(url, ownID string) *Config {
	return &Config{
		URL:               url,
		OwnID:             ownID,
		Channel:           wscconfig.Default(),
		MaxRecAttempts:    client.DefaultMaxRecAttempts,
		AckTimeout:        client.DefaultAckTimeout,
		RingTimeout:       call.DefaultRingTimeout,
		CallTeardownGrace: call.DefaultTeardownGrace,
		TombstoneText:     chat.DefaultTombstoneText,
		PresenceTTL:       presence.DefaultPresenceTTL,
	}
}

// WithToken 设置认证凭证并返回当前配置对象
func (c *Config) WithToken(token string) *Config {
	c.Token = token
	return c
}

// WithChannel 设置通道层配置并返回当前配置对象
func (c *Config) WithChannel(channel *wscconfig.WSC) *Config {
	c.Channel = channel
	return c
}

// WithMaxRecAttempts 设置重连次数上限并返回当前配置对象
func (c *Config) WithMaxRecAttempts(n int) *Config {
	c.MaxRecAttempts = n
	return c
}

// WithAckTimeout 设置同步应答超时并返回当前配置对象
func (c *Config) WithAckTimeout(d time.Duration) *Config {
	c.AckTimeout = d
	return c
}

// WithRingTimeout 设置振铃超时并返回当前配置对象
func (c *Config) WithRingTimeout(d time.Duration) *Config {
	c.RingTimeout = d
	return c
}

// WithCallTeardownGrace 设置释放宽限期并返回当前配置对象
func (c *Config) WithCallTeardownGrace(d time.Duration) *Config {
	c.CallTeardownGrace = d
	return c
}

// WithTombstoneText 设置墓碑占位文本并返回当前配置对象
func (c *Config) WithTombstoneText(text string) *Config {
	c.TombstoneText = text
	return c
}

// WithPresenceTTL 设置在线状态缓存新鲜期并返回当前配置对象
func (c *Config) WithPresenceTTL(d time.Duration) *Config {
	c.PresenceTTL = d
	return c
}

// WithICEServers 设置STUN/TURN服务器列表并返回当前配置对象
func (c *Config) WithICEServers(servers []string) *Config {
	c.ICEServers = servers
	return c
}
