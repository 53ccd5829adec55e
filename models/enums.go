/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-14 10:12:30
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-21 09:40:12
 * @FilePath: \go-rtcc\models\enums.go
 * @Description: 枚举类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

// ConnectionStatus 通道连接状态
type ConnectionStatus string

const (
	ConnectionStatusDisconnected ConnectionStatus = "disconnected" // 未连接
	ConnectionStatusConnecting   ConnectionStatus = "connecting"   // 连接中
	ConnectionStatusConnected    ConnectionStatus = "connected"    // 已连接
	ConnectionStatusReconnecting ConnectionStatus = "reconnecting" // 重连中
	ConnectionStatusError        ConnectionStatus = "error"        // 连接错误
)

// String 实现Stringer接口
func (s ConnectionStatus) String() string {
	return string(s)
}

// PresenceStatus 在线状态
type PresenceStatus string

const (
	PresenceStatusOnline  PresenceStatus = "online"  // 在线
	PresenceStatusOffline PresenceStatus = "offline" // 离线
)

// String 实现Stringer接口
func (s PresenceStatus) String() string {
	return string(s)
}

// IsValid 检查在线状态是否有效
func (s PresenceStatus) IsValid() bool {
	return s == PresenceStatusOnline || s == PresenceStatusOffline
}

// PresenceSource 在线状态来源，决定覆盖优先级
// 推送事件 > 自身心跳刷新 > 查询响应回填
type PresenceSource int

const (
	PresenceSourceQuery     PresenceSource = iota // 查询响应回填
	PresenceSourceHeartbeat                       // 自身心跳刷新
	PresenceSourcePush                            // 服务端推送（权威）
)

// CallStatus 通话会话状态
type CallStatus string

const (
	CallStatusIdle       CallStatus = "idle"       // 空闲
	CallStatusInitiating CallStatus = "initiating" // 发起中（等待房间分配）
	CallStatusRinging    CallStatus = "ringing"    // 振铃中
	CallStatusActive     CallStatus = "active"     // 通话中
)

// String 实现Stringer接口
func (s CallStatus) String() string {
	return string(s)
}

// SDPKind 会话描述类型
type SDPKind string

const (
	SDPKindOffer  SDPKind = "offer"  // 提议
	SDPKindAnswer SDPKind = "answer" // 应答
)

// CallRole 本端在通话中的角色
type CallRole string

const (
	CallRoleCaller   CallRole = "caller"   // 主叫
	CallRoleReceiver CallRole = "receiver" // 被叫
)
