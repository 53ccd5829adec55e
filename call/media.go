/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-20 10:05:27
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-26 14:22:09
 * @FilePath: \go-rtcc\call\media.go
 * @Description: 媒体能力接口 - 引擎驱动但不实现的外部协作方
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package call

import (
	"context"

	"github.com/kamalyes/go-rtcc/models"
)

// PeerConfig 对等连接配置
type PeerConfig struct {
	ICEServers []string // STUN/TURN 服务器地址
}

// AudioSource 本地音频源
// 静音切换只改 enabled 标志，不触发重新协商
type AudioSource interface {
	// SetEnabled 切换采集开关
	SetEnabled(enabled bool)
	// Enabled 当前采集开关
	Enabled() bool
	// Close 释放音频设备
	Close() error
}

// RemoteAudioSink 远端音频落点
type RemoteAudioSink interface {
	// Close 停止播放并释放
	Close() error
}

// PeerConnection 对等连接
// 引擎只做配置与驱动：挂本地轨、收候选与远端轨回调、
// 生成与应用会话描述；编解码与传输由实现方承担
type PeerConnection interface {
	// AddAudioSource 挂载本地音频轨
	AddAudioSource(src AudioSource) error
	// OnICECandidate 注册本地候选产出回调
	OnICECandidate(handler func(candidate models.ICECandidate))
	// OnRemoteAudio 注册远端音频到达回调
	OnRemoteAudio(handler func(sink RemoteAudioSink))
	// CreateOffer 生成提议并设为本地描述
	CreateOffer(ctx context.Context) (string, error)
	// CreateAnswer 生成应答并设为本地描述
	CreateAnswer(ctx context.Context) (string, error)
	// SetRemoteDescription 应用远端描述
	SetRemoteDescription(kind models.SDPKind, sdp string) error
	// AddICECandidate 应用远端候选
	AddICECandidate(candidate models.ICECandidate) error
	// Close 关闭连接
	Close() error
}

// MediaProvider 媒体能力提供方
// 来电振铃时不预先取用：麦克风与对等连接都推迟到接听时获取
type MediaProvider interface {
	// AcquireAudio 获取本地音频源（麦克风）
	AcquireAudio(ctx context.Context) (AudioSource, error)
	// NewPeerConnection 构建对等连接
	NewPeerConnection(cfg PeerConfig) (PeerConnection, error)
}
