/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 14:35:16
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 17:20:51
 * @FilePath: \go-rtcc\exports_domain.go
 * @Description: 路由/在线状态/消息/通话 各包的类型和函数导出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package rtcc

import (
	"github.com/kamalyes/go-rtcc/call"
	"github.com/kamalyes/go-rtcc/chat"
	"github.com/kamalyes/go-rtcc/presence"
	"github.com/kamalyes/go-rtcc/remote"
	"github.com/kamalyes/go-rtcc/router"
)

// ============================================================================
// Router 导出
// ============================================================================

type (
	Router        = router.Router
	ActiveContext = router.ActiveContext
)

var (
	NewRouter        = router.NewRouter
	NewActiveContext = router.NewActiveContext
)

// ============================================================================
// Presence 导出
// ============================================================================

type (
	PresenceTracker = presence.Tracker
	PresenceQuerier = presence.Querier
	PresenceStore   = presence.Store
)

var (
	NewPresenceTracker = presence.NewTracker
	NewRedisStore      = presence.NewRedisStore
)

// ============================================================================
// Chat 导出
// ============================================================================

type (
	ChatSynchronizer = chat.Synchronizer
	ChatAPI          = chat.API
	Outbox           = chat.Outbox
	OutboxRecord     = chat.OutboxRecord
)

var (
	NewChatSynchronizer = chat.NewSynchronizer
	NewOutbox           = chat.NewOutbox
	OpenOutbox          = chat.OpenOutbox
)

// ============================================================================
// Call 导出
// ============================================================================

type (
	CallEngine      = call.Engine
	CallAPI         = call.API
	MediaProvider   = call.MediaProvider
	AudioSource     = call.AudioSource
	PeerConnection  = call.PeerConnection
	RemoteAudioSink = call.RemoteAudioSink
	PeerConfig      = call.PeerConfig
)

var (
	NewCallEngine = call.NewEngine
)

// ============================================================================
// Remote 导出
// ============================================================================

type RemoteClient = remote.Client

var NewRemoteClient = remote.NewClient
