/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 14:08:27
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 17:11:33
 * @FilePath: \go-rtcc\exports_models.go
 * @Description: Models 包的类型和函数导出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package rtcc

import (
	"github.com/kamalyes/go-rtcc/models"
)

// ============================================================================
// Models 类型导出
// ============================================================================

type (
	ConnectionStatus = models.ConnectionStatus
	PresenceStatus   = models.PresenceStatus
	PresenceSource   = models.PresenceSource
	CallStatus       = models.CallStatus
	CallRole         = models.CallRole
	SDPKind          = models.SDPKind
	EventKind        = models.EventKind
	Envelope         = models.Envelope
	Event            = models.Event
	ChatMessage      = models.ChatMessage
	CallSession      = models.CallSession
	ICECandidate     = models.ICECandidate
	AckEvent         = models.AckEvent
)

// ============================================================================
// Models 常量导出
// ============================================================================

const (
	ConnectionStatusDisconnected = models.ConnectionStatusDisconnected
	ConnectionStatusConnecting   = models.ConnectionStatusConnecting
	ConnectionStatusConnected    = models.ConnectionStatusConnected
	ConnectionStatusReconnecting = models.ConnectionStatusReconnecting
	ConnectionStatusError        = models.ConnectionStatusError

	PresenceStatusOnline  = models.PresenceStatusOnline
	PresenceStatusOffline = models.PresenceStatusOffline

	CallStatusIdle       = models.CallStatusIdle
	CallStatusInitiating = models.CallStatusInitiating
	CallStatusRinging    = models.CallStatusRinging
	CallStatusActive     = models.CallStatusActive

	CallRoleCaller   = models.CallRoleCaller
	CallRoleReceiver = models.CallRoleReceiver

	TempIDPrefix = models.TempIDPrefix
)

// ============================================================================
// Models 函数与错误导出
// ============================================================================

var (
	EncodeEnvelope = models.EncodeEnvelope
	DecodeEnvelope = models.DecodeEnvelope
	DecodeEvent    = models.DecodeEvent

	IsRetryableError = models.IsRetryableError

	ErrCredentialMissing  = models.ErrCredentialMissing
	ErrCredentialRejected = models.ErrCredentialRejected
	ErrConnectionClosed   = models.ErrConnectionClosed
	ErrCallAlreadyActive  = models.ErrCallAlreadyActive
	ErrNotInCall          = models.ErrNotInCall
)
