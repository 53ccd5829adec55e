/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-15 09:20:11
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-22 10:06:40
 * @FilePath: \go-rtcc\client\aliases.go
 * @Description: Client 类型别名 - 为 models 包中的类型创建别名，便于在 client 层使用
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package client

import (
	"github.com/kamalyes/go-rtcc/models"
)

// ============================================================================
// 类型别名 - 从 models 包导入
// ============================================================================

type (
	ConnectionStatus = models.ConnectionStatus
	EventKind        = models.EventKind
	Envelope         = models.Envelope
	Event            = models.Event
	AckEvent         = models.AckEvent
)

// 常量别名
const (
	ConnectionStatusConnecting   = models.ConnectionStatusConnecting
	ConnectionStatusConnected    = models.ConnectionStatusConnected
	ConnectionStatusDisconnected = models.ConnectionStatusDisconnected
	ConnectionStatusReconnecting = models.ConnectionStatusReconnecting
	ConnectionStatusError        = models.ConnectionStatusError
)

// 错误别名
var (
	ErrCredentialMissing  = models.ErrCredentialMissing
	ErrCredentialRejected = models.ErrCredentialRejected
	ErrConnectionClosed   = models.ErrConnectionClosed
	ErrMessageBufferFull  = models.ErrMessageBufferFull
	ErrSendChannelFull    = models.ErrSendChannelFull
)
