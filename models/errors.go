/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-14 10:30:18
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-23 22:17:45
 * @FilePath: \go-rtcc\models\errors.go
 * @Description: 实时通信错误定义 - 基于errorx.BaseError模式
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// 错误类型定义，基于errorx.ErrorType
type ErrorType = errorx.ErrorType

// 实时通信错误码常量定义
// 使用 83xxx 区间，避免与其他包冲突（RTCC = Real-Time Communication Client）
const (
	// 连接相关错误 (83100-83199)
	ErrTypeCredentialMissing  ErrorType = 83101 // 凭证缺失，无法建立会话
	ErrTypeCredentialRejected ErrorType = 83102 // 凭证被服务端拒绝
	ErrTypeConnectionClosed   ErrorType = 83103 // 连接已关闭
	ErrTypeMessageBufferFull  ErrorType = 83104 // 消息缓冲区已满
	ErrTypeSendChannelFull    ErrorType = 83105 // 发送通道已满
	ErrTypeReconnectExhausted ErrorType = 83106 // 重连次数耗尽
	ErrTypeAckTimeout         ErrorType = 83107 // 同步应答超时

	// 瞬时网络错误 (83200-83299) - 单次请求失败，调用方自行处理
	ErrTypeRequestFailed       ErrorType = 83201 // 请求往返失败
	ErrTypePresenceQueryFailed ErrorType = 83202 // 在线状态查询失败
	ErrTypeEmptyBatchResponse  ErrorType = 83203 // 批量响应长度与请求不符

	// 信令错误 (83300-83399) - 终止本次通话并释放资源
	ErrTypeMediaAcquireFailed ErrorType = 83301 // 本地音频获取失败
	ErrTypePeerSetupFailed    ErrorType = 83302 // 对等连接构建失败
	ErrTypeNoPendingOffer     ErrorType = 83303 // 接听时无待处理提议
	ErrTypeRoomAllocFailed    ErrorType = 83304 // 房间分配失败
	ErrTypeCallAlreadyActive  ErrorType = 83305 // 已存在进行中的通话
	ErrTypeNotInCall          ErrorType = 83306 // 当前无通话会话

	// 状态冲突错误 (83400-83499) - 记录后忽略，不破坏现有状态
	ErrTypeStaleRoom          ErrorType = 83401 // 过期房间的重复通知
	ErrTypeDuplicateReconcile ErrorType = 83402 // 重复的乐观消息回执
	ErrTypeStateConflict      ErrorType = 83403 // 非法状态迁移
	ErrTypeUnknownEvent       ErrorType = 83404 // 未知事件类型
)

// init 初始化所有错误类型注册
// 注意：在运行多个测试包时，可能会看到 "ErrorType XXX is already registered" 的警告信息
// 这是正常现象，errorx包内部会忽略重复注册
func init() {
	// 注册连接相关错误
	errorx.RegisterError(ErrTypeCredentialMissing, "credential missing, session not allowed")
	errorx.RegisterError(ErrTypeCredentialRejected, "credential rejected by server")
	errorx.RegisterError(ErrTypeConnectionClosed, "connection closed")
	errorx.RegisterError(ErrTypeMessageBufferFull, "message buffer is full")
	errorx.RegisterError(ErrTypeSendChannelFull, "send channel is full")
	errorx.RegisterError(ErrTypeReconnectExhausted, "reconnect attempts exhausted after %d tries")
	errorx.RegisterError(ErrTypeAckTimeout, "ack timeout for request %s")

	// 注册瞬时网络错误
	errorx.RegisterError(ErrTypeRequestFailed, "request failed: %s")
	errorx.RegisterError(ErrTypePresenceQueryFailed, "presence query failed for %s")
	errorx.RegisterError(ErrTypeEmptyBatchResponse, "batch response size mismatch: want %d got %d")

	// 注册信令错误
	errorx.RegisterError(ErrTypeMediaAcquireFailed, "failed to acquire local audio")
	errorx.RegisterError(ErrTypePeerSetupFailed, "failed to set up peer connection")
	errorx.RegisterError(ErrTypeNoPendingOffer, "no pending offer for room %s at accept time")
	errorx.RegisterError(ErrTypeRoomAllocFailed, "room allocation failed")
	errorx.RegisterError(ErrTypeCallAlreadyActive, "another call session is active")
	errorx.RegisterError(ErrTypeNotInCall, "no call session in progress")

	// 注册状态冲突错误
	errorx.RegisterError(ErrTypeStaleRoom, "stale notification for room %s")
	errorx.RegisterError(ErrTypeDuplicateReconcile, "duplicate reconcile for message %s")
	errorx.RegisterError(ErrTypeStateConflict, "illegal transition: %s")
	errorx.RegisterError(ErrTypeUnknownEvent, "unknown event kind: %s")
}

// ============================================================================
// 错误变量定义
// ============================================================================

// 连接相关错误变量
var (
	ErrCredentialMissing  = errorx.NewError(ErrTypeCredentialMissing)
	ErrCredentialRejected = errorx.NewError(ErrTypeCredentialRejected)
	ErrConnectionClosed   = errorx.NewError(ErrTypeConnectionClosed)
	ErrMessageBufferFull  = errorx.NewError(ErrTypeMessageBufferFull)
	ErrSendChannelFull    = errorx.NewError(ErrTypeSendChannelFull)
)

// 信令相关错误变量
var (
	ErrMediaAcquireFailed = errorx.NewError(ErrTypeMediaAcquireFailed)
	ErrRoomAllocFailed    = errorx.NewError(ErrTypeRoomAllocFailed)
	ErrCallAlreadyActive  = errorx.NewError(ErrTypeCallAlreadyActive)
	ErrNotInCall          = errorx.NewError(ErrTypeNotInCall)
)

// IsRetryableErrorType 判断错误类型是否可以重试
// 连接类与瞬时网络类可重试；信令类和状态冲突类不可重试
func IsRetryableErrorType(errType ErrorType) bool {
	switch errType {
	case ErrTypeConnectionClosed, ErrTypeSendChannelFull, ErrTypeMessageBufferFull,
		ErrTypeAckTimeout, ErrTypeRequestFailed, ErrTypePresenceQueryFailed:
		return true
	default:
		return false
	}
}

// IsRetryableError 判断错误是否可以重试
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errxErr, ok := err.(interface{ GetType() ErrorType }); ok {
		return IsRetryableErrorType(errxErr.GetType())
	}
	return false
}
