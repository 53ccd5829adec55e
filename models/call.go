/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-14 11:35:52
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-19 18:44:21
 * @FilePath: \go-rtcc\models\call.go
 * @Description: 通话会话与信令负载
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"time"
)

// CallSession 通话会话
// 每个进程最多持有一个活动会话，由信令引擎独占管理
type CallSession struct {
	RoomID     string     `json:"room_id"`     // 房间ID（服务端分配）
	CallerID   string     `json:"caller_id"`   // 主叫用户ID
	ReceiverID string     `json:"receiver_id"` // 被叫用户ID
	Role       CallRole   `json:"role"`        // 本端角色
	Status     CallStatus `json:"status"`      // 会话状态
	StartedAt  time.Time  `json:"started_at"`  // 会话创建时间
}

// Peer 返回对端用户ID
func (s *CallSession) Peer(ownID string) string {
	if s.CallerID == ownID {
		return s.ReceiverID
	}
	return s.CallerID
}

// ICECandidate ICE候选
// 与对等连接库的候选JSON结构保持一致，原样中继
type ICECandidate struct {
	Candidate     string `json:"candidate"`                 // 候选描述行
	SDPMid        string `json:"sdp_mid,omitempty"`         // 媒体流标识
	SDPMLineIndex uint16 `json:"sdp_mline_index,omitempty"` // 媒体行索引
}
