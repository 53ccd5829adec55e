/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-21 09:58:03
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 00:41:27
 * @FilePath: \go-rtcc\call\signaling.go
 * @Description: 通话信令引擎 - 入站信令处理
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package call

import (
	"time"

	"github.com/kamalyes/go-rtcc/models"
)

// HandleIncoming 处理来电事件（被叫）
// 振铃阶段不取用任何媒体资源，提议仅挂起等待显式接听；
// 来电只允许从空闲进入振铃，发起挂起期间（initiating）同样按占线拒绝，
// 否则来电会顶掉发起中的会话
func (e *Engine) HandleIncoming(ev *models.CallIncomingEvent) {
	if e.sm.CurrentState() != models.CallStatusIdle || e.sm.TransitionTo(models.CallStatusRinging) != nil {
		e.logger.InfoKV("占线拒绝来电", "room_id", ev.RoomID, "caller_id", ev.CallerID)
		if err := e.publisher.Publish(models.EventKindCallRejected, ev.RoomID, &models.CallRejectedEvent{RoomID: ev.RoomID}); err != nil {
			e.logger.WarnKV("占线拒绝通知发送失败", "room_id", ev.RoomID, "error", err)
		}
		return
	}

	e.mu.Lock()
	e.session = &models.CallSession{
		RoomID:     ev.RoomID,
		CallerID:   ev.CallerID,
		ReceiverID: e.ownID,
		Role:       models.CallRoleReceiver,
		Status:     models.CallStatusRinging,
		StartedAt:  time.Now(),
	}
	e.pendingOffer = ev.OfferSDP
	e.mu.Unlock()

	e.notifyState(models.CallStatusRinging)
	e.startRingTimer(ev.RoomID)

	if f := e.onIncoming.Load(); f != nil {
		f.(IncomingHandler)(e.Session())
	}
}

// HandleOffer 处理单独送达的SDP提议（被叫）
// 提议可能晚于来电事件到达，接听前一直挂起
func (e *Engine) HandleOffer(ev *models.CallOfferEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.RoomID != ev.RoomID {
		e.logger.DebugKV("过期房间的提议", "room_id", ev.RoomID)
		return
	}
	if e.session.Role != models.CallRoleReceiver {
		e.logger.WarnKV("主叫侧收到提议", "room_id", ev.RoomID)
		return
	}
	e.pendingOffer = ev.SDP
}

// HandleAnswer 处理SDP应答（主叫）
// 应用为远端描述并冲刷排队候选，随后进入通话中
func (e *Engine) HandleAnswer(ev *models.CallAnswerEvent) {
	e.mu.Lock()
	stale := e.session == nil || e.session.RoomID != ev.RoomID || e.session.Role != models.CallRoleCaller
	e.mu.Unlock()
	if stale {
		e.logger.DebugKV("过期房间的应答", "room_id", ev.RoomID)
		return
	}

	if err := e.applyRemoteDescription(models.SDPKindAnswer, ev.SDP); err != nil {
		e.logger.ErrorKV("应答应用失败", "room_id", ev.RoomID, "error", err)
		e.notifyError(err)
		e.teardown(ev.RoomID, true)
		return
	}

	e.stopRingTimer()
	e.mu.Lock()
	if e.session != nil {
		e.session.Status = models.CallStatusActive
	}
	e.mu.Unlock()
	if err := e.sm.TransitionTo(models.CallStatusActive); err != nil {
		e.logger.WarnKV("重复的应答", "room_id", ev.RoomID)
		return
	}
	e.notifyState(models.CallStatusActive)
}

// HandleCandidate 处理远端ICE候选
// 远端描述尚未就绪时排队而不是丢弃，就绪后统一冲刷
func (e *Engine) HandleCandidate(ev *models.CallCandidateEvent) {
	e.mu.Lock()
	if e.session == nil || e.session.RoomID != ev.RoomID {
		e.mu.Unlock()
		e.logger.DebugKV("过期房间的候选", "room_id", ev.RoomID)
		return
	}
	peer := e.peer
	ready := e.remoteDescSet
	if peer == nil || !ready {
		e.candQueue = append(e.candQueue, ev.Candidate)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err := peer.AddICECandidate(ev.Candidate); err != nil {
		e.logger.WarnKV("候选应用失败", "room_id", ev.RoomID, "error", err)
	}
}

// HandleAccepted 处理对端接听通知（主叫）
// 状态迁移由应答的应用驱动，此事件仅作提示
func (e *Engine) HandleAccepted(ev *models.CallAcceptedEvent) {
	e.mu.Lock()
	stale := e.session == nil || e.session.RoomID != ev.RoomID
	e.mu.Unlock()
	if stale {
		e.logger.DebugKV("过期房间的接听通知", "room_id", ev.RoomID)
		return
	}
	e.logger.InfoKV("对端已接听", "room_id", ev.RoomID)
}

// HandleRejected 处理对端拒绝通知
// 过期房间的重复通知直接忽略，不重入清理
func (e *Engine) HandleRejected(ev *models.CallRejectedEvent) {
	e.mu.Lock()
	stale := e.session == nil || e.session.RoomID != ev.RoomID
	e.mu.Unlock()
	if stale {
		e.logger.DebugKV("过期房间的拒绝通知", "room_id", ev.RoomID)
		return
	}
	e.logger.InfoKV("对端已拒绝", "room_id", ev.RoomID)
	e.teardown(ev.RoomID, false)
}

// HandleEnded 处理对端挂断通知
// 资源按宽限期延迟释放，让最后的音频缓冲自然排空
func (e *Engine) HandleEnded(ev *models.CallEndedEvent) {
	e.mu.Lock()
	stale := e.session == nil || e.session.RoomID != ev.RoomID
	e.mu.Unlock()
	if stale {
		e.logger.DebugKV("过期房间的挂断通知", "room_id", ev.RoomID)
		return
	}
	e.logger.InfoKV("对端已挂断", "room_id", ev.RoomID)
	e.teardown(ev.RoomID, false)
}
