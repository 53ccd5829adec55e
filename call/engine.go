/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-20 11:40:18
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 00:36:51
 * @FilePath: \go-rtcc\call\engine.go
 * @Description: 通话信令引擎 - 状态机与用户侧操作
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// 引擎默认参数
const (
	// DefaultRingTimeout 振铃超时，超时未接听按挂断处理
	DefaultRingTimeout = 60 * time.Second
	// DefaultTeardownGrace 远端挂断后的资源释放宽限期
	DefaultTeardownGrace = 2 * time.Second
)

// API 通话相关的请求/应答接口
type API interface {
	// InitiateCall 请求服务端分配房间，同步返回房间ID
	InitiateCall(ctx context.Context, receiverID string) (string, error)
}

// Publisher 信令帧发布接口，由通道层实现
type Publisher interface {
	Publish(event models.EventKind, scope string, payload interface{}) error
}

// StateChangeHandler 状态变更回调
type StateChangeHandler func(status models.CallStatus, session *models.CallSession)

// IncomingHandler 来电回调，上层据此呈现振铃界面
type IncomingHandler func(session *models.CallSession)

// ErrorHandler 通话错误回调
// 区别于正常结束：上层应呈现可关闭的错误态而不是通话结束态
type ErrorHandler func(err error)

// Engine 通话信令引擎
// 每个进程最多一个活动会话；麦克风与对等连接由引擎独占，
// 所有退出路径（拒绝/挂断/错误/超时）都经过同一个释放入口
type Engine struct {
	mu            sync.Mutex
	sm            *syncx.StateMachine[models.CallStatus]
	session       *models.CallSession
	pendingOffer  string                // 接听前持有的远端提议
	candQueue     []models.ICECandidate // 远端描述就绪前排队的候选
	remoteDescSet bool
	audio         AudioSource
	peer          PeerConnection
	remoteSink    RemoteAudioSink
	ringTimer     *time.Timer

	ownID         string
	provider      MediaProvider
	api           API
	publisher     Publisher
	ringTimeout   time.Duration
	teardownGrace time.Duration
	iceServers    []string

	onStateChange atomic.Value // StateChangeHandler
	onIncoming    atomic.Value // IncomingHandler
	onError       atomic.Value // ErrorHandler
	onRemoteAudio atomic.Value // func(RemoteAudioSink)
	logger        logger.ILogger
}

// NewEngine 创建通话信令引擎
func NewEngine(ownID string, provider MediaProvider, api API, publisher Publisher) *Engine {
	sm := syncx.NewStateMachine(models.CallStatusIdle)
	sm.AllowTransitions(models.CallStatusIdle, models.CallStatusInitiating, models.CallStatusRinging)
	sm.AllowTransitions(models.CallStatusInitiating, models.CallStatusRinging, models.CallStatusIdle)
	sm.AllowTransitions(models.CallStatusRinging, models.CallStatusActive, models.CallStatusIdle)
	sm.AllowTransitions(models.CallStatusActive, models.CallStatusIdle)

	return &Engine{
		sm:            sm,
		ownID:         ownID,
		provider:      provider,
		api:           api,
		publisher:     publisher,
		ringTimeout:   DefaultRingTimeout,
		teardownGrace: DefaultTeardownGrace,
		logger:        logger.NewEmptyLogger(),
	}
}

// WithRingTimeout 设置振铃超时
func (e *Engine) WithRingTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.ringTimeout = d
	}
	return e
}

// WithTeardownGrace 设置远端挂断的释放宽限期
func (e *Engine) WithTeardownGrace(d time.Duration) *Engine {
	if d >= 0 {
		e.teardownGrace = d
	}
	return e
}

// WithICEServers 设置STUN/TURN服务器列表
func (e *Engine) WithICEServers(servers []string) *Engine {
	e.iceServers = servers
	return e
}

// SetLogger 设置日志器
func (e *Engine) SetLogger(l logger.ILogger) *Engine {
	e.logger = l
	return e
}

// OnStateChange 注册状态变更回调
func (e *Engine) OnStateChange(handler StateChangeHandler) *Engine {
	e.onStateChange.Store(handler)
	return e
}

// OnIncoming 注册来电回调
func (e *Engine) OnIncoming(handler IncomingHandler) *Engine {
	e.onIncoming.Store(handler)
	return e
}

// OnError 注册错误回调
func (e *Engine) OnError(handler ErrorHandler) *Engine {
	e.onError.Store(handler)
	return e
}

// OnRemoteAudio 注册远端音频到达回调
func (e *Engine) OnRemoteAudio(handler func(sink RemoteAudioSink)) *Engine {
	e.onRemoteAudio.Store(handler)
	return e
}

// Status 当前状态
func (e *Engine) Status() models.CallStatus {
	return e.sm.CurrentState()
}

// Session 当前会话快照
func (e *Engine) Session() *models.CallSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	cp := *e.session
	return &cp
}

// Initiate 发起通话（主叫）
// 取本地音频、建对等连接、生成提议，然后同步请求房间分配；
// 任一步失败都释放已取资源并回到空闲。成功后进入振铃并发送提议
func (e *Engine) Initiate(ctx context.Context, receiverID string) error {
	if err := e.sm.TransitionTo(models.CallStatusInitiating); err != nil {
		return models.ErrCallAlreadyActive
	}
	e.notifyState(models.CallStatusInitiating)

	offer, err := e.setupPeer(ctx)
	if err != nil {
		e.abort(err)
		return err
	}

	roomID, err := e.api.InitiateCall(ctx, receiverID)
	if err != nil {
		wrapped := errorx.NewError(models.ErrTypeRoomAllocFailed)
		e.abort(wrapped)
		return wrapped
	}

	// 挂起点之后重查状态：等待应答期间可能已被本端撤销。
	// 撤销路径看不到这里已取的资源，必须在返回前释放
	if e.sm.CurrentState() != models.CallStatusInitiating {
		e.logger.WarnKV("房间分配返回时通话已撤销", "room_id", roomID)
		e.releaseResources()
		return errorx.NewError(models.ErrTypeStaleRoom, roomID)
	}

	e.mu.Lock()
	e.session = &models.CallSession{
		RoomID:     roomID,
		CallerID:   e.ownID,
		ReceiverID: receiverID,
		Role:       models.CallRoleCaller,
		Status:     models.CallStatusRinging,
		StartedAt:  time.Now(),
	}
	e.mu.Unlock()

	_ = e.sm.TransitionTo(models.CallStatusRinging)
	e.notifyState(models.CallStatusRinging)
	e.startRingTimer(roomID)

	if err := e.publisher.Publish(models.EventKindCallOffer, roomID, &models.CallOfferEvent{RoomID: roomID, SDP: offer}); err != nil {
		wrapped := errorx.WrapError("failed to send offer", err)
		e.teardown(roomID, true)
		return wrapped
	}
	return nil
}

// Accept 接听来电（被叫）
// 此刻才取麦克风与建对等连接；接听时没有待处理的提议说明
// 接听抢跑在提议送达之前，必须显式失败而不是半初始化继续
func (e *Engine) Accept(ctx context.Context, roomID string) error {
	e.mu.Lock()
	if e.session == nil || e.session.RoomID != roomID || e.session.Role != models.CallRoleReceiver {
		e.mu.Unlock()
		return errorx.NewError(models.ErrTypeStaleRoom, roomID)
	}
	offer := e.pendingOffer
	e.mu.Unlock()

	if e.sm.CurrentState() != models.CallStatusRinging {
		return models.ErrNotInCall
	}
	if offer == "" {
		return errorx.NewError(models.ErrTypeNoPendingOffer, roomID)
	}

	if _, err := e.setupPeer(ctx); err != nil {
		e.teardown(roomID, true)
		e.notifyError(err)
		return err
	}

	// 挂起点之后重查：媒体获取期间远端可能已挂断
	e.mu.Lock()
	if e.session == nil || e.session.RoomID != roomID {
		e.mu.Unlock()
		e.releaseResources()
		return errorx.NewError(models.ErrTypeStaleRoom, roomID)
	}
	peer := e.peer
	e.mu.Unlock()

	if err := e.applyRemoteDescription(models.SDPKindOffer, offer); err != nil {
		wrapped := errorx.NewError(models.ErrTypePeerSetupFailed)
		e.teardown(roomID, true)
		e.notifyError(wrapped)
		return wrapped
	}

	answer, err := peer.CreateAnswer(ctx)
	if err != nil {
		wrapped := errorx.NewError(models.ErrTypePeerSetupFailed)
		e.teardown(roomID, true)
		e.notifyError(wrapped)
		return wrapped
	}

	if err := e.publisher.Publish(models.EventKindCallAnswer, roomID, &models.CallAnswerEvent{RoomID: roomID, SDP: answer}); err != nil {
		wrapped := errorx.WrapError("failed to send answer", err)
		e.teardown(roomID, true)
		e.notifyError(wrapped)
		return wrapped
	}
	_ = e.publisher.Publish(models.EventKindCallAccepted, roomID, &models.CallAcceptedEvent{RoomID: roomID})

	e.stopRingTimer()
	e.mu.Lock()
	e.pendingOffer = ""
	if e.session != nil {
		e.session.Status = models.CallStatusActive
	}
	e.mu.Unlock()
	_ = e.sm.TransitionTo(models.CallStatusActive)
	e.notifyState(models.CallStatusActive)
	return nil
}

// Reject 拒绝来电
// 空闲状态下的拒绝是无害空操作；被叫拒绝时尚未取用任何媒体资源
func (e *Engine) Reject(ctx context.Context, roomID string) error {
	e.mu.Lock()
	if e.session == nil || e.session.RoomID != roomID {
		e.mu.Unlock()
		e.logger.DebugKV("拒绝的房间已不存在", "room_id", roomID)
		return nil
	}
	e.mu.Unlock()

	if e.sm.CurrentState() != models.CallStatusRinging {
		return nil
	}

	if err := e.publisher.Publish(models.EventKindCallRejected, roomID, &models.CallRejectedEvent{RoomID: roomID}); err != nil {
		e.logger.WarnKV("拒绝通知发送失败", "room_id", roomID, "error", err)
	}
	e.teardown(roomID, true)
	return nil
}

// End 挂断通话
// 房间仍已知时先通知对端；释放在任何退出路径上只发生一次，
// 连续两次挂断第二次是空操作
func (e *Engine) End(ctx context.Context) error {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil
	}
	roomID := e.session.RoomID
	e.mu.Unlock()

	if roomID != "" {
		if err := e.publisher.Publish(models.EventKindCallEnded, roomID, &models.CallEndedEvent{RoomID: roomID}); err != nil {
			e.logger.WarnKV("挂断通知发送失败", "room_id", roomID, "error", err)
		}
	}
	e.teardown(roomID, true)
	return nil
}

// ToggleMute 切换本地静音
// 仅通话中允许；只翻转本地轨的采集开关，不触发重新协商。
// 返回切换后是否静音
func (e *Engine) ToggleMute() (bool, error) {
	if e.sm.CurrentState() != models.CallStatusActive {
		return false, models.ErrNotInCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.audio == nil {
		return false, models.ErrNotInCall
	}
	muted := e.audio.Enabled()
	e.audio.SetEnabled(!muted)
	return muted, nil
}

// setupPeer 获取本地音频并构建对等连接，返回生成的提议
// 候选从对等连接存在起就持续中继，与信令状态无关
func (e *Engine) setupPeer(ctx context.Context) (string, error) {
	audio, err := e.provider.AcquireAudio(ctx)
	if err != nil {
		return "", errorx.NewError(models.ErrTypeMediaAcquireFailed)
	}

	peer, err := e.provider.NewPeerConnection(PeerConfig{ICEServers: e.iceServers})
	if err != nil {
		_ = audio.Close()
		return "", errorx.NewError(models.ErrTypePeerSetupFailed)
	}
	if err := peer.AddAudioSource(audio); err != nil {
		_ = peer.Close()
		_ = audio.Close()
		return "", errorx.NewError(models.ErrTypePeerSetupFailed)
	}

	peer.OnICECandidate(func(candidate models.ICECandidate) {
		e.relayCandidate(candidate)
	})
	peer.OnRemoteAudio(func(sink RemoteAudioSink) {
		e.mu.Lock()
		e.remoteSink = sink
		e.mu.Unlock()
		if f := e.onRemoteAudio.Load(); f != nil {
			f.(func(RemoteAudioSink))(sink)
		}
	})

	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		_ = peer.Close()
		_ = audio.Close()
		return "", errorx.NewError(models.ErrTypePeerSetupFailed)
	}

	e.mu.Lock()
	e.audio = audio
	e.peer = peer
	e.remoteDescSet = false
	e.mu.Unlock()
	return offer, nil
}

// relayCandidate 中继本地候选到对端
func (e *Engine) relayCandidate(candidate models.ICECandidate) {
	e.mu.Lock()
	var roomID string
	if e.session != nil {
		roomID = e.session.RoomID
	}
	e.mu.Unlock()
	if roomID == "" {
		return
	}
	if err := e.publisher.Publish(models.EventKindCallCandidate, roomID, &models.CallCandidateEvent{RoomID: roomID, Candidate: candidate}); err != nil {
		e.logger.DebugKV("候选中继失败", "room_id", roomID, "error", err)
	}
}

// applyRemoteDescription 应用远端描述并冲刷排队候选
func (e *Engine) applyRemoteDescription(kind models.SDPKind, sdp string) error {
	e.mu.Lock()
	peer := e.peer
	e.mu.Unlock()
	if peer == nil {
		return errorx.NewError(models.ErrTypePeerSetupFailed)
	}
	if err := peer.SetRemoteDescription(kind, sdp); err != nil {
		return err
	}

	e.mu.Lock()
	e.remoteDescSet = true
	queued := e.candQueue
	e.candQueue = nil
	e.mu.Unlock()

	for _, c := range queued {
		if err := peer.AddICECandidate(c); err != nil {
			e.logger.WarnKV("排队候选应用失败", "error", err)
		}
	}
	return nil
}

// abort 发起失败：释放已取资源，回到空闲并附带错误态
func (e *Engine) abort(err error) {
	e.notifyError(err)
	e.teardown("", true)
}

// teardown 统一退出路径
// 状态先回空闲，资源释放不可被任何迁移跳过；
// immediate 为假时按宽限期延迟释放（远端挂断场景）
func (e *Engine) teardown(roomID string, immediate bool) {
	e.stopRingTimer()

	e.mu.Lock()
	if roomID != "" && (e.session == nil || e.session.RoomID != roomID) {
		e.mu.Unlock()
		return
	}
	e.session = nil
	e.pendingOffer = ""
	e.candQueue = nil
	e.remoteDescSet = false
	e.mu.Unlock()

	_ = e.sm.TransitionTo(models.CallStatusIdle)
	e.notifyState(models.CallStatusIdle)

	if immediate || e.teardownGrace <= 0 {
		e.releaseResources()
		return
	}
	grace := e.teardownGrace
	syncx.Go().WithTimeout(grace + time.Second).OnError(func(err error) {
		e.logger.WarnKV("延迟释放失败", "error", err)
	}).ExecWithContext(func(ctx context.Context) error {
		select {
		case <-time.After(grace):
		case <-ctx.Done():
		}
		e.releaseResources()
		return nil
	})
}

// releaseResources 释放对等连接、本地音频轨与远端落点，按此顺序
// 字段在锁内摘下后置空，重复调用天然只释放一次
func (e *Engine) releaseResources() {
	e.mu.Lock()
	peer, audio, sink := e.peer, e.audio, e.remoteSink
	e.peer, e.audio, e.remoteSink = nil, nil, nil
	e.mu.Unlock()

	if peer != nil {
		if err := peer.Close(); err != nil {
			e.logger.WarnKV("对等连接关闭失败", "error", err)
		}
	}
	if audio != nil {
		if err := audio.Close(); err != nil {
			e.logger.WarnKV("本地音频释放失败", "error", err)
		}
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			e.logger.WarnKV("远端音频落点释放失败", "error", err)
		}
	}
}

// startRingTimer 启动振铃超时
// 超时未接听：主叫按挂断处理并通知对端，被叫按拒绝处理
func (e *Engine) startRingTimer(roomID string) {
	e.stopRingTimer()
	e.mu.Lock()
	e.ringTimer = time.AfterFunc(e.ringTimeout, func() {
		if e.sm.CurrentState() != models.CallStatusRinging {
			return
		}
		e.mu.Lock()
		stale := e.session == nil || e.session.RoomID != roomID
		var role models.CallRole
		if !stale {
			role = e.session.Role
		}
		e.mu.Unlock()
		if stale {
			return
		}

		e.logger.InfoKV("振铃超时", "room_id", roomID, "role", string(role))
		kind := models.EventKindCallEnded
		if role == models.CallRoleReceiver {
			kind = models.EventKindCallRejected
		}
		if err := e.publisher.Publish(kind, roomID, map[string]string{"room_id": roomID}); err != nil {
			e.logger.WarnKV("振铃超时通知发送失败", "room_id", roomID, "error", err)
		}
		e.teardown(roomID, true)
	})
	e.mu.Unlock()
}

// stopRingTimer 停止振铃超时
func (e *Engine) stopRingTimer() {
	e.mu.Lock()
	if e.ringTimer != nil {
		e.ringTimer.Stop()
		e.ringTimer = nil
	}
	e.mu.Unlock()
}

// notifyState 通知状态变更
func (e *Engine) notifyState(status models.CallStatus) {
	if f := e.onStateChange.Load(); f != nil {
		f.(StateChangeHandler)(status, e.Session())
	}
}

// notifyError 通知通话错误
func (e *Engine) notifyError(err error) {
	if f := e.onError.Load(); f != nil {
		f.(ErrorHandler)(err)
	}
}
