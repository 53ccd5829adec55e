/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-17 10:14:06
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-28 09:32:41
 * @FilePath: \go-rtcc\presence\tracker.go
 * @Description: 在线状态跟踪器 - 缓存、查询合并与来源优先级覆盖
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package presence

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

// DefaultPresenceTTL 默认缓存新鲜期
const DefaultPresenceTTL = 60 * time.Second

// Querier 在线状态查询接口
// 由通道层的请求/应答实现提供
type Querier interface {
	// QueryStatus 查询单个用户的在线状态
	QueryStatus(ctx context.Context, userID string) (models.PresenceStatus, error)
	// QueryBatchStatus 批量查询，返回与请求顺序对位的状态列表
	QueryBatchStatus(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error)
}

// StatusChangeHandler 状态变更回调
type StatusChangeHandler func(userID string, status models.PresenceStatus)

// entry 单个用户的缓存项
type entry struct {
	status    models.PresenceStatus // 当前状态
	source    models.PresenceSource // 状态来源
	updatedAt time.Time             // 最后更新时间
}

// inflightQuery 进行中的查询
// 同一用户的并发查询共享一次网络往返
type inflightQuery struct {
	done   chan struct{}
	status models.PresenceStatus
	err    error
}

// Tracker 在线状态跟踪器
// 覆盖规则：推送事件 > 自身心跳 > 查询回填；低优先级来源不覆盖新鲜的高优先级状态
type Tracker struct {
	mu       sync.RWMutex
	cache    map[string]*entry
	inflight map[string]*inflightQuery
	querier  Querier
	store    Store // 可选的共享镜像
	ownID    string
	ttl      time.Duration
	onChange atomic.Value // StatusChangeHandler
	logger   logger.ILogger
}

// NewTracker 创建在线状态跟踪器
func NewTracker(ownID string, querier Querier) *Tracker {
	return &Tracker{
		cache:    make(map[string]*entry),
		inflight: make(map[string]*inflightQuery),
		querier:  querier,
		ownID:    ownID,
		ttl:      DefaultPresenceTTL,
		logger:   logger.NewEmptyLogger(),
	}
}

// WithTTL 设置缓存新鲜期
func (t *Tracker) WithTTL(ttl time.Duration) *Tracker {
	if ttl > 0 {
		t.ttl = ttl
	}
	return t
}

// WithStore 挂载共享镜像
// 镜像仅作缓存共享，权威信息仍以推送事件为准
func (t *Tracker) WithStore(store Store) *Tracker {
	t.store = store
	return t
}

// SetLogger 设置日志器
func (t *Tracker) SetLogger(l logger.ILogger) *Tracker {
	t.logger = l
	return t
}

// OnStatusChange 注册状态变更回调
func (t *Tracker) OnStatusChange(handler StatusChangeHandler) *Tracker {
	t.onChange.Store(handler)
	return t
}

// GetStatus 获取用户在线状态
// 新鲜缓存直接命中；并发的未命中查询合并为一次网络往返；
// 查询失败回填离线并清除合并标记，下次调用重新发起查询
func (t *Tracker) GetStatus(ctx context.Context, userID string) (models.PresenceStatus, error) {
	t.mu.Lock()
	if e, ok := t.cache[userID]; ok && time.Since(e.updatedAt) < t.ttl {
		status := e.status
		t.mu.Unlock()
		return status, nil
	}

	if q, ok := t.inflight[userID]; ok {
		t.mu.Unlock()
		select {
		case <-q.done:
			return q.status, q.err
		case <-ctx.Done():
			return models.PresenceStatusOffline, ctx.Err()
		}
	}

	q := &inflightQuery{done: make(chan struct{})}
	t.inflight[userID] = q
	t.mu.Unlock()

	status, err := t.querier.QueryStatus(ctx, userID)
	if err != nil {
		q.status = models.PresenceStatusOffline
		q.err = errorx.NewError(models.ErrTypePresenceQueryFailed, userID)
		t.logger.WarnKV("在线状态查询失败", "user_id", userID, "error", err)
	} else {
		q.status = status
		t.apply(userID, status, models.PresenceSourceQuery)
	}

	t.mu.Lock()
	delete(t.inflight, userID)
	t.mu.Unlock()
	close(q.done)

	return q.status, q.err
}

// GetBatchStatus 批量获取在线状态
// 已缓存或已在查询中的ID不重复请求；批量自己要查的ID也登记为在途，
// 重叠的单查和后续批量共享这一次往返。响应不带ID字段，
// 必须与请求的剩余ID列表按位置压合，长度不符视为失败
func (t *Tracker) GetBatchStatus(ctx context.Context, userIDs []string) (map[string]models.PresenceStatus, error) {
	result := make(map[string]models.PresenceStatus, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	t.mu.Lock()
	missing := make([]string, 0, len(userIDs))
	queries := make(map[string]*inflightQuery, len(userIDs))
	for _, id := range userIDs {
		if e, ok := t.cache[id]; ok && time.Since(e.updatedAt) < t.ttl {
			result[id] = e.status
			continue
		}
		if _, ok := t.inflight[id]; ok {
			continue
		}
		q := &inflightQuery{done: make(chan struct{})}
		t.inflight[id] = q
		queries[id] = q
		missing = append(missing, id)
	}
	t.mu.Unlock()

	if len(missing) > 0 {
		statuses, err := t.querier.QueryBatchStatus(ctx, missing)
		switch {
		case err != nil:
			t.logger.WarnKV("批量在线状态查询失败", "count", len(missing), "error", err)
			t.settleBatch(queries, nil)
			t.fillOffline(result, userIDs)
			return result, errorx.WrapError("batch presence query failed", err)
		case len(statuses) != len(missing):
			t.settleBatch(queries, nil)
			t.fillOffline(result, userIDs)
			return result, errorx.NewError(models.ErrTypeEmptyBatchResponse, len(missing), len(statuses))
		}
		resolved := make(map[string]models.PresenceStatus, len(missing))
		for i, id := range missing {
			resolved[id] = statuses[i]
			result[id] = statuses[i]
			t.apply(id, statuses[i], models.PresenceSourceQuery)
		}
		t.settleBatch(queries, resolved)
	}

	// 请求时仍在查询中的ID回读缓存，未就绪的保守返回离线
	for _, id := range userIDs {
		if _, ok := result[id]; !ok {
			status, _ := t.CachedStatus(id)
			result[id] = status
		}
	}
	return result, nil
}

// settleBatch 解除批量登记的在途标记并唤醒共享等待者
// statuses 为nil表示整批失败，等待者得到离线回填与各自的查询错误
func (t *Tracker) settleBatch(queries map[string]*inflightQuery, statuses map[string]models.PresenceStatus) {
	t.mu.Lock()
	for id := range queries {
		delete(t.inflight, id)
	}
	t.mu.Unlock()

	for id, q := range queries {
		if status, ok := statuses[id]; ok {
			q.status = status
		} else {
			q.status = models.PresenceStatusOffline
			q.err = errorx.NewError(models.ErrTypePresenceQueryFailed, id)
		}
		close(q.done)
	}
}

// fillOffline 为缺失的ID回填保守默认值，不写缓存
func (t *Tracker) fillOffline(result map[string]models.PresenceStatus, userIDs []string) {
	for _, id := range userIDs {
		if _, ok := result[id]; !ok {
			result[id] = models.PresenceStatusOffline
		}
	}
}

// CachedStatus 只读缓存，不触发网络查询
func (t *Tracker) CachedStatus(userID string) (models.PresenceStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.cache[userID]; ok {
		return e.status, true
	}
	return models.PresenceStatusOffline, false
}

// ApplyStatusChange 应用服务端推送的状态变更（权威来源）
func (t *Tracker) ApplyStatusChange(ev *models.UserStatusChangedEvent) {
	if !ev.Status.IsValid() {
		t.logger.WarnKV("无效的在线状态推送", "user_id", ev.UserID, "status", ev.Status.String())
		return
	}
	t.apply(ev.UserID, ev.Status, models.PresenceSourcePush)
}

// ApplyHeartbeatAck 心跳回执刷新本端在线状态
func (t *Tracker) ApplyHeartbeatAck(_ *models.HeartbeatAckEvent) {
	t.MarkSelfOnline()
}

// MarkSelfOnline 标记本端在线
// 连接建立与每次心跳发出时调用，保持自身状态新鲜
func (t *Tracker) MarkSelfOnline() {
	t.apply(t.ownID, models.PresenceStatusOnline, models.PresenceSourceHeartbeat)
}

// MarkSelfOffline 标记本端离线（连接断开时）
func (t *Tracker) MarkSelfOffline() {
	t.apply(t.ownID, models.PresenceStatusOffline, models.PresenceSourceHeartbeat)
}

// Reset 清空缓存与合并标记
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.cache = make(map[string]*entry)
	t.inflight = make(map[string]*inflightQuery)
	t.mu.Unlock()
}

// apply 按来源优先级写入缓存
// 低优先级来源不覆盖仍在新鲜期内的高优先级状态
func (t *Tracker) apply(userID string, status models.PresenceStatus, source models.PresenceSource) {
	t.mu.Lock()
	if e, ok := t.cache[userID]; ok {
		if source < e.source && time.Since(e.updatedAt) < t.ttl {
			t.mu.Unlock()
			return
		}
	}
	prev, hadPrev := t.cache[userID]
	changed := !hadPrev || prev.status != status
	t.cache[userID] = &entry{status: status, source: source, updatedAt: time.Now()}
	t.mu.Unlock()

	if changed {
		if f := t.onChange.Load(); f != nil {
			f.(StatusChangeHandler)(userID, status)
		}
	}

	// 镜像写入即发即弃，不阻塞事件分发路径
	if t.store != nil && source > models.PresenceSourceQuery {
		syncx.Go().WithTimeout(3 * time.Second).OnError(func(err error) {
			t.logger.DebugKV("在线状态镜像写入失败", "user_id", userID, "error", err)
		}).ExecWithContext(func(ctx context.Context) error {
			return t.store.SetStatus(ctx, userID, status)
		})
	}
}

// applyMirror 应用镜像广播的状态变更
// 镜像来自其他进程收到的推送，但不抢占本进程直接收到的推送
func (t *Tracker) applyMirror(userID string, status models.PresenceStatus) {
	if userID == t.ownID {
		return
	}
	t.mu.Lock()
	if e, ok := t.cache[userID]; ok && e.source == models.PresenceSourcePush && time.Since(e.updatedAt) < t.ttl {
		t.mu.Unlock()
		return
	}
	prev, hadPrev := t.cache[userID]
	changed := !hadPrev || prev.status != status
	t.cache[userID] = &entry{status: status, source: models.PresenceSourceHeartbeat, updatedAt: time.Now()}
	t.mu.Unlock()

	if changed {
		if f := t.onChange.Load(); f != nil {
			f.(StatusChangeHandler)(userID, status)
		}
	}
}

// AttachStore 订阅镜像的状态变更广播
func (t *Tracker) AttachStore() error {
	if t.store == nil {
		return nil
	}
	return t.store.SubscribeChanges(t.applyMirror)
}
