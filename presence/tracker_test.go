/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-25 15:42:19
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 21:18:03
 * @FilePath: \go-rtcc\presence\tracker_test.go
 * @Description:
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kamalyes/go-rtcc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockQuerier 可控的查询实现
type mockQuerier struct {
	mu          sync.Mutex
	singleCalls int32
	batchCalls  int32
	batchSeen   [][]string
	status      models.PresenceStatus
	batchReply  []models.PresenceStatus
	err         error
	gate        chan struct{} // 非nil时单查阻塞直到关闭
	batchGate   chan struct{} // 非nil时批量阻塞直到关闭
}

func (m *mockQuerier) QueryStatus(ctx context.Context, userID string) (models.PresenceStatus, error) {
	atomic.AddInt32(&m.singleCalls, 1)
	if m.gate != nil {
		<-m.gate
	}
	if m.err != nil {
		return models.PresenceStatusOffline, m.err
	}
	return m.status, nil
}

func (m *mockQuerier) QueryBatchStatus(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error) {
	atomic.AddInt32(&m.batchCalls, 1)
	m.mu.Lock()
	m.batchSeen = append(m.batchSeen, append([]string{}, userIDs...))
	m.mu.Unlock()
	if m.batchGate != nil {
		<-m.batchGate
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.batchReply != nil {
		return m.batchReply, nil
	}
	out := make([]models.PresenceStatus, len(userIDs))
	for i := range out {
		out[i] = m.status
	}
	return out, nil
}

// TestGetStatusCoalescing 测试同ID并发查询合并为一次网络往返
func TestGetStatusCoalescing(t *testing.T) {
	q := &mockQuerier{status: models.PresenceStatusOnline, gate: make(chan struct{})}
	tracker := NewTracker("me", q)

	var wg sync.WaitGroup
	results := make([]models.PresenceStatus, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			status, err := tracker.GetStatus(context.Background(), "u1")
			assert.NoError(t, err)
			results[idx] = status
		}(i)
	}

	// 等并发调用全部挂起后放行
	time.Sleep(100 * time.Millisecond)
	close(q.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&q.singleCalls), "并发查询应合并为一次")
	for _, status := range results {
		assert.Equal(t, models.PresenceStatusOnline, status)
	}
}

// TestGetStatusCacheHit 测试新鲜缓存命中不再触发查询
func TestGetStatusCacheHit(t *testing.T) {
	q := &mockQuerier{status: models.PresenceStatusOnline}
	tracker := NewTracker("me", q)

	_, err := tracker.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	_, err = tracker.GetStatus(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&q.singleCalls))
}

// TestGetStatusFailure 测试查询失败回填离线且不写缓存
func TestGetStatusFailure(t *testing.T) {
	q := &mockQuerier{err: errors.New("network down")}
	tracker := NewTracker("me", q)

	status, err := tracker.GetStatus(context.Background(), "u1")
	assert.Error(t, err)
	assert.Equal(t, models.PresenceStatusOffline, status)

	_, cached := tracker.CachedStatus("u1")
	assert.False(t, cached, "失败不应写缓存")

	// 合并标记已清除，下次查询重新发起
	q.err = nil
	q.status = models.PresenceStatusOnline
	status, err = tracker.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceStatusOnline, status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&q.singleCalls))
}

// TestTrustOrderPushOverridesQuery 测试推送覆盖查询回填
func TestTrustOrderPushOverridesQuery(t *testing.T) {
	q := &mockQuerier{status: models.PresenceStatusOnline}
	tracker := NewTracker("me", q)

	// 推送权威置为离线
	tracker.ApplyStatusChange(&models.UserStatusChangedEvent{
		UserID: "u1",
		Status: models.PresenceStatusOffline,
	})

	// 查询回填不应覆盖更高优先级的新鲜推送
	status, err := tracker.GetBatchStatus(context.Background(), []string{"u1"})
	require.NoError(t, err)
	// u1已有新鲜缓存，批量查询直接命中不发请求
	assert.Equal(t, models.PresenceStatusOffline, status["u1"])
	assert.Equal(t, int32(0), atomic.LoadInt32(&q.batchCalls))
}

// TestBatchPositionalZip 测试批量响应按位置对位压合
func TestBatchPositionalZip(t *testing.T) {
	q := &mockQuerier{batchReply: []models.PresenceStatus{
		models.PresenceStatusOnline,
		models.PresenceStatusOffline,
		models.PresenceStatusOnline,
	}}
	tracker := NewTracker("me", q)

	result, err := tracker.GetBatchStatus(context.Background(), []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Equal(t, models.PresenceStatusOnline, result["u1"])
	assert.Equal(t, models.PresenceStatusOffline, result["u2"])
	assert.Equal(t, models.PresenceStatusOnline, result["u3"])
}

// TestBatchFiltersCached 测试批量查询过滤已缓存ID
func TestBatchFiltersCached(t *testing.T) {
	q := &mockQuerier{batchReply: []models.PresenceStatus{models.PresenceStatusOnline}}
	tracker := NewTracker("me", q)

	tracker.ApplyStatusChange(&models.UserStatusChangedEvent{
		UserID: "u1",
		Status: models.PresenceStatusOnline,
	})

	result, err := tracker.GetBatchStatus(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, result, 2)

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.batchSeen, 1)
	assert.Equal(t, []string{"u2"}, q.batchSeen[0], "已缓存的u1不应重复请求")
}

// TestBatchCoversConcurrentSingle 测试单查共享在途的批量往返
func TestBatchCoversConcurrentSingle(t *testing.T) {
	q := &mockQuerier{
		status:    models.PresenceStatusOnline,
		batchGate: make(chan struct{}),
	}
	tracker := NewTracker("me", q)

	batchDone := make(chan struct{})
	go func() {
		defer close(batchDone)
		result, err := tracker.GetBatchStatus(context.Background(), []string{"u1", "u2"})
		assert.NoError(t, err)
		assert.Equal(t, models.PresenceStatusOnline, result["u1"])
	}()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&q.batchCalls) == 1
	}, time.Second, 10*time.Millisecond, "批量请求应已在途")

	singleDone := make(chan struct{})
	go func() {
		defer close(singleDone)
		status, err := tracker.GetStatus(context.Background(), "u1")
		assert.NoError(t, err)
		assert.Equal(t, models.PresenceStatusOnline, status)
	}()

	// 等单查挂到在途批量上再放行
	time.Sleep(100 * time.Millisecond)
	close(q.batchGate)
	<-batchDone
	<-singleDone

	assert.Equal(t, int32(0), atomic.LoadInt32(&q.singleCalls), "u1已被在途批量覆盖，单查不应再发请求")
	assert.Equal(t, int32(1), atomic.LoadInt32(&q.batchCalls))
}

// TestOverlappingBatchesDeduplicated 测试重叠的批量只请求未在途的ID
func TestOverlappingBatchesDeduplicated(t *testing.T) {
	q := &mockQuerier{
		status:    models.PresenceStatusOnline,
		batchGate: make(chan struct{}),
	}
	tracker := NewTracker("me", q)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := tracker.GetBatchStatus(context.Background(), []string{"u1", "u2"})
		assert.NoError(t, err)
	}()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&q.batchCalls) == 1
	}, time.Second, 10*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := tracker.GetBatchStatus(context.Background(), []string{"u2", "u3"})
		assert.NoError(t, err)
	}()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&q.batchCalls) == 2
	}, time.Second, 10*time.Millisecond)

	close(q.batchGate)
	wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.batchSeen, 2)
	assert.Equal(t, []string{"u1", "u2"}, q.batchSeen[0])
	assert.Equal(t, []string{"u3"}, q.batchSeen[1], "u2已在途，第二批不应重复请求")
}

// TestBatchSizeMismatch 测试响应长度不符时全部回填离线
func TestBatchSizeMismatch(t *testing.T) {
	q := &mockQuerier{batchReply: []models.PresenceStatus{models.PresenceStatusOnline}}
	tracker := NewTracker("me", q)

	result, err := tracker.GetBatchStatus(context.Background(), []string{"u1", "u2", "u3"})
	assert.Error(t, err)
	for _, id := range []string{"u1", "u2", "u3"} {
		assert.Equal(t, models.PresenceStatusOffline, result[id])
	}
	_, cached := tracker.CachedStatus("u1")
	assert.False(t, cached, "失败响应不应写缓存")

	// 在途标记已清除，后续单查重新发起
	q.status = models.PresenceStatusOnline
	status, err := tracker.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceStatusOnline, status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&q.singleCalls))
}

// TestMarkSelfOnline 测试本端在线状态无需网络往返
func TestMarkSelfOnline(t *testing.T) {
	q := &mockQuerier{}
	tracker := NewTracker("me", q)

	tracker.MarkSelfOnline()

	status, err := tracker.GetStatus(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceStatusOnline, status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&q.singleCalls), "本端状态应直接命中缓存")
}

// TestOnStatusChange 测试状态变更回调仅在状态实际变化时触发
func TestOnStatusChange(t *testing.T) {
	q := &mockQuerier{}
	tracker := NewTracker("me", q)

	var mu sync.Mutex
	var changes []string
	tracker.OnStatusChange(func(userID string, status models.PresenceStatus) {
		mu.Lock()
		changes = append(changes, userID+":"+status.String())
		mu.Unlock()
	})

	ev := &models.UserStatusChangedEvent{UserID: "u1", Status: models.PresenceStatusOnline}
	tracker.ApplyStatusChange(ev)
	tracker.ApplyStatusChange(ev) // 重复推送同状态
	tracker.ApplyStatusChange(&models.UserStatusChangedEvent{UserID: "u1", Status: models.PresenceStatusOffline})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u1:online", "u1:offline"}, changes)
}

// TestInvalidStatusPushIgnored 测试无效状态推送被忽略
func TestInvalidStatusPushIgnored(t *testing.T) {
	tracker := NewTracker("me", &mockQuerier{})
	tracker.ApplyStatusChange(&models.UserStatusChangedEvent{UserID: "u1", Status: "away"})
	_, cached := tracker.CachedStatus("u1")
	assert.False(t, cached)
}

// TestReset 测试清空缓存
func TestReset(t *testing.T) {
	tracker := NewTracker("me", &mockQuerier{})
	tracker.MarkSelfOnline()
	tracker.Reset()
	_, cached := tracker.CachedStatus("me")
	assert.False(t, cached)
}
