/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-17 14:50:29
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-26 17:08:55
 * @FilePath: \go-rtcc\presence\store.go
 * @Description: 在线状态共享镜像 - Redis存储与变更广播
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/kamalyes/go-cachex"
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/json"
	"github.com/redis/go-redis/v9"
)

// 镜像常量
const (
	// DefaultStoreNamespace 默认命名空间
	DefaultStoreNamespace = "rtcc"
	// storeKeyPrefix 状态键前缀
	storeKeyPrefix = "presence:status"
	// changeChannel 变更广播频道
	changeChannel = "presence:changed"
)

// Store 在线状态共享镜像接口
// 同一用户的多个进程/标签页之间共享状态缓存；镜像不是权威来源
type Store interface {
	// SetStatus 写入状态并广播变更
	SetStatus(ctx context.Context, userID string, status models.PresenceStatus) error
	// GetStatus 读取状态，第二返回值标识键是否存在
	GetStatus(ctx context.Context, userID string) (models.PresenceStatus, bool, error)
	// SubscribeChanges 订阅其他进程广播的状态变更
	SubscribeChanges(handler StatusChangeHandler) error
	// Close 关闭镜像
	Close() error
}

// statusChangePayload 变更广播负载
type statusChangePayload struct {
	UserID    string                `json:"user_id"`   // 目标用户
	Status    models.PresenceStatus `json:"status"`    // 新状态
	Timestamp time.Time             `json:"timestamp"` // 变更时间
}

// RedisStore 基于Redis的在线状态镜像
type RedisStore struct {
	client      redis.UniversalClient
	pubsub      *cachex.PubSub
	ns          string
	ttl         time.Duration
	unsubscribe func() error
	logger      logger.ILogger
}

// NewRedisStore 创建Redis镜像
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		pubsub: cachex.NewPubSub(client, cachex.PubSubConfig{Namespace: DefaultStoreNamespace}),
		ns:     DefaultStoreNamespace,
		ttl:    DefaultPresenceTTL,
		logger: logger.NewEmptyLogger(),
	}
}

// WithTTL 设置状态键过期时间
func (s *RedisStore) WithTTL(ttl time.Duration) *RedisStore {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// SetLogger 设置日志器
func (s *RedisStore) SetLogger(l logger.ILogger) *RedisStore {
	s.logger = l
	return s
}

// statusKey 拼接状态键
func (s *RedisStore) statusKey(userID string) string {
	return fmt.Sprintf("%s:%s:%s", s.ns, storeKeyPrefix, userID)
}

// SetStatus 写入状态并广播变更
// 键带过期时间，进程全部退出后状态自然衰减为离线
func (s *RedisStore) SetStatus(ctx context.Context, userID string, status models.PresenceStatus) error {
	if err := s.client.Set(ctx, s.statusKey(userID), status.String(), s.ttl).Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(&statusChangePayload{
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return s.pubsub.Publish(ctx, changeChannel, string(payload))
}

// GetStatus 读取状态
func (s *RedisStore) GetStatus(ctx context.Context, userID string) (models.PresenceStatus, bool, error) {
	val, err := s.client.Get(ctx, s.statusKey(userID)).Result()
	if err == redis.Nil {
		return models.PresenceStatusOffline, false, nil
	}
	if err != nil {
		return models.PresenceStatusOffline, false, err
	}
	status := models.PresenceStatus(val)
	if !status.IsValid() {
		return models.PresenceStatusOffline, false, nil
	}
	return status, true, nil
}

// SubscribeChanges 订阅变更广播
func (s *RedisStore) SubscribeChanges(handler StatusChangeHandler) error {
	subscriber, err := s.pubsub.Subscribe([]string{changeChannel}, func(ctx context.Context, channel, msg string) error {
		var payload statusChangePayload
		if err := json.Unmarshal([]byte(msg), &payload); err != nil {
			s.logger.WarnKV("状态变更广播解码失败", "channel", channel, "error", err)
			return nil
		}
		if !payload.Status.IsValid() {
			return nil
		}
		handler(payload.UserID, payload.Status)
		return nil
	})
	if err != nil {
		return err
	}
	s.unsubscribe = subscriber.Unsubscribe
	return nil
}

// Close 取消镜像的变更订阅
func (s *RedisStore) Close() error {
	if s.unsubscribe != nil {
		return s.unsubscribe()
	}
	return nil
}
