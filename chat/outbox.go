/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-19 09:12:40
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-27 16:40:58
 * @FilePath: \go-rtcc\chat\outbox.go
 * @Description: 发送失败记录 - 本地落地供用户侧重试呈现
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package chat

import (
	"context"
	"time"

	"github.com/kamalyes/go-rtcc/models"
	sqlbuilder "github.com/kamalyes/go-sqlbuilder/repository"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// OutboxStatus 记录状态
type OutboxStatus string

const (
	// OutboxStatusPending 待重试
	OutboxStatusPending OutboxStatus = "pending"
	// OutboxStatusRetried 已重试成功
	OutboxStatusRetried OutboxStatus = "retried"
	// OutboxStatusDiscarded 用户已放弃
	OutboxStatusDiscarded OutboxStatus = "discarded"
)

// OutboxRecord 发送失败记录
// 服务端是消息的权威存储，这里只落地发送失败的本地草稿，
// 供用户侧呈现与手动重试，不做消息历史持久化
type OutboxRecord struct {
	ID         uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	TempID     string       `gorm:"type:varchar(64);uniqueIndex" json:"temp_id"` // 乐观占位的临时ID
	Sender     string       `gorm:"type:varchar(64);index" json:"sender"`        // 发送者
	Receiver   string       `gorm:"type:varchar(64)" json:"receiver"`            // 接收者
	RoomID     string       `gorm:"type:varchar(64)" json:"room_id"`             // 房间ID
	Content    string       `gorm:"type:text" json:"content"`                    // 草稿内容
	FailReason string       `gorm:"type:varchar(255)" json:"fail_reason"`        // 失败原因
	Status     OutboxStatus `gorm:"type:varchar(16);index;default:pending" json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// TableName 指定表名
func (OutboxRecord) TableName() string {
	return "rtcc_send_outbox"
}

// Outbox 发送失败记录仓库
type Outbox struct {
	db *gorm.DB
}

// NewOutbox 创建发送失败记录仓库
func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// OpenOutbox 按DSN打开MySQL并创建仓库，自动迁移记录表
func OpenOutbox(dsn string) (*Outbox, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&OutboxRecord{}); err != nil {
		return nil, err
	}
	return NewOutbox(db), nil
}

// Record 落地一条发送失败的消息
func (o *Outbox) Record(ctx context.Context, msg *models.ChatMessage, sendErr error) error {
	record := &OutboxRecord{
		TempID:     msg.ID,
		Sender:     msg.Sender,
		Receiver:   msg.Receiver,
		RoomID:     msg.RoomID,
		Content:    msg.Content,
		FailReason: sendErr.Error(),
		Status:     OutboxStatusPending,
	}
	return o.db.WithContext(ctx).Create(record).Error
}

// ListPending 查询待重试记录，按创建时间升序
func (o *Outbox) ListPending(ctx context.Context, sender string, limit int) ([]*OutboxRecord, error) {
	query := sqlbuilder.NewQuery().
		AddFilter(sqlbuilder.NewEqFilter("sender", sender)).
		AddFilter(sqlbuilder.NewEqFilter("status", string(OutboxStatusPending)))

	gormDB := o.db.WithContext(ctx)
	gormDB = sqlbuilder.ApplyFilters(gormDB, query.Filters)
	gormDB = gormDB.Order("created_at ASC")
	if limit > 0 {
		gormDB = gormDB.Limit(limit)
	}

	var records []*OutboxRecord
	err := gormDB.Find(&records).Error
	return records, err
}

// MarkRetried 标记记录已重试成功
func (o *Outbox) MarkRetried(ctx context.Context, tempID string) error {
	return o.db.WithContext(ctx).
		Model(&OutboxRecord{}).
		Where("temp_id = ?", tempID).
		Update("status", OutboxStatusRetried).Error
}

// Discard 标记记录为用户已放弃
func (o *Outbox) Discard(ctx context.Context, tempID string) error {
	return o.db.WithContext(ctx).
		Model(&OutboxRecord{}).
		Where("temp_id = ?", tempID).
		Update("status", OutboxStatusDiscarded).Error
}

// CleanupOld 清理指定时间之前的非待重试记录
func (o *Outbox) CleanupOld(ctx context.Context, before time.Time) (int64, error) {
	result := o.db.WithContext(ctx).
		Where("status <> ? AND updated_at < ?", OutboxStatusPending, before).
		Delete(&OutboxRecord{})
	return result.RowsAffected, result.Error
}
