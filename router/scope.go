/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-16 09:05:12
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-20 15:48:36
 * @FilePath: \go-rtcc\router\scope.go
 * @Description: 活动会话上下文 - 可变活引用
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package router

import (
	"sync/atomic"
)

// ActiveContext 当前活动会话的活引用
// 异步回调的续体必须在写入时刻读取此引用，而不是捕获调用时的快照：
// 挂起点（网络往返、媒体获取）与续体之间用户可能已切换会话
type ActiveContext struct {
	v atomic.Value // string
}

// NewActiveContext 创建活动上下文
func NewActiveContext() *ActiveContext {
	ac := &ActiveContext{}
	ac.v.Store("")
	return ac
}

// Set 切换活动会话
func (ac *ActiveContext) Set(scope string) {
	ac.v.Store(scope)
}

// Clear 清空活动会话
func (ac *ActiveContext) Clear() {
	ac.v.Store("")
}

// Current 读取当前活动会话
func (ac *ActiveContext) Current() string {
	if v := ac.v.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// Is 判断给定作用域是否为当前活动会话
func (ac *ActiveContext) Is(scope string) bool {
	return scope != "" && ac.Current() == scope
}
