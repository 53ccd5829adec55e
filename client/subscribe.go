/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-15 11:03:58
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-27 23:55:02
 * @FilePath: \go-rtcc\client\subscribe.go
 * @Description: 发布/订阅接口 - 帧编解码、订阅注册与入站分发
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package client

import (
	"context"
	"sync"

	stdjson "encoding/json"

	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/json"
	"github.com/kamalyes/go-toolbox/pkg/osx"
)

// EventHandler 入站事件处理函数
type EventHandler func(ev Event)

// subscriberRegistry 订阅注册表
// 同一事件类型允许多个订阅者，各收到一次无序投递
type subscriberRegistry struct {
	mu     sync.RWMutex
	nextID int
	subs   map[EventKind]map[int]EventHandler
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{
		subs: make(map[EventKind]map[int]EventHandler),
	}
}

// add 注册订阅，返回订阅ID
func (r *subscriberRegistry) add(kind EventKind, handler EventHandler) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if r.subs[kind] == nil {
		r.subs[kind] = make(map[int]EventHandler)
	}
	r.subs[kind][r.nextID] = handler
	return r.nextID
}

// remove 取消订阅
func (r *subscriberRegistry) remove(kind EventKind, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handlers, ok := r.subs[kind]; ok {
		delete(handlers, id)
	}
}

// dispatch 将事件投递给所有订阅者
func (r *subscriberRegistry) dispatch(ev Event) {
	r.mu.RLock()
	handlers := make([]EventHandler, 0, len(r.subs[ev.Kind()]))
	for _, h := range r.subs[ev.Kind()] {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribe 订阅指定类型的入站事件
// 返回订阅ID，用于 Unsubscribe
func (c *Channel) Subscribe(kind EventKind, handler EventHandler) int {
	return c.subs.add(kind, handler)
}

// Unsubscribe 取消订阅
func (c *Channel) Unsubscribe(kind EventKind, id int) {
	c.subs.remove(kind, id)
}

// Publish 发布事件帧（即发即弃）
func (c *Channel) Publish(event EventKind, scope string, payload interface{}) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	raw, err := models.EncodeEnvelope(&Envelope{Event: event, Scope: scope, Data: data})
	if err != nil {
		return err
	}
	return c.enqueue(raw)
}

// PublishWithAck 发布事件帧并等待服务端的同步应答
// 用于服务端需要即刻回执的操作（如通话发起时的房间分配）
func (c *Channel) PublishWithAck(ctx context.Context, event EventKind, scope string, payload interface{}) (*AckEvent, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	ackID := osx.HashUnixMicroCipherText()
	raw, err := models.EncodeEnvelope(&Envelope{Event: event, Scope: scope, AckID: ackID, Data: data})
	if err != nil {
		return nil, err
	}

	pending := c.ackManager.Add(ackID, 0)
	if err := c.enqueue(raw); err != nil {
		c.ackManager.Remove(ackID)
		return nil, err
	}

	ack, err := pending.Wait(ctx)
	if err != nil {
		c.ackManager.Remove(ackID)
		return nil, err
	}
	if !ack.OK {
		return nil, errorx.NewError(models.ErrTypeRequestFailed, ack.Error)
	}
	return ack, nil
}

// dispatchInbound 处理入站文本帧
// 应答帧直接交给等待方，其余帧解码为事件后分发给订阅者
func (c *Channel) dispatchInbound(raw []byte) {
	env, err := models.DecodeEnvelope(raw)
	if err != nil {
		c.logger.WarnKV("入站帧解码失败", "error", err)
		return
	}

	if env.Event == models.EventKindAck {
		var ack AckEvent
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &ack); err != nil {
				c.logger.WarnKV("应答帧解码失败", "error", err)
				return
			}
		}
		if ack.AckID == "" {
			ack.AckID = env.AckID
		}
		c.ackManager.Confirm(ack.AckID, &ack)
		return
	}

	ev, err := models.DecodeEvent(env)
	if err != nil {
		c.logger.WarnKV("入站事件解码失败", "event", string(env.Event), "error", err)
		return
	}
	c.subs.dispatch(ev)
}

// marshalPayload 序列化事件负载
func marshalPayload(payload interface{}) (stdjson.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errorx.WrapError("failed to marshal payload", err)
	}
	return data, nil
}
