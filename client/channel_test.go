/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-25 10:28:47
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 19:12:20
 * @FilePath: \go-rtcc\client\channel_test.go
 * @Description:
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kamalyes/go-rtcc/models"
	"github.com/kamalyes/go-toolbox/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestServer 启动测试服务端，handler 接管升级后的连接
func newTestServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// holdOpen 保持连接直到对端关闭
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// TestConnectWithoutCredential 测试凭证缺失时拒绝建立会话
func TestConnectWithoutCredential(t *testing.T) {
	_, url := newTestServer(t, holdOpen)

	ch := NewChannel(url)
	err := ch.Connect()
	assert.ErrorIs(t, err, ErrCredentialMissing)
	assert.True(t, ch.Closed())
}

// TestConnectCredentialRejected 测试服务端拒绝凭证
func TestConnectCredentialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ch := NewChannel(url)
	ch.SetCredential("bad-token")
	err := ch.Connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialRejected)
}

// TestConnectIdempotent 测试重复连接复用现有会话
func TestConnectIdempotent(t *testing.T) {
	_, url := newTestServer(t, holdOpen)

	ch := NewChannel(url)
	ch.SetCredential("token")
	require.NoError(t, ch.Connect())
	defer ch.Close()

	assert.True(t, ch.IsConnected())
	// 第二次连接应为无害空操作
	assert.NoError(t, ch.Connect())
	assert.True(t, ch.IsConnected())
}

// TestConnectSendsBearerHeader 测试凭证随拨号请求头发送
func TestConnectSendsBearerHeader(t *testing.T) {
	headerChan := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerChan <- r.Header.Get("Authorization")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		holdOpen(conn)
	}))
	t.Cleanup(srv.Close)

	ch := NewChannel("ws" + strings.TrimPrefix(srv.URL, "http"))
	ch.SetCredential("my-token")
	require.NoError(t, ch.Connect())
	defer ch.Close()

	select {
	case header := <-headerChan:
		assert.Equal(t, "Bearer my-token", header)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到拨号请求")
	}
}

// TestSubscribeDispatch 测试入站事件分发给订阅者
func TestSubscribeDispatch(t *testing.T) {
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		frame := `{"event":"new_message","scope":"peer-a","data":{"conversation":"peer-a","message":{"id":"m1","sender":"peer-a","content":"hi"}}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		holdOpen(conn)
	})

	ch := NewChannel(url)
	ch.SetCredential("token")

	received := make(chan Event, 2)
	ch.Subscribe(models.EventKindNewMessage, func(ev Event) {
		received <- ev
	})

	require.NoError(t, ch.Connect())
	defer ch.Close()

	select {
	case ev := <-received:
		msgEv, ok := ev.(*models.NewMessageEvent)
		require.True(t, ok)
		assert.Equal(t, "m1", msgEv.Message.ID)
		assert.Equal(t, "peer-a", msgEv.Scope())
	case <-time.After(2 * time.Second):
		t.Fatal("订阅者未收到事件")
	}
}

// TestMultipleSubscribers 测试同类型多订阅者各收到一次
func TestMultipleSubscribers(t *testing.T) {
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		frame := `{"event":"typing","scope":"peer-a","data":{"conversation":"peer-a","user_id":"peer-a"}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		holdOpen(conn)
	})

	ch := NewChannel(url)
	ch.SetCredential("token")

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	ch.Subscribe(models.EventKindTyping, func(Event) { first <- struct{}{} })
	id := ch.Subscribe(models.EventKindTyping, func(Event) { second <- struct{}{} })
	assert.Greater(t, id, 0)

	require.NoError(t, ch.Connect())
	defer ch.Close()

	for i, c := range []chan struct{}{first, second} {
		select {
		case <-c:
		case <-time.After(2 * time.Second):
			t.Fatalf("订阅者%d未收到事件", i)
		}
	}
}

// TestPublishWithAck 测试同步应答往返
func TestPublishWithAck(t *testing.T) {
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := models.DecodeEnvelope(raw)
			if err != nil || env.AckID == "" {
				continue
			}
			ackData, _ := json.Marshal(map[string]interface{}{
				"ack_id": env.AckID,
				"ok":     true,
				"data":   map[string]string{"room_id": "room-7"},
			})
			reply, _ := models.EncodeEnvelope(&models.Envelope{
				Event: models.EventKindAck,
				AckID: env.AckID,
				Data:  ackData,
			})
			_ = conn.WriteMessage(websocket.TextMessage, reply)
		}
	})

	ch := NewChannel(url)
	ch.SetCredential("token")
	require.NoError(t, ch.Connect())
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ack, err := ch.PublishWithAck(ctx, models.EventKind("call:initiate"), "", map[string]string{"receiver_id": "u2"})
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.True(t, ack.OK)
	assert.Contains(t, string(ack.Data), "room-7")
}

// TestPublishWithAckTimeout 测试服务端不回应答时超时
func TestPublishWithAckTimeout(t *testing.T) {
	_, url := newTestServer(t, holdOpen)

	ch := NewChannel(url).WithAckTimeout(200 * time.Millisecond)
	ch.SetCredential("token")
	require.NoError(t, ch.Connect())
	defer ch.Close()

	_, err := ch.PublishWithAck(context.Background(), models.EventKind("presence:query"), "", nil)
	require.Error(t, err)
	assert.Equal(t, 0, ch.ackManager.GetPendingCount(), "超时后应清除待应答记录")
}

// TestPublishWhenClosed 测试断开状态下发布直接失败
func TestPublishWhenClosed(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/none")
	err := ch.Publish(models.EventKindHeartbeat, "", nil)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

// TestHeartbeatEmission 测试心跳按间隔发出并触发回调
func TestHeartbeatEmission(t *testing.T) {
	frames := make(chan models.EventKind, 10)
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if env, err := models.DecodeEnvelope(raw); err == nil {
				frames <- env.Event
			}
		}
	})

	ch := NewChannel(url)
	ch.Config.HeartbeatInterval = 100 * time.Millisecond
	ch.SetCredential("token")

	beats := make(chan time.Time, 10)
	ch.OnHeartbeat(func(ts time.Time) { beats <- ts })

	require.NoError(t, ch.Connect())
	defer ch.Close()

	select {
	case kind := <-frames:
		assert.Equal(t, models.EventKindHeartbeat, kind)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到心跳帧")
	}
	select {
	case <-beats:
		assert.False(t, ch.LastHeartbeat().IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("心跳回调未触发")
	}
}

// TestReconnectAfterDrop 测试服务端掐断后自动重连并触发重连回调
func TestReconnectAfterDrop(t *testing.T) {
	conns := make(chan *websocket.Conn, 2)
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		conns <- conn
		holdOpen(conn)
	})

	ch := NewChannel(url)
	ch.Config.AutoReconnect = true
	ch.Config.MinRecTime = 10 * time.Millisecond
	ch.Config.MaxRecTime = 50 * time.Millisecond
	ch.SetCredential("token")

	reconnected := make(chan struct{}, 1)
	ch.OnReconnected(func() { reconnected <- struct{}{} })

	require.NoError(t, ch.Connect())
	defer ch.Close()

	// 服务端掐断第一条连接
	first := <-conns
	_ = first.Close()

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("重连回调未触发")
	}
	assert.True(t, ch.IsConnected())
}

// TestReconnectExhausted 测试重连耗尽后停在断开状态并上抛错误
func TestReconnectExhausted(t *testing.T) {
	conns := make(chan *websocket.Conn, 2)
	srv, url := newTestServer(t, func(conn *websocket.Conn) {
		conns <- conn
		holdOpen(conn)
	})

	ch := NewChannel(url).WithMaxRecAttempts(2)
	ch.Config.AutoReconnect = true
	ch.Config.MinRecTime = 10 * time.Millisecond
	ch.Config.MaxRecTime = 20 * time.Millisecond
	ch.SetCredential("token")

	connErrs := make(chan error, 4)
	ch.OnConnectError(func(err error) { connErrs <- err })

	require.NoError(t, ch.Connect())

	// 服务端整体下线，重连必然耗尽
	first := <-conns
	srv.Close()
	_ = first.Close()

	select {
	case err := <-connErrs:
		typed, ok := err.(interface{ GetType() models.ErrorType })
		require.True(t, ok)
		assert.Equal(t, models.ErrTypeReconnectExhausted, typed.GetType())
	case <-time.After(5 * time.Second):
		t.Fatal("重连耗尽错误未上抛")
	}
	assert.True(t, ch.Closed(), "耗尽后应停在断开状态")
}

// TestCloseTriggersCallback 测试主动关闭触发回调并进入断开状态
func TestCloseTriggersCallback(t *testing.T) {
	_, url := newTestServer(t, holdOpen)

	ch := NewChannel(url)
	ch.SetCredential("token")

	closed := make(chan struct{}, 1)
	ch.OnClose(func(code int, text string) {
		closed <- struct{}{}
	})

	require.NoError(t, ch.Connect())
	ch.CloseWithMsg("logout")

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("关闭回调未触发")
	}
	assert.True(t, ch.Closed())
}
