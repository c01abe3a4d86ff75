package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/testutil"
	"aerovision_backend/internal/util"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveEvent(t *testing.T, client *StreamClient) MailboxEvent {
	t.Helper()
	select {
	case payload, ok := <-client.Send:
		require.True(t, ok, "send channel closed")
		var event MailboxEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mailbox event")
	}
	return MailboxEvent{}
}

func TestHubLocalDelivery(t *testing.T) {
	hub := NewMailboxHub(nil, nil, 2, time.Second)

	ana := hub.Register("ana@example.com", TransportSSE)
	anaTab := hub.Register("ana@example.com", TransportWS)
	bruno := hub.Register("bruno@example.com", TransportSSE)
	assert.True(t, hub.IsOnline("ana@example.com"))
	assert.ElementsMatch(t, []string{"ana@example.com", "bruno@example.com"}, hub.ConnectedUsers())

	event := NewMailboxEvent(util.EventMessageCreated, map[string]string{"text": "hola"})
	hub.Publish(context.Background(), []string{"ana@example.com"}, event)

	got := receiveEvent(t, ana)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, util.EventMessageCreated, got.Type)
	assert.Equal(t, event.ID, receiveEvent(t, anaTab).ID)
	assert.Empty(t, bruno.Send)

	hub.Unregister(ana)
	hub.Unregister(ana)
	assert.True(t, hub.IsOnline("ana@example.com"))
	hub.Unregister(anaTab)
	assert.False(t, hub.IsOnline("ana@example.com"))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewMailboxHub(nil, nil, 1, time.Second)
	slow := hub.Register("slow@example.com", TransportSSE)

	for i := 0; i < 3; i++ {
		hub.Publish(context.Background(), []string{"slow@example.com"}, NewMailboxEvent(util.EventMessageCreated, i))
	}
	// 发送方不会被慢客户端阻塞，多余事件被丢弃
	assert.Len(t, slow.Send, 1)
}

func TestHubRedisRelay(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 两个实例共享同一 Redis，连接分别落在不同实例上
	first := NewMailboxHub(rdb, nil, 8, time.Hour)
	second := NewMailboxHub(rdb, nil, 8, time.Hour)
	require.NoError(t, first.Start(ctx))
	require.NoError(t, second.Start(ctx))

	client := second.Register("ana@example.com", TransportWS)

	event := NewMailboxEvent(util.EventMessagesRead, map[string]int{"count": 2})
	first.Publish(ctx, []string{"ana@example.com"}, event)

	got := receiveEvent(t, client)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, util.EventMessagesRead, got.Type)
}

func TestHubReconcileSendsUnreadSnapshot(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewMessageRepository(db)
	require.NoError(t, repo.Create(context.Background(), &model.Message{
		FromEmail: "ana@example.com",
		ToEmail:   testutil.AdminEmail,
		Text:      "hola",
	}))

	hub := NewMailboxHub(nil, repo, 8, 20*time.Millisecond)
	client := hub.Register(testutil.AdminEmail, TransportSSE)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.Start(ctx))

	event := receiveEvent(t, client)
	assert.Equal(t, util.EventUnreadSync, event.Type)
	data := event.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["unreadCount"])

	hub.SetPollInterval(0)
	assert.Equal(t, 2*time.Second, hub.PollInterval())
}

func TestHubServeSSE(t *testing.T) {
	hub := NewMailboxHub(nil, nil, 8, time.Hour)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSSE(w, r, "ana@example.com")
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.IsOnline("ana@example.com") }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(context.Background(), []string{"ana@example.com"}, NewMailboxEvent(util.EventMessageCreated, "hola"))

	buf := make([]byte, 4096)
	var received strings.Builder
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !strings.Contains(received.String(), util.EventMessageCreated) {
		n, err := resp.Body.Read(buf)
		received.Write(buf[:n])
		if err != nil {
			break
		}
	}
	assert.Contains(t, received.String(), "event: message")
	assert.Contains(t, received.String(), util.EventMessageCreated)

	hub.Stop()
}

func TestHubServeWebSocket(t *testing.T) {
	hub := NewMailboxHub(nil, nil, 8, time.Hour)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, "bruno@example.com")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline("bruno@example.com") }, 2*time.Second, 10*time.Millisecond)
	event := NewMailboxEvent(util.EventMessageCreated, "hola")
	hub.Publish(context.Background(), []string{"bruno@example.com"}, event)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got MailboxEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, event.ID, got.ID)
}
