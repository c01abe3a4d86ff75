package service

import (
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/util"
	"aerovision_backend/pkg/logger"
	"aerovision_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sseHeartbeat   = 15 * time.Second
	maxMessageSize = 512
	shardCount     = 16

	mailboxChannel = "mailbox_channel"

	TransportSSE = "sse"
	TransportWS  = "ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// MailboxEvent 推送给客户端的事件，ID 唯一，客户端按至少一次语义幂等刷新
type MailboxEvent struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time time.Time   `json:"time"`
}

func NewMailboxEvent(eventType string, data interface{}) MailboxEvent {
	return MailboxEvent{
		ID:   uuid.New().String(),
		Type: eventType,
		Data: data,
		Time: time.Now(),
	}
}

// StreamClient 一个浏览器标签页或组件对应的一条连接，同一用户可以有多条
type StreamClient struct {
	ID        string
	Email     string
	Transport string
	Send      chan []byte
}

type shard struct {
	clients map[string]map[*StreamClient]struct{}
	mu      sync.RWMutex
}

type relayMessage struct {
	TargetUsers []string        `json:"targetUsers"`
	Payload     json.RawMessage `json:"payload"`
}

// MailboxHub 按邮箱维护在线连接；多实例部署时通过 Redis pub/sub 转发事件，
// 并按固定间隔推送未读数快照，丢失的事件会在下一次对账时被修正
type MailboxHub struct {
	shards      [shardCount]*shard
	Redis       *redis.Client
	MessageRepo *repository.MessageRepository

	bufferSize   int
	pollInterval atomic.Int64
}

func NewMailboxHub(rdb *redis.Client, messageRepo *repository.MessageRepository, bufferSize int, pollInterval time.Duration) *MailboxHub {
	h := &MailboxHub{
		Redis:       rdb,
		MessageRepo: messageRepo,
		bufferSize:  bufferSize,
	}
	if h.bufferSize <= 0 {
		h.bufferSize = 64
	}
	h.SetPollInterval(pollInterval)
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			clients: make(map[string]map[*StreamClient]struct{}),
		}
	}
	return h
}

func (h *MailboxHub) SetPollInterval(d time.Duration) {
	if d <= 0 {
		d = 2 * time.Second
	}
	h.pollInterval.Store(int64(d))
}

func (h *MailboxHub) PollInterval() time.Duration {
	return time.Duration(h.pollInterval.Load())
}

func (h *MailboxHub) getShard(email string) *shard {
	f := fnv.New32a()
	f.Write([]byte(email))
	return h.shards[f.Sum32()%shardCount]
}

func (h *MailboxHub) Register(email, transport string) *StreamClient {
	client := &StreamClient{
		ID:        uuid.New().String(),
		Email:     email,
		Transport: transport,
		Send:      make(chan []byte, h.bufferSize),
	}

	s := h.getShard(email)
	s.mu.Lock()
	set, ok := s.clients[email]
	if !ok {
		set = make(map[*StreamClient]struct{})
		s.clients[email] = set
	}
	set[client] = struct{}{}
	s.mu.Unlock()

	monitoring.StreamClients.WithLabelValues(transport).Inc()
	logger.Log.Debug("Mailbox client registered",
		zap.String("email", email),
		zap.String("transport", transport),
		zap.String("clientId", client.ID),
	)
	return client
}

// Unregister 可重复调用，只有第一次会关闭发送通道
func (h *MailboxHub) Unregister(client *StreamClient) {
	s := h.getShard(client.Email)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.clients[client.Email]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(s.clients, client.Email)
	}
	close(client.Send)
	monitoring.StreamClients.WithLabelValues(client.Transport).Dec()
}

func (h *MailboxHub) IsOnline(email string) bool {
	s := h.getShard(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[email]) > 0
}

// ConnectedUsers 当前实例上有连接的用户
func (h *MailboxHub) ConnectedUsers() []string {
	var emails []string
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for email := range s.clients {
			emails = append(emails, email)
		}
		s.mu.RUnlock()
	}
	return emails
}

// Publish 推送事件给指定用户；配置了 Redis 时经由频道转发给所有实例
func (h *MailboxHub) Publish(ctx context.Context, recipients []string, event MailboxEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("Mailbox event marshal error", zap.Error(err))
		return
	}
	monitoring.MailboxEvents.WithLabelValues(event.Type, "publish").Inc()

	if h.Redis == nil {
		h.deliverLocal(recipients, payload, event.Type)
		return
	}

	relay, _ := json.Marshal(relayMessage{TargetUsers: recipients, Payload: payload})
	if err := h.Redis.Publish(ctx, mailboxChannel, relay).Err(); err != nil {
		// Redis 不可用时至少保证本实例的连接能收到
		logger.Log.Warn("Mailbox relay publish failed, delivering locally", zap.Error(err))
		h.deliverLocal(recipients, payload, event.Type)
	}
}

func (h *MailboxHub) deliverLocal(recipients []string, payload []byte, eventType string) {
	for _, email := range recipients {
		s := h.getShard(email)
		s.mu.RLock()
		for client := range s.clients[email] {
			select {
			case client.Send <- payload:
				monitoring.MailboxEvents.WithLabelValues(eventType, "deliver").Inc()
			default:
				monitoring.MailboxEvents.WithLabelValues(eventType, "drop").Inc()
			}
		}
		s.mu.RUnlock()
	}
}

// Start 订阅转发频道后启动对账循环，ctx 取消时全部退出
func (h *MailboxHub) Start(ctx context.Context) error {
	if h.Redis != nil {
		sub := h.Redis.Subscribe(ctx, mailboxChannel)
		if _, err := sub.Receive(ctx); err != nil {
			sub.Close()
			return fmt.Errorf("subscribe %s: %w", mailboxChannel, err)
		}
		go h.relay(ctx, sub)
	}
	go h.reconcileLoop(ctx)
	logger.Log.Info("Mailbox hub started",
		zap.Bool("redisRelay", h.Redis != nil),
		zap.Duration("pollInterval", h.PollInterval()),
	)
	return nil
}

func (h *MailboxHub) relay(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				logger.Log.Error("Mailbox relay unmarshal error", zap.Error(err))
				continue
			}
			var head struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(rm.Payload, &head)
			h.deliverLocal(rm.TargetUsers, rm.Payload, head.Type)
		}
	}
}

func (h *MailboxHub) reconcileLoop(ctx context.Context) {
	interval := h.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Reconcile(ctx)
			if next := h.PollInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Reconcile 向本实例所有在线用户推送未读数快照
func (h *MailboxHub) Reconcile(ctx context.Context) {
	emails := h.ConnectedUsers()
	if len(emails) == 0 || h.MessageRepo == nil {
		return
	}
	counts, err := h.MessageRepo.UnreadByRecipient(ctx, emails)
	if err != nil {
		logger.Log.Warn("Mailbox reconcile failed", zap.Error(err))
		return
	}
	for _, email := range emails {
		h.SyncUser(email, counts[email])
	}
}

// SyncUser 只推送到本实例，每个实例各自对账自己的连接
func (h *MailboxHub) SyncUser(email string, unread int64) {
	event := NewMailboxEvent(util.EventUnreadSync, map[string]interface{}{
		"email":       email,
		"unreadCount": unread,
	})
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.deliverLocal([]string{email}, payload, event.Type)
}

func (h *MailboxHub) Stop() {
	closed := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for email, set := range s.clients {
			for client := range set {
				close(client.Send)
				monitoring.StreamClients.WithLabelValues(client.Transport).Dec()
				closed++
			}
			delete(s.clients, email)
		}
		s.mu.Unlock()
	}
	logger.Log.Info("Mailbox hub stopped", zap.Int("closedConnections", closed))
}

func (h *MailboxHub) initialSync(ctx context.Context, email string) {
	if h.MessageRepo == nil {
		return
	}
	count, err := h.MessageRepo.CountUnread(ctx, email)
	if err != nil {
		return
	}
	h.SyncUser(email, count)
}

// ServeWs 升级为 WebSocket；客户端上行消息只用于保活
func (h *MailboxHub) ServeWs(w http.ResponseWriter, r *http.Request, email string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.String("email", email))
		return
	}
	client := h.Register(email, TransportWS)
	h.initialSync(r.Context(), email)

	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

func (h *MailboxHub) readPump(conn *websocket.Conn, client *StreamClient) {
	defer func() {
		h.Unregister(client)
		conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err), zap.String("email", client.Email))
			}
			return
		}
	}
}

func (h *MailboxHub) writePump(conn *websocket.Conn, client *StreamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeSSE 阻塞直到客户端断开或 hub 关闭连接
func (h *MailboxHub) ServeSSE(w http.ResponseWriter, r *http.Request, email string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := h.Register(email, TransportSSE)
	defer h.Unregister(client)
	h.initialSync(r.Context(), email)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
