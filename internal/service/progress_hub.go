package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
	"tokengate_backend/internal/model"
	"tokengate_backend/pkg/logger"
	"tokengate_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	shardCount     = 32

	progressChannel = "progress_channel"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressMessage 推送给订阅会话的完整进度向量。
// 远端向量一旦更新即整体替换，不做字段级合并。
type ProgressMessage struct {
	Type     string             `json:"type"`
	UserID   uint               `json:"userId"`
	CourseID uint               `json:"courseId"`
	Statuses model.StatusVector `json:"statuses"`
	Version  int64              `json:"version"`
	Attempt  int                `json:"attempt"`
}

// Session 一个已订阅某 (学员, 课程) 进度流的 websocket 连接。
// 同一学员可以开多个会话（多标签页），SessionID 用于排除回声。
type Session struct {
	Hub       *ProgressHub
	Conn      *websocket.Conn
	Send      chan []byte
	SessionID string
	UserID    uint
	CourseID  uint
	Limiter   *rate.Limiter
}

func (s *Session) readPump() {
	defer func() {
		s.Hub.unregister <- s
		s.Conn.Close()
	}()
	s.Conn.SetReadLimit(maxMessageSize)
	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error { s.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		// 订阅流是单向的：入站帧只用来维持连接，超限直接丢弃
		if _, _, err := s.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", s.UserID))
			}
			break
		}
		if !s.Limiter.Allow() {
			continue
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if n := len(s.Send); n > 0 {
				for i := 0; i < n; i++ {
					w.Write(<-s.Send)
				}
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type progressShard struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// ProgressHub 把进度写入扇出到同一学员的其他在线会话。
// 经由 Redis pub/sub 中转，多实例部署时跨实例同样生效。
type ProgressHub struct {
	shards     [shardCount]*progressShard
	register   chan *Session
	unregister chan *Session
	Redis      *redis.Client
	ctx        context.Context
	cancel     context.CancelFunc
}

type progressPubSubMessage struct {
	UserID   uint            `json:"userId"`
	CourseID uint            `json:"courseId"`
	Origin   string          `json:"origin,omitempty"` // 发起写入的会话，不回推
	Payload  json.RawMessage `json:"payload"`
}

func NewProgressHub(rdb *redis.Client) *ProgressHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &ProgressHub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		Redis:      rdb,
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &progressShard{
			sessions: make(map[string]*Session),
		}
	}
	return h
}

func (h *ProgressHub) getShard(userID uint) *progressShard {
	return h.shards[userID%shardCount]
}

func (h *ProgressHub) Run() {
	pubsub := h.Redis.Subscribe(h.ctx, progressChannel)
	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			var psMsg progressPubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			h.pushToLocalSessions(psMsg)
		}
	}()

	for {
		select {
		case session := <-h.register:
			s := h.getShard(session.UserID)
			s.mu.Lock()
			s.sessions[session.SessionID] = session
			s.mu.Unlock()
			monitoring.SessionGauge.Inc()

		case session := <-h.unregister:
			s := h.getShard(session.UserID)
			s.mu.Lock()
			if _, ok := s.sessions[session.SessionID]; ok {
				delete(s.sessions, session.SessionID)
				close(session.Send)
				monitoring.SessionGauge.Dec()
			}
			s.mu.Unlock()

		case <-h.ctx.Done():
			pubsub.Close()
			return
		}
	}
}

// Publish 把一条进度更新广播给该学员在该课程上的其他会话。
// originSession 为空时推给所有会话（例如管理员重置）。
func (h *ProgressHub) Publish(record *model.ProgressRecord, originSession string) {
	msg := ProgressMessage{
		Type:     "PROGRESS_UPDATE",
		UserID:   record.UserID,
		CourseID: record.CourseID,
		Statuses: record.Statuses,
		Version:  record.Version,
		Attempt:  record.Attempt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	psMsg := progressPubSubMessage{
		UserID:   record.UserID,
		CourseID: record.CourseID,
		Origin:   originSession,
		Payload:  payload,
	}
	raw, _ := json.Marshal(psMsg)
	h.Redis.Publish(h.ctx, progressChannel, raw)
	monitoring.PushCounter.WithLabelValues("out").Inc()
}

func (h *ProgressHub) pushToLocalSessions(msg progressPubSubMessage) {
	s := h.getShard(msg.UserID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, session := range s.sessions {
		if session.UserID != msg.UserID || session.CourseID != msg.CourseID {
			continue
		}
		if msg.Origin != "" && id == msg.Origin {
			continue
		}
		select {
		case session.Send <- msg.Payload:
			monitoring.PushCounter.WithLabelValues("in").Inc()
		default:
		}
	}
}

// Stop 关闭所有会话
func (h *ProgressHub) Stop() {
	logger.Log.Info("ProgressHub stopping: closing subscriber sessions...")

	closed := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for id, session := range s.sessions {
			close(session.Send)
			delete(s.sessions, id)
			closed++
		}
		s.mu.Unlock()
	}

	h.cancel()
	monitoring.SessionGauge.Set(0)
	logger.Log.Info("ProgressHub stopped", zap.Int("closedSessions", closed))
}

// ServeWs 升级连接并注册订阅会话，返回会话 ID
func ServeWs(hub *ProgressHub, w http.ResponseWriter, r *http.Request, userID, courseID uint) string {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return ""
	}
	session := &Session{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		SessionID: uuid.New().String(),
		UserID:    userID,
		CourseID:  courseID,
		Limiter:   rate.NewLimiter(rate.Limit(10), 20),
	}
	session.Hub.register <- session

	go session.writePump()
	go session.readPump()

	// 首帧下发会话 ID，客户端后续写请求带上它来抑制回声
	if ready, err := json.Marshal(map[string]string{
		"type":      "SESSION_READY",
		"sessionId": session.SessionID,
	}); err == nil {
		session.Send <- ready
	}

	return session.SessionID
}
