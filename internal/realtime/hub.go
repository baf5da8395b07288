package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer 每个连接待发送消息的上限，写满视为慢客户端并断开
	sendBuffer = 16
)

// Message 推送给客户端的事件
// 事件只是提示，客户端收到后重新拉取比赛状态
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// client 单个订阅连接，写操作只在自己的 writePump 中进行
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub 按比赛分组的 WebSocket 连接集合，不持有任何业务状态
type Hub struct {
	mu       sync.Mutex
	contests map[string]map[*websocket.Conn]*client
	logger   *zap.Logger
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		contests: make(map[string]map[*websocket.Conn]*client),
		logger:   logger,
	}
}

// AddConnection 订阅比赛事件
func (h *Hub) AddConnection(contestID string, conn *websocket.Conn) {
	c := h.register(contestID, conn)
	go h.writePump(contestID, c)
}

func (h *Hub) register(contestID string, conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.contests[contestID] == nil {
		h.contests[contestID] = make(map[*websocket.Conn]*client)
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.contests[contestID][conn] = c
	h.logger.Debug("ws 客户端已连接",
		zap.String("contest_id", contestID),
		zap.Int("total", len(h.contests[contestID])),
	)
	return c
}

// writePump 串行写出该连接的消息，send 关闭后退出
func (h *Hub) writePump(contestID string, c *client) {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("ws 写入失败", zap.String("contest_id", contestID), zap.Error(err))
			h.RemoveConnection(contestID, c.conn)
		}
	}
}

// RemoveConnection 取消订阅并关闭连接
func (h *Hub) RemoveConnection(contestID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(contestID, conn)
}

func (h *Hub) removeLocked(contestID string, conn *websocket.Conn) {
	conns, ok := h.contests[contestID]
	if !ok {
		return
	}
	c, ok := conns[conn]
	if !ok {
		return
	}
	delete(conns, conn)
	close(c.send)
	conn.Close()
	if len(conns) == 0 {
		delete(h.contests, contestID)
	}
	h.logger.Debug("ws 客户端已断开", zap.String("contest_id", contestID))
}

// ConnectionCount 当前订阅某比赛的连接数
func (h *Hub) ConnectionCount(contestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.contests[contestID])
}

// Publish 向比赛的所有订阅者广播事件，不等待网络写入
// 发送队列已满的连接直接移除
func (h *Hub) Publish(contestID, event string, data interface{}) {
	payload, err := json.Marshal(Message{Type: event, Data: data})
	if err != nil {
		h.logger.Warn("ws 消息序列化失败", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, c := range h.contests[contestID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("ws 客户端过慢，断开连接", zap.String("contest_id", contestID))
			h.removeLocked(contestID, conn)
		}
	}
}

// Close 关闭所有连接，服务退出时调用
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for contestID, conns := range h.contests {
		for conn, c := range conns {
			close(c.send)
			conn.Close()
		}
		delete(h.contests, contestID)
	}
}
