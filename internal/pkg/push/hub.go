// internal/pkg/push/hub.go
package push

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tourhub/internal/pkg/httpx"
	"tourhub/internal/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由 CORS 中间件统一处理，连接本身需要令牌
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub 维护本节点所有活跃的 websocket 连接，一个用户可以有多个连接
type Hub struct {
	nodeID     string
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	lock       sync.RWMutex
}

// NewHub 创建推送中心，需要调用 Run 才能接受连接
func NewHub() *Hub {
	return &Hub{
		nodeID:     "push-" + uuid.NewString()[:8],
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// NodeID 返回本节点的标识
func (h *Hub) NodeID() string { return h.nodeID }

// Run 处理连接的注册与注销，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.lock.Lock()
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*Client]struct{})
			}
			h.clients[c.userID][c] = struct{}{}
			h.lock.Unlock()
			log.Debug().Int64("user_id", c.userID).Str("node", h.nodeID).Msg("push client registered")
		case c := <-h.unregister:
			h.remove(c)
		case <-ctx.Done():
			close(h.done)
			h.lock.Lock()
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			h.lock.Unlock()
			log.Info().Str("node", h.nodeID).Msg("🛑 push hub stopped")
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	log.Debug().Int64("user_id", c.userID).Msg("push client unregistered")
}

// Send 把消息投递给用户的所有连接，返回成功入队的连接数。
// 发送缓冲已满的连接会被跳过，慢连接不能拖住调用方
func (h *Hub) Send(userID int64, payload []byte) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
			delivered++
		default:
			log.Warn().Int64("user_id", userID).Msg("⚠️ push buffer full, dropping message")
		}
	}
	return delivered
}

// Connections 返回用户当前的连接数
func (h *Hub) Connections(userID int64) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[userID])
}

// Handler 返回 websocket 入口。resolve 负责从请求中识别用户
func (h *Hub) Handler(resolve func(r *http.Request) (int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := resolve(r)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), userID: userID}
		select {
		case h.register <- c:
		case <-h.done:
			conn.Close()
			return
		case <-r.Context().Done():
			conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	}
}
