package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"papertrader/event"
	"papertrader/logger"
	"papertrader/metrics"
	"papertrader/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage WebSocket 推送消息封装
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WebSocketHub 管理全部 WebSocket 连接并广播消息
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	logStore   *storage.LogStore
	mu         sync.Mutex
	done       chan struct{}
	once       sync.Once
}

func newWebSocketHub(logStore *storage.LogStore) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logStore:   logStore,
		done:       make(chan struct{}),
	}
}

// Start 启动广播循环
func (h *WebSocketHub) Start() {
	go h.run()
}

// Stop 关闭全部连接并退出广播循环
func (h *WebSocketHub) Stop() {
	h.once.Do(func() {
		close(h.done)
	})
}

func (h *WebSocketHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			metrics.GetPrometheusMetrics().SetWebSocketClients(0)
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			metrics.GetPrometheusMetrics().SetWebSocketClients(count)
			logger.Debug("🔌 WebSocket 客户端接入，当前 %d 个", count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.GetPrometheusMetrics().SetWebSocketClients(count)
			logger.Debug("🔌 WebSocket 客户端断开，当前 %d 个", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// send 非阻塞投递广播消息，队列满时丢弃
func (h *WebSocketHub) send(msgType string, data interface{}) {
	payload, err := json.Marshal(&wsMessage{Type: msgType, Data: data})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// BroadcastEvent 推送事件，注册为事件中心回调
func (h *WebSocketHub) BroadcastEvent(evt *event.Event) {
	if evt == nil {
		return
	}
	h.send("event", map[string]interface{}{
		"id":        evt.ID,
		"type":      string(evt.Type),
		"severity":  string(event.GetEventSeverity(evt.Type)),
		"title":     event.GetEventTitle(evt.Type),
		"timestamp": evt.Timestamp,
		"data":      evt.Data,
	})
}

// BroadcastStatus 推送状态快照（账户、监控等）
func (h *WebSocketHub) BroadcastStatus(data interface{}) {
	h.send("status", data)
}

// ClientCount 当前连接数
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleWebSocket WebSocket 接入端点
// 携带 subscribe_logs=true 时额外推送实时日志
func (ws *WebServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("⚠️ WebSocket 升级失败: %v", err)
		return
	}

	select {
	case ws.hub.register <- conn:
	case <-ws.hub.done:
		conn.Close()
		return
	}

	var logCh chan *storage.LogRecord
	if c.Query("subscribe_logs") == "true" && ws.deps.LogStore != nil {
		logCh = ws.deps.LogStore.Subscribe()
		go func() {
			for rec := range logCh {
				payload, err := json.Marshal(&wsMessage{Type: "log", Data: rec})
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}()
	}

	// 读循环仅用于保活与感知断开
	go func() {
		defer func() {
			if logCh != nil {
				ws.deps.LogStore.Unsubscribe(logCh)
			}
			select {
			case ws.hub.unregister <- conn:
			case <-ws.hub.done:
				conn.Close()
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
