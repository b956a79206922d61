package clanmsg_sdk

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time 写入超时时间
	writeWait = 10 * time.Second

	// Time pong超时时间
	pongWait = 60 * time.Second

	// Send 对应的ping 必须小于pong
	pingPeriod = (pongWait * 9) / 10

	// Maximum 对等端允许消息大小
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for SDK
	},
}

// Client 一个具体的 websocket 连接。
// 通知通道是纯下行的：客户端上行只处理 ping/pong 和关闭。
type Client struct {
	hub *WsServer

	conn *websocket.Conn

	// 消息缓冲区
	send chan []byte

	// UserID 和用户关联（同一用户可有多个连接/多设备）
	UserID uint64
}

// WsServer 通知推送服务：维护 userID -> 连接集合，按用户投递。
type WsServer struct {
	clients map[uint64]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// 外部投递入口
	deliver chan userMessage
}

type userMessage struct {
	userID uint64
	data   []byte
}

func NewWsServer() *WsServer {
	return &WsServer{
		clients:    make(map[uint64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan userMessage, 256),
	}
}

// Run 事件循环。所有对 clients map 的读写都在这一个 goroutine 里。
func (h *WsServer) Run() {
	for {
		select {
		case client := <-h.register:
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true

		case client := <-h.unregister:
			if conns, ok := h.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.UserID)
					}
				}
			}

		case msg := <-h.deliver:
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.data:
				default:
					// 发不进去说明连接已死，丢弃并清理
					delete(h.clients[msg.userID], client)
					close(client.send)
				}
			}
		}
	}
}

// SendToUser 向某个用户的全部在线连接投递一条消息（离线静默丢弃，落库通知兜底）。
func (h *WsServer) SendToUser(userID uint64, message []byte) {
	if userID == 0 || len(message) == 0 {
		return
	}
	h.deliver <- userMessage{userID: userID, data: message}
}

// ServeWS 升级 HTTP 连接为 WebSocket 并注册到 hub。
func (h *WsServer) ServeWS(w http.ResponseWriter, r *http.Request, userID uint64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 64),
		UserID: userID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump 只负责心跳和关闭检测（下行通道不处理业务上行）。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error (user %d): %v", c.UserID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
