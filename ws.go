package live_sdk

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cydxin/live-sdk/message"
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

// ErrSendBufferFull 订阅者发送缓冲满。
// 会话广播拿到这个错误就把订阅者当掉线处理。
var ErrSendBufferFull = errors.New("subscriber send buffer full")

// ErrSubscriberClosed 订阅者已关闭。
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber 房间事件的下游订阅者。
// Send 必须非阻塞：发不出去返回错误，由会话负责移除。
type Subscriber interface {
	ID() string
	Send(env message.Envelope) error
}

// Client 一个具体的 websocket 订阅连接。
// 同一个浏览器开两个页签就是两个 Client，互不影响。
type Client struct {
	id     string
	roomID int64

	// 🔗链接
	conn *websocket.Conn

	// 消息缓冲区。sendMu 让入队和 close 关通道互斥，
	// 关闭竞态下不会写已关通道
	sendMu sync.Mutex
	send   chan []byte
	closed bool

	manager *ConnectionManager
}

func newClient(conn *websocket.Conn, roomID int64, manager *ConnectionManager) *Client {
	return &Client{
		id:      uuid.NewString(),
		roomID:  roomID,
		conn:    conn,
		send:    make(chan []byte, 256),
		manager: manager,
	}
}

// ID 连接级别的订阅者标识。
func (c *Client) ID() string {
	return c.id
}

// Send 把一条信封塞进发送缓冲。缓冲满或已关闭立刻返回错误，从不阻塞。
func (c *Client) Send(env message.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return ErrSubscriberClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// close 标记关闭并关掉发送缓冲，幂等。
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump 读取客户端指令。目前只认 {"action":"ping"}，其余一律忽略。
// 连接断开时从管理器退订。
func (c *Client) readPump() {
	defer func() {
		if c.manager != nil {
			c.manager.Unsubscribe(c.roomID, c.id)
		}
		c.close()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			break
		}

		var cmd message.ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			// 非 JSON 的输入不算错误，客户端乱发我们不管
			continue
		}
		if cmd.Action == "ping" {
			_ = c.Send(message.Envelope{
				Type: message.WsTypePong,
				Data: message.PongPayload{Timestamp: time.Now()},
			})
		}
	}
}

// writePump 把发送缓冲写到 websocket 连接，顺带维持 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			// 一次性冲掉缓冲里攒下的消息，不重新走 select，提升性能
			n := len(c.send)
			for i := 0; i < n; i++ {
				data, ok := <-c.send
				if !ok {
					_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("writePump 写入ping失败")
				return
			}
		}
	}
}

// ServeWS 把一个 HTTP 请求升级成房间订阅连接。
func (m *ConnectionManager) ServeWS(w http.ResponseWriter, r *http.Request, roomID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := newClient(conn, roomID, m)

	go client.writePump()
	go client.readPump()

	if err := m.Subscribe(r.Context(), roomID, client); err != nil {
		log.Printf("[WS] 房间 %d 订阅失败: %v", roomID, err)
		_ = client.Send(message.Envelope{
			Type: message.WsTypeStatus,
			Data: message.StatusPayload{
				Status:  "error",
				RoomID:  roomID,
				Message: err.Error(),
			},
		})
		client.close()
		return
	}
	log.Printf("[WS] 房间 %d 新订阅者 %s", roomID, client.id)
}
