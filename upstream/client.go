// Package upstream 封装对外部直播事件源的单房间连接：
// 建连、解码数据帧、把事件派发给唯一的回调。
// 不做重连——重连与否是连接管理器在下一次订阅时的决策。
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cydxin/live-sdk/message"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// ping 周期必须小于 pong 超时
	pingPeriod = (pongWait * 9) / 10
)

// Handler 事件回调。同一连接内按帧到达顺序串行调用。
type Handler func(message.Event)

// Client 单房间上游连接。
// Connect 阻塞运行直到断开或取消；传输错误表现为 Connect 返回，不走单独的错误通道。
// Disconnect 幂等，允许和进行中的 Connect 并发调用，并使 Connect 在有限时间内返回。
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	OnEvent(h Handler)
	Connected() bool
}

// Factory 按房间创建上游连接，测试里用它注入假连接。
type Factory func(roomID int64) Client

// frame 上游数据帧：{cmd, data}
type frame struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
}

// 上游命令字
const (
	cmdDanmaku  = "DANMU_MSG"
	cmdGift     = "SEND_GIFT"
	cmdInteract = "INTERACT_WORD"
	cmdLike     = "LIKE_INFO_V3_CLICK"
)

type framePayload struct {
	Content  string `json:"content"`
	UserName string `json:"uname"`
	UserID   int64  `json:"uid"`
	GiftName string `json:"gift_name"`
	Num      int    `json:"num"`
	Price    int64  `json:"price"`
}

// LiveClient 基于 websocket 的上游连接实现。
type LiveClient struct {
	roomID int64
	url    string
	dialer *websocket.Dialer

	handler Handler

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    atomic.Bool
	connected atomic.Bool
}

// NewLiveClient 创建上游连接。urlPattern 形如 "ws://host/sub/%d"，%d 填房间号。
func NewLiveClient(roomID int64, urlPattern string) *LiveClient {
	return &LiveClient{
		roomID: roomID,
		url:    fmt.Sprintf(urlPattern, roomID),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// NewFactory 返回按 urlPattern 建连的工厂。
func NewFactory(urlPattern string) Factory {
	return func(roomID int64) Client {
		return NewLiveClient(roomID, urlPattern)
	}
}

// OnEvent 设置事件回调，必须在 Connect 之前调用。
func (c *LiveClient) OnEvent(h Handler) {
	c.handler = h
}

// Connected 是否在连。
func (c *LiveClient) Connected() bool {
	return c.connected.Load()
}

// Connect 连接上游并阻塞读帧，直到断开、Disconnect 或 ctx 取消。
// 主动断开返回 nil，传输错误原样返回。
func (c *LiveClient) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return nil
	}

	log.Printf("[LiveClient] 正在连接房间 %d ...", c.roomID)
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial room %d: %w", c.roomID, err)
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.connected.Store(true)
	defer c.connected.Store(false)

	// ctx 取消时关掉底层连接，把下面的读循环打断
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.closeConn()
		case <-stop:
		}
	}()
	go c.heartbeat(stop, conn)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || ctx.Err() != nil {
				log.Printf("[LiveClient] 房间 %d 已断开", c.roomID)
				return nil
			}
			return fmt.Errorf("read room %d: %w", c.roomID, err)
		}
		c.dispatch(data)
	}
}

// Disconnect 幂等断开，使进行中的 Connect 返回。
func (c *LiveClient) Disconnect() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.closeConn()
}

func (c *LiveClient) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

func (c *LiveClient) heartbeat(stop <-chan struct{}, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// dispatch 解析一帧并派发。解析失败只记日志，不断连接。
func (c *LiveClient) dispatch(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("[LiveClient] 房间 %d 解析数据帧失败: %v", c.roomID, err)
		return
	}
	var p framePayload
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &p); err != nil {
			log.Printf("[LiveClient] 房间 %d 解析 %s 载荷失败: %v", c.roomID, f.Cmd, err)
			return
		}
	}
	if p.UserName == "" {
		p.UserName = "未知用户"
	}

	var ev message.Event
	switch f.Cmd {
	case cmdDanmaku:
		ev = message.NewDanmakuEvent(message.Danmaku{
			Content:  p.Content,
			UserName: p.UserName,
			UserID:   p.UserID,
		})
	case cmdGift:
		name := p.GiftName
		if name == "" {
			name = "未知礼物"
		}
		count := p.Num
		if count <= 0 {
			count = 1
		}
		ev = message.NewGiftEvent(message.Gift{
			GiftName: name,
			Count:    count,
			UserName: p.UserName,
			UserID:   p.UserID,
			Price:    p.Price,
		})
	case cmdInteract:
		ev = message.NewInteractEvent(message.Interact{
			Action:   message.InteractEnter,
			UserName: p.UserName,
			UserID:   p.UserID,
		})
	case cmdLike:
		ev = message.NewInteractEvent(message.Interact{
			Action:   message.InteractLike,
			UserName: p.UserName,
			UserID:   p.UserID,
		})
	default:
		// 其他命令字（人气值等）暂不关心
		return
	}

	if c.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[LiveClient] 房间 %d 事件回调 panic: %v", c.roomID, r)
		}
	}()
	c.handler(ev)
}
