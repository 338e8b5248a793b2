package live_sdk

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cydxin/live-sdk/message"
	"github.com/cydxin/live-sdk/sentiment"
	"github.com/cydxin/live-sdk/stats"
	"github.com/cydxin/live-sdk/stream"
	"github.com/cydxin/live-sdk/upstream"
)

const shardCount = 16

type managerShard struct {
	mu       sync.Mutex
	sessions map[int64]*RoomSession
}

// ConnectionManager 房间会话注册表。
// 核心不变量：一个房间最多一条上游连接——第一个订阅者建连，
// 最后一个退订拆连，中间的全部复用同一个会话。
// 按房间号分片锁，避免热门房间订阅风暴拖住其他房间。
type ConnectionManager struct {
	shards [shardCount]*managerShard

	factory   upstream.Factory
	pool      *sentiment.Pool
	builder   *stats.WordcloudBuilder
	publisher stream.Publisher
	cfg       *Config

	closed atomic.Bool
}

// NewConnectionManager 创建管理器。
func NewConnectionManager(cfg *Config, pool *sentiment.Pool,
	builder *stats.WordcloudBuilder, publisher stream.Publisher) *ConnectionManager {

	factory := cfg.UpstreamFactory
	if factory == nil {
		factory = upstream.NewFactory(cfg.UpstreamURL)
	}
	m := &ConnectionManager{
		factory:   factory,
		pool:      pool,
		builder:   builder,
		publisher: publisher,
		cfg:       cfg,
	}
	for i := range m.shards {
		m.shards[i] = &managerShard{sessions: make(map[int64]*RoomSession)}
	}
	return m
}

func (m *ConnectionManager) shard(roomID int64) *managerShard {
	return m.shards[uint64(roomID)%shardCount]
}

// Subscribe 订阅房间。房间没有会话就建一个（随之建上游连接），
// 有就直接挂上去。同一订阅者重复订阅同一房间是幂等的。
func (m *ConnectionManager) Subscribe(ctx context.Context, roomID int64, sub Subscriber) error {
	if m.closed.Load() {
		return fmt.Errorf("connection manager closed")
	}
	if roomID <= 0 {
		return fmt.Errorf("invalid room id: %d", roomID)
	}

	sh := m.shard(roomID)
	sh.mu.Lock()
	sess := sh.sessions[roomID]
	created := false
	if sess == nil {
		created = true
		sess = newRoomSession(roomID, m.factory(roomID), m.pool, m.builder, m.publisher, m.cfg)
		sess.onTerminal = m.handleTerminal
		sess.onEmpty = m.handleEmpty
		sh.sessions[roomID] = sess
	}
	sess.addSubscriber(sub)
	sh.mu.Unlock()

	if created {
		log.Printf("[ConnectionManager] 房间 %d 首个订阅者，建立上游连接", roomID)
		sess.start()
	}

	_ = sub.Send(message.Envelope{
		Type: message.WsTypeStatus,
		Data: message.StatusPayload{Status: "connected", RoomID: roomID},
	})
	if !created {
		// 晚到的订阅者立刻补一份当前统计，不用干等下一个推送周期
		_ = sub.Send(message.Envelope{Type: message.WsTypeStats, Data: sess.Stats()})
	}
	return nil
}

// Unsubscribe 退订房间。最后一个订阅者走了就拆会话和上游连接。
func (m *ConnectionManager) Unsubscribe(roomID int64, subID string) {
	sh := m.shard(roomID)
	sh.mu.Lock()
	sess := sh.sessions[roomID]
	if sess == nil {
		sh.mu.Unlock()
		return
	}
	removed, remaining := sess.removeSubscriber(subID)
	var toClose *RoomSession
	if removed && remaining == 0 {
		delete(sh.sessions, roomID)
		toClose = sess
	}
	sh.mu.Unlock()

	if toClose != nil {
		log.Printf("[ConnectionManager] 房间 %d 最后一个订阅者退订，断开上游", roomID)
		toClose.Close()
	}
}

// handleTerminal 上游异常断开时清掉会话。
// 按指针比对，防止误删断开后刚重建的新会话。
func (m *ConnectionManager) handleTerminal(sess *RoomSession) {
	sh := m.shard(sess.roomID)
	sh.mu.Lock()
	if sh.sessions[sess.roomID] == sess {
		delete(sh.sessions, sess.roomID)
	}
	sh.mu.Unlock()
	sess.Close()
}

// handleEmpty 广播剔除掉最后一个死订阅者之后的清场。
// 拿着分片锁复核订阅数，和并发的 Subscribe 互斥。
func (m *ConnectionManager) handleEmpty(sess *RoomSession) {
	sh := m.shard(sess.roomID)
	sh.mu.Lock()
	if sh.sessions[sess.roomID] != sess || sess.subscriberCount() > 0 {
		sh.mu.Unlock()
		return
	}
	delete(sh.sessions, sess.roomID)
	sh.mu.Unlock()
	sess.Close()
}

// ActiveRooms 当前有会话的房间号。
func (m *ConnectionManager) ActiveRooms() []int64 {
	var rooms []int64
	for _, sh := range m.shards {
		sh.mu.Lock()
		for roomID := range sh.sessions {
			rooms = append(rooms, roomID)
		}
		sh.mu.Unlock()
	}
	return rooms
}

func (m *ConnectionManager) session(roomID int64) *RoomSession {
	sh := m.shard(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.sessions[roomID]
}

// RoomStats 房间的进程内统计快照。
func (m *ConnectionManager) RoomStats(roomID int64) (message.StatsPayload, bool) {
	sess := m.session(roomID)
	if sess == nil {
		return message.StatsPayload{}, false
	}
	return sess.Stats(), true
}

// RecentContent 房间最近弹幕内容。
func (m *ConnectionManager) RecentContent(roomID int64) []string {
	sess := m.session(roomID)
	if sess == nil {
		return nil
	}
	return sess.RecentContent()
}

// Connected 房间上游是否在连。
func (m *ConnectionManager) Connected(roomID int64) bool {
	sess := m.session(roomID)
	return sess != nil && sess.Connected()
}

// ViewerCount 房间订阅者数。
func (m *ConnectionManager) ViewerCount(roomID int64) (int, bool) {
	sess := m.session(roomID)
	if sess == nil {
		return 0, false
	}
	return sess.subscriberCount(), true
}

// StartTime 房间会话建立时间。
func (m *ConnectionManager) StartTime(roomID int64) (time.Time, bool) {
	sess := m.session(roomID)
	if sess == nil {
		return time.Time{}, false
	}
	return sess.StartTime(), true
}

// Close 关闭全部会话，之后拒绝新订阅。
func (m *ConnectionManager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	var all []*RoomSession
	for _, sh := range m.shards {
		sh.mu.Lock()
		for roomID, sess := range sh.sessions {
			all = append(all, sess)
			delete(sh.sessions, roomID)
		}
		sh.mu.Unlock()
	}
	for _, sess := range all {
		sess.Close()
	}
	log.Printf("[ConnectionManager] 已关闭 %d 个房间会话", len(all))
}
