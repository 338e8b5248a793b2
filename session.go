package live_sdk

import (
	"context"
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

// RoomSession 一个房间的上游连接和全部下游订阅者。
// 事件处理在单个 run 协程里串行跑：打分丢进计算池但原地等结果，
// 所以同一房间内弹幕的推送顺序就是上游到达顺序。
type RoomSession struct {
	roomID int64
	client upstream.Client

	events chan message.Event

	subMu sync.RWMutex
	subs  map[string]Subscriber

	stats     *stats.RollingStats
	pool      *sentiment.Pool
	builder   *stats.WordcloudBuilder
	publisher stream.Publisher

	cfg *Config

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// onEmpty 订阅数掉到 0 时回调（广播剔除了最后一个死订阅者的场合）
	onEmpty func(*RoomSession)
	// onTerminal 上游异常断开时回调，管理器拿它做清场
	onTerminal func(*RoomSession)

	wcRunning atomic.Bool
}

func newRoomSession(roomID int64, client upstream.Client, pool *sentiment.Pool,
	builder *stats.WordcloudBuilder, publisher stream.Publisher, cfg *Config) *RoomSession {

	ctx, cancel := context.WithCancel(context.Background())
	return &RoomSession{
		roomID:    roomID,
		client:    client,
		events:    make(chan message.Event, cfg.EventBuffer),
		subs:      make(map[string]Subscriber),
		stats:     stats.NewRollingStats(cfg.RecentCapacity),
		pool:      pool,
		builder:   builder,
		publisher: publisher,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// start 建立上游连接并启动事件循环。
func (s *RoomSession) start() {
	s.client.OnEvent(s.enqueue)

	go s.run()
	go func() {
		err := s.client.Connect(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		// 走到这里是上游自己断了，不是我们主动关的
		if err != nil {
			log.Printf("[RoomSession] 房间 %d 上游断开: %v", s.roomID, err)
		}
		s.broadcast(message.Envelope{
			Type: message.WsTypeStatus,
			Data: message.StatusPayload{Status: "disconnected", RoomID: s.roomID, Message: "上游连接断开"},
		})
		if s.onTerminal != nil {
			s.onTerminal(s)
		}
	}()
}

// enqueue 上游回调入口，满了丢新事件。
func (s *RoomSession) enqueue(ev message.Event) {
	select {
	case s.events <- ev:
	default:
		log.Printf("[RoomSession] 房间 %d 事件缓冲已满，丢弃事件", s.roomID)
	}
}

// run 事件主循环。
func (s *RoomSession) run() {
	statsTicker := time.NewTicker(s.cfg.StatsInterval)
	wcTicker := time.NewTicker(s.cfg.WordcloudInterval)
	defer statsTicker.Stop()
	defer wcTicker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-statsTicker.C:
			// 静默期也照推：弹幕速率随时间衰减，订阅者靠周期快照感知
			s.broadcast(message.Envelope{Type: message.WsTypeStats, Data: s.stats.Snapshot()})
		case <-wcTicker.C:
			s.pushWordcloud()
		}
	}
}

// handleEvent 穷举分发一条上游事件。
func (s *RoomSession) handleEvent(ev message.Event) {
	switch ev.Kind {
	case message.KindDanmaku:
		d := *ev.Danmaku
		score, label, err := s.pool.Score(s.ctx, d.Content)
		if err != nil {
			// 会话正在关闭或池已满载，按中性处理不丢消息
			score, label = 0.5, message.LabelNeutral
		}
		scored := message.ScoredDanmaku{Danmaku: d, Score: score, Label: label}
		s.stats.AddDanmaku(d.Content, score, label)
		s.broadcast(message.Envelope{
			Type: message.WsTypeDanmaku,
			Data: message.DanmakuPayload{
				Content:        d.Content,
				UserName:       d.UserName,
				UserID:         d.UserID,
				Timestamp:      ev.Time,
				SentimentScore: score,
				SentimentLabel: label,
			},
		})
		if s.publisher != nil {
			s.publisher.Publish(message.DanmakuRecord(s.roomID, scored, ev.Time))
		}

	case message.KindGift:
		g := *ev.Gift
		s.stats.AddGift(g.Count)
		s.broadcast(message.Envelope{
			Type: message.WsTypeGift,
			Data: message.GiftPayload{
				GiftName:  g.GiftName,
				GiftCount: g.Count,
				UserName:  g.UserName,
				UserID:    g.UserID,
				Price:     g.Price,
				Timestamp: ev.Time,
			},
		})
		if s.publisher != nil {
			s.publisher.Publish(message.GiftRecord(s.roomID, g, ev.Time))
		}

	case message.KindInteract:
		i := *ev.Interact
		s.broadcast(message.Envelope{
			Type: message.WsTypeInteract,
			Data: message.InteractPayload{
				Action:    i.Action,
				UserName:  i.UserName,
				UserID:    i.UserID,
				Timestamp: ev.Time,
			},
		})
	}
}

// pushWordcloud 异步算房间词云再广播，上一轮没算完就跳过这一轮。
func (s *RoomSession) pushWordcloud() {
	if !s.wcRunning.CompareAndSwap(false, true) {
		return
	}
	texts := s.stats.RecentContent()
	if len(texts) == 0 {
		s.wcRunning.Store(false)
		return
	}
	go func() {
		defer s.wcRunning.Store(false)
		var items []message.WordItem
		if err := s.pool.Do(s.ctx, func() {
			items = s.builder.Build(texts, s.cfg.WordcloudTopK)
		}); err != nil {
			return
		}
		s.broadcast(message.Envelope{Type: message.WsTypeWordcloud, Data: items})
	}()
}

// broadcast 发给全部订阅者。
// 注意：不能在 RLock 下修改 map，发失败的先收集、出了读锁再剔。
func (s *RoomSession) broadcast(env message.Envelope) {
	var toRemove []string
	s.subMu.RLock()
	for id, sub := range s.subs {
		if err := sub.Send(env); err != nil {
			toRemove = append(toRemove, id)
		}
	}
	s.subMu.RUnlock()

	if len(toRemove) == 0 {
		return
	}
	s.subMu.Lock()
	for _, id := range toRemove {
		delete(s.subs, id)
	}
	empty := len(s.subs) == 0
	s.subMu.Unlock()

	log.Printf("[RoomSession] 房间 %d 剔除 %d 个失联订阅者", s.roomID, len(toRemove))
	if empty && s.onEmpty != nil {
		s.onEmpty(s)
	}
}

// addSubscriber 加入订阅者，同 ID 重复加入只算一次。
// 返回当前是否新加入。
func (s *RoomSession) addSubscriber(sub Subscriber) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subs[sub.ID()]; ok {
		return false
	}
	s.subs[sub.ID()] = sub
	return true
}

// removeSubscriber 移除订阅者，返回是否存在以及剩余订阅数。
func (s *RoomSession) removeSubscriber(id string) (bool, int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return false, len(s.subs)
	}
	delete(s.subs, id)
	return true, len(s.subs)
}

func (s *RoomSession) subscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// Stats 当前统计快照。
func (s *RoomSession) Stats() message.StatsPayload {
	return s.stats.Snapshot()
}

// RecentContent 最近弹幕内容。
func (s *RoomSession) RecentContent() []string {
	return s.stats.RecentContent()
}

// Connected 上游是否在连。
func (s *RoomSession) Connected() bool {
	return s.client.Connected()
}

// StartTime 会话建立时间。
func (s *RoomSession) StartTime() time.Time {
	return s.stats.StartTime()
}

// Close 幂等关闭：断上游、停事件循环。订阅者连接由各自的 pump 收尾。
func (s *RoomSession) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.client.Disconnect()
	})
}
