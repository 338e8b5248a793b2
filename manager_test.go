package live_sdk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cydxin/live-sdk/message"
	"github.com/cydxin/live-sdk/sentiment"
	"github.com/cydxin/live-sdk/stats"
	"github.com/cydxin/live-sdk/stream"
	"github.com/cydxin/live-sdk/upstream"
)

// fakeUpstream 假上游连接：Connect 阻塞到断开，事件由测试手动灌。
type fakeUpstream struct {
	roomID       int64
	handler      atomic.Value // upstream.Handler
	connected    atomic.Bool
	disconnected atomic.Bool
	done         chan struct{}
	closeOnce    sync.Once
}

func newFakeUpstream(roomID int64) *fakeUpstream {
	return &fakeUpstream{roomID: roomID, done: make(chan struct{})}
}

func (f *fakeUpstream) Connect(ctx context.Context) error {
	f.connected.Store(true)
	defer f.connected.Store(false)
	select {
	case <-ctx.Done():
	case <-f.done:
	}
	return nil
}

func (f *fakeUpstream) Disconnect() {
	f.disconnected.Store(true)
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *fakeUpstream) OnEvent(h upstream.Handler) { f.handler.Store(h) }

func (f *fakeUpstream) Connected() bool { return f.connected.Load() }

func (f *fakeUpstream) emit(ev message.Event) {
	if h, ok := f.handler.Load().(upstream.Handler); ok && h != nil {
		h(ev)
	}
}

// fakeFactory 记录建过的连接。
type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeUpstream
}

func (ff *fakeFactory) factory(roomID int64) upstream.Client {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	c := newFakeUpstream(roomID)
	ff.created = append(ff.created, c)
	return c
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.created)
}

func (ff *fakeFactory) last() *fakeUpstream {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.created) == 0 {
		return nil
	}
	return ff.created[len(ff.created)-1]
}

// fakeSub 内存订阅者。fail 置位后 Send 一律失败。
type fakeSub struct {
	id   string
	fail atomic.Bool

	mu   sync.Mutex
	envs []message.Envelope
}

func newFakeSub(id string) *fakeSub { return &fakeSub{id: id} }

func (s *fakeSub) ID() string { return s.id }

func (s *fakeSub) Send(env message.Envelope) error {
	if s.fail.Load() {
		return fmt.Errorf("send failed")
	}
	s.mu.Lock()
	s.envs = append(s.envs, env)
	s.mu.Unlock()
	return nil
}

func (s *fakeSub) typed(wsType string) []message.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []message.Envelope
	for _, env := range s.envs {
		if env.Type == wsType {
			out = append(out, env)
		}
	}
	return out
}

func testManager(t *testing.T) (*ConnectionManager, *fakeFactory) {
	ff := &fakeFactory{}
	cfg := &Config{
		UpstreamFactory:   ff.factory,
		StatsInterval:     20 * time.Millisecond,
		WordcloudInterval: 50 * time.Millisecond,
	}
	cfg.withDefaults()

	pool := sentiment.NewPool(2, sentiment.NewScorerWithLexicon(
		[]string{"棒"}, []string{"垃圾"}))
	t.Cleanup(pool.Close)

	builder := stats.NewWordcloudBuilderWithCut(strings.Fields)
	m := NewConnectionManager(cfg, pool, builder, &stream.NopPublisher{})
	t.Cleanup(m.Close)
	return m, ff
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}

func TestManager_SingleUpstreamConnection(t *testing.T) {
	m, ff := testManager(t)
	ctx := context.Background()

	if err := m.Subscribe(ctx, 1, newFakeSub("a")); err != nil {
		t.Fatalf("Subscribe a err: %v", err)
	}
	if err := m.Subscribe(ctx, 1, newFakeSub("b")); err != nil {
		t.Fatalf("Subscribe b err: %v", err)
	}

	if got := ff.count(); got != 1 {
		t.Fatalf("expected 1 upstream connection, got %d", got)
	}
	if n, ok := m.ViewerCount(1); !ok || n != 2 {
		t.Fatalf("expected 2 viewers, got %d ok=%v", n, ok)
	}
	waitFor(t, func() bool { return m.Connected(1) }, "upstream connected")
}

func TestManager_TeardownOnLastUnsubscribe(t *testing.T) {
	m, ff := testManager(t)
	ctx := context.Background()

	_ = m.Subscribe(ctx, 1, newFakeSub("a"))
	_ = m.Subscribe(ctx, 1, newFakeSub("b"))

	m.Unsubscribe(1, "a")
	if len(m.ActiveRooms()) != 1 {
		t.Fatalf("expected session alive with one viewer left")
	}
	if ff.last().disconnected.Load() {
		t.Fatalf("upstream must not disconnect while viewers remain")
	}

	m.Unsubscribe(1, "b")
	if len(m.ActiveRooms()) != 0 {
		t.Fatalf("expected session removed after last unsubscribe")
	}
	waitFor(t, func() bool { return ff.last().disconnected.Load() }, "upstream disconnect")
}

func TestManager_FreshSessionOnResubscribe(t *testing.T) {
	m, ff := testManager(t)
	ctx := context.Background()

	_ = m.Subscribe(ctx, 1, newFakeSub("a"))
	ff.last().emit(message.NewDanmakuEvent(message.Danmaku{Content: "太棒了", UserName: "u"}))
	waitFor(t, func() bool {
		snap, ok := m.RoomStats(1)
		return ok && snap.TotalDanmaku == 1
	}, "danmaku counted")

	m.Unsubscribe(1, "a")

	// 重新订阅：新连接、统计从零开始
	_ = m.Subscribe(ctx, 1, newFakeSub("a2"))
	if got := ff.count(); got != 2 {
		t.Fatalf("expected fresh upstream connection, got %d", got)
	}
	snap, ok := m.RoomStats(1)
	if !ok || snap.TotalDanmaku != 0 {
		t.Fatalf("expected fresh stats, got %+v ok=%v", snap, ok)
	}
}

func TestSession_DanmakuOrderingAndScoring(t *testing.T) {
	m, ff := testManager(t)
	sub := newFakeSub("a")
	_ = m.Subscribe(context.Background(), 1, sub)

	up := ff.last()
	up.emit(message.NewDanmakuEvent(message.Danmaku{Content: "太棒了", UserName: "u1"}))
	up.emit(message.NewDanmakuEvent(message.Danmaku{Content: "什么垃圾", UserName: "u2"}))
	up.emit(message.NewDanmakuEvent(message.Danmaku{Content: "你好", UserName: "u3"}))

	waitFor(t, func() bool { return len(sub.typed(message.WsTypeDanmaku)) == 3 }, "3 danmaku pushed")

	envs := sub.typed(message.WsTypeDanmaku)
	contents := []string{"太棒了", "什么垃圾", "你好"}
	labels := []string{message.LabelPositive, message.LabelNegative, message.LabelNeutral}
	for i, env := range envs {
		p, ok := env.Data.(message.DanmakuPayload)
		if !ok {
			t.Fatalf("unexpected payload type %T", env.Data)
		}
		if p.Content != contents[i] {
			t.Fatalf("out of order: expected %q at %d, got %q", contents[i], i, p.Content)
		}
		if p.SentimentLabel != labels[i] {
			t.Fatalf("expected label %s for %q, got %s (score=%v)", labels[i], p.Content, p.SentimentLabel, p.SentimentScore)
		}
	}
}

func TestSession_GiftAndInteractBroadcast(t *testing.T) {
	m, ff := testManager(t)
	sub := newFakeSub("a")
	_ = m.Subscribe(context.Background(), 1, sub)

	up := ff.last()
	up.emit(message.NewGiftEvent(message.Gift{GiftName: "小花花", Count: 2, UserName: "u"}))
	up.emit(message.NewInteractEvent(message.Interact{Action: message.InteractEnter, UserName: "u"}))

	waitFor(t, func() bool {
		return len(sub.typed(message.WsTypeGift)) == 1 && len(sub.typed(message.WsTypeInteract)) == 1
	}, "gift and interact pushed")

	gift := sub.typed(message.WsTypeGift)[0].Data.(message.GiftPayload)
	if gift.GiftName != "小花花" || gift.GiftCount != 2 {
		t.Fatalf("unexpected gift payload: %+v", gift)
	}
	snap, _ := m.RoomStats(1)
	if snap.TotalGift != 2 {
		t.Fatalf("expected gift counted, got %+v", snap)
	}
}

func TestSession_StatsPushed(t *testing.T) {
	m, ff := testManager(t)
	sub := newFakeSub("a")
	_ = m.Subscribe(context.Background(), 1, sub)

	ff.last().emit(message.NewDanmakuEvent(message.Danmaku{Content: "太棒了", UserName: "u"}))

	waitFor(t, func() bool {
		for _, env := range sub.typed(message.WsTypeStats) {
			if p, ok := env.Data.(message.StatsPayload); ok && p.TotalDanmaku == 1 {
				return true
			}
		}
		return false
	}, "stats snapshot pushed")
}

func TestSession_StatsPushedDuringQuietPeriod(t *testing.T) {
	m, ff := testManager(t)
	sub := newFakeSub("a")
	_ = m.Subscribe(context.Background(), 1, sub)

	ff.last().emit(message.NewDanmakuEvent(message.Danmaku{Content: "你好", UserName: "u"}))
	waitFor(t, func() bool { return len(sub.typed(message.WsTypeStats)) >= 1 }, "first stats push")

	// 之后不灌任何事件，静默期的统计照样按周期推（速率在衰减）
	before := len(sub.typed(message.WsTypeStats))
	time.Sleep(10 * 20 * time.Millisecond)
	after := len(sub.typed(message.WsTypeStats))
	if after-before < 5 {
		t.Fatalf("expected periodic stats while quiet, got %d pushes across 10 intervals", after-before)
	}
}

func TestBroadcast_RemovesDeadSubscriber(t *testing.T) {
	m, ff := testManager(t)
	dead := newFakeSub("dead")
	alive := newFakeSub("alive")
	_ = m.Subscribe(context.Background(), 1, dead)
	_ = m.Subscribe(context.Background(), 1, alive)

	dead.fail.Store(true)
	ff.last().emit(message.NewDanmakuEvent(message.Danmaku{Content: "你好", UserName: "u"}))

	waitFor(t, func() bool {
		n, ok := m.ViewerCount(1)
		return ok && n == 1
	}, "dead subscriber removed")
	if len(m.ActiveRooms()) != 1 {
		t.Fatalf("session must survive while a live subscriber remains")
	}
}

func TestBroadcast_LastDeadSubscriberTearsDown(t *testing.T) {
	m, ff := testManager(t)
	dead := newFakeSub("dead")
	_ = m.Subscribe(context.Background(), 1, dead)

	dead.fail.Store(true)
	ff.last().emit(message.NewDanmakuEvent(message.Danmaku{Content: "你好", UserName: "u"}))

	waitFor(t, func() bool { return len(m.ActiveRooms()) == 0 }, "session torn down")
	waitFor(t, func() bool { return ff.last().disconnected.Load() }, "upstream disconnect")
}

func TestManager_DuplicateSubscribeIdempotent(t *testing.T) {
	m, _ := testManager(t)
	sub := newFakeSub("a")
	ctx := context.Background()

	_ = m.Subscribe(ctx, 1, sub)
	_ = m.Subscribe(ctx, 1, sub)

	if n, _ := m.ViewerCount(1); n != 1 {
		t.Fatalf("expected duplicate subscribe to count once, got %d", n)
	}
	m.Unsubscribe(1, "a")
	if len(m.ActiveRooms()) != 0 {
		t.Fatalf("expected teardown after single unsubscribe")
	}
}

func TestManager_UpstreamDropNotifiesAndCleans(t *testing.T) {
	m, ff := testManager(t)
	sub := newFakeSub("a")
	_ = m.Subscribe(context.Background(), 1, sub)

	// 上游自己断了（不是我们主动关）
	up := ff.last()
	up.closeOnce.Do(func() { close(up.done) })

	waitFor(t, func() bool { return len(m.ActiveRooms()) == 0 }, "session cleaned after upstream drop")
	waitFor(t, func() bool {
		for _, env := range sub.typed(message.WsTypeStatus) {
			if p, ok := env.Data.(message.StatusPayload); ok && p.Status == "disconnected" {
				return true
			}
		}
		return false
	}, "disconnected status pushed")
}

func TestManager_InvalidRoomAndClosed(t *testing.T) {
	m, _ := testManager(t)

	if err := m.Subscribe(context.Background(), 0, newFakeSub("a")); err == nil {
		t.Fatalf("expected error for invalid room id")
	}

	m.Close()
	if err := m.Subscribe(context.Background(), 1, newFakeSub("a")); err == nil {
		t.Fatalf("expected error after close")
	}
}
