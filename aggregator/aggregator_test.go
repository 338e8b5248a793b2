package aggregator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"github.com/cydxin/live-sdk/message"
	"github.com/cydxin/live-sdk/stats"
	"github.com/cydxin/live-sdk/store"
)

// fakeFetcher 内存消息队列，读空了就阻塞到 ctx 结束。
type fakeFetcher struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed int
}

func (f *fakeFetcher) push(recs ...message.StreamRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range recs {
		data, _ := json.Marshal(rec)
		f.msgs = append(f.msgs, kafka.Message{Offset: int64(i), Value: data})
	}
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		f.mu.Lock()
		if len(f.msgs) > 0 {
			msg := f.msgs[0]
			f.msgs = f.msgs[1:]
			f.mu.Unlock()
			return msg, nil
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakeFetcher) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	f.committed += len(msgs)
	f.mu.Unlock()
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

func testAggregator(t *testing.T) (*Aggregator, *fakeFetcher, *store.Store) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.New(rdb, 0, 0, 0, 0)
	f := &fakeFetcher{}
	agg := New(f, st, AggregatorConfig{
		WindowWidth: 5 * time.Second,
		Lateness:    10 * time.Second,
		BatchSize:   10,
		BatchWait:   50 * time.Millisecond,
	})
	return agg, f, st
}

func batchOf(recs ...message.StreamRecord) []kafka.Message {
	msgs := make([]kafka.Message, len(recs))
	for i, rec := range recs {
		data, _ := json.Marshal(rec)
		msgs[i] = kafka.Message{Offset: int64(i), Value: data}
	}
	return msgs
}

func TestProcessBatch_WritesStatsAndHistory(t *testing.T) {
	agg, _, st := testAggregator(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 12, 0, 1, 0, time.UTC)

	msgs := batchOf(
		danmakuAt(1, "好棒", 0.8, base),
		danmakuAt(1, "垃圾", 0.3, base.Add(time.Second)),
		danmakuAt(1, "一般", 0.5, base.Add(2*time.Second)),
	)
	if err := agg.processBatch(ctx, msgs); err != nil {
		t.Fatalf("processBatch err: %v", err)
	}

	rec, ok, err := st.GetRoomStats(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetRoomStats ok=%v err=%v", ok, err)
	}
	if rec.TotalDanmaku != 3 || rec.AvgSentiment != 0.533 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.PositiveCount != 1 || rec.NeutralCount != 1 || rec.NegativeCount != 1 {
		t.Fatalf("unexpected counts: %+v", rec)
	}

	history, err := st.GetHistory(ctx, 1, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected 1 history record, got %d err=%v", len(history), err)
	}

	recent, err := st.RecentDanmaku(ctx, 1, 0)
	if err != nil || len(recent) != 3 {
		t.Fatalf("expected 3 recent danmaku, got %v err=%v", recent, err)
	}
}

func TestProcessBatch_ReplayOverwrites(t *testing.T) {
	// 位点提交失败后重放同一批，统计不能翻倍
	agg, _, st := testAggregator(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 12, 0, 1, 0, time.UTC)

	msgs := batchOf(danmakuAt(1, "好棒", 0.8, base))
	if err := agg.processBatch(ctx, msgs); err != nil {
		t.Fatalf("processBatch err: %v", err)
	}
	if err := agg.processBatch(ctx, msgs); err != nil {
		t.Fatalf("processBatch replay err: %v", err)
	}

	rec, ok, _ := st.GetRoomStats(ctx, 1)
	if !ok || rec.TotalDanmaku != 1 {
		t.Fatalf("expected overwrite semantics, got %+v", rec)
	}
}

func TestProcessBatch_MultiWindowLatestWins(t *testing.T) {
	// 一批里同房间落了两个窗口：当前统计必须稳定落在最新窗口上，重放多少次都一样
	agg, _, st := testAggregator(t)
	ctx := context.Background()
	early := time.Date(2026, 8, 31, 12, 0, 1, 0, time.UTC)
	late := time.Date(2026, 8, 31, 12, 0, 6, 0, time.UTC)

	msgs := batchOf(
		danmakuAt(1, "开场", 0.5, early),
		danmakuAt(1, "好棒", 0.8, late),
	)
	want := late.Truncate(5 * time.Second).Format(time.RFC3339)
	for i := 0; i < 20; i++ {
		if err := agg.processBatch(ctx, msgs); err != nil {
			t.Fatalf("processBatch err: %v", err)
		}
		rec, ok, err := st.GetRoomStats(ctx, 1)
		if err != nil || !ok {
			t.Fatalf("GetRoomStats ok=%v err=%v", ok, err)
		}
		if rec.WindowStart != want {
			t.Fatalf("round %d: expected current record from window %s, got %+v", i, want, rec)
		}
		if rec.TotalDanmaku != 1 || rec.AvgSentiment != 0.8 {
			t.Fatalf("round %d: unexpected record: %+v", i, rec)
		}
	}
}

func TestProcessBatch_SkipsBadMessages(t *testing.T) {
	agg, _, st := testAggregator(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 12, 0, 1, 0, time.UTC)

	msgs := batchOf(danmakuAt(1, "好棒", 0.8, base))
	msgs = append(msgs, kafka.Message{Offset: 99, Value: []byte("not json")})

	if err := agg.processBatch(ctx, msgs); err != nil {
		t.Fatalf("processBatch err: %v", err)
	}
	rec, ok, _ := st.GetRoomStats(ctx, 1)
	if !ok || rec.TotalDanmaku != 1 {
		t.Fatalf("expected bad message skipped, got %+v", rec)
	}
}

func TestCollectBatch_TimeoutReturnsPartial(t *testing.T) {
	agg, f, _ := testAggregator(t)
	base := time.Date(2026, 8, 31, 12, 0, 1, 0, time.UTC)
	f.push(danmakuAt(1, "a", 0.5, base), danmakuAt(1, "b", 0.5, base))

	msgs, err := agg.collectBatch(context.Background())
	if err != nil {
		t.Fatalf("collectBatch err: %v", err)
	}
	// 只有 2 条，攒不满 10，等满超时后交出部分批
	if len(msgs) != 2 {
		t.Fatalf("expected partial batch of 2, got %d", len(msgs))
	}
}

func TestRefreshGlobalWordcloud(t *testing.T) {
	agg, _, st := testAggregator(t)
	// 固定切分方式，保证不依赖分词词典
	agg.builder = stats.NewWordcloudBuilderWithCut(strings.Fields)
	ctx := context.Background()

	_ = st.PushRecentDanmaku(ctx, 1, []string{"唱歌 好听", "唱歌 不错"})
	_ = st.PushRecentDanmaku(ctx, 2, []string{"唱歌 真棒"})

	if err := agg.refreshGlobalWordcloud(ctx); err != nil {
		t.Fatalf("refreshGlobalWordcloud err: %v", err)
	}

	items, ok, err := st.GetGlobalWordcloud(ctx)
	if err != nil || !ok {
		t.Fatalf("GetGlobalWordcloud ok=%v err=%v", ok, err)
	}
	if len(items) == 0 || items[0].Name != "唱歌" || items[0].Value != 3 {
		t.Fatalf("unexpected wordcloud: %v", items)
	}
}
