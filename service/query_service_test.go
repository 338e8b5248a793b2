package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/cydxin/live-sdk/message"
	"github.com/cydxin/live-sdk/store"
)

// fakeLive 进程内房间状态的假实现。
type fakeLive struct {
	rooms   map[int64]message.StatsPayload
	viewers map[int64]int
	recent  map[int64][]string
}

func (f *fakeLive) ActiveRooms() []int64 {
	var ids []int64
	for id := range f.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeLive) RoomStats(roomID int64) (message.StatsPayload, bool) {
	snap, ok := f.rooms[roomID]
	return snap, ok
}

func (f *fakeLive) RecentContent(roomID int64) []string { return f.recent[roomID] }

func (f *fakeLive) Connected(roomID int64) bool {
	_, ok := f.rooms[roomID]
	return ok
}

func (f *fakeLive) ViewerCount(roomID int64) (int, bool) {
	n, ok := f.viewers[roomID]
	if !ok {
		_, ok = f.rooms[roomID]
	}
	return n, ok
}

func (f *fakeLive) StartTime(roomID int64) (time.Time, bool) {
	_, ok := f.rooms[roomID]
	return time.Now(), ok
}

func testQueryService(t *testing.T, live LiveProvider) (*QueryService, *store.Store) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.New(rdb, 0, 0, 0, 0)
	base := &Service{RDB: rdb, Live: live}
	return NewQueryService(base, st), st
}

func TestQueryService_StatsPreferRedis(t *testing.T) {
	live := &fakeLive{rooms: map[int64]message.StatsPayload{
		1: {TotalDanmaku: 2, AvgSentiment: 0.5},
	}}
	q, st := testQueryService(t, live)
	ctx := context.Background()

	rec := store.RoomStatsRecord{TotalDanmaku: 10, AvgSentiment: 0.7, WindowStart: "w1"}
	if err := st.SetRoomStats(ctx, 1, rec); err != nil {
		t.Fatalf("SetRoomStats err: %v", err)
	}

	res, err := q.GetRoomStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetRoomStats err: %v", err)
	}
	if res.Source != SourceRedis {
		t.Fatalf("expected redis source, got %s", res.Source)
	}
	if res.TotalDanmaku != 10 || res.WindowStart != "w1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQueryService_StatsFallbackToLocal(t *testing.T) {
	live := &fakeLive{rooms: map[int64]message.StatsPayload{
		1: {TotalDanmaku: 2, AvgSentiment: 0.6, Dist: message.SentimentDist{Positive: 2}},
	}}
	q, _ := testQueryService(t, live)

	res, err := q.GetRoomStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetRoomStats err: %v", err)
	}
	if res.Source != SourceLocal {
		t.Fatalf("expected local source, got %s", res.Source)
	}
	if res.TotalDanmaku != 2 || res.PositiveCount != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQueryService_StatsRoomNotFound(t *testing.T) {
	q, _ := testQueryService(t, &fakeLive{rooms: map[int64]message.StatsPayload{}})

	if _, err := q.GetRoomStats(context.Background(), 404); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestQueryService_RoomStatus(t *testing.T) {
	live := &fakeLive{
		rooms:   map[int64]message.StatsPayload{1: {}},
		viewers: map[int64]int{1: 3},
	}
	q, _ := testQueryService(t, live)

	info, err := q.RoomStatus(1)
	if err != nil {
		t.Fatalf("RoomStatus err: %v", err)
	}
	if info.ViewerCount != 3 || !info.Connected {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := q.RoomStatus(2); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestQueryService_Ranking(t *testing.T) {
	live := &fakeLive{rooms: map[int64]message.StatsPayload{
		3: {TotalDanmaku: 5},
	}}
	q, st := testQueryService(t, live)
	ctx := context.Background()

	// 房间 1、2 只在快存里
	_ = st.SetRoomStats(ctx, 1, store.RoomStatsRecord{TotalDanmaku: 20})
	_ = st.PushRecentDanmaku(ctx, 1, []string{"x"})
	_ = st.SetRoomStats(ctx, 2, store.RoomStatsRecord{TotalDanmaku: 20})
	_ = st.PushRecentDanmaku(ctx, 2, []string{"y"})

	items, err := q.GetRanking(ctx, 10)
	if err != nil {
		t.Fatalf("GetRanking err: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %v", items)
	}
	// 同量按房间号升序，本地兜底的排最后
	if items[0].RoomID != 1 || items[1].RoomID != 2 || items[2].RoomID != 3 {
		t.Fatalf("unexpected order: %v", items)
	}
	if items[2].Source != SourceLocal {
		t.Fatalf("expected local source for room 3, got %s", items[2].Source)
	}
}

func TestQueryService_RankingLimit(t *testing.T) {
	q, st := testQueryService(t, &fakeLive{rooms: map[int64]message.StatsPayload{}})
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		_ = st.SetRoomStats(ctx, i, store.RoomStatsRecord{TotalDanmaku: i})
		_ = st.PushRecentDanmaku(ctx, i, []string{"z"})
	}

	items, err := q.GetRanking(ctx, 2)
	if err != nil {
		t.Fatalf("GetRanking err: %v", err)
	}
	if len(items) != 2 || items[0].TotalDanmaku != 5 {
		t.Fatalf("unexpected top2: %v", items)
	}
}

func TestQueryService_WordcloudPreferRedis(t *testing.T) {
	q, st := testQueryService(t, &fakeLive{rooms: map[int64]message.StatsPayload{}})
	ctx := context.Background()

	_ = st.SetGlobalWordcloud(ctx, []message.WordItem{{Name: "唱歌", Value: 3}})

	res, err := q.GetGlobalWordcloud(ctx, 10)
	if err != nil {
		t.Fatalf("GetGlobalWordcloud err: %v", err)
	}
	if res.Source != SourceRedis || len(res.Items) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQueryService_WordcloudFallback(t *testing.T) {
	live := &fakeLive{
		rooms:  map[int64]message.StatsPayload{1: {}},
		recent: map[int64][]string{1: {"唱歌唱歌", "唱歌唱歌"}},
	}
	q, _ := testQueryService(t, live)

	res, err := q.GetGlobalWordcloud(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetGlobalWordcloud err: %v", err)
	}
	if res.Source != SourceLocal {
		t.Fatalf("expected local source, got %s", res.Source)
	}
	if res.Items == nil {
		t.Fatalf("expected non-nil items")
	}
}

func TestQueryService_Health(t *testing.T) {
	live := &fakeLive{rooms: map[int64]message.StatsPayload{1: {}, 2: {}}}
	q, _ := testQueryService(t, live)

	res := q.Health(context.Background())
	if !res.RedisOK {
		t.Fatalf("expected redis ok")
	}
	if res.ActiveRooms != 2 {
		t.Fatalf("expected 2 active rooms, got %d", res.ActiveRooms)
	}
}
