package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cydxin/live-sdk/message"
	"github.com/cydxin/live-sdk/stats"
	"github.com/cydxin/live-sdk/store"
)

// ErrRoomNotFound 房间既没有聚合数据也没有进程内会话。
var ErrRoomNotFound = fmt.Errorf("room not found")

// 统计数据来源标记。聚合链路挂了会退化到进程内快照，
// 调用方靠这个字段区分数据新鲜度。
const (
	SourceRedis = "redis"
	SourceLocal = "local"
)

// RoomInfo 活跃房间概览。
type RoomInfo struct {
	RoomID      int64     `json:"room_id"`
	ViewerCount int       `json:"viewer_count"`
	Connected   bool      `json:"connected"`
	StartedAt   time.Time `json:"started_at"`
}

// StatsResult 房间统计查询结果。
type StatsResult struct {
	RoomID        int64   `json:"room_id"`
	Source        string  `json:"source"`
	TotalDanmaku  int64   `json:"total_danmaku"`
	PositiveCount int64   `json:"positive_count"`
	NeutralCount  int64   `json:"neutral_count"`
	NegativeCount int64   `json:"negative_count"`
	AvgSentiment  float64 `json:"avg_sentiment"`
	WindowStart   string  `json:"window_start,omitempty"`
	WindowEnd     string  `json:"window_end,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// RankingItem 热度排行条目。
type RankingItem struct {
	RoomID       int64   `json:"room_id"`
	TotalDanmaku int64   `json:"total_danmaku"`
	AvgSentiment float64 `json:"avg_sentiment"`
	Source       string  `json:"source"`
}

// WordcloudResult 词云查询结果。
type WordcloudResult struct {
	Source string             `json:"source"`
	Items  []message.WordItem `json:"items"`
}

// HealthResult 健康检查结果。StreamOK 由 engine 补上（service 层不碰发布器）。
type HealthResult struct {
	RedisOK     bool `json:"redis_ok"`
	StreamOK    bool `json:"stream_ok"`
	ActiveRooms int  `json:"active_rooms"`
}

// QueryService 对外查询口。
// 优先读共享快存（聚合任务写的），读不到再兜底进程内快照。
type QueryService struct {
	*Service
	store   *store.Store
	builder *stats.WordcloudBuilder
}

func NewQueryService(base *Service, st *store.Store) *QueryService {
	return &QueryService{
		Service: base,
		store:   st,
		builder: stats.NewWordcloudBuilder(),
	}
}

// ActiveRooms 当前进程里有会话的房间概览。
func (q *QueryService) ActiveRooms() []RoomInfo {
	if q.Live == nil {
		return nil
	}
	ids := q.Live.ActiveRooms()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]RoomInfo, 0, len(ids))
	for _, id := range ids {
		viewers, _ := q.Live.ViewerCount(id)
		started, _ := q.Live.StartTime(id)
		out = append(out, RoomInfo{
			RoomID:      id,
			ViewerCount: viewers,
			Connected:   q.Live.Connected(id),
			StartedAt:   started,
		})
	}
	return out
}

// RoomStatus 单个房间的连接状态。没有会话返回 ErrRoomNotFound。
func (q *QueryService) RoomStatus(roomID int64) (RoomInfo, error) {
	if q.Live == nil {
		return RoomInfo{}, ErrRoomNotFound
	}
	viewers, ok := q.Live.ViewerCount(roomID)
	if !ok {
		return RoomInfo{}, ErrRoomNotFound
	}
	started, _ := q.Live.StartTime(roomID)
	return RoomInfo{
		RoomID:      roomID,
		ViewerCount: viewers,
		Connected:   q.Live.Connected(roomID),
		StartedAt:   started,
	}, nil
}

// GetRoomStats 查房间统计：快存优先，兜底进程内快照，都没有算房间不存在。
func (q *QueryService) GetRoomStats(ctx context.Context, roomID int64) (StatsResult, error) {
	if q.store != nil {
		rec, ok, err := q.store.GetRoomStats(ctx, roomID)
		if err == nil && ok {
			return StatsResult{
				RoomID:        roomID,
				Source:        SourceRedis,
				TotalDanmaku:  rec.TotalDanmaku,
				PositiveCount: rec.PositiveCount,
				NeutralCount:  rec.NeutralCount,
				NegativeCount: rec.NegativeCount,
				AvgSentiment:  rec.AvgSentiment,
				WindowStart:   rec.WindowStart,
				WindowEnd:     rec.WindowEnd,
				UpdatedAt:     rec.UpdatedAt,
			}, nil
		}
		if err != nil && q.Debug {
			fmt.Printf("[QueryService] 读快存失败 room=%d: %v\n", roomID, err)
		}
	}

	if q.Live != nil {
		if snap, ok := q.Live.RoomStats(roomID); ok {
			return StatsResult{
				RoomID:        roomID,
				Source:        SourceLocal,
				TotalDanmaku:  snap.TotalDanmaku,
				PositiveCount: snap.Dist.Positive,
				NeutralCount:  snap.Dist.Neutral,
				NegativeCount: snap.Dist.Negative,
				AvgSentiment:  snap.AvgSentiment,
			}, nil
		}
	}
	return StatsResult{}, ErrRoomNotFound
}

// GetHistory 查房间历史窗口，只认快存，没有聚合任务就是空的。
func (q *QueryService) GetHistory(ctx context.Context, roomID int64, limit int) ([]store.RoomStatsRecord, error) {
	if q.store == nil {
		return nil, fmt.Errorf("store not configured")
	}
	return q.store.GetHistory(ctx, roomID, limit)
}

// GetGlobalWordcloud 查全局词云：快存优先，兜底用进程内各房间的最近弹幕现算。
func (q *QueryService) GetGlobalWordcloud(ctx context.Context, topK int) (WordcloudResult, error) {
	if q.store != nil {
		items, ok, err := q.store.GetGlobalWordcloud(ctx)
		if err == nil && ok {
			return WordcloudResult{Source: SourceRedis, Items: items}, nil
		}
	}

	if q.Live == nil {
		return WordcloudResult{Source: SourceLocal, Items: []message.WordItem{}}, nil
	}
	var texts []string
	for _, roomID := range q.Live.ActiveRooms() {
		texts = append(texts, q.Live.RecentContent(roomID)...)
	}
	items := q.builder.Build(texts, topK)
	if items == nil {
		items = []message.WordItem{}
	}
	return WordcloudResult{Source: SourceLocal, Items: items}, nil
}

// GetRanking 房间热度排行：弹幕总量降序，同量按房间号升序。
// 候选集是快存里有最近弹幕的房间加上进程内活跃房间，两边拿不到统计的不上榜。
func (q *QueryService) GetRanking(ctx context.Context, limit int) ([]RankingItem, error) {
	if limit <= 0 {
		limit = 10
	}

	seen := make(map[int64]struct{})
	var candidates []int64
	if q.store != nil {
		rooms, err := q.store.RecentRooms(ctx)
		if err == nil {
			for _, id := range rooms {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					candidates = append(candidates, id)
				}
			}
		}
	}
	if q.Live != nil {
		for _, id := range q.Live.ActiveRooms() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				candidates = append(candidates, id)
			}
		}
	}

	items := make([]RankingItem, 0, len(candidates))
	for _, roomID := range candidates {
		res, err := q.GetRoomStats(ctx, roomID)
		if err != nil {
			continue
		}
		items = append(items, RankingItem{
			RoomID:       roomID,
			TotalDanmaku: res.TotalDanmaku,
			AvgSentiment: res.AvgSentiment,
			Source:       res.Source,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TotalDanmaku != items[j].TotalDanmaku {
			return items[i].TotalDanmaku > items[j].TotalDanmaku
		}
		return items[i].RoomID < items[j].RoomID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Health 健康检查。
func (q *QueryService) Health(ctx context.Context) HealthResult {
	res := HealthResult{}
	if q.store != nil && q.store.Ping(ctx) == nil {
		res.RedisOK = true
	}
	if q.Live != nil {
		res.ActiveRooms = len(q.Live.ActiveRooms())
	}
	return res
}
