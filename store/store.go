// Package store 封装共享快存（Redis 角色）的键位布局。
// 写方只有流聚合任务，网关侧只读；进程重启后还要活着的状态全在这里。
//
// 键位：
//   - live:stats:{room}          当前窗口聚合（Hash，1 小时过期）
//   - live:stats:{room}:history  历史窗口列表（List，裁到 100 条，1 小时过期）
//   - live:danmaku:{room}        最近弹幕内容（List，裁到 1000 条，1 小时过期）
//   - live:global:wordcloud      全局词云快照（String JSON，10 分钟过期）
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cydxin/live-sdk/message"
)

// RoomStatsRecord 一个 (房间, 窗口) 的聚合结果。
type RoomStatsRecord struct {
	TotalDanmaku  int64   `json:"total_danmaku"`
	PositiveCount int64   `json:"positive_count"`
	NeutralCount  int64   `json:"neutral_count"`
	NegativeCount int64   `json:"negative_count"`
	AvgSentiment  float64 `json:"avg_sentiment"`
	WindowStart   string  `json:"window_start"`
	WindowEnd     string  `json:"window_end"`
	UpdatedAt     string  `json:"updated_at"`
}

// Store 共享快存访问层。
type Store struct {
	rdb *redis.Client

	statsTTL     time.Duration
	wordcloudTTL time.Duration
	historyLimit int64
	recentLimit  int64
}

// New 创建 Store，零值参数取默认（1h / 10m / 100 / 1000）。
func New(rdb *redis.Client, statsTTL, wordcloudTTL time.Duration, historyLimit, recentLimit int) *Store {
	if statsTTL <= 0 {
		statsTTL = time.Hour
	}
	if wordcloudTTL <= 0 {
		wordcloudTTL = 10 * time.Minute
	}
	if historyLimit <= 0 {
		historyLimit = 100
	}
	if recentLimit <= 0 {
		recentLimit = 1000
	}
	return &Store{
		rdb:          rdb,
		statsTTL:     statsTTL,
		wordcloudTTL: wordcloudTTL,
		historyLimit: int64(historyLimit),
		recentLimit:  int64(recentLimit),
	}
}

func (s *Store) ensure() error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	return nil
}

func statsKey(roomID int64) string {
	return fmt.Sprintf("live:stats:%d", roomID)
}

func historyKey(roomID int64) string {
	return fmt.Sprintf("live:stats:%d:history", roomID)
}

func recentKey(roomID int64) string {
	return fmt.Sprintf("live:danmaku:%d", roomID)
}

const wordcloudKey = "live:global:wordcloud"

// SetRoomStats 覆盖写当前聚合记录。同一批次重放会写出相同内容，天然幂等。
func (s *Store) SetRoomStats(ctx context.Context, roomID int64, rec RoomStatsRecord) error {
	if err := s.ensure(); err != nil {
		return err
	}
	key := statsKey(roomID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"total_danmaku":  rec.TotalDanmaku,
		"positive_count": rec.PositiveCount,
		"neutral_count":  rec.NeutralCount,
		"negative_count": rec.NegativeCount,
		"avg_sentiment":  rec.AvgSentiment,
		"window_start":   rec.WindowStart,
		"window_end":     rec.WindowEnd,
		"updated_at":     rec.UpdatedAt,
	})
	pipe.Expire(ctx, key, s.statsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetRoomStats 读当前聚合记录。key 不存在返回 ok=false，这表示"最近没动静"，不是零值。
func (s *Store) GetRoomStats(ctx context.Context, roomID int64) (RoomStatsRecord, bool, error) {
	var rec RoomStatsRecord
	if err := s.ensure(); err != nil {
		return rec, false, err
	}
	data, err := s.rdb.HGetAll(ctx, statsKey(roomID)).Result()
	if err != nil {
		return rec, false, err
	}
	if len(data) == 0 {
		return rec, false, nil
	}
	rec.TotalDanmaku, _ = strconv.ParseInt(data["total_danmaku"], 10, 64)
	rec.PositiveCount, _ = strconv.ParseInt(data["positive_count"], 10, 64)
	rec.NeutralCount, _ = strconv.ParseInt(data["neutral_count"], 10, 64)
	rec.NegativeCount, _ = strconv.ParseInt(data["negative_count"], 10, 64)
	rec.AvgSentiment, _ = strconv.ParseFloat(data["avg_sentiment"], 64)
	rec.WindowStart = data["window_start"]
	rec.WindowEnd = data["window_end"]
	rec.UpdatedAt = data["updated_at"]
	return rec, true, nil
}

// AppendHistory 把聚合记录追加到房间历史，裁到上限。
func (s *Store) AppendHistory(ctx context.Context, roomID int64, rec RoomStatsRecord) error {
	if err := s.ensure(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := historyKey(roomID)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.historyLimit-1)
	pipe.Expire(ctx, key, s.statsTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetHistory 读房间历史，最新的在前。
func (s *Store) GetHistory(ctx context.Context, roomID int64, limit int) ([]RoomStatsRecord, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if limit <= 0 || int64(limit) > s.historyLimit {
		limit = int(s.historyLimit)
	}
	raw, err := s.rdb.LRange(ctx, historyKey(roomID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]RoomStatsRecord, 0, len(raw))
	for _, item := range raw {
		var rec RoomStatsRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// PushRecentDanmaku 追加最近弹幕内容，裁到上限。
func (s *Store) PushRecentDanmaku(ctx context.Context, roomID int64, contents []string) error {
	if err := s.ensure(); err != nil {
		return err
	}
	if len(contents) == 0 {
		return nil
	}
	key := recentKey(roomID)
	args := make([]interface{}, 0, len(contents))
	for _, c := range contents {
		args = append(args, c)
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, args...)
	pipe.LTrim(ctx, key, 0, s.recentLimit-1)
	pipe.Expire(ctx, key, s.statsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RecentDanmaku 读房间最近弹幕内容，最多 n 条。
func (s *Store) RecentDanmaku(ctx context.Context, roomID int64, n int) ([]string, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = int(s.recentLimit)
	}
	return s.rdb.LRange(ctx, recentKey(roomID), 0, int64(n)-1).Result()
}

// RecentRooms 扫出最近有弹幕的房间。
func (s *Store) RecentRooms(ctx context.Context) ([]int64, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	var (
		rooms  []int64
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "live:danmaku:*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			idStr := strings.TrimPrefix(key, "live:danmaku:")
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				rooms = append(rooms, id)
			}
		}
		cursor = next
		if cursor == 0 {
			return rooms, nil
		}
	}
}

// SetGlobalWordcloud 写全局词云快照。
func (s *Store) SetGlobalWordcloud(ctx context.Context, items []message.WordItem) error {
	if err := s.ensure(); err != nil {
		return err
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, wordcloudKey, data, s.wordcloudTTL).Err()
}

// GetGlobalWordcloud 读全局词云快照，没有返回 ok=false。
func (s *Store) GetGlobalWordcloud(ctx context.Context) ([]message.WordItem, bool, error) {
	if err := s.ensure(); err != nil {
		return nil, false, err
	}
	data, err := s.rdb.Get(ctx, wordcloudKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var items []message.WordItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// Ping 探活。
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ensure(); err != nil {
		return err
	}
	return s.rdb.Ping(ctx).Err()
}
