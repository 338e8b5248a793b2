package stats

import (
	"math"
	"sync"
	"time"

	"github.com/cydxin/live-sdk/message"
)

// RollingStats 单个房间会话的滚动统计。
// 生命周期跟着会话走：会话建了就从零开始，会话销毁就丢掉，从不落盘。
// 写只来自会话的事件处理路径，读来自统计/词云定时器和查询兜底，所以带锁。
type RollingStats struct {
	mu sync.Mutex

	start        time.Time
	totalDanmaku int64
	totalGift    int64
	sentimentSum float64
	dist         message.SentimentDist

	// 最近弹幕内容环形缓冲，词云就从这里算
	recent []string
	head   int
	filled bool
}

// NewRollingStats 创建统计，capacity 是最近内容环的容量（<=0 取 500）。
func NewRollingStats(capacity int) *RollingStats {
	if capacity <= 0 {
		capacity = 500
	}
	return &RollingStats{
		start:  time.Now(),
		recent: make([]string, capacity),
	}
}

// AddDanmaku 记一条打完分的弹幕。
func (r *RollingStats) AddDanmaku(content string, score float64, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalDanmaku++
	r.sentimentSum += score
	switch label {
	case message.LabelPositive:
		r.dist.Positive++
	case message.LabelNegative:
		r.dist.Negative++
	default:
		r.dist.Neutral++
	}

	r.recent[r.head] = content
	r.head++
	if r.head == len(r.recent) {
		r.head = 0
		r.filled = true
	}
}

// AddGift 记一条礼物。
func (r *RollingStats) AddGift(count int) {
	if count <= 0 {
		count = 1
	}
	r.mu.Lock()
	r.totalGift += int64(count)
	r.mu.Unlock()
}

// Snapshot 取当前统计快照，平均分保留三位小数。
func (r *RollingStats) Snapshot() message.StatsPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	avg := 0.5
	if r.totalDanmaku > 0 {
		avg = round3(r.sentimentSum / float64(r.totalDanmaku))
	}

	elapsed := time.Since(r.start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = round3(float64(r.totalDanmaku) / elapsed)
	}

	return message.StatsPayload{
		TotalDanmaku: r.totalDanmaku,
		TotalGift:    r.totalGift,
		DanmakuRate:  rate,
		AvgSentiment: avg,
		Dist:         r.dist,
	}
}

// RecentContent 拷贝一份最近弹幕内容（从旧到新）。
func (r *RollingStats) RecentContent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.filled {
		out := make([]string, r.head)
		copy(out, r.recent[:r.head])
		return out
	}
	out := make([]string, 0, len(r.recent))
	out = append(out, r.recent[r.head:]...)
	out = append(out, r.recent[:r.head]...)
	return out
}

// StartTime 统计起始时间。
func (r *RollingStats) StartTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
