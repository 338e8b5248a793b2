// Package aggregator 消费持久流做窗口聚合，把结果写进共享快存。
// 对标流式计算框架里"水位线 + 翻滚窗口"那套语义，但只聚合单机一条消费组。
package aggregator

import (
	"math"
	"time"

	"github.com/cydxin/live-sdk/message"
)

// WindowKey (房间, 窗口起点) 唯一标识一个聚合窗口。
type WindowKey struct {
	RoomID int64
	Start  time.Time
}

// WindowAggregate 一个窗口内的弹幕聚合。
type WindowAggregate struct {
	RoomID int64
	Start  time.Time
	End    time.Time

	TotalDanmaku int64
	Positive     int64
	Neutral      int64
	Negative     int64
	AvgSentiment float64

	// Contents 窗口内弹幕原文，给最近弹幕列表和全局词云当原料
	Contents []string

	scoreSum float64
}

// Windower 翻滚窗口分配器。
// 水位线 = 已见最大事件时间 - 允许迟到时长；事件时间落在水位线之前的直接丢。
// 水位线只在内存里，进程重启从零开始——代价是重启后头一批迟到消息放进来了，可接受。
type Windower struct {
	width     time.Duration
	lateness  time.Duration
	watermark time.Time
	maxSeen   time.Time
}

// NewWindower 创建分配器。width <=0 取 5s，lateness <0 取 10s。
func NewWindower(width, lateness time.Duration) *Windower {
	if width <= 0 {
		width = 5 * time.Second
	}
	if lateness < 0 {
		lateness = 10 * time.Second
	}
	return &Windower{width: width, lateness: lateness}
}

// Observe 用一条事件时间推进水位线。水位线单调，不会回退。
func (w *Windower) Observe(t time.Time) {
	if t.After(w.maxSeen) {
		w.maxSeen = t
		w.watermark = t.Add(-w.lateness)
	}
}

// TooLate 事件时间是否已经落在水位线之前。
func (w *Windower) TooLate(t time.Time) bool {
	return t.Before(w.watermark)
}

// Assign 把事件时间对齐到所属窗口起点。
func (w *Windower) Assign(t time.Time) time.Time {
	return t.Truncate(w.width)
}

// Watermark 当前水位线。
func (w *Windower) Watermark() time.Time {
	return w.watermark
}

// AggregateBatch 把一批流消息按 (房间, 窗口) 聚合。
// 先用整批推水位线再过滤，批内乱序不会误伤。
// 标签按分数现场重算，上下游对阈值的理解强制一致。
func (w *Windower) AggregateBatch(records []message.StreamRecord) map[WindowKey]*WindowAggregate {
	for _, rec := range records {
		w.Observe(rec.Timestamp)
	}

	out := make(map[WindowKey]*WindowAggregate)
	for _, rec := range records {
		if rec.MsgType != message.MsgTypeDanmaku {
			continue
		}
		if w.TooLate(rec.Timestamp) {
			continue
		}
		start := w.Assign(rec.Timestamp)
		key := WindowKey{RoomID: rec.RoomID, Start: start}
		agg := out[key]
		if agg == nil {
			agg = &WindowAggregate{
				RoomID: rec.RoomID,
				Start:  start,
				End:    start.Add(w.width),
			}
			out[key] = agg
		}

		agg.TotalDanmaku++
		agg.scoreSum += rec.SentimentScore
		switch message.LabelFor(rec.SentimentScore) {
		case message.LabelPositive:
			agg.Positive++
		case message.LabelNegative:
			agg.Negative++
		default:
			agg.Neutral++
		}
		if rec.Content != "" {
			agg.Contents = append(agg.Contents, rec.Content)
		}
	}

	for _, agg := range out {
		if agg.TotalDanmaku > 0 {
			agg.AvgSentiment = round3(agg.scoreSum / float64(agg.TotalDanmaku))
		}
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
