package message

import "time"

// 上游事件类型（闭集）。上游房间只会产生这三类业务事件，
// 用带标签的联合体做穷举分发，不再走按类型注册回调的路子。
type EventKind int

const (
	KindDanmaku EventKind = iota + 1
	KindGift
	KindInteract
)

// 互动动作
const (
	InteractEnter = "enter"
	InteractLike  = "like"
)

// Danmaku 弹幕消息
type Danmaku struct {
	Content  string
	UserName string
	UserID   int64
	SentTime time.Time
}

// Gift 礼物消息
type Gift struct {
	GiftName string
	Count    int
	UserName string
	UserID   int64
	Price    int64 // 金瓜子价值
}

// Interact 互动消息（进场、点赞）
type Interact struct {
	Action   string // enter / like
	UserName string
	UserID   int64
}

// Event 上游事件。Kind 决定哪个指针非空，收到即打上接收时间，之后不可变。
type Event struct {
	Kind     EventKind
	Time     time.Time
	Danmaku  *Danmaku
	Gift     *Gift
	Interact *Interact
}

func NewDanmakuEvent(d Danmaku) Event {
	now := time.Now()
	if d.SentTime.IsZero() {
		d.SentTime = now
	}
	return Event{Kind: KindDanmaku, Time: now, Danmaku: &d}
}

func NewGiftEvent(g Gift) Event {
	return Event{Kind: KindGift, Time: time.Now(), Gift: &g}
}

func NewInteractEvent(i Interact) Event {
	return Event{Kind: KindInteract, Time: time.Now(), Interact: &i}
}

// 情感标签
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// LabelFor 按固定阈值把情感分数映射到标签：
// score >= 0.6 -> positive；score <= 0.4 -> negative；其余 neutral。
func LabelFor(score float64) string {
	switch {
	case score >= 0.6:
		return LabelPositive
	case score <= 0.4:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// ScoredDanmaku 打完分的弹幕，生成一次之后不再改。
type ScoredDanmaku struct {
	Danmaku
	Score float64
	Label string
}

// 流消息类型
const (
	MsgTypeDanmaku = "danmaku"
	MsgTypeGift    = "gift"
)

// StreamRecord 持久流（Kafka）上的消息格式，单 topic，按 room_id 分 key。
type StreamRecord struct {
	RoomID         int64     `json:"room_id"`
	Content        string    `json:"content,omitempty"`
	GiftName       string    `json:"gift_name,omitempty"`
	GiftCount      int       `json:"gift_count,omitempty"`
	Price          int64     `json:"price,omitempty"`
	UserName       string    `json:"user_name"`
	UserID         int64     `json:"user_id"`
	SentimentScore float64   `json:"sentiment_score,omitempty"`
	SentimentLabel string    `json:"sentiment_label,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	MsgType        string    `json:"msg_type"`
}

// DanmakuRecord 构造弹幕流消息
func DanmakuRecord(roomID int64, d ScoredDanmaku, at time.Time) StreamRecord {
	return StreamRecord{
		RoomID:         roomID,
		Content:        d.Content,
		UserName:       d.UserName,
		UserID:         d.UserID,
		SentimentScore: d.Score,
		SentimentLabel: d.Label,
		Timestamp:      at,
		MsgType:        MsgTypeDanmaku,
	}
}

// GiftRecord 构造礼物流消息
func GiftRecord(roomID int64, g Gift, at time.Time) StreamRecord {
	return StreamRecord{
		RoomID:    roomID,
		GiftName:  g.GiftName,
		GiftCount: g.Count,
		Price:     g.Price,
		UserName:  g.UserName,
		UserID:    g.UserID,
		Timestamp: at,
		MsgType:   MsgTypeGift,
	}
}
