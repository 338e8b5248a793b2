package message

import "time"

// WS 下行消息类型
const (
	WsTypeStatus    = "status"
	WsTypeDanmaku   = "danmaku"
	WsTypeGift      = "gift"
	WsTypeInteract  = "interact"
	WsTypeStats     = "stats"
	WsTypeWordcloud = "wordcloud"
	WsTypePong      = "pong"
)

// Envelope 下行消息统一信封：{type, data}
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ClientCommand 上行消息。目前只认 {action: "ping"}，其他内容直接忽略，不算错误。
type ClientCommand struct {
	Action string `json:"action"`
}

// StatusPayload 连接状态通知
type StatusPayload struct {
	Status  string `json:"status"` // connected / disconnected
	RoomID  int64  `json:"room_id"`
	Message string `json:"message,omitempty"`
}

// DanmakuPayload 打分后的弹幕推送
type DanmakuPayload struct {
	Content        string    `json:"content"`
	UserName       string    `json:"user_name"`
	UserID         int64     `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	SentimentScore float64   `json:"sentiment_score"`
	SentimentLabel string    `json:"sentiment_label"`
}

// GiftPayload 礼物推送
type GiftPayload struct {
	GiftName  string    `json:"gift_name"`
	GiftCount int       `json:"gift_count"`
	UserName  string    `json:"user_name"`
	UserID    int64     `json:"user_id"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractPayload 互动推送
type InteractPayload struct {
	Action    string    `json:"action"`
	UserName  string    `json:"user_name"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SentimentDist 情感分布
type SentimentDist struct {
	Positive int64 `json:"positive"`
	Neutral  int64 `json:"neutral"`
	Negative int64 `json:"negative"`
}

// StatsPayload 房间实时统计快照（限频推送）
type StatsPayload struct {
	TotalDanmaku int64         `json:"total_danmaku"`
	TotalGift    int64         `json:"total_gift"`
	DanmakuRate  float64       `json:"danmaku_rate"` // 条/秒
	AvgSentiment float64       `json:"avg_sentiment"`
	Dist         SentimentDist `json:"sentiment_dist"`
}

// WordItem 词云条目
type WordItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// PongPayload 心跳应答
type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}
