package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/cydxin/live-sdk/message"
	"github.com/cydxin/live-sdk/stats"
	"github.com/cydxin/live-sdk/store"
)

// Fetcher 持久流消费接口，kafka.Reader 天然满足，测试里用假实现。
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaFetcher 创建带消费组的 kafka 读取器。
// 用消费组提交位点，重启后从上次提交处继续；写存储是覆盖写，重放也不会算重。
func NewKafkaFetcher(brokers []string, topic, groupID string) Fetcher {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
}

// Aggregator 流聚合任务：攒微批 -> 窗口聚合 -> 写快存 -> 提交位点。
// 先写后提交，挂了顶多重算一批，不会丢窗口。
type Aggregator struct {
	fetcher Fetcher
	store   *store.Store
	windows *Windower
	builder *stats.WordcloudBuilder

	batchSize int
	batchWait time.Duration

	wordcloudEvery time.Duration
	wordcloudTopK  int
}

// AggregatorConfig 聚合任务配置，零值取默认。
type AggregatorConfig struct {
	WindowWidth    time.Duration // 默认 5s
	Lateness       time.Duration // 默认 10s
	BatchSize      int           // 默认 100
	BatchWait      time.Duration // 默认 1s
	WordcloudEvery time.Duration // 默认 30s
	WordcloudTopK  int           // 默认 50
}

// New 创建聚合任务。
func New(fetcher Fetcher, st *store.Store, cfg AggregatorConfig) *Aggregator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = time.Second
	}
	if cfg.WordcloudEvery <= 0 {
		cfg.WordcloudEvery = 30 * time.Second
	}
	if cfg.WordcloudTopK <= 0 {
		cfg.WordcloudTopK = 50
	}
	return &Aggregator{
		fetcher:        fetcher,
		store:          st,
		windows:        NewWindower(cfg.WindowWidth, cfg.Lateness),
		builder:        stats.NewWordcloudBuilder(),
		batchSize:      cfg.BatchSize,
		batchWait:      cfg.BatchWait,
		wordcloudEvery: cfg.WordcloudEvery,
		wordcloudTopK:  cfg.WordcloudTopK,
	}
}

// Run 跑到 ctx 取消为止。
func (a *Aggregator) Run(ctx context.Context) error {
	log.Printf("[Aggregator] 启动，批大小 %d，攒批超时 %v", a.batchSize, a.batchWait)

	wcTicker := time.NewTicker(a.wordcloudEvery)
	defer wcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wcTicker.C:
			if err := a.refreshGlobalWordcloud(ctx); err != nil {
				log.Printf("[Aggregator] 刷新全局词云失败: %v", err)
			}
		default:
		}

		msgs, err := a.collectBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Aggregator] 拉取消息失败: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		if err := a.processBatch(ctx, msgs); err != nil {
			// 写存储失败不提交位点，下一轮重拉这批
			log.Printf("[Aggregator] 处理批次失败，不提交位点: %v", err)
			continue
		}
		if err := a.fetcher.CommitMessages(ctx, msgs...); err != nil {
			log.Printf("[Aggregator] 提交位点失败: %v", err)
		}
	}
}

// collectBatch 攒一个微批：攒够 batchSize 条或等满 batchWait。
func (a *Aggregator) collectBatch(ctx context.Context) ([]kafka.Message, error) {
	deadline, cancel := context.WithTimeout(ctx, a.batchWait)
	defer cancel()

	var msgs []kafka.Message
	for len(msgs) < a.batchSize {
		msg, err := a.fetcher.FetchMessage(deadline)
		if err != nil {
			if deadline.Err() != nil && ctx.Err() == nil {
				// 只是攒批超时，把已有的交出去
				return msgs, nil
			}
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// processBatch 聚合一批消息并写快存。
func (a *Aggregator) processBatch(ctx context.Context, msgs []kafka.Message) error {
	records := make([]message.StreamRecord, 0, len(msgs))
	for _, msg := range msgs {
		var rec message.StreamRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			// 脏消息跳过，不拦着整批
			log.Printf("[Aggregator] 消息解析失败 offset=%d: %v", msg.Offset, err)
			continue
		}
		records = append(records, rec)
	}

	aggs := a.windows.AggregateBatch(records)
	keys := make([]WindowKey, 0, len(aggs))
	for key := range aggs {
		keys = append(keys, key)
	}
	// 同房间多个窗口按起点升序写，最新窗口覆盖成当前统计，重放同一批结果稳定
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RoomID != keys[j].RoomID {
			return keys[i].RoomID < keys[j].RoomID
		}
		return keys[i].Start.Before(keys[j].Start)
	})
	now := time.Now().Format(time.RFC3339)
	for _, key := range keys {
		agg := aggs[key]
		rec := store.RoomStatsRecord{
			TotalDanmaku:  agg.TotalDanmaku,
			PositiveCount: agg.Positive,
			NeutralCount:  agg.Neutral,
			NegativeCount: agg.Negative,
			AvgSentiment:  agg.AvgSentiment,
			WindowStart:   agg.Start.Format(time.RFC3339),
			WindowEnd:     agg.End.Format(time.RFC3339),
			UpdatedAt:     now,
		}
		if err := a.store.SetRoomStats(ctx, agg.RoomID, rec); err != nil {
			return fmt.Errorf("write stats room %d: %w", agg.RoomID, err)
		}
		if err := a.store.AppendHistory(ctx, agg.RoomID, rec); err != nil {
			return fmt.Errorf("append history room %d: %w", agg.RoomID, err)
		}
		if len(agg.Contents) > 0 {
			if err := a.store.PushRecentDanmaku(ctx, agg.RoomID, agg.Contents); err != nil {
				return fmt.Errorf("push recent room %d: %w", agg.RoomID, err)
			}
		}
	}
	if len(aggs) > 0 {
		log.Printf("[Aggregator] 写入 %d 个窗口聚合（%d 条消息）", len(aggs), len(msgs))
	}
	return nil
}

// refreshGlobalWordcloud 扫全部房间的最近弹幕，重算全局词云。
func (a *Aggregator) refreshGlobalWordcloud(ctx context.Context) error {
	rooms, err := a.store.RecentRooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		return nil
	}
	var texts []string
	for _, roomID := range rooms {
		contents, err := a.store.RecentDanmaku(ctx, roomID, 0)
		if err != nil {
			return err
		}
		texts = append(texts, contents...)
	}
	if len(texts) == 0 {
		return nil
	}
	items := a.builder.Build(texts, a.wordcloudTopK)
	return a.store.SetGlobalWordcloud(ctx, items)
}

// Close 收尾释放消费者。
func (a *Aggregator) Close() error {
	return a.fetcher.Close()
}
