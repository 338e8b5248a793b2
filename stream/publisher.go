// Package stream 把打分后的事件镜像到持久化消息流（Kafka 角色）。
// 发布是旁路：尽力而为、不阻塞、失败只记日志，绝不拖累本地广播。
package stream

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/cydxin/live-sdk/message"
)

// Publisher 事件流发布器。
type Publisher interface {
	// Publish 异步发布一条流消息，从不阻塞调用方、从不返回错误。
	Publish(rec message.StreamRecord)
	// Healthy 最近一次发送是否成功（没发过算健康）。
	Healthy() bool
	// Close 冲刷在途消息后关闭，可能等到超时丢弃。
	Close() error
}

// KafkaPublisher 基于 kafka-go 的实现。
// key 取 room_id，哈希到同一分区，保证单房间内事件顺序。
type KafkaPublisher struct {
	writer  *kafka.Writer
	healthy atomic.Bool
}

// NewKafkaPublisher 创建发布器。
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	p := &KafkaPublisher{}
	p.healthy.Store(true)
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		// 异步模式：WriteMessages 入队即返回，结果走 Completion 回调
		Async: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.healthy.Store(false)
				log.Printf("[StreamPublisher] 发送 %d 条消息失败: %v", len(msgs), err)
				return
			}
			p.healthy.Store(true)
		},
	}
	return p
}

func (p *KafkaPublisher) Publish(rec message.StreamRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[StreamPublisher] 序列化失败 room=%d: %v", rec.RoomID, err)
		return
	}
	err = p.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(strconv.FormatInt(rec.RoomID, 10)),
		Value: data,
	})
	if err != nil {
		// 异步模式下这里只会是入队失败（如 writer 已关闭），同样吞掉
		p.healthy.Store(false)
		log.Printf("[StreamPublisher] 入队失败 room=%d: %v", rec.RoomID, err)
	}
}

func (p *KafkaPublisher) Healthy() bool {
	return p.healthy.Load()
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 没配 Kafka 时的空实现，只在首次调用时提示一次。
type NopPublisher struct {
	warned atomic.Bool
}

func (p *NopPublisher) Publish(message.StreamRecord) {
	if p.warned.CompareAndSwap(false, true) {
		log.Printf("[StreamPublisher] 未配置 Kafka，事件不会进入持久流")
	}
}

func (p *NopPublisher) Healthy() bool { return false }

func (p *NopPublisher) Close() error { return nil }
