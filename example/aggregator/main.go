package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/cydxin/live-sdk/aggregator"
	"github.com/cydxin/live-sdk/store"
)

// 聚合任务示例：消费持久流，窗口聚合后写 Redis。
// 和网关分开部署，网关挂了聚合照跑，反过来也一样。
func main() {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	st := store.New(rdb, 0, 0, 0, 0)

	fetcher := aggregator.NewKafkaFetcher(
		[]string{"localhost:9092"}, "live-danmaku-topic", "live-aggregator")
	agg := aggregator.New(fetcher, st, aggregator.AggregatorConfig{})
	defer func() {
		if err := agg.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := agg.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
