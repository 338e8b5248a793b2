package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	live_sdk "github.com/cydxin/live-sdk"
)

// 网关侧示例：WebSocket 订阅 + 查询接口 + Swagger。
func main() {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	engine := live_sdk.NewEngine(
		live_sdk.WithRDB(rdb),
		live_sdk.WithUpstreamURL("ws://localhost:9000/sub/%d"),
		live_sdk.WithKafka([]string{"localhost:9092"}, "live-danmaku-topic"),
		live_sdk.WithServiceDebug(true),
	)
	defer engine.Close()

	r := gin.Default()
	api := r.Group("/api/v1")
	// 鉴权按需挂：api.Use(engine.GinAuthMiddleware(nil))
	engine.RegisterGinRoutes(api)
	live_sdk.RegisterSwagger(r, "")

	log.Println("listening on :6789")
	if err := r.Run(":6789"); err != nil {
		log.Fatal(err)
	}
}
