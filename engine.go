package live_sdk

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/live-sdk/middleware"
	"github.com/cydxin/live-sdk/sentiment"
	"github.com/cydxin/live-sdk/service"
	"github.com/cydxin/live-sdk/stats"
	"github.com/cydxin/live-sdk/store"
	"github.com/cydxin/live-sdk/stream"
)

type LiveEngine struct {
	config *Config

	QueryService *service.QueryService
	AuthService  *service.AuthService // 鉴权服务
	Manager      *ConnectionManager
	Store        *store.Store

	pool      *sentiment.Pool
	publisher stream.Publisher
}

var (
	Instance *LiveEngine
	once     sync.Once
)

// NewEngine 创建实例
// 使用选项模式传入配置，Option回调
func NewEngine(opts ...Option) *LiveEngine {
	once.Do(func() {
		c := &Config{}
		for _, opt := range opts {
			opt(c)
		}
		c.withDefaults()

		Instance = &LiveEngine{config: c}

		// 持久流：没配 broker 就只做本地广播
		if len(c.KafkaBrokers) > 0 {
			Instance.publisher = stream.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic)
		} else {
			Instance.publisher = &stream.NopPublisher{}
		}

		// 计算池 + 房间会话管理器
		Instance.pool = sentiment.NewPool(c.ScoreWorkers, sentiment.NewScorer())
		Instance.Manager = NewConnectionManager(c, Instance.pool, stats.NewWordcloudBuilder(), Instance.publisher)

		// 共享快存（聚合任务写、这里读）
		if c.RDB != nil {
			Instance.Store = store.New(c.RDB, 0, 0, 0, 0)
		}

		// 初始化基础 Service，注入房间状态读取口
		baseService := &service.Service{
			RDB:   c.RDB,
			Debug: c.Service.Debug,
			Live:  Instance.Manager,
		}

		Instance.QueryService = service.NewQueryService(baseService, Instance.Store)
		Instance.AuthService = service.NewAuthService(c.RDB) // 初始化鉴权服务

		log.Printf("[LiveEngine] 初始化完成 upstream=%q kafka=%v", c.UpstreamURL, c.KafkaBrokers)
	})

	return Instance
}

// ServeWS 处理 WebSocket 请求，订阅指定房间
func (e *LiveEngine) ServeWS(w http.ResponseWriter, r *http.Request, roomID int64) {
	e.Manager.ServeWS(w, r, roomID)
}

// HandleWS 返回 WebSocket 的Handler
func (e *LiveEngine) HandleWS(roomID int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.Manager.ServeWS(w, r, roomID)
	}
}

// GinAuthMiddleware 返回配置好的 Gin 鉴权中间件
// 使用 LiveEngine 内部的 AuthService 和 Redis 配置
//
// 使用示例:
//
//	engine := live_sdk.NewEngine(...)
//	r := gin.Default()
//	r.Use(engine.GinAuthMiddleware(nil)) // 使用默认配置
//	// 或自定义配置
//	r.Use(engine.GinAuthMiddleware(&middleware.AuthOptions{
//	    HeaderKey: "X-Token",
//	    QueryKey: "access_token",
//	}))
func (e *LiveEngine) GinAuthMiddleware(opt *middleware.AuthOptions) gin.HandlerFunc {
	return middleware.GinAuthMiddleware(e.AuthService, opt)
}

// Close 关停全部房间会话并冲刷持久流。
func (e *LiveEngine) Close() {
	e.Manager.Close()
	e.pool.Close()
	if err := e.publisher.Close(); err != nil {
		log.Printf("[LiveEngine] 关闭流发布器失败: %v", err)
	}
}

// Health 给健康检查端点用。
func (e *LiveEngine) Health(ctx context.Context) service.HealthResult {
	res := e.QueryService.Health(ctx)
	res.StreamOK = e.publisher.Healthy()
	return res
}
