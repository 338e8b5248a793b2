package service

import (
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cydxin/live-sdk/message"
)

// Service 基础服务，包含 Redis 和配置
type Service struct {
	RDB   *redis.Client
	Debug bool

	// Live 进程内房间状态的读取口。
	// 避免循环依赖，由 engine 注入连接管理器，service 层只认接口。
	Live LiveProvider
}

// LiveProvider 进程内房间状态读取接口，连接管理器实现。
type LiveProvider interface {
	ActiveRooms() []int64
	RoomStats(roomID int64) (message.StatsPayload, bool)
	RecentContent(roomID int64) []string
	Connected(roomID int64) bool
	ViewerCount(roomID int64) (int, bool)
	StartTime(roomID int64) (time.Time, bool)
}
