package live_sdk

import "github.com/go-redis/redis/v8"
import "time"

import "github.com/cydxin/live-sdk/upstream"

type ServiceConfig struct {
	Debug bool
}

type Config struct {
	RDB     *redis.Client
	Service ServiceConfig

	// UpstreamURL 上游事件源地址模板，形如 "ws://host/sub/%d"，%d 填房间号
	UpstreamURL string

	// UpstreamFactory 覆盖默认的上游连接工厂（测试注入假连接用）
	UpstreamFactory upstream.Factory

	// KafkaBrokers 为空时不接持久流，只做本地广播
	KafkaBrokers []string
	KafkaTopic   string

	// StatsInterval 统计推送限频间隔
	StatsInterval time.Duration
	// WordcloudInterval 房间词云推送间隔
	WordcloudInterval time.Duration
	// WordcloudTopK 词云条目上限
	WordcloudTopK int
	// RecentCapacity 房间最近弹幕环容量（词云的原料）
	RecentCapacity int
	// ScoreWorkers 打分协程池大小
	ScoreWorkers int
	// EventBuffer 房间事件缓冲大小，满了丢新事件
	EventBuffer int
}

// withDefaults 补齐零值配置。
func (c *Config) withDefaults() {
	if c.KafkaTopic == "" {
		c.KafkaTopic = "live-danmaku-topic"
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = time.Second
	}
	if c.WordcloudInterval <= 0 {
		c.WordcloudInterval = 3 * time.Second
	}
	if c.WordcloudTopK <= 0 {
		c.WordcloudTopK = 50
	}
	if c.RecentCapacity <= 0 {
		c.RecentCapacity = 500
	}
	if c.ScoreWorkers <= 0 {
		c.ScoreWorkers = 4
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
}

type Option func(*Config)

func WithRDB(RDB *redis.Client) Option {
	return func(c *Config) {
		c.RDB = RDB
	}
}

func WithUpstreamURL(urlPattern string) Option {
	return func(c *Config) {
		c.UpstreamURL = urlPattern
	}
}

// WithUpstreamFactory 注入自定义上游连接工厂，优先于 UpstreamURL。
func WithUpstreamFactory(f upstream.Factory) Option {
	return func(c *Config) {
		c.UpstreamFactory = f
	}
}

func WithKafka(brokers []string, topic string) Option {
	return func(c *Config) {
		c.KafkaBrokers = brokers
		if topic != "" {
			c.KafkaTopic = topic
		}
	}
}

func WithStatsInterval(d time.Duration) Option {
	return func(c *Config) {
		c.StatsInterval = d
	}
}

func WithWordcloudInterval(d time.Duration) Option {
	return func(c *Config) {
		c.WordcloudInterval = d
	}
}

func WithWordcloudTopK(k int) Option {
	return func(c *Config) {
		c.WordcloudTopK = k
	}
}

func WithRecentCapacity(n int) Option {
	return func(c *Config) {
		c.RecentCapacity = n
	}
}

func WithScoreWorkers(n int) Option {
	return func(c *Config) {
		c.ScoreWorkers = n
	}
}

func WithServiceDebug(debug bool) Option {
	return func(c *Config) {
		c.Service.Debug = debug
	}
}
