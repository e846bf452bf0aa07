package config

import (
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/tt-live-music-player/pkg/config"
)

type Config struct {
	Server     ServerConfig
	WebSocket  WebSocketConfig
	Session    SessionConfig
	Upstream   UpstreamConfig
	Resolver   ResolverConfig
	Cache      CacheConfig
	Mirror     MirrorConfig
	Kafka      KafkaConfig
	Statistics StatisticsConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type SessionConfig struct {
	CommentCapacity int `mapstructure:"comment_capacity"`
	// MailboxWarnDepth logs a warning when a session backlog grows past it.
	MailboxWarnDepth int `mapstructure:"mailbox_warn_depth"`
}

type UpstreamConfig struct {
	RelayURL         string        `mapstructure:"relay_url"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadLimit        int64         `mapstructure:"read_limit"`
}

type ResolverConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
}

type CacheConfig struct {
	Enabled     bool
	Address     string
	Password    string
	DB          int
	Prefix      string
	TTL         time.Duration `mapstructure:"ttl"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl"`
}

type MirrorConfig struct {
	Enabled           bool
	Address           string
	Password          string
	DB                int
	Prefix            string
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type StatisticsConfig struct {
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load(pkgconfig.Source{Dir: "./config", Name: "config", EnvPrefix: "JUKEBOX"})
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("upstream.relay_url", "UPSTREAM_RELAY_URL")
	v.BindEnv("resolver.api_key", "YOUTUBE_API_KEY")
	v.BindEnv("cache.enabled", "CACHE_ENABLED")
	v.BindEnv("cache.address", "REDIS_ADDRESS")
	v.BindEnv("cache.password", "REDIS_PASSWORD")
	v.BindEnv("mirror.enabled", "MIRROR_ENABLED")
	v.BindEnv("mirror.address", "REDIS_ADDRESS")
	v.BindEnv("mirror.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Upstream.DialTimeout = pkgconfig.Duration(v, "upstream.dial_timeout", 10*time.Second)
	cfg.Upstream.HandshakeTimeout = pkgconfig.Duration(v, "upstream.handshake_timeout", 15*time.Second)
	cfg.Resolver.Timeout = pkgconfig.Duration(v, "resolver.timeout", 10*time.Second)
	cfg.Cache.TTL = pkgconfig.Duration(v, "cache.ttl", 24*time.Hour)
	cfg.Cache.NegativeTTL = pkgconfig.Duration(v, "cache.negative_ttl", 10*time.Minute)
	cfg.Mirror.KeyTTL = pkgconfig.Duration(v, "mirror.key_ttl", 30*time.Second)
	cfg.Mirror.HeartbeatInterval = pkgconfig.Duration(v, "mirror.heartbeat_interval", 10*time.Second)
	cfg.Statistics.BroadcastInterval = pkgconfig.Duration(v, "statistics.broadcast_interval", 30*time.Second)

	if cfg.Session.CommentCapacity <= 0 {
		cfg.Session.CommentCapacity = 100
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.instance_id", "jukebox-1")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("session.comment_capacity", 100)
	v.SetDefault("session.mailbox_warn_depth", 512)
	v.SetDefault("upstream.relay_url", "ws://localhost:8089/webcast")
	v.SetDefault("upstream.dial_timeout", "10s")
	v.SetDefault("upstream.handshake_timeout", "15s")
	v.SetDefault("upstream.read_limit", 1<<20)
	v.SetDefault("resolver.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("resolver.api_key", "")
	v.SetDefault("resolver.timeout", "10s")
	v.SetDefault("resolver.max_results", 5)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "jukebox:resolve")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.negative_ttl", "10m")
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.address", "localhost:6379")
	v.SetDefault("mirror.password", "")
	v.SetDefault("mirror.db", 0)
	v.SetDefault("mirror.prefix", "jukebox:registry")
	v.SetDefault("mirror.key_ttl", "30s")
	v.SetDefault("mirror.heartbeat_interval", "10s")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "song-requests")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("statistics.broadcast_interval", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
