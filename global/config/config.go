package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"PPChat/tools/errs"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "PPCHAT_CONFIG"
	envPrefix     = "PPCHAT_"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	EventsNone  = "none"
	EventsNats  = "nats"
	EventsKafka = "kafka"
)

// ===== 配置段 =====

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WSConfig struct {
	Path              string        `mapstructure:"path"`
	SendQueue         int           `mapstructure:"send_queue"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	PongWait          time.Duration `mapstructure:"pong_wait"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	WriteWait         time.Duration `mapstructure:"write_wait"`
	RequireMembership bool          `mapstructure:"require_membership"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Secret  string        `mapstructure:"secret"`
	Alg     string        `mapstructure:"alg"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Refresh  time.Duration `mapstructure:"refresh"`
}

type NatsConfig struct {
	URL           string `mapstructure:"url"`
	Name          string `mapstructure:"name"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	JetStream     bool   `mapstructure:"jetstream"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type EventsConfig struct {
	Driver string      `mapstructure:"driver"`
	Nats   NatsConfig  `mapstructure:"nats"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// AppConfig 进程完整配置
type AppConfig struct {
	NodeID  int64         `mapstructure:"node_id"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	WS      WSConfig      `mapstructure:"ws"`
	Log     LogConfig     `mapstructure:"log"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Events  EventsConfig  `mapstructure:"events"`
}

// ===== 默认值 =====

func Default() AppConfig {
	return AppConfig{
		NodeID: 1,
		HTTP: HTTPConfig{
			Addr:            ":5000",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		WS: WSConfig{
			Path:              "/ws",
			SendQueue:         256,
			ReadLimit:         64 << 10,
			PongWait:          60 * time.Second,
			PingInterval:      54 * time.Second,
			WriteWait:         10 * time.Second,
			RequireMembership: true,
		},
		Log:  LogConfig{Level: "info", Format: "console"},
		Auth: AuthConfig{Alg: "HS256", TTL: 24 * time.Hour},
		Storage: StorageConfig{
			Driver:   StorageMemory,
			Timeout:  5 * time.Second,
			Postgres: PostgresConfig{MaxConns: 10, Migrate: true},
			Mongo:    MongoConfig{Database: "ppchat", MaxPoolSize: 20},
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379", TTL: 90 * time.Second, Refresh: 30 * time.Second},
		Events: EventsConfig{
			Driver: EventsNone,
			Nats:   NatsConfig{URL: "nats://127.0.0.1:4222", Name: "ppchat", SubjectPrefix: "ppchat"},
			Kafka:  KafkaConfig{Brokers: []string{"127.0.0.1:9092"}, Topic: "ppchat.events"},
		},
	}
}

// ===== 加载 =====

// Load 加载顺序：默认值 -> path（或 $PPCHAT_CONFIG）指向的 YAML
// -> PPCHAT_<SECTION>__<KEY> 环境变量 -> 兼容旧的 PORT / CLIENT_URL
func Load(path string) (AppConfig, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (AppConfig, error) {
	cfg := Default()

	if path == "" {
		path = lookup(environ, EnvConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errs.WrapMsg(err, "read config", "path", path)
		}
		m := map[string]any{}
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return cfg, errs.ErrArgs.WrapMsg("parse yaml", "path", path, "err", err)
		}
		if err := decode(m, &cfg); err != nil {
			return cfg, err
		}
	}

	if m := envOverrides(environ); len(m) > 0 {
		if err := decode(m, &cfg); err != nil {
			return cfg, err
		}
	}

	if port := lookup(environ, "PORT"); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	if origin := lookup(environ, "CLIENT_URL"); origin != "" {
		cfg.HTTP.AllowedOrigins = splitComma(origin)
	}

	return cfg, cfg.Validate()
}

func decode(in map[string]any, out *AppConfig) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			commaSliceHook(),
		),
	})
	if err != nil {
		return errs.Wrap(err)
	}
	if err := dec.Decode(in); err != nil {
		return errs.ErrArgs.WrapMsg("decode config", "err", err)
	}
	return nil
}

// commaSliceHook 环境变量中的 "a,b" 填充 []string
func commaSliceHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
			return data, nil
		}
		return splitComma(data.(string)), nil
	}
}

// envOverrides turns PPCHAT_STORAGE__POSTGRES__DSN=x into {"storage":{"postgres":{"dsn":"x"}}}.
func envOverrides(environ []string) map[string]any {
	out := map[string]any{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, envPrefix) || k == EnvConfigPath {
			continue
		}
		parts := strings.Split(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "__")
		cur := out
		for i, p := range parts {
			if p == "" {
				break
			}
			if i == len(parts)-1 {
				cur[p] = v
				break
			}
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[p] = next
			}
			cur = next
		}
	}
	return out
}

func lookup(environ []string, key string) string {
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ===== 校验 =====

func (c AppConfig) Validate() error {
	var problems []string
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.Postgres.DSN == "" {
			problems = append(problems, "storage.postgres.dsn is empty")
		}
	case StorageMongo:
		if c.Storage.Mongo.URI == "" {
			problems = append(problems, "storage.mongo.uri is empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Events.Driver {
	case EventsNone, "":
	case EventsNats:
		if c.Events.Nats.URL == "" {
			problems = append(problems, "events.nats.url is empty")
		}
	case EventsKafka:
		if len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "" {
			problems = append(problems, "events.kafka needs brokers and topic")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown events.driver %q", c.Events.Driver))
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		problems = append(problems, "auth.secret is required when auth is enabled")
	}
	if c.WS.SendQueue <= 0 {
		problems = append(problems, "ws.send_queue must be positive")
	}
	if c.WS.PingInterval <= 0 || c.WS.PongWait <= c.WS.PingInterval {
		problems = append(problems, "ws.ping_interval must be positive and shorter than ws.pong_wait")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "redis.addr is empty")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		problems = append(problems, "node_id must be within 0~1023")
	}
	if len(problems) > 0 {
		return errs.ErrArgs.WrapMsg(strings.Join(problems, "; "))
	}
	return nil
}
