package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Env             string `mapstructure:"env" yaml:"env"`
	Port            int    `mapstructure:"port" yaml:"port"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds" yaml:"shutdown_seconds"`
	RequestSeconds  int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

func (a AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }

type MongoConfig struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers     []string `mapstructure:"brokers" yaml:"brokers"`
	TopicEvents string   `mapstructure:"topic_events" yaml:"topic_events"`
	GroupID     string   `mapstructure:"group_id" yaml:"group_id"`
}

type JWTConfig struct {
	Alg              string `mapstructure:"alg" yaml:"alg"`
	PrivateKeyPath   string `mapstructure:"private_key_path" yaml:"private_key_path"`
	PublicKeyPath    string `mapstructure:"public_key_path" yaml:"public_key_path"`
	HSSecret         string `mapstructure:"hs_secret" yaml:"hs_secret"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes" yaml:"access_ttl_minutes"`
	RefreshTTLDays   int    `mapstructure:"refresh_ttl_days" yaml:"refresh_ttl_days"`
	Issuer           string `mapstructure:"issuer" yaml:"issuer"`
}

type OAuthProvider struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
}

func (p OAuthProvider) Enabled() bool { return p.ClientID != "" && p.ClientSecret != "" }

type OAuthConfig struct {
	GitHub OAuthProvider `mapstructure:"github" yaml:"github"`
	Google OAuthProvider `mapstructure:"google" yaml:"google"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region" yaml:"region"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

type S3Config struct {
	PublicRead    bool  `mapstructure:"public_read" yaml:"public_read"`
	PresignTTL    int   `mapstructure:"presign_ttl_seconds" yaml:"presign_ttl_seconds"`
	MaxImageBytes int64 `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`
}

type RateConfig struct {
	MessagesPerMinute     int `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	JoinAttemptsPerMinute int `mapstructure:"join_attempts_per_minute" yaml:"join_attempts_per_minute"`
}

type WSConfig struct {
	MaxMessageBytes  int64   `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	PingSeconds      int     `mapstructure:"ping_seconds" yaml:"ping_seconds"`
	InboundPerSecond float64 `mapstructure:"inbound_per_second" yaml:"inbound_per_second"`
	InboundBurst     int     `mapstructure:"inbound_burst" yaml:"inbound_burst"`
}

type ConsulConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

type Config struct {
	App    AppConfig    `mapstructure:"app" yaml:"app"`
	Mongo  MongoConfig  `mapstructure:"mongodb" yaml:"mongodb"`
	Redis  RedisConfig  `mapstructure:"redis" yaml:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka" yaml:"kafka"`
	JWT    JWTConfig    `mapstructure:"jwt" yaml:"jwt"`
	OAuth  OAuthConfig  `mapstructure:"oauth" yaml:"oauth"`
	AWS    AWSConfig    `mapstructure:"aws" yaml:"aws"`
	S3     S3Config     `mapstructure:"s3" yaml:"s3"`
	Rate   RateConfig   `mapstructure:"rate" yaml:"rate"`
	WS     WSConfig     `mapstructure:"ws" yaml:"ws"`
	Consul ConsulConfig `mapstructure:"consul" yaml:"consul"`
	Log    struct {
		Level string `mapstructure:"level" yaml:"level"`
	} `mapstructure:"log" yaml:"log"`

	// derived
	ShutdownTimeout time.Duration `mapstructure:"-" yaml:"-"`
	RequestTimeout  time.Duration `mapstructure:"-" yaml:"-"`
	AccessTTL       time.Duration `mapstructure:"-" yaml:"-"`
	RefreshTTL      time.Duration `mapstructure:"-" yaml:"-"`
	PresignTTL      time.Duration `mapstructure:"-" yaml:"-"`
	PingInterval    time.Duration `mapstructure:"-" yaml:"-"`
}

func (c *Config) Development() bool { return c.App.Env == "development" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.shutdown_seconds", 15)
	v.SetDefault("app.request_timeout_seconds", 10)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "teamchat")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "teamchat")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_events", "teamchat.events")
	v.SetDefault("kafka.group_id", "")

	v.SetDefault("jwt.alg", "HS256")
	v.SetDefault("jwt.private_key_path", "")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.hs_secret", "")
	v.SetDefault("jwt.access_ttl_minutes", 60)
	v.SetDefault("jwt.refresh_ttl_days", 30)
	v.SetDefault("jwt.issuer", "teamchat")

	v.SetDefault("oauth.github.client_id", "")
	v.SetDefault("oauth.github.client_secret", "")
	v.SetDefault("oauth.google.client_id", "")
	v.SetDefault("oauth.google.client_secret", "")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("s3.public_read", false)
	v.SetDefault("s3.presign_ttl_seconds", 600)
	v.SetDefault("s3.max_image_bytes", 5*1024*1024)

	v.SetDefault("rate.messages_per_minute", 60)
	v.SetDefault("rate.join_attempts_per_minute", 10)

	v.SetDefault("ws.max_message_bytes", 32*1024)
	v.SetDefault("ws.ping_seconds", 30)
	v.SetDefault("ws.inbound_per_second", 5)
	v.SetDefault("ws.inbound_burst", 20)

	v.SetDefault("consul.addr", "")
	v.SetDefault("consul.service_name", "teamchat")

	v.SetDefault("log.level", "info")
}

// Load reads the YAML file at path, applies TEAMCHAT_* environment
// overrides and validates the result. A missing file is not an error; the
// defaults plus environment are enough to boot.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TEAMCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	derive(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func derive(cfg *Config) {
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSeconds) * time.Second
	cfg.RequestTimeout = time.Duration(cfg.App.RequestSeconds) * time.Second
	cfg.AccessTTL = time.Duration(cfg.JWT.AccessTTLMinutes) * time.Minute
	cfg.RefreshTTL = time.Duration(cfg.JWT.RefreshTTLDays) * 24 * time.Hour
	cfg.PresignTTL = time.Duration(cfg.S3.PresignTTL) * time.Second
	cfg.PingInterval = time.Duration(cfg.WS.PingSeconds) * time.Second
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = cfg.Consul.ServiceName
	}
}

func validate(cfg *Config) error {
	if cfg.App.Port <= 0 {
		return errors.New("app.port missing or invalid")
	}
	if cfg.Mongo.URI == "" {
		return errors.New("mongodb.uri missing")
	}
	if cfg.Mongo.Database == "" {
		return errors.New("mongodb.database missing")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr missing")
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers missing")
		}
		if cfg.Kafka.TopicEvents == "" {
			return errors.New("kafka.topic_events missing")
		}
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return errors.New("jwt ttl values must be positive")
	}

	switch strings.ToUpper(cfg.JWT.Alg) {
	case "RS256":
		if cfg.JWT.PrivateKeyPath == "" || cfg.JWT.PublicKeyPath == "" {
			return errors.New("jwt.private_key_path and jwt.public_key_path required for RS256")
		}
	case "HS256":
		if cfg.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret required for HS256")
		}
	default:
		return errors.New("invalid jwt.alg (use RS256 or HS256)")
	}
	return nil
}

const redacted = "********"

// Dump renders the effective configuration as YAML with secrets masked.
func (c *Config) Dump() ([]byte, error) {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&out.Redis.Password)
	mask(&out.JWT.HSSecret)
	mask(&out.OAuth.GitHub.ClientSecret)
	mask(&out.OAuth.Google.ClientSecret)
	return yaml.Marshal(out)
}
