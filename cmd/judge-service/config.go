package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"tutorjudge/internal/common/cache"
	"tutorjudge/internal/common/mq"
	"tutorjudge/internal/judge/backend"
	"tutorjudge/internal/judge/repository"
	"tutorjudge/internal/judge/service"
	"tutorjudge/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultResultCacheSize = 1024
	defaultRateLimitWindow = time.Minute
	defaultWasmMemoryPages = 4096
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds Kafka producer settings. No brokers disables events.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
}

// LocalConfig holds in-process fallback settings.
type LocalConfig struct {
	MaxCallStack     int                  `yaml:"maxCallStack"`
	MemoryLimitPages uint32               `yaml:"memoryLimitPages"`
	WasmModules      []backend.WasmModule `yaml:"wasmModules"`
}

// ExecuteConfig holds single-run settings.
type ExecuteConfig struct {
	MaxCodeBytes    int           `yaml:"maxCodeBytes"`
	MaxStdinBytes   int           `yaml:"maxStdinBytes"`
	ResultTTL       time.Duration `yaml:"resultTTL"`
	ResultCacheSize int           `yaml:"resultCacheSize"`
}

// SubmissionConfig holds batch judging settings.
type SubmissionConfig struct {
	WorkerPoolSize  int           `yaml:"workerPoolSize"`
	TestParallelism int           `yaml:"testParallelism"`
	MaxTestCases    int           `yaml:"maxTestCases"`
	QueueWait       time.Duration `yaml:"queueWait"`
	JobTimeout      time.Duration `yaml:"jobTimeout"`
}

// StatusConfig holds status persistence settings.
type StatusConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Timeout    time.Duration `yaml:"timeout"`
	FinalTopic string        `yaml:"finalTopic"`
}

// RateLimitConfig holds per-client limits for the public endpoints.
type RateLimitConfig struct {
	Window   time.Duration `yaml:"window"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server     ServerConfig         `yaml:"server"`
	Logger     logger.Config        `yaml:"logger"`
	Redis      cache.RedisConfig    `yaml:"redis"`
	Kafka      KafkaConfig          `yaml:"kafka"`
	Judge0     backend.Judge0Config `yaml:"judge0"`
	Local      LocalConfig          `yaml:"local"`
	Execute    ExecuteConfig        `yaml:"execute"`
	Submission SubmissionConfig     `yaml:"submission"`
	Status     StatusConfig         `yaml:"status"`
	RateLimit  RateLimitConfig      `yaml:"rateLimit"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads path when it exists; a missing file yields defaults.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := loadYAML(path, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file failed: %w", err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv lets secrets and endpoints come from the environment.
func applyEnv(cfg *AppConfig, getenv func(string) string) {
	if cfg.Judge0.APIKey == "" {
		cfg.Judge0.APIKey = firstNonEmpty(getenv("JUDGE0_API_KEY"), getenv("RAPIDAPI_KEY"))
	}
	if v := getenv("JUDGE0_ENDPOINT"); v != "" {
		cfg.Judge0.Endpoint = v
	}
	if v := getenv("JUDGE0_API_HOST"); v != "" {
		cfg.Judge0.APIHost = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	if cfg.Local.MemoryLimitPages == 0 {
		cfg.Local.MemoryLimitPages = defaultWasmMemoryPages
	}
	if cfg.Execute.ResultCacheSize <= 0 {
		cfg.Execute.ResultCacheSize = defaultResultCacheSize
	}
	if cfg.Execute.ResultTTL == 0 {
		cfg.Execute.ResultTTL = service.DefaultResultTTL
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = repository.DefaultStatusTTL
	}
	if cfg.Status.FinalTopic == "" {
		cfg.Status.FinalTopic = repository.DefaultStatusTopic
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = defaultRateLimitWindow
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  parseCompression(k.Compression),
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
