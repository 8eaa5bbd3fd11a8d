package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkflowConfig 訂位流程的延遲、逾時與資料來源設定
type WorkflowConfig struct {
	// 庫存來源：simulated 或 postgres
	InventorySource string `yaml:"inventory_source"`
	// session 儲存：memory 或 redis
	SessionStore string `yaml:"session_store"`

	LookupLatency  time.Duration `yaml:"lookup_latency"`
	LookupTimeout  time.Duration `yaml:"lookup_timeout"`
	PaymentLatency time.Duration `yaml:"payment_latency"`
	PaymentTimeout time.Duration `yaml:"payment_timeout"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	SearchCacheTTL time.Duration `yaml:"search_cache_ttl"`

	OccupancyRate float64 `yaml:"occupancy_rate"`
	// 0 表示以目前時間為 seed
	Seed int64 `yaml:"seed"`

	// 是否啟用出票 worker（Redis Stream 或記憶體 queue）
	ReceiptQueue string `yaml:"receipt_queue"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

var AppConfig *Config

// LoadConfig 讀取環境變數；若 path 非空（或設有 CONFIG_FILE），再以 YAML 檔覆蓋
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Server:    GetServerConfig(),
		Database:  GetDatabaseConfig(),
		Redis:     GetRedisConfig(),
		Workflow:  GetWorkflowConfig(),
		RateLimit: GetRateLimitConfig(),
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return AppConfig, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate 檢查設定值
func (c *Config) Validate() error {
	switch c.Workflow.InventorySource {
	case "simulated", "postgres":
	default:
		return fmt.Errorf("unknown inventory source %q", c.Workflow.InventorySource)
	}
	switch c.Workflow.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session store %q", c.Workflow.SessionStore)
	}
	switch c.Workflow.ReceiptQueue {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unknown receipt queue %q", c.Workflow.ReceiptQueue)
	}
	if c.Workflow.LookupTimeout <= 0 || c.Workflow.PaymentTimeout <= 0 {
		return fmt.Errorf("lookup and payment timeouts must be positive")
	}
	if c.Workflow.OccupancyRate < 0 || c.Workflow.OccupancyRate > 1 {
		return fmt.Errorf("occupancy rate must be within [0, 1], got %v", c.Workflow.OccupancyRate)
	}
	return nil
}

// NeedsRedis 是否有元件依賴 Redis
func (c *Config) NeedsRedis() bool {
	return c.Workflow.SessionStore == "redis" || c.Workflow.ReceiptQueue == "redis" || c.Workflow.SearchCacheTTL > 0
}

// NeedsDatabase 是否有元件依賴 Postgres
func (c *Config) NeedsDatabase() bool {
	return c.Workflow.InventorySource == "postgres"
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // 測試 DB 用 5433 port
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // 測試 Redis 用 6380 port
		Password: "",
		DB:       1,
	}

	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: *testConfig,
		Redis:    testRedisConfig,
		Workflow: WorkflowConfig{
			InventorySource: "simulated",
			SessionStore:    "memory",
			LookupTimeout:   time.Second,
			PaymentTimeout:  time.Second,
			SessionTTL:      time.Minute,
			OccupancyRate:   0.30,
			Seed:            1,
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() RedisConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		panic(err)
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func GetWorkflowConfig() WorkflowConfig {
	rate, err := strconv.ParseFloat(getEnv("OCCUPANCY_RATE", "0.30"), 64)
	if err != nil {
		panic(err)
	}
	seed, err := strconv.ParseInt(getEnv("SEAT_SEED", "0"), 10, 64)
	if err != nil {
		panic(err)
	}

	return WorkflowConfig{
		InventorySource: getEnv("INVENTORY_SOURCE", "simulated"),
		SessionStore:    getEnv("SESSION_STORE", "memory"),
		LookupLatency:   getEnvDuration("LOOKUP_LATENCY", time.Second),
		LookupTimeout:   getEnvDuration("LOOKUP_TIMEOUT", 5*time.Second),
		PaymentLatency:  getEnvDuration("PAYMENT_LATENCY", 2*time.Second),
		PaymentTimeout:  getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*time.Minute),
		// 0 表示不快取；大於 0 時搜尋結果快取在 Redis
		SearchCacheTTL: getEnvDuration("SEARCH_CACHE_TTL", 0),
		OccupancyRate:  rate,
		Seed:           seed,
		ReceiptQueue:   getEnv("RECEIPT_QUEUE", "memory"),
	}
}

func GetRateLimitConfig() RateLimitConfig {
	rps, err := strconv.ParseFloat(getEnv("SEARCH_RPS", "5"), 64)
	if err != nil {
		panic(err)
	}
	burst, err := strconv.Atoi(getEnv("SEARCH_BURST", "10"))
	if err != nil {
		panic(err)
	}
	return RateLimitConfig{RequestsPerSecond: rps, BurstSize: burst}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
