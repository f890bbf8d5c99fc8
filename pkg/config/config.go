package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for both gateway services.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Oracle  OracleConfig  `mapstructure:"oracle"`
	Price   PriceConfig   `mapstructure:"price"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type AppConfig struct {
	Port    string `mapstructure:"port"`
	Env     string `mapstructure:"env"` // "local", "prod"
	Version string `mapstructure:"version"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig drives the optional refresh event feed. Leaving Brokers empty
// disables the feed entirely.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type OracleConfig struct {
	RPCURL    string `mapstructure:"rpc_url"`
	Contract  string `mapstructure:"contract"`
	Decimals  int    `mapstructure:"decimals"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

type PriceConfig struct {
	Symbols    []string `mapstructure:"symbols"`
	BasePrices string   `mapstructure:"bases"` // "WLD:1.25,ETH:3450.75"
	Jitter     float64  `mapstructure:"jitter"`
}

type CacheConfig struct {
	MaxAgeMs int64 `mapstructure:"max_age_ms"`
}

func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMs) * time.Millisecond
}

type RefreshConfig struct {
	IntervalMs int `mapstructure:"interval_ms"`
}

func (r RefreshConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMs) * time.Millisecond
}

type BreakerConfig struct {
	Threshold int   `mapstructure:"threshold"`
	ResetMs   int64 `mapstructure:"reset_ms"`
}

func (b BreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(b.ResetMs) * time.Millisecond
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the real environment first so AutomaticEnv sees it.
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8787")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "price_ticks")

	v.SetDefault("oracle.rpc_url", "https://worldchain-mainnet.g.alchemy.com/public")
	v.SetDefault("oracle.contract", "")
	v.SetDefault("oracle.decimals", 8)
	v.SetDefault("oracle.timeout_ms", 5000)

	v.SetDefault("price.symbols", []string{"WLD", "ETH", "BTC"})
	v.SetDefault("price.bases", "WLD:1.25,ETH:3450.75,BTC:65430.50")
	v.SetDefault("price.jitter", 0.05)

	v.SetDefault("cache.max_age_ms", 60000)
	v.SetDefault("refresh.interval_ms", 30000)

	v.SetDefault("breaker.threshold", 3)
	v.SetDefault("breaker.reset_ms", 60000)

	// Map dot-notation keys to underscore env vars (oracle.rpc_url -> ORACLE_RPC_URL).
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env", "app.version")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic")
	bindEnv(v, "oracle.rpc_url", "oracle.contract", "oracle.decimals", "oracle.timeout_ms")
	bindEnv(v, "price.symbols", "price.bases", "price.jitter")
	bindEnv(v, "cache.max_age_ms", "refresh.interval_ms")
	bindEnv(v, "breaker.threshold", "breaker.reset_ms")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if len(cfg.Price.Symbols) == 0 {
		return nil, fmt.Errorf("price symbols cannot be empty")
	}
	if cfg.Oracle.Decimals < 0 || cfg.Oracle.Decimals > 30 {
		return nil, fmt.Errorf("oracle decimals out of range: %d", cfg.Oracle.Decimals)
	}
	if cfg.Price.Jitter < 0 || cfg.Price.Jitter >= 1 {
		return nil, fmt.Errorf("price jitter must be in [0,1): %f", cfg.Price.Jitter)
	}
	if _, err := cfg.Price.Bases(); err != nil {
		return nil, err
	}

	// Symbols are matched case-insensitively everywhere; store them upper.
	for i, s := range cfg.Price.Symbols {
		cfg.Price.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	return &cfg, nil
}

// Bases parses the configured base-price list into a symbol -> price map.
func (p PriceConfig) Bases() (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(p.BasePrices, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed base price entry %q", pair)
		}
		var price float64
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%f", &price); err != nil {
			return nil, fmt.Errorf("malformed base price for %s: %v", parts[0], err)
		}
		out[strings.ToUpper(strings.TrimSpace(parts[0]))] = price
	}
	return out, nil
}

// SupportedSet returns the symbol list as an upper-cased lookup set.
func (p PriceConfig) SupportedSet() map[string]bool {
	set := make(map[string]bool, len(p.Symbols))
	for _, s := range p.Symbols {
		set[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return set
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
