package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the api service.
type Config struct {
	LogLevel       string
	HTTPPort       string
	PostgresDSN    string
	RedisAddr      string
	KafkaBrokers   string
	MetricsAddr    string
	OTelEndpoint   string
	GenerateLimit  int
	GenerateWindow time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:       v.GetString("log_level"),
		HTTPPort:       v.GetString("http_port"),
		PostgresDSN:    v.GetString("postgres_dsn"),
		RedisAddr:      v.GetString("redis_addr"),
		KafkaBrokers:   v.GetString("kafka_brokers"),
		MetricsAddr:    v.GetString("metrics_addr"),
		OTelEndpoint:   v.GetString("otel_endpoint"),
		GenerateLimit:  v.GetInt("generate_limit"),
		GenerateWindow: v.GetDuration("generate_window"),
	}
}
