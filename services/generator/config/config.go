package config

import "github.com/spf13/viper"

// Config holds typed configuration for the generator service.
type Config struct {
	LogLevel       string
	PostgresDSN    string
	RedisAddr      string
	KafkaBrokers   string
	GenerationCron string
	MetricsAddr    string
	OTelEndpoint   string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:       v.GetString("log_level"),
		PostgresDSN:    v.GetString("postgres_dsn"),
		RedisAddr:      v.GetString("redis_addr"),
		KafkaBrokers:   v.GetString("kafka_brokers"),
		GenerationCron: v.GetString("generation_cron"),
		MetricsAddr:    v.GetString("metrics_addr"),
		OTelEndpoint:   v.GetString("otel_endpoint"),
	}
}
