package config

import "github.com/spf13/viper"

// Config holds typed configuration for the notifier service.
type Config struct {
	LogLevel     string
	KafkaBrokers string
	GroupID      string
	Channels     []string
	MetricsAddr  string
	OTelEndpoint string

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	WebhookURL string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:     v.GetString("log_level"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		GroupID:      v.GetString("group_id"),
		Channels:     v.GetStringSlice("channels"),
		MetricsAddr:  v.GetString("metrics_addr"),
		OTelEndpoint: v.GetString("otel_endpoint"),

		SMTPHost:     v.GetString("smtp_host"),
		SMTPPort:     v.GetInt("smtp_port"),
		SMTPFrom:     v.GetString("smtp_from"),
		SMTPUsername: v.GetString("smtp_username"),
		SMTPPassword: v.GetString("smtp_password"),

		WebhookURL: v.GetString("webhook_url"),
	}
}
