package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	pkgconfig "github.com/hudsor01/tenant-flow-sub011/pkg/config"
	"github.com/hudsor01/tenant-flow-sub011/pkg/logger"
)

// ServiceName is used for the config file name and as the env prefix (BILLING_*).
const ServiceName = "billing"

type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      logger.Config  `mapstructure:"log"`
}

// LoadConfig reads configs/<env>/billing.yaml (or CONFIG_PATH) and BILLING_* env
// overrides, then validates the result. A missing provider secret, signing secret
// or database target is returned as an error so the process refuses to start.
func LoadConfig(opts ...pkgconfig.Option) (*Config, error) {
	opts = append([]pkgconfig.Option{pkgconfig.WithDefaults(Defaults())}, opts...)

	raw, err := pkgconfig.Load(ServiceName, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := raw.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %v", fields)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Defaults registers every key so env-only deployments can override any of them.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"service.name":        ServiceName,
		"service.environment": "development",
		"service.version":     "dev",

		"stripe.secret_key":          "",
		"stripe.webhook_secret":      "",
		"stripe.signature_tolerance": "5m",
		"stripe.signature_header":    "Stripe-Signature",
		"stripe.request_timeout":     "5s",

		"database.url":                "",
		"database.host":               "",
		"database.port":               5432,
		"database.name":               "billing",
		"database.user":               "postgres",
		"database.password":           "",
		"database.sslmode":            "disable",
		"database.max_open_conns":     20,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "30m",
		"database.conn_max_idle_time": "5m",
		"database.auto_migrate":       true,

		"server.http.host":             "0.0.0.0",
		"server.http.port":             8080,
		"server.http.shutdown_timeout": "15s",
		"server.grpc.host":             "0.0.0.0",
		"server.grpc.port":             9090,

		"webhook.path":               "/webhook/stripe",
		"webhook.max_body_bytes":     1 << 20,
		"webhook.processing_timeout": "8s",
		"webhook.claim_lease":        "60s",
		"webhook.ordering_guard":     true,
		"webhook.retry.max_attempts": 3,
		"webhook.retry.base_delay":   "1s",
		"webhook.retry.max_delay":    "4s",
		"webhook.retry.multiplier":   2.0,

		"redis.enabled":       false,
		"redis.addr":          "localhost:6379",
		"redis.password":      "",
		"redis.db":            0,
		"redis.event_channel": "billing.subscription.changed",
		"redis.alert_channel": "billing.webhook.failed",

		"admin.jwt_secret": "",

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.file_path":   "",
		"log.development": false,
	}
}
