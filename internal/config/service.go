package config

import "time"

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

// StripeConfig holds billing provider credentials. Both secrets are required.
type StripeConfig struct {
	SecretKey          string        `mapstructure:"secret_key" validate:"required"`
	WebhookSecret      string        `mapstructure:"webhook_secret" validate:"required"`
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance" validate:"gt=0"`
	SignatureHeader    string        `mapstructure:"signature_header" validate:"required"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

type WebhookConfig struct {
	Path              string        `mapstructure:"path" validate:"required,startswith=/"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout" validate:"gt=0"`
	ClaimLease        time.Duration `mapstructure:"claim_lease" validate:"gt=0"`
	OrderingGuard     bool          `mapstructure:"ordering_guard"`
	Retry             RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	Multiplier  float64       `mapstructure:"multiplier" validate:"gte=1"`
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	EventChannel string `mapstructure:"event_channel"`
	AlertChannel string `mapstructure:"alert_channel"`
}

// AdminConfig protects the internal replay/reconcile API. An empty secret disables it.
type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}
