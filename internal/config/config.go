package config

import "time"

// CaptureConfig holds the limits and secrets the capture pipeline runs with.
type CaptureConfig struct {
	InboundDomain      string        `env:"INBOUND_DOMAIN,required"`
	MaxAttachmentBytes int64         `env:"CAPTURE_MAX_ATTACHMENT_BYTES" envDefault:"10485760"`
	TrialCaptureLimit  int           `env:"CAPTURE_TRIAL_LIMIT" envDefault:"3"`
	SignatureWindow    time.Duration `env:"SIGNATURE_WINDOW" envDefault:"300s"`
	AllowUnsigned      bool          `env:"SIGNATURE_ALLOW_UNSIGNED" envDefault:"false"`
	StalePendingAfter  time.Duration `env:"STALE_PENDING_AFTER" envDefault:"15m"`
	MaxRequestBytes    int64         `env:"CAPTURE_MAX_REQUEST_BYTES" envDefault:"41943040"`
}

type RelayAConfig struct {
	WebhookSecret string `env:"RELAY_A_WEBHOOK_SECRET"`
}

type RelayBConfig struct {
	SigningKey string `env:"RELAY_B_SIGNING_KEY"`
}

type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Window         time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	PerIPLimit     int           `env:"RATE_LIMIT_PER_IP" envDefault:"60"`
	PerTenantLimit int           `env:"RATE_LIMIT_PER_TENANT" envDefault:"30"`
	RedisKeyPrefix string        `env:"RATE_LIMIT_KEY_PREFIX" envDefault:"bcc:rl:"`
}

// DefaultCaptureConfig mirrors the env defaults; tests and tools use it.
func DefaultCaptureConfig(inboundDomain string) *CaptureConfig {
	return &CaptureConfig{
		InboundDomain:      inboundDomain,
		MaxAttachmentBytes: 10 * 1024 * 1024,
		TrialCaptureLimit:  3,
		SignatureWindow:    300 * time.Second,
		StalePendingAfter:  15 * time.Minute,
		MaxRequestBytes:    40 * 1024 * 1024,
	}
}
