package audit

import "time"

type Config struct {
	// Enabled determines if audit events are sent at all.
	Enabled bool `envconfig:"AUDIT_ENABLED" default:"true" yaml:"enabled"`

	ServiceName string `envconfig:"AUDIT_SERVICE_NAME" validate:"required_if=Enabled true" yaml:"service_name"`

	// Endpoint is the collector URL. Used verbatim after trimming.
	Endpoint string `envconfig:"AUDIT_ENDPOINT" validate:"required_if=Enabled true" yaml:"endpoint"`

	// APIKey is sent as x-api-key when set.
	APIKey string `envconfig:"AUDIT_API_KEY" yaml:"api_key"`

	// FireAndForget determines whether Log waits for the POST.
	// TRUE (default): Log returns as soon as the delivery goroutine is started.
	// FALSE: Log blocks until the collector answers. Failures are still swallowed.
	FireAndForget bool `envconfig:"AUDIT_FIRE_AND_FORGET" default:"true" yaml:"fire_and_forget"`

	// HTTPTimeout bounds each POST made by the default transport.
	HTTPTimeout time.Duration `envconfig:"AUDIT_HTTP_TIMEOUT" default:"5s" validate:"gte=0" yaml:"http_timeout"`

	// MaxBodySize caps the request body capture in the HTTP middleware.
	MaxBodySize int64 `envconfig:"AUDIT_MAX_BODY_SIZE" default:"32768" validate:"gte=0" yaml:"max_body_size"`

	ExcludePaths []string `envconfig:"AUDIT_EXCLUDE_PATHS" default:"/health,/metrics,/live,/ready" yaml:"exclude_paths"`
}
