package api

import "time"

// Config configures the HTTP API adapter.
type Config struct {
	// Port to listen on. Zero asks the kernel for a free port.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// JWTSecret is the HS256 key tokens are verified with.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16" yaml:"jwt_secret"`

	// JWTIssuer, when set, must match the iss claim.
	JWTIssuer string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// MaxUploadBytes caps the size of an upload request body.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"min=0" yaml:"max_upload_bytes"`

	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// UploadRateLimit is the sustained uploads per second allowed per
	// owner. Zero disables limiting.
	UploadRateLimit uint `mapstructure:"upload_rate_limit" yaml:"upload_rate_limit"`

	// UploadBurst is the number of uploads an owner may issue at once.
	UploadBurst uint `mapstructure:"upload_burst" yaml:"upload_burst"`

	// ReadTimeout bounds reading a full request, body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultMaxUploadBytes is 100 MiB.
const DefaultMaxUploadBytes int64 = 100 << 20

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.UploadRateLimit > 0 && c.UploadBurst == 0 {
		c.UploadBurst = c.UploadRateLimit * 2
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}
