package api

import (
	"time"

	"github.com/marmos91/blobsweep/pkg/api/auth"
)

// APIConfig configures the operator HTTP API.
//
// The API is opt-in: unless Enabled is set, serve runs the scheduler alone
// and no listener is opened.
type APIConfig struct {
	// Enabled controls whether the API server is started. Nil means disabled.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled" json:"enabled,omitempty"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port" json:"port"`

	// ReadTimeout bounds reading a whole request. Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout bounds writing a response. Default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout bounds keep-alive idle time. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`

	// JWTSecret is the HMAC key that signs the bearer tokens required on
	// /api/v1. At least 32 characters; required when the API is enabled.
	// Usually supplied as BLOBSWEEP_API_JWT_SECRET.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret" json:"jwt_secret,omitempty"`

	// JWTIssuer is the iss claim tokens are issued with and checked against.
	// Default: "blobsweep"
	JWTIssuer string `mapstructure:"jwt_issuer" yaml:"jwt_issuer" json:"jwt_issuer"`

	// ExposeMetrics mounts the Prometheus handler at /metrics on this server.
	ExposeMetrics bool `mapstructure:"expose_metrics" yaml:"expose_metrics" json:"expose_metrics"`
}

// DefaultPort is the API port used when none is configured.
const DefaultPort = 8080

// IsEnabled returns whether the API server is enabled.
func (c *APIConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return false
	}
	return *c.Enabled
}

// ApplyDefaults fills in zero values.
func (c *APIConfig) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = auth.DefaultIssuer
	}
}

// JWTConfig returns the token settings for auth.NewJWTService.
func (c *APIConfig) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{Secret: c.JWTSecret, Issuer: c.JWTIssuer}
}
