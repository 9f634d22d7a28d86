package config

import "time"

// Config is everything the calendar service needs.
type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type TokenConfig interface {
	GetJWTSecret() string
	GetTokenExpiry() time.Duration
	GetIssuer() string
}

// ClientConfig is what the terminal client needs.
type ClientConfig interface {
	GetAPIURL() string
	GetStateFile() string
	GetHTTPTimeout() time.Duration
	GetRenewSchedule() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
}

func New() Config {
	return mainConfig{}
}

func NewClient() ClientConfig {
	return Client{}
}
