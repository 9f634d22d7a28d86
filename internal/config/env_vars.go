package config

import (
	"os"
	"strings"
	"time"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	envVar        = "ENV"
	jwtSecretVar  = "JWT_SECRET"
	tokenTTLVar   = "TOKEN_TTL"
	issuerVar     = "TOKEN_ISSUER"
	originsVar    = "ALLOWED_ORIGINS"
	apiURLVar     = "CALENDAR_API_URL"
	stateFileVar  = "CALENDAR_STATE_FILE"
	timeoutVar    = "CALENDAR_HTTP_TIMEOUT"
	renewSchedVar = "CALENDAR_RENEW_SCHEDULE"
	logLevelVar   = "CALENDAR_LOG_LEVEL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "5000")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Calendar")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetJWTSecret() string {
	return GetEnv(jwtSecretVar, "change-me-in-production")
}

func (Token) GetTokenExpiry() time.Duration {
	return GetDuration(tokenTTLVar, 2*time.Hour)
}

func (Token) GetIssuer() string {
	return GetEnv(issuerVar, "go-calendar")
}

type Client struct{}

var _ ClientConfig = Client{}

// GetAPIURL returns the service root, always ending in /api.
func (Client) GetAPIURL() string {
	return NormalizeAPIURL(GetEnv(apiURLVar, "http://localhost:5000"))
}

func (Client) GetStateFile() string {
	if path := os.Getenv(stateFileVar); path != "" {
		return path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".go-calendar-state.yaml"
	}
	return dir + "/go-calendar/state.yaml"
}

func (Client) GetHTTPTimeout() time.Duration {
	return GetDuration(timeoutVar, 10*time.Second)
}

func (Client) GetRenewSchedule() string {
	return GetEnv(renewSchedVar, "@every 30m")
}

func (Client) GetLogLevel() string {
	return GetEnv(logLevelVar, "warn")
}

// NormalizeAPIURL appends /api unless base already ends with it.
func NormalizeAPIURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/api") {
		return base
	}
	return base + "/api"
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
