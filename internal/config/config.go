package config

import (
	"os"
	"strings"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	IsProduction() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
}

// Load reads the process environment once and validates it.
func Load() (Config, error) {
	return LoadWith(os.Getenv)
}

// LoadWith builds the configuration from getenv. Missing required settings
// produce an error wrapping errors.ErrConfig; the process must not serve
// traffic in that case.
func LoadWith(getenv func(string) string) (Config, error) {
	lookup := func(key, defaultValue string) string {
		value := strings.TrimSpace(getenv(key))
		if value == "" {
			return defaultValue
		}
		return value
	}

	env, err := loadEnvVars(lookup)
	if err != nil {
		return nil, err
	}
	cors, err := loadCors(lookup)
	if err != nil {
		return nil, err
	}
	oauth, err := loadOAuth(lookup)
	if err != nil {
		return nil, err
	}
	security, err := loadSecurity(lookup, env.IsProduction())
	if err != nil {
		return nil, err
	}

	return mainConfig{
		EnvVars:  env,
		Cors:     cors,
		OAuth:    oauth,
		Security: security,
	}, nil
}

func required(lookup func(string, string) string, key string) (string, error) {
	value := lookup(key, "")
	if value == "" {
		return "", apperrors.Config("config", key+" is required")
	}
	return value, nil
}
