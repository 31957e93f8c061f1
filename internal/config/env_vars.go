package config

import (
	"fmt"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelEnvVar = "LOG_LEVEL"

	envDevelopment = "DEV"
	envProduction  = "production"
)

type EnvVars struct {
	port     string
	appName  string
	env      string
	logLevel string
}

var _ EnvConfig = EnvVars{}

func loadEnvVars(lookup func(string, string) string) (EnvVars, error) {
	port := lookup(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return EnvVars{
		port:     port,
		appName:  lookup(appNameVar, "Backlog Broker"),
		env:      lookup(envVar, envDevelopment),
		logLevel: lookup(logLevelEnvVar, "info"),
	}, nil
}

func (e EnvVars) GetPort() string {
	return e.port
}

func (e EnvVars) GetAppName() string {
	return e.appName
}

func (e EnvVars) GetEnv() string {
	return e.env
}

func (e EnvVars) GetLogLevel() string {
	return e.logLevel
}

// IsProduction controls the Secure attribute on cookies.
func (e EnvVars) IsProduction() bool {
	return strings.EqualFold(e.env, envProduction)
}
