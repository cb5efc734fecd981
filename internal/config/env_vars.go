package config

import (
	"strings"
	"time"
)

const productionEnv = "production"

type EnvVars struct {
	Port            string        `env:"PORT,required,notEmpty"`
	AppName         string        `env:"APP_NAME" envDefault:"Marketplace Auth"`
	Env             string        `env:"ENV" envDefault:"DEV"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

var _ EnvConfig = EnvVars{}

// GetPort returns the listen address, e.g. ":3001".
func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) IsProduction() bool {
	return strings.EqualFold(e.Env, productionEnv)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetShutdownTimeout() time.Duration {
	return e.ShutdownTimeout
}
