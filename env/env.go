package env

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const DefaultEnvFile = ".env"

// InitConfig fills config from the environment, after loading DefaultEnvFile if present.
func InitConfig(config any) error {
	return InitConfigFrom(config, DefaultEnvFile)
}

// InitConfigFrom fills config from the environment, after loading the given env files.
// Missing files are skipped; variables already set in the environment are never overridden.
func InitConfigFrom(config any, files ...string) error {
	for _, file := range files {
		// nolint:errcheck // env files are optional
		_ = godotenv.Load(file)
	}

	if err := envconfig.Process("", config); err != nil {
		return errors.Wrap(err, "failed to envconfig.Process")
	}

	return nil
}
