package app

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

type envVars struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"dev"`
	DataDir     string      `envconfig:"DATA_DIR" default:"./data"`
	BlockSize   int         `envconfig:"BLOCK_SIZE" default:"4096"`
	LogFile     string      `envconfig:"LOG_FILE" default:"cormorant.wal"`
}

const envPrefix = "CORMORANT"

// loadEnv reads configuration from the environment, after loading an
// optional .env file. A missing .env is not an error.
func loadEnv() (envVars, error) {
	_ = godotenv.Load()

	var env envVars
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return envVars{}, fmt.Errorf("failed to process env config: %w", err)
	}

	if env.BlockSize <= 0 {
		return envVars{}, fmt.Errorf("invalid block size %d", env.BlockSize)
	}

	return env, nil
}
