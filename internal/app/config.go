package app

import (
	"log"
	"time"

	"peoplemeet-client/internal/api"
	"peoplemeet-client/internal/utils"
)

// Config is read from the environment (and .env) and may be overridden by
// command line flags.
type Config struct {
	APIURL         string
	DBPath         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

func LoadConfig() Config {
	if err := utils.LoadEnv(); err != nil {
		log.Printf("Warning: could not read .env: %v", err)
	}
	return Config{
		APIURL:         utils.GetEnv("PEOPLEMEET_API_URL", api.DefaultBaseURL),
		DBPath:         utils.GetEnv("PEOPLEMEET_DB_PATH", "peoplemeet.db"),
		PollInterval:   utils.GetEnvDuration("PEOPLEMEET_POLL_INTERVAL", 3*time.Second),
		RequestTimeout: utils.GetEnvDuration("PEOPLEMEET_REQUEST_TIMEOUT", 10*time.Second),
	}
}
