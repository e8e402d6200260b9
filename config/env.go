package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings are the process-level knobs of the router
type Settings struct {
	DBPath          string        `env:"ROUTER_DB_PATH"          envDefault:"router.db"`
	LogLevel        string        `env:"ROUTER_LOG_LEVEL"        envDefault:"info"`
	LogJSON         bool          `env:"ROUTER_LOG_JSON"         envDefault:"false"`
	ContinuationTTL time.Duration `env:"ROUTER_CONTINUATION_TTL" envDefault:"10m"`
	VenuesPath      string        `env:"ROUTER_VENUES_PATH"`
	Parallelism     int           `env:"ROUTER_PARALLELISM"      envDefault:"4"`
}

// LoadSettings loads an optional .env file and parses Settings from the
// environment. Variables already set in the environment win over the file.
func LoadSettings(envFiles ...string) (Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if s.Parallelism < 1 {
		return Settings{}, fmt.Errorf("ROUTER_PARALLELISM must be at least 1, got %d", s.Parallelism)
	}
	if s.ContinuationTTL <= 0 {
		return Settings{}, fmt.Errorf("ROUTER_CONTINUATION_TTL must be positive, got %s", s.ContinuationTTL)
	}
	return s, nil
}
