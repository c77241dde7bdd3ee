package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds process-level settings. DiscordToken is the only required
// value; everything else has a workable default.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	StationsPath string `env:"STATIONS_PATH" envDefault:"stations.toml"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogPath      string `env:"LOG_PATH" envDefault:"bot.log"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// New reads configuration from the environment.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
