package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Log         LogConfig
	CheckIn     CheckInConfig
	Environment EnvironmentConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type CheckInConfig struct {
	// DraftTTL is how long an unfinished check-in survives before it is discarded.
	DraftTTL      time.Duration
	SweepInterval time.Duration
}

type EnvironmentConfig struct {
	GeocodeURL  string
	ForecastURL string
	// Latitude and Longitude are used for the UV lookup when the client
	// does not supply coordinates.
	Latitude       float64
	Longitude      float64
	Timeout        time.Duration
	RetryMax       int
	SimulatedDelay time.Duration
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		CheckIn: CheckInConfig{
			DraftTTL:      24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Environment: EnvironmentConfig{
			GeocodeURL:     "https://geocode.maps.co/reverse",
			ForecastURL:    "https://api.open-meteo.com/v1/forecast",
			Latitude:       33.6844,
			Longitude:      73.0479,
			Timeout:        10 * time.Second,
			RetryMax:       0,
			SimulatedDelay: time.Second,
		},
	}
}

// Load reads configuration from the JSON file backend and applies
// DERMIND_* environment variable overrides on top.
//
// The backend is a JSON file at $XDG_CONFIG_HOME/dermind/config.json.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.CheckIn.DraftTTL <= 0 {
		return fmt.Errorf("invalid config: checkin.draft_ttl must be positive")
	}
	if c.CheckIn.SweepInterval <= 0 {
		return fmt.Errorf("invalid config: checkin.sweep_interval must be positive")
	}
	if c.Environment.RetryMax < 0 {
		return fmt.Errorf("invalid config: environment.retry_max must not be negative")
	}
	return nil
}
