package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DERMIND_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DERMIND_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "DERMIND_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "checkin.draft_ttl", typ: kDuration, env: "DERMIND_CHECKIN_DRAFT_TTL",
		apply:   func(cfg *Config, v any) { cfg.CheckIn.DraftTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.CheckIn.DraftTTL },
	},
	{
		key: "checkin.sweep_interval", typ: kDuration, env: "DERMIND_CHECKIN_SWEEP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.CheckIn.SweepInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.CheckIn.SweepInterval },
	},
	{
		key: "environment.geocode_url", typ: kString, env: "DERMIND_ENVIRONMENT_GEOCODE_URL",
		apply:   func(cfg *Config, v any) { cfg.Environment.GeocodeURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Environment.GeocodeURL },
	},
	{
		key: "environment.forecast_url", typ: kString, env: "DERMIND_ENVIRONMENT_FORECAST_URL",
		apply:   func(cfg *Config, v any) { cfg.Environment.ForecastURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Environment.ForecastURL },
	},
	{
		key: "environment.latitude", typ: kFloat, env: "DERMIND_ENVIRONMENT_LATITUDE",
		apply:   func(cfg *Config, v any) { cfg.Environment.Latitude = v.(float64) },
		extract: func(cfg Config) any { return cfg.Environment.Latitude },
	},
	{
		key: "environment.longitude", typ: kFloat, env: "DERMIND_ENVIRONMENT_LONGITUDE",
		apply:   func(cfg *Config, v any) { cfg.Environment.Longitude = v.(float64) },
		extract: func(cfg Config) any { return cfg.Environment.Longitude },
	},
	{
		key: "environment.timeout", typ: kDuration, env: "DERMIND_ENVIRONMENT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Environment.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Environment.Timeout },
	},
	{
		key: "environment.retry_max", typ: kInt, env: "DERMIND_ENVIRONMENT_RETRY_MAX",
		apply:   func(cfg *Config, v any) { cfg.Environment.RetryMax = v.(int) },
		extract: func(cfg Config) any { return cfg.Environment.RetryMax },
	},
	{
		key: "environment.simulated_delay", typ: kDuration, env: "DERMIND_ENVIRONMENT_SIMULATED_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Environment.SimulatedDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Environment.SimulatedDelay },
	},
}

// parseValue converts raw into the Go type for typ.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
