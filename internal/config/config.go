package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Mode        string
	Environment string
	LogLevel    string
	OTel        OTelConfig
	Simulation  SimulationConfig
	StartX      int
	StartY      int
}

type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

type SimulationConfig struct {
	Interval           time.Duration
	Seed               uint64
	ReleaseProbability float64
	AutoStart          bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}

	return &Config{
		Port:        envOr("APP_PORT", "8080"),
		Mode:        envOr("APP_MODE", "server"),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		OTel: OTelConfig{
			Enabled:      envOrBool("OTEL_ENABLED", true),
			ServiceName:  envOr("OTEL_SERVICE_NAME", "smartpark"),
			OTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
		Simulation: SimulationConfig{
			Interval:           envOrDuration("SIM_INTERVAL", 3*time.Second),
			Seed:               envOrUint("SIM_SEED", uint64(time.Now().UnixNano())),
			ReleaseProbability: envOrFloat("SIM_RELEASE_PROBABILITY", 0.3),
			AutoStart:          envOrBool("SIM_AUTOSTART", false),
		},
		StartX: envOrInt("START_X", 1),
		StartY: envOrInt("START_Y", 7),
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envOrUint(key string, fallback uint64) uint64 {
	if v, ok := os.LookupEnv(key); ok {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			return u
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
