// Package config loads the demo binaries' settings from a TOML file,
// with environment-variable overrides loaded through godotenv — the
// same two libraries (and the same "TOML file, optional .env override"
// shape) the teacher's feeder config package uses, generalized from a
// fixed `exchanges` table to the handful of knobs a zerobuffer
// reader/writer/duplex binary needs.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds the settings shared by the zerobuffer-reader,
// zerobuffer-writer and zerobuffer-duplex demo binaries.
type Config struct {
	BufferName     string `toml:"buffer_name"`
	MetadataSize   uint64 `toml:"metadata_size"`
	PayloadSize    uint64 `toml:"payload_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	LogLevel       string `toml:"log_level"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		BufferName:     "zerobuffer-demo",
		MetadataSize:   4096,
		PayloadSize:    1 << 20,
		TimeoutSeconds: 5,
		LogLevel:       "info",
		MetricsAddr:    "",
	}
}

// Load reads path as TOML into Default()'s values, then applies
// environment overrides (ZEROBUFFER_BUFFER_NAME, ZEROBUFFER_METADATA_SIZE,
// ZEROBUFFER_PAYLOAD_SIZE, ZEROBUFFER_TIMEOUT_SECONDS, ZEROBUFFER_LOG_LEVEL,
// ZEROBUFFER_METRICS_ADDR). A .env file in the current working
// directory, if present, is loaded first via godotenv so it can supply
// those variables.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		} else if err := toml.Unmarshal(b, &c); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("ZEROBUFFER_BUFFER_NAME"); v != "" {
		c.BufferName = v
	}
	if v := os.Getenv("ZEROBUFFER_METADATA_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.MetadataSize = n
		}
	}
	if v := os.Getenv("ZEROBUFFER_PAYLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.PayloadSize = n
		}
	}
	if v := os.Getenv("ZEROBUFFER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("ZEROBUFFER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ZEROBUFFER_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}

	return c, nil
}
