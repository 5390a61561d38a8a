// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the orchestrator configuration.
//
// Sources are layered, later ones winning:
//  1. Built-in defaults (DefaultConfig)
//  2. An optional YAML file named by HORIZON_CONFIG_FILE
//  3. Environment variables, including any loaded from a .env file
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/llm"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 12210
	defaultMaxHorizonSteps = 2000
	defaultMaxGridBuckets  = 1_000_000
	defaultModelName       = "lang-llama"
	defaultLLMTimeout      = 60 * time.Second
	defaultOTelEndpoint    = "aleutian-otel-collector:4317"
	defaultRateLimitRPS    = 5
	defaultRateLimitBurst  = 10
)

// Config is the complete orchestrator configuration.
type Config struct {
	Port            int    `yaml:"port"`
	MaxHorizonSteps int    `yaml:"max_horizon_steps"`
	GinMode         string `yaml:"gin_mode"`

	// MaxGridBuckets bounds the resampled grid of one request.
	MaxGridBuckets int `yaml:"max_grid_buckets"`

	LLM         llm.Config `yaml:"llm"`
	Temperature float32    `yaml:"temperature"`

	// EnableRequestLogging turns the per-run audit record on or off.
	EnableRequestLogging bool `yaml:"enable_request_logging"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// OTelEndpoint is the OTLP gRPC collector. Empty disables tracing export.
	OTelEndpoint string `yaml:"otel_endpoint"`

	Influx InfluxConfig `yaml:"influx"`

	Log LogConfig `yaml:"log"`
}

// RateLimitConfig configures the token bucket in front of forecast routes.
// RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// InfluxConfig locates stored sensor history. Empty URL disables the
// sensor forecast route.
type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"-"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
	Field       string `yaml:"field"`
}

// Enabled reports whether enough is configured to query InfluxDB.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Port:            defaultPort,
		MaxHorizonSteps: defaultMaxHorizonSteps,
		MaxGridBuckets:  defaultMaxGridBuckets,
		LLM: llm.Config{
			Backend: "openai",
			Model:   defaultModelName,
			Timeout: defaultLLMTimeout,
		},
		EnableRequestLogging: true,
		RateLimit: RateLimitConfig{
			RPS:   defaultRateLimitRPS,
			Burst: defaultRateLimitBurst,
		},
		OTelEndpoint: defaultOTelEndpoint,
		Influx:       InfluxConfig{Measurement: "sensor_readings", Field: "value"},
		Log:          LogConfig{Level: "info", JSON: true},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	return load(os.LookupEnv)
}

// load is Load with an injectable environment lookup.
func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	if path, ok := lookup("HORIZON_CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		if err := mergeYAMLFile(&cfg, strings.TrimSpace(path)); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	parseInt := func(key string, dst *int) {
		if v, ok := env(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	parseBool := func(key string, dst *bool) {
		if v, ok := env(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	parseFloat := func(key string, bits int, dst func(float64)) {
		if v, ok := env(key); ok {
			f, err := strconv.ParseFloat(v, bits)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			dst(f)
		}
	}

	parseInt("HORIZON_PORT", &cfg.Port)
	parseInt("MAX_HORIZON_STEPS", &cfg.MaxHorizonSteps)
	parseInt("MAX_GRID_BUCKETS", &cfg.MaxGridBuckets)
	if v, ok := env("GIN_MODE"); ok {
		cfg.GinMode = v
	}

	if v, ok := env("LLM_BACKEND_TYPE"); ok {
		cfg.LLM.Backend = strings.ToLower(v)
	}
	if v, ok := env("LLM_BASE_URL"); ok {
		cfg.LLM.BaseURL = strings.Trim(v, "\"'")
	}
	if v, ok := env("LLM_API_KEY"); ok {
		cfg.LLM.APIKey = v
	}
	if v, ok := env("LLM_MODEL_NAME"); ok {
		cfg.LLM.Model = v
	}
	parseFloat("LLM_TEMPERATURE", 32, func(f float64) { cfg.Temperature = float32(f) })
	if v, ok := env("LLM_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid LLM_TIMEOUT: %w", err))
		} else {
			cfg.LLM.Timeout = d
		}
	}

	parseBool("ENABLE_REQUEST_LOGGING", &cfg.EnableRequestLogging)
	parseFloat("RATE_LIMIT_RPS", 64, func(f float64) { cfg.RateLimit.RPS = f })
	parseInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		cfg.OTelEndpoint = strings.TrimSpace(v)
	}

	if v, ok := env("INFLUXDB_URL"); ok {
		cfg.Influx.URL = v
	}
	if v, ok := env("INFLUXDB_TOKEN"); ok {
		cfg.Influx.Token = v
	}
	if v, ok := env("INFLUXDB_ORG"); ok {
		cfg.Influx.Org = v
	}
	if v, ok := env("INFLUXDB_BUCKET"); ok {
		cfg.Influx.Bucket = v
	}
	if v, ok := env("INFLUXDB_MEASUREMENT"); ok {
		cfg.Influx.Measurement = v
	}
	if v, ok := env("INFLUXDB_FIELD"); ok {
		cfg.Influx.Field = v
	}

	if v, ok := env("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	parseBool("LOG_JSON", &cfg.Log.JSON)
	if v, ok := env("LOG_DIR"); ok {
		cfg.Log.Dir = v
	}

	return errors.Join(errs...)
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxHorizonSteps < 1 {
		errs = append(errs, fmt.Errorf("max horizon steps must be positive, got %d", c.MaxHorizonSteps))
	}
	if c.MaxGridBuckets <= c.MaxHorizonSteps {
		errs = append(errs, fmt.Errorf("max grid buckets must exceed max horizon steps, got %d", c.MaxGridBuckets))
	}
	switch c.LLM.Backend {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM backend %q", c.LLM.Backend))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("rate limit burst must be at least 1 when rps is set"))
	}
	return errors.Join(errs...)
}
