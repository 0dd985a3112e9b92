package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		OperatorKey string `yaml:"operator_key"`
		TokenTTLMin int    `yaml:"token_ttl_min"`
	} `yaml:"auth"`

	Storage struct {
		Backend string `yaml:"backend"` // memory | postgres
	} `yaml:"storage"`

	Auction struct {
		SettleTimeoutSec int `yaml:"settle_timeout_sec"`
	} `yaml:"auction"`

	Images struct {
		Dir       string `yaml:"dir"`
		URLPrefix string `yaml:"url_prefix"`
	} `yaml:"images"`

	Relay struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// environment always wins over the file
	config.Server.Port = getEnv("PORT", defaultStr(config.Server.Port, "8080"))
	config.Auth.JWTSecret = getEnv("JWT_SECRET", config.Auth.JWTSecret)
	config.Auth.OperatorKey = getEnv("OPERATOR_KEY", config.Auth.OperatorKey)
	config.Storage.Backend = getEnv("STORAGE_BACKEND", defaultStr(config.Storage.Backend, "memory"))
	config.Relay.URL = getEnv("NATS_URL", config.Relay.URL)

	if config.Auth.TokenTTLMin <= 0 {
		config.Auth.TokenTTLMin = getEnvAsInt("TOKEN_TTL_MIN", 12*60)
	}
	if config.Auction.SettleTimeoutSec <= 0 {
		config.Auction.SettleTimeoutSec = 30
	}
	if config.Images.Dir == "" {
		config.Images.Dir = "data/images"
	}
	if config.Images.URLPrefix == "" {
		config.Images.URLPrefix = "/images"
	}
	if config.Relay.SubjectPrefix == "" {
		config.Relay.SubjectPrefix = "auction.events"
	}

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required (JWT_SECRET or auth.jwt_secret)")
	}
	if config.Auth.OperatorKey == "" {
		return nil, fmt.Errorf("operator key is required (OPERATOR_KEY or auth.operator_key)")
	}

	return &config, nil
}

func defaultStr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
