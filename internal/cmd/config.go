package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string `yaml:"port"`
		MaxConnections int    `yaml:"max_connections"`
	} `yaml:"server"`
	Broker struct {
		Backlog int `yaml:"backlog"`
	} `yaml:"broker"`
	Relay struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = getEnv("PORT", "8080")
	config.Server.MaxConnections = getEnvAsInt("MAX_CONNECTIONS", 1024)
	config.Broker.Backlog = getEnvAsInt("BROKER_BACKLOG", 256)
	config.Relay.Enabled = false
	return &config
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
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file; env defaults apply.
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}
