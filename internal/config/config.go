// Package config loads the JSON configuration with environment variable
// substitution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Routing   RoutingConfig    `json:"routing"`
	Gateway   GatewayConfig    `json:"gateway"`
	Database  DatabaseConfig   `json:"database"`
	TTS       TTSConfig        `json:"tts"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// RoutingConfig binds pipeline stages to providers. Model is the default
// generation model; Bindings maps an expert or stage id to a provider id,
// Fallbacks lists providers tried in order when the bound one fails.
type RoutingConfig struct {
	Model     string              `json:"model"`
	Default   string              `json:"default"`
	Bindings  map[string]string   `json:"bindings,omitempty"`
	Fallbacks map[string][]string `json:"fallbacks,omitempty"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type TTSConfig struct {
	GeminiAPIKey     string `json:"gemini_api_key"`
	GeminiEndpoint   string `json:"gemini_endpoint,omitempty"`
	ElevenLabsAPIKey string `json:"elevenlabs_api_key"`
}

// envVarRe matches ${VAR} and ${VAR:default} where the default holds no
// braces. Nested references like ${A:${B}} resolve innermost first over
// repeated passes.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^{}]*))?\}`)

// maxEnvPasses bounds substitution depth for nested defaults.
const maxEnvPasses = 8

// substituteEnv replaces ${VAR} and ${VAR:default} with environment
// values, resolving nested defaults from the inside out.
func substituteEnv(s string) string {
	for i := 0; i < maxEnvPasses; i++ {
		next := envVarRe.ReplaceAllStringFunc(s, func(match string) string {
			parts := envVarRe.FindStringSubmatch(match)
			name := parts[1]
			defaultVal := parts[2]
			if v := os.Getenv(name); v != "" {
				return v
			}
			return defaultVal
		})
		if next == s {
			return next
		}
		s = next
	}
	return s
}

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal([]byte(substituteEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
