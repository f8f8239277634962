package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	App          AppConfig                 `json:"app"`
	Gateways     map[string]GatewayConfig  `json:"gateways"`
	Providers    map[string]ProviderConfig `json:"providers"`
	Memory       MemoryConfig              `json:"memory"`
	Orchestrator OrchestratorConfig        `json:"orchestrator"`
}

type AppConfig struct {
	Name      string `json:"name"`
	Workspace string `json:"workspace"`
	Prompts   string `json:"prompts"`
}

type GatewayConfig struct {
	Token   string `json:"token"`
	ChatID  string `json:"chat_id,omitempty"` // where run progress is pushed
	Enabled bool   `json:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// OrchestratorConfig tunes the execution loop. Zero values fall back to the
// built-in defaults.
type OrchestratorConfig struct {
	MaxAttempts       int `json:"max_attempts"`
	IterationFactor   int `json:"iteration_factor"`
	FailureBreaker    int `json:"failure_breaker"`
	SelfCorrectionMax int `json:"self_correction_max"`
}

func LoadConfig(path string) *Config {
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer file.Close()

	var cfg Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	return &cfg
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGateway returns the named gateway config if enabled
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled {
		return g, true
	}
	return GatewayConfig{}, false
}
