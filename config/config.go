// Package config resolves LLM provider credentials for Retrofit runs.
// Resolution priority: CLI flags > environment variables > config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProviderConfig holds configuration for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
}

// ProviderMap maps provider names to their configurations.
type ProviderMap map[string]ProviderConfig

// File represents the ~/.retrofit/config.json file structure.
type File struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Defaults  map[string]string         `json:"defaults,omitempty"`
}

// ResolveProviders builds a ProviderMap from CLI flags, environment
// variables, and the config file. Priority: flags > env vars > file.
func ResolveProviders(flags map[string]string) (ProviderMap, error) {
	providers := make(ProviderMap)

	// 1. Load from config file (lowest priority)
	cfg, err := loadConfigFile()
	if err != nil {
		// Config file is optional -- only error if it exists but is malformed
		return nil, err
	}
	if cfg != nil {
		for name, pc := range cfg.Providers {
			providers[name] = pc
		}
	}

	// 2. Override with environment variables
	// Pattern: RETROFIT_PROVIDER_{NAME}_API_KEY, RETROFIT_PROVIDER_{NAME}_BASE_URL
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], parts[1]
		if !strings.HasPrefix(key, "RETROFIT_PROVIDER_") {
			continue
		}
		rest := strings.TrimPrefix(key, "RETROFIT_PROVIDER_")
		if strings.HasSuffix(rest, "_API_KEY") {
			name := strings.ToLower(strings.TrimSuffix(rest, "_API_KEY"))
			pc := providers[name]
			pc.APIKey = val
			providers[name] = pc
		} else if strings.HasSuffix(rest, "_BASE_URL") {
			name := strings.ToLower(strings.TrimSuffix(rest, "_BASE_URL"))
			pc := providers[name]
			pc.BaseURL = val
			providers[name] = pc
		}
	}

	// 3. Override with CLI flags (highest priority)
	// Flags are key=value pairs like "anthropic=sk-ant-..."
	for name, apiKey := range flags {
		pc := providers[name]
		pc.APIKey = apiKey
		providers[name] = pc
	}

	return providers, nil
}

// loadConfigFile reads ~/.retrofit/config.json (or RETROFIT_CONFIG env var).
// Returns nil, nil if the file doesn't exist.
func loadConfigFile() (*File, error) {
	path := os.Getenv("RETROFIT_CONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil // Can't determine home dir, skip config
		}
		path = filepath.Join(home, ".retrofit", "config.json")
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path from well-known config location
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg File
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseProviderFlags parses --provider-key flag values ("name=key") into a map.
func ParseProviderFlags(flags []string) (map[string]string, error) {
	result := make(map[string]string, len(flags))
	for _, flag := range flags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid provider-key format %q: expected name=key", flag)
		}
		result[parts[0]] = parts[1]
	}
	return result, nil
}
