// Package agent – loader.go handles loading configuration from YAML
// files with credential injection via environment variables and .env
// files.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} references in
// config values. Group 1 is the variable name, group 3 the default.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Loads .env files first so ${VAR} references in the YAML resolve.
// A missing file yields the defaults rather than an error, so the
// agent can start before onboarding has written anything.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))
	return ParseConfig([]byte(expanded))
}

// ParseConfig parses YAML bytes into a Config, overlaying defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML with restricted permissions.
// The API key is stripped first; keys belong in the keychain or the
// environment, not on disk.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	if sanitized.LLM.HTTP.APIKey != "" {
		sanitized.LLM.HTTP.APIKey = "${POCKETCLAW_API_KEY}"
	}

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches standard locations for an existing config.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"pocketclaw.yaml",
		"pocketclaw.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".pocketclaw", "config.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DefaultConfigPath is where onboarding writes a fresh config.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".pocketclaw", "config.yaml")
}

// loadEnvFiles loads .env files from standard locations.
// godotenv does not overwrite variables that are already set.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} references with
// environment values. Unset variables without a default expand to the
// empty string.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[3]
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		return def
	})
}
