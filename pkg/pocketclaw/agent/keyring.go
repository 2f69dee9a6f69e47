// Package agent – keyring.go stores the LLM API key in the system
// keychain instead of the config file. The environment variable wins
// when set so deployments without a keychain keep working.
package agent

import (
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "pocketclaw"
	keyringKeyName = "llm_api_key"

	// APIKeyEnvVar overrides the keychain when set.
	APIKeyEnvVar = "POCKETCLAW_API_KEY"
)

// StoreAPIKey saves the API key in the system keychain.
func StoreAPIKey(key string) error {
	return keyring.Set(keyringService, keyringKeyName, key)
}

// LoadAPIKey resolves the API key: environment first, then keychain.
// Returns an empty string when neither is set; local backends usually
// need no key at all.
func LoadAPIKey() string {
	if key := os.Getenv(APIKeyEnvVar); key != "" {
		return key
	}
	key, err := keyring.Get(keyringService, keyringKeyName)
	if err != nil {
		return ""
	}
	return key
}

// DeleteAPIKey removes the key from the keychain. Not finding one is
// not an error.
func DeleteAPIKey() error {
	err := keyring.Delete(keyringService, keyringKeyName)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
