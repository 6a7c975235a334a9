// Package creds reads and writes the API credentials file, a TOML
// document keyed by profile name:
//
//	[profiles.default]
//	api_key = "sm_..."
package creds

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type credentialsFile struct {
	Profiles map[string]profile `toml:"profiles"`
}

type profile struct {
	APIKey string `toml:"api_key"`
}

// Load returns the API key for the named profile. A missing file,
// missing profile, or empty key is an error; startup treats it as fatal.
func Load(path, profileName string) (string, error) {
	var file credentialsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("credentials file %s does not exist (run `memrelay setup` first)", path)
		}
		return "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	p, ok := file.Profiles[profileName]
	if !ok {
		return "", fmt.Errorf("profile %q not found in %s", profileName, path)
	}

	key := strings.TrimSpace(p.APIKey)
	if key == "" {
		return "", fmt.Errorf("profile %q has an empty api_key", profileName)
	}
	return key, nil
}

// Save writes or replaces the named profile's key, preserving other
// profiles. The file is created with owner-only permissions.
func Save(path, profileName, apiKey string) error {
	var file credentialsFile
	if _, err := toml.DecodeFile(path, &file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to parse existing credentials file: %w", err)
	}
	if file.Profiles == nil {
		file.Profiles = make(map[string]profile)
	}
	file.Profiles[profileName] = profile{APIKey: strings.TrimSpace(apiKey)}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(file); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}
