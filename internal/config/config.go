// Package config reads the MEMRELAY_* environment once at startup into
// an immutable struct that is passed explicitly to every component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration surface. Every field has a
// default except ContainerTag, which is mandatory.
type Config struct {
	// ContainerTag scopes uploaded documents to one account container.
	ContainerTag string

	// APIBaseURL is the remote service endpoint.
	APIBaseURL string

	// CredentialsFile holds API keys by profile name.
	CredentialsFile string
	Profile         string

	StateFile        string
	PIDFile          string
	LogFile          string
	ConversationsDir string
	MemoryDir        string

	// BatchSize is the number of records per uploaded batch.
	BatchSize int

	// PollInterval is the sleep between daemon passes.
	PollInterval time.Duration

	// MinNewRecords is the per-source threshold below which a pass
	// skips the source entirely.
	MinNewRecords int

	CallTimeout    time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	MaxRecordChars int

	LogMaxSizeMB  int
	LogMaxBackups int

	DashboardAddr string
}

// placeholderTags are values copied from example configurations that
// must never be accepted as a real container tag.
var placeholderTags = map[string]bool{
	"your-container-tag": true,
	"changeme":           true,
	"xxx":                true,
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := LoadLenient()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLenient reads the environment like Load but skips validation.
// Setup runs before a container tag exists and still needs the paths.
func LoadLenient() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEMRELAY")
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	baseDir := filepath.Join(home, ".memrelay")

	v.SetDefault("api_base_url", "https://api.memvault.dev")
	v.SetDefault("credentials_file", filepath.Join(baseDir, "credentials.toml"))
	v.SetDefault("profile", "default")
	v.SetDefault("state_file", filepath.Join(baseDir, "sync-state.json"))
	v.SetDefault("pid_file", filepath.Join(baseDir, "memrelay.pid"))
	v.SetDefault("log_file", filepath.Join(baseDir, "memrelay.log"))
	v.SetDefault("conversations_dir", filepath.Join(baseDir, "conversations"))
	v.SetDefault("memory_dir", filepath.Join(baseDir, "memory"))
	v.SetDefault("batch_size", 40)
	v.SetDefault("poll_interval", 120*time.Second)
	v.SetDefault("min_new_records", 5)
	v.SetDefault("call_timeout", 30*time.Second)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_base_delay", time.Second)
	v.SetDefault("max_record_chars", 5000)
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("dashboard_addr", "127.0.0.1:7343")

	cfg := &Config{
		ContainerTag:     strings.TrimSpace(v.GetString("container_tag")),
		APIBaseURL:       strings.TrimRight(v.GetString("api_base_url"), "/"),
		CredentialsFile:  v.GetString("credentials_file"),
		Profile:          v.GetString("profile"),
		StateFile:        v.GetString("state_file"),
		PIDFile:          v.GetString("pid_file"),
		LogFile:          v.GetString("log_file"),
		ConversationsDir: v.GetString("conversations_dir"),
		MemoryDir:        v.GetString("memory_dir"),
		BatchSize:        v.GetInt("batch_size"),
		PollInterval:     v.GetDuration("poll_interval"),
		MinNewRecords:    v.GetInt("min_new_records"),
		CallTimeout:      v.GetDuration("call_timeout"),
		RetryAttempts:    v.GetInt("retry_attempts"),
		RetryBaseDelay:   v.GetDuration("retry_base_delay"),
		MaxRecordChars:   v.GetInt("max_record_chars"),
		LogMaxSizeMB:     v.GetInt("log_max_size_mb"),
		LogMaxBackups:    v.GetInt("log_max_backups"),
		DashboardAddr:    v.GetString("dashboard_addr"),
	}
	return cfg, nil
}

// ValidateTag checks a container tag on its own. Setup uses it for
// form validation before a full Config exists.
func ValidateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("MEMRELAY_CONTAINER_TAG is required")
	}
	if len(tag) < 2 {
		return fmt.Errorf("container tag %q is too short (minimum 2 characters)", tag)
	}
	if placeholderTags[strings.ToLower(tag)] {
		return fmt.Errorf("container tag %q is a placeholder value, set a real tag", tag)
	}
	return nil
}

// Validate checks the mandatory tag and numeric sanity. It is called by
// Load and again by commands that construct configs by hand.
func (c *Config) Validate() error {
	if err := ValidateTag(c.ContainerTag); err != nil {
		return err
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.MinNewRecords < 1 {
		return fmt.Errorf("minimum new records must be at least 1, got %d", c.MinNewRecords)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout)
	}
	return nil
}
