package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appDir              = "eks-lifecycle"
	defaultPollInterval = 30 * time.Second
	defaultMaxAttempts  = 40
)

// Config holds optional defaults loaded from ~/.config/eks-lifecycle/config.yaml.
type Config struct {
	DefaultProfile string `yaml:"default_profile"`
	DefaultRegion  string `yaml:"default_region"`

	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`

	// TokenURLExpiry bounds the presigned STS URL inside bearer tokens.
	TokenURLExpiry time.Duration `yaml:"token_url_expiry"`

	// StatePath is the SQLite registry file.
	StatePath string `yaml:"state_path"`

	StoreKubeConfigInRuntime bool   `yaml:"store_kube_config_in_runtime"`
	KubeconfigBucket         string `yaml:"kubeconfig_bucket"`
	DeploymentID             string `yaml:"deployment_id"`

	MetricsAddr string `yaml:"metrics_addr"`
	Debug       bool   `yaml:"debug"`
}

// Dir returns the directory holding the config file and the default registry.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appDir), nil
}

// Defaults returns the configuration used when no file exists.
func Defaults() *Config {
	cfg := &Config{
		PollInterval:             defaultPollInterval,
		MaxAttempts:              defaultMaxAttempts,
		StoreKubeConfigInRuntime: true,
	}
	if dir, err := Dir(); err == nil {
		cfg.StatePath = filepath.Join(dir, "state.db")
	}
	return cfg
}

// Load reads the config file. Returns defaults if the file doesn't exist.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return Defaults(), nil
	}
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads the config file at path, filling unset keys with defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the waiter cannot run with.
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative, got %s", c.PollInterval)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.KubeconfigBucket != "" && !c.StoreKubeConfigInRuntime {
		return errors.New("kubeconfig_bucket requires store_kube_config_in_runtime")
	}
	return nil
}

// Merge applies CLI flag overrides. Flags take precedence over config defaults.
func (c *Config) Merge(profile, region string) (string, string) {
	p := c.DefaultProfile
	if profile != "" {
		p = profile
	}
	r := c.DefaultRegion
	if region != "" {
		r = region
	}
	return p, r
}
